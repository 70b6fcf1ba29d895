// Package auth is the service layer over the backend's auth, profile, role
// and invitation endpoints.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/johan-st/dbstudio/internal/access"
	"github.com/johan-st/dbstudio/internal/api"
	"github.com/johan-st/dbstudio/internal/storage"
	"golang.org/x/sync/errgroup"
)

// ErrNotAuthenticated is returned by calls that need a stored session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Service calls the backend through an authenticated api.Client.
//
// local holds what survives a restart (tokens, organization, accounts, the
// auth state blob); session holds per-run values.
type Service struct {
	client  *api.Client
	local   storage.Storage
	session storage.Storage
	logger  *log.Logger
	now     func() time.Time
}

// NewService creates a service.
func NewService(client *api.Client, local, session storage.Storage, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		client:  client,
		local:   local,
		session: session,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates an account. The backend sends a verification code.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	var user User
	if err := s.client.Post(api.WithoutRefresh(ctx), "/api/v1/auth/register", reg, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a session and persists it.
func (s *Service) Login(ctx context.Context, creds Credentials) (*User, error) {
	var sess Session
	if err := s.client.Post(api.WithoutRefresh(ctx), "/api/v1/auth/login", creds, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, &api.Error{Status: http.StatusOK, Message: "Login response contained no access token"}
	}

	if err := s.client.Tokens().Set(sess.AccessToken, sess.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	user := sess.User
	if user == nil {
		user = &User{Email: creds.Email}
	}
	if user.Email == "" {
		user.Email = creds.Email
	}
	if err := s.establish(user); err != nil {
		return nil, err
	}

	s.logger.Info("logged in", "email", user.Email, "organization", user.OrganizationID)
	return user, nil
}

// establish records everything that belongs to a fresh session.
func (s *Service) establish(user *User) error {
	if user.OrganizationID != "" {
		if err := s.local.Set(storage.KeyOrganizationID, user.OrganizationID); err != nil {
			return fmt.Errorf("failed to store organization: %w", err)
		}
	}
	if err := s.session.Set(storage.KeyAccountIdentifier, user.Email); err != nil {
		return fmt.Errorf("failed to store account identifier: %w", err)
	}
	if err := s.saveState(State{User: user, OrganizationID: user.OrganizationID, IsAuthenticated: true}); err != nil {
		return err
	}
	return s.RememberAccount(StoredAccount{
		Identifier:     user.Email,
		DisplayName:    user.DisplayName(),
		OrganizationID: user.OrganizationID,
	})
}

// Logout ends the session on the server and always clears it locally.
// A failed server call is logged, not returned.
func (s *Service) Logout(ctx context.Context) error {
	tokens := s.client.Tokens()
	if tokens.Access() != "" {
		body := map[string]string{}
		if refresh := tokens.Refresh(); refresh != "" {
			body["refresh_token"] = refresh
		}
		if err := s.client.Post(ctx, "/api/v1/auth/logout", body, nil); err != nil {
			s.logger.Warn("server logout failed, clearing local session anyway", "err", err)
		}
	}

	var errs []error
	if err := tokens.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := s.local.Remove(storage.KeyOrganizationID, storage.KeyAuthState); err != nil {
		errs = append(errs, err)
	}
	if err := s.session.Remove(storage.KeyAccountIdentifier); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.logger.Info("logged out")
	return nil
}

// Refresh exchanges the refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.client.RefreshToken(ctx)
	return err
}

// VerifyAccount confirms the account and remembers it on this machine.
func (s *Service) VerifyAccount(ctx context.Context, v Verification) error {
	if err := s.client.Post(api.WithoutRefresh(ctx), "/api/v1/auth/verify-account", v, nil); err != nil {
		return err
	}
	return s.RememberAccount(StoredAccount{Identifier: v.Email})
}

// IsAuthenticated reports whether an access token is stored. Its validity is
// only discovered by the next request.
func (s *Service) IsAuthenticated() bool {
	return s.client.Tokens().Access() != ""
}

// State returns the persisted auth state. A missing or unreadable blob yields
// the zero State.
func (s *Service) State() State {
	var st State
	raw, ok, err := s.local.Get(storage.KeyAuthState)
	if err != nil || !ok {
		return st
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Warn("discarding unreadable auth state", "err", err)
		return State{}
	}
	st.IsAuthenticated = s.IsAuthenticated()
	return st
}

func (s *Service) saveState(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode auth state: %w", err)
	}
	if err := s.local.Set(storage.KeyAuthState, string(data)); err != nil {
		return fmt.Errorf("failed to store auth state: %w", err)
	}
	return nil
}

// OrganizationID returns the stored organization id or "".
func (s *Service) OrganizationID() string {
	v, _, _ := s.local.Get(storage.KeyOrganizationID)
	return v
}

// AccountIdentifier returns the identifier of this run's account or "".
func (s *Service) AccountIdentifier() string {
	v, _, _ := s.session.Get(storage.KeyAccountIdentifier)
	return v
}

// Profile fetches the current user and refreshes the persisted state.
func (s *Service) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.Get(ctx, "/api/v1/users/me/profile", &user); err != nil {
		return nil, err
	}
	st := s.State()
	st.User = &user
	if user.OrganizationID != "" {
		st.OrganizationID = user.OrganizationID
	}
	if err := s.saveState(st); err != nil {
		s.logger.Warn("failed to persist profile", "err", err)
	}
	return &user, nil
}

// UpdateProfile changes profile fields.
func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	var user User
	if err := s.client.Patch(ctx, "/api/v1/users/me/profile", upd, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UploadProfilePicture uploads an image as the profile picture.
func (s *Service) UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (string, error) {
	var pic Picture
	if err := s.client.Upload(ctx, http.MethodPost, "/api/v1/users/me/profile-picture", "file", filename, r, &pic); err != nil {
		return "", err
	}
	return pic.URL, nil
}

// RemoveProfilePicture deletes the profile picture.
func (s *Service) RemoveProfilePicture(ctx context.Context) error {
	return s.client.Delete(ctx, "/api/v1/users/me/profile-picture", nil)
}

// ChangePassword replaces the current password.
func (s *Service) ChangePassword(ctx context.Context, pc PasswordChange) error {
	return s.client.Put(ctx, "/api/v1/users/me/password", pc, nil)
}

// MyRoles lists the roles of the current user.
func (s *Service) MyRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := s.client.Get(ctx, "/api/v1/roles/me/roles", &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CustomRoles lists the organization's custom roles.
func (s *Service) CustomRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := s.client.Get(ctx, "/api/v1/roles/custom", &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// UpdateCustomRole changes a custom role.
func (s *Service) UpdateCustomRole(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	var role Role
	if err := s.client.Put(ctx, "/api/v1/roles/custom/"+url.PathEscape(id), upd, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// DeleteCustomRole deletes a custom role.
func (s *Service) DeleteCustomRole(ctx context.Context, id string) error {
	return s.client.Delete(ctx, "/api/v1/roles/custom/"+url.PathEscape(id), nil)
}

// Role fetches a role by id.
func (s *Service) Role(ctx context.Context, id string) (*Role, error) {
	var role Role
	if err := s.client.Get(ctx, "/api/v1/roles/"+url.PathEscape(id), &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// RolePermissions lists the permissions granted by a role.
func (s *Service) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	var perms []Permission
	if err := s.client.Get(ctx, "/api/v1/permissions/roles/"+url.PathEscape(roleID), &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// OrgUsers lists the members of an organization. An empty orgID uses the
// stored organization.
func (s *Service) OrgUsers(ctx context.Context, orgID string) ([]OrgUser, error) {
	if orgID == "" {
		orgID = s.OrganizationID()
	}
	if orgID == "" {
		return nil, fmt.Errorf("no organization: %w", ErrNotAuthenticated)
	}
	var users []OrgUser
	if err := s.client.Get(ctx, "/api/v1/users/org/"+url.PathEscape(orgID)+"/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Invitations lists pending invitations.
func (s *Service) Invitations(ctx context.Context) ([]Invitation, error) {
	var invs []Invitation
	if err := s.client.Get(ctx, "/api/v1/invitations", &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// CreateInvitation invites an email address.
func (s *Service) CreateInvitation(ctx context.Context, req InvitationRequest) (*Invitation, error) {
	var inv Invitation
	if err := s.client.Post(ctx, "/api/v1/invitations", req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// RevokeInvitation cancels a pending invitation.
func (s *Service) RevokeInvitation(ctx context.Context, id string) error {
	return s.client.Delete(ctx, "/api/v1/invitations/"+url.PathEscape(id), nil)
}

// ResendInvitation sends the invitation email again.
func (s *Service) ResendInvitation(ctx context.Context, id string) error {
	return s.client.Post(ctx, "/api/v1/invitations/"+url.PathEscape(id)+"/resend", nil, nil)
}

// Overview fetches the profile and roles concurrently.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var ov Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.Profile(gctx)
		ov.User = user
		return err
	})
	g.Go(func() error {
		roles, err := s.MyRoles(gctx)
		ov.Roles = roles
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}

// Permissions resolves the union of permissions over all of the user's roles.
func (s *Service) Permissions(ctx context.Context) (*access.Set, error) {
	roles, err := s.MyRoles(ctx)
	if err != nil {
		return nil, err
	}

	perms := make([][]Permission, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, role := range roles {
		g.Go(func() error {
			p, err := s.RolePermissions(gctx, role.ID)
			perms[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := access.NewSet()
	for i, role := range roles {
		set.Add(role.Permissions...)
		for _, p := range perms[i] {
			set.Add(p.Key())
		}
	}
	return set, nil
}
