package auth

import "time"

// User is the authenticated user's profile.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username,omitempty"`
	FirstName         string    `json:"first_name,omitempty"`
	LastName          string    `json:"last_name,omitempty"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	OrganizationID    string    `json:"organization_id,omitempty"`
	IsVerified        bool      `json:"is_verified"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// DisplayName returns the full name, falling back to the username or email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	switch name := joinName(u.FirstName, u.LastName); {
	case name != "":
		return name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// Credentials log a user in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration creates an account and, optionally, its organization.
type Registration struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	InvitationToken  string `json:"invitation_token,omitempty"`
}

// Session is the data payload of a successful login.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Verification confirms an account with the emailed code.
type Verification struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// ProfileUpdate changes profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// PasswordChange replaces the current password.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Role is a system or custom role.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	IsCustom    bool     `json:"is_custom"`
	Permissions []string `json:"permissions,omitempty"`
}

// RoleUpdate changes a custom role.
type RoleUpdate struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Permission is a single grant of a role.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource,omitempty"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description,omitempty"`
}

// Key returns the permission in "resource:action" form.
func (p Permission) Key() string {
	if p.Resource != "" && p.Action != "" {
		return p.Resource + ":" + p.Action
	}
	return p.Name
}

// OrgUser is a member of an organization.
type OrgUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      string    `json:"role,omitempty"`
	Status    string    `json:"status,omitempty"`
	JoinedAt  time.Time `json:"joined_at,omitempty"`
}

// Invitation is a pending invite to an organization.
type Invitation struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	RoleID    string    `json:"role_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// InvitationRequest invites an email address with a role.
type InvitationRequest struct {
	Email  string `json:"email"`
	RoleID string `json:"role_id,omitempty"`
}

// Picture is the data payload of a profile picture upload.
type Picture struct {
	URL string `json:"profile_picture_url"`
}

// Overview is what the workspace header shows.
type Overview struct {
	User  *User
	Roles []Role
}

// State is the persisted auth state blob.
type State struct {
	User            *User  `json:"user,omitempty"`
	OrganizationID  string `json:"organizationId,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}
