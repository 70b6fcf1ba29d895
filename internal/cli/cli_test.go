package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/johan-st/dbstudio/internal/api"
	"github.com/johan-st/dbstudio/internal/auth"
	"github.com/johan-st/dbstudio/internal/config"
	"github.com/johan-st/dbstudio/internal/storage"
	"github.com/johan-st/dbstudio/internal/testutil"
	"github.com/johan-st/dbstudio/internal/worksheet"
)

var testNow = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

// testEnv wires a handler to a fake backend and in-memory storage.
type testEnv struct {
	t        *testing.T
	backend  *testutil.Backend
	local    *storage.Memory
	cfg      *config.Config
	registry *worksheet.Registry
	handler  *Handler
	stdin    *strings.Reader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := testutil.NewBackend(t)
	local := storage.NewMemory()
	logger := testutil.NewLogger(t)

	client := api.NewClient(api.Options{
		BaseURL: backend.URL,
		Timeout: 5 * time.Second,
		Tokens:  api.NewTokens(local),
		Logger:  logger,
	})

	seq := 0
	registry := worksheet.NewRegistry(
		worksheet.WithClock(func() time.Time { return testNow }),
		worksheet.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("ws-%d", seq)
		}),
	)

	env := &testEnv{
		t:        t,
		backend:  backend,
		local:    local,
		cfg:      config.DefaultConfig(),
		registry: registry,
		stdin:    strings.NewReader(""),
	}
	env.handler = NewHandler(Deps{
		Auth:         auth.NewService(client, local, storage.NewMemory(), logger),
		Worksheets:   registry,
		Config:       env.cfg,
		Logger:       logger,
		Version:      "test",
		In:           env.stdin,
		ReadPassword: stubPassword,
	})
	env.handler.now = func() time.Time { return testNow }

	return env
}

func stubPassword(string) (string, error) {
	return "secret", nil
}

func (e *testEnv) login() {
	e.t.Helper()
	if err := e.local.Set(storage.KeyAccessToken, "access-1"); err != nil {
		e.t.Fatal(err)
	}
	if err := e.local.Set(storage.KeyOrganizationID, "org-1"); err != nil {
		e.t.Fatal(err)
	}
}

func (e *testEnv) run(args ...string) (stdout, stderr string, exitCode int) {
	var outBuf, errBuf bytes.Buffer

	ctx := &CommandContext{
		Ctx:  context.Background(),
		Args: args[1:],
		Out:  &outBuf,
		Err:  &errBuf,
	}
	e.handler.routeCommand(args[0], ctx)

	return outBuf.String(), errBuf.String(), ctx.exitCode
}

// --- Account Tests ---

func TestCLI_Login_PromptsForPassword(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Router.Post("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds auth.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			testutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		testutil.WriteData(w, http.StatusOK, auth.Session{
			AccessToken: "a", RefreshToken: "r",
			User: &auth.User{Email: creds.Email, FirstName: "Ada"},
		})
	})

	stdout, stderr, code := env.run("login", "ada@example.com")
	if code != 0 {
		t.Fatalf("login failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Logged in as Ada") {
		t.Errorf("unexpected output: %q", stdout)
	}

	// Without an email the remembered account is used.
	_, stderr, code = env.run("login")
	if code != 0 {
		t.Fatalf("login with remembered account failed: %s", stderr)
	}
	calls := env.backend.CallsTo(http.MethodPost, "/api/v1/auth/login")
	if len(calls) != 2 || !strings.Contains(calls[1].Body, "ada@example.com") {
		t.Errorf("expected second login for remembered account, got %+v", calls)
	}
}

func TestCLI_Login_BadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Router.Post("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	})

	_, stderr, code := env.run("login", "ada@example.com", "--password=nope")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Invalid email or password") {
		t.Errorf("expected server message, got %q", stderr)
	}
}

func TestCLI_Login_NoEmail(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, code := env.run("login")
	if code != 1 || !strings.Contains(stderr, "email") {
		t.Errorf("expected missing email error, got code=%d stderr=%q", code, stderr)
	}
}

func TestCLI_Logout_AlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	env.backend.Router.Post("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusBadGateway, "upstream down")
	})

	stdout, _, code := env.run("logout")
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, "Logged out") {
		t.Errorf("unexpected output: %q", stdout)
	}
	if _, ok, _ := env.local.Get(storage.KeyAccessToken); ok {
		t.Error("access token should be cleared")
	}
}

func TestCLI_Verify_ShowsValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Router.Post("/api/v1/auth/verify-account", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   "Validation failed",
			"details": map[string]any{"validation_errors": []map[string]string{{"field": "code", "message": "must be 6 digits"}}},
		})
	})

	_, stderr, code := env.run("verify", "ada@example.com", "12")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Validation failed") || !strings.Contains(stderr, "code: must be 6 digits") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestCLI_Whoami_NotAuthenticated(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, _ := env.run("whoami")
	if !strings.Contains(stdout, "Not authenticated") {
		t.Errorf("unexpected output: %q", stdout)
	}
}

func TestCLI_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, cmd := range []string{"profile", "roles", "users", "invitations", "permissions", "password"} {
		t.Run(cmd, func(t *testing.T) {
			_, stderr, code := env.run(cmd)
			if code != 1 || !strings.Contains(stderr, "Not logged in") {
				t.Errorf("expected login required, got code=%d stderr=%q", code, stderr)
			}
		})
	}
	if len(env.backend.Calls()) != 0 {
		t.Errorf("no request should be made, got %d", len(env.backend.Calls()))
	}
}

func TestCLI_SessionExpired(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	env.backend.Router.Get("/api/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "Token expired")
	})

	_, stderr, code := env.run("profile")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Session expired") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestCLI_Accounts(t *testing.T) {
	env := newTestEnv(t)
	env.backend.Router.Post("/api/v1/auth/verify-account", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	env.run("verify", "bob@example.com", "123456")

	stdout, _, _ := env.run("accounts")
	if !strings.Contains(stdout, "bob@example.com") {
		t.Errorf("expected account listed, got %q", stdout)
	}

	_, _, code := env.run("accounts", "forget", "bob@example.com")
	if code != 0 {
		t.Errorf("forget exit code = %d", code)
	}
	_, _, code = env.run("accounts", "forget", "bob@example.com")
	if code != 1 {
		t.Errorf("second forget exit code = %d, want 1", code)
	}
}

// --- Organization Tests ---

func TestCLI_Can(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	env.backend.Router.Get("/api/v1/roles/me/roles", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, []auth.Role{{ID: "r1"}})
	})
	env.backend.Router.Get("/api/v1/permissions/roles/r1", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, []auth.Permission{{Name: "invitations:*"}, {Name: "users:read"}})
	})

	stdout, _, code := env.run("can", "invitations:create")
	if code != 0 || !strings.Contains(stdout, "allowed") {
		t.Errorf("expected allowed, got code=%d stdout=%q", code, stdout)
	}

	stdout, _, code = env.run("can", "users:delete")
	if code != 1 || !strings.Contains(stdout, "denied") {
		t.Errorf("expected denied, got code=%d stdout=%q", code, stdout)
	}

	stdout, _, _ = env.run("permissions")
	if !strings.Contains(stdout, "invitations\tadmin") || !strings.Contains(stdout, "users\tread-only") {
		t.Errorf("unexpected permissions summary: %q", stdout)
	}
}

func TestCLI_Invitations(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	env.backend.Router.Post("/api/v1/invitations", func(w http.ResponseWriter, r *http.Request) {
		var req auth.InvitationRequest
		json.NewDecoder(r.Body).Decode(&req)
		testutil.WriteData(w, http.StatusCreated, auth.Invitation{ID: "inv-1", Email: req.Email, RoleID: req.RoleID})
	})
	env.backend.Router.Get("/api/v1/invitations", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, []auth.Invitation{{ID: "inv-1", Email: "new@example.com", ExpiresAt: testNow.Add(48 * time.Hour)}})
	})

	stdout, stderr, code := env.run("invitations", "create", "new@example.com", "--role=r2")
	if code != 0 {
		t.Fatalf("create failed: %s", stderr)
	}
	if !strings.Contains(stdout, "Invited new@example.com (inv-1)") {
		t.Errorf("unexpected output: %q", stdout)
	}
	calls := env.backend.CallsTo(http.MethodPost, "/api/v1/invitations")
	if len(calls) != 1 || !strings.Contains(calls[0].Body, `"role_id":"r2"`) {
		t.Errorf("unexpected request: %+v", calls)
	}

	stdout, _, _ = env.run("invitations")
	if !strings.Contains(stdout, "2 days from now") {
		t.Errorf("expected humanized expiry, got %q", stdout)
	}
}

func TestCLI_Role_DeleteRequiresConfirm(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	_, stderr, code := env.run("role", "rm", "c1")
	if code != 1 || !strings.Contains(stderr, "--confirm") {
		t.Errorf("expected confirm error, got code=%d stderr=%q", code, stderr)
	}
	if len(env.backend.Calls()) != 0 {
		t.Error("no request should be made without --confirm")
	}
}

// --- Worksheet Tests ---

func TestCLI_Worksheets_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Editor.DefaultConnection = "warehouse"

	stdout, _, code := env.run("worksheets", "new", "Q1", "--content=SELECT 1")
	if code != 0 || !strings.Contains(stdout, "Created Q1 (ws-2)") {
		t.Fatalf("unexpected new output: code=%d %q", code, stdout)
	}
	ws, _ := env.registry.Get("ws-2")
	if ws.ConnectionID != "warehouse" {
		t.Errorf("ConnectionID = %q, want default connection", ws.ConnectionID)
	}

	stdout, _, _ = env.run("ws", "ls")
	if !strings.Contains(stdout, "ws-2\tQ1\tactive\twarehouse") {
		t.Errorf("expected Q1 active in listing, got %q", stdout)
	}
	if !strings.Contains(stdout, "ws-1\t") || !strings.Contains(stdout, "\topen\t") {
		t.Errorf("expected default worksheet open, got %q", stdout)
	}

	stdout, _, _ = env.run("worksheets", "show")
	if stdout != "SELECT 1\n" {
		t.Errorf("show = %q", stdout)
	}

	env.run("worksheets", "dup", "Q1")
	dup, ok := env.registry.Get("ws-3")
	if !ok || dup.Name != "Q1 (Copy)" || dup.Content != "SELECT 1" {
		t.Errorf("unexpected duplicate: %+v", dup)
	}

	env.run("worksheets", "rename", "ws-3", "Q1", "final")
	if ws, _ := env.registry.Get("ws-3"); ws.Name != "Q1 final" {
		t.Errorf("rename: name = %q", ws.Name)
	}

	env.run("worksheets", "close", "ws-3")
	if env.registry.ActiveID() != "ws-2" {
		t.Errorf("active after close = %q, want ws-2", env.registry.ActiveID())
	}

	_, stderr, code := env.run("worksheets", "rm", "Q1")
	if code != 1 || !strings.Contains(stderr, "--confirm") {
		t.Errorf("rm without confirm: code=%d stderr=%q", code, stderr)
	}
	env.run("worksheets", "rm", "Q1", "--confirm")
	if _, ok := env.registry.Get("ws-2"); ok {
		t.Error("Q1 should be deleted")
	}
}

func TestCLI_Worksheets_EditFromStdin(t *testing.T) {
	env := newTestEnv(t)
	env.stdin.Reset("SELECT * FROM orders;\n")

	_, stderr, code := env.run("worksheets", "edit", "ws-1")
	if code != 0 {
		t.Fatalf("edit failed: %s", stderr)
	}
	if ws, _ := env.registry.Get("ws-1"); ws.Content != "SELECT * FROM orders;\n" {
		t.Errorf("content = %q", ws.Content)
	}
}

func TestCLI_Worksheets_Move(t *testing.T) {
	env := newTestEnv(t)
	env.run("worksheets", "new", "B")
	env.run("worksheets", "new", "C")

	env.run("worksheets", "mv", "C", "ws-1")

	var names []string
	for _, ws := range env.registry.List() {
		names = append(names, ws.Name)
	}
	if got := strings.Join(names[:1], ","); got != "C" {
		t.Errorf("first worksheet = %q, want C (order %v)", got, names)
	}
}

func TestCLI_Worksheets_Resolve(t *testing.T) {
	env := newTestEnv(t)
	env.run("worksheets", "new", "Same")
	env.run("worksheets", "new", "same")

	_, stderr, code := env.run("worksheets", "open", "SAME")
	if code != 1 || !strings.Contains(stderr, "matches 2 worksheets") {
		t.Errorf("expected ambiguity error, got code=%d stderr=%q", code, stderr)
	}

	_, stderr, code = env.run("worksheets", "open", "missing")
	if code != 1 || !strings.Contains(stderr, "no worksheet matches") {
		t.Errorf("expected not found, got code=%d stderr=%q", code, stderr)
	}
}

func TestCLI_Worksheets_JSON(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, _ := env.run("worksheets", "ls", "--format=json")

	var result struct {
		Worksheets []worksheet.Worksheet `json:"worksheets"`
		OpenIDs    []string              `json:"open_ids"`
		ActiveID   string                `json:"active_id"`
	}
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(result.Worksheets) != 1 || result.ActiveID != "ws-1" {
		t.Errorf("unexpected result: %+v", result)
	}
}

// --- Utility Tests ---

func TestCLI_UnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, code := env.run("frobnicate")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Errorf("unexpected stderr: %q", stderr)
	}
}

func TestCLI_Help(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, _ := env.run("help")
	if !strings.Contains(stdout, "WORKSHEET COMMANDS") {
		t.Error("help should list worksheet commands")
	}
	stdout, _, _ = env.run("help", "worksheets")
	if !strings.Contains(stdout, "--confirm") {
		t.Errorf("unexpected command help: %q", stdout)
	}
}

func TestCLI_Version(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, _ := env.run("version")
	if !strings.Contains(stdout, "dbstudio test") {
		t.Errorf("unexpected version output: %q", stdout)
	}
}

func TestCLI_InitConfig(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, stderr, code := env.run("init-config", path)
	if code != 0 {
		t.Fatalf("init-config failed: %s", stderr)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	_, stderr, code = env.run("init-config", path)
	if code != 1 || !strings.Contains(stderr, "--force") {
		t.Errorf("expected overwrite refusal, got code=%d stderr=%q", code, stderr)
	}

	_, _, code = env.run("init-config", path, "--force")
	if code != 0 {
		t.Errorf("--force exit code = %d", code)
	}
}

func TestRun_ReturnsErrorOnFailure(t *testing.T) {
	env := newTestEnv(t)
	var out, errOut bytes.Buffer

	if err := env.handler.Run(context.Background(), []string{"version"}, &out, &errOut); err != nil {
		t.Errorf("version: unexpected error %v", err)
	}
	if err := env.handler.Run(context.Background(), []string{"nope"}, &out, &errOut); err == nil {
		t.Error("unknown command should return an error")
	}
	if !IsCommand("worksheets") || IsCommand("nope") {
		t.Error("IsCommand mismatch")
	}
}
