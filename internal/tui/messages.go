package tui

import (
	"github.com/johan-st/dbstudio/internal/access"
	"github.com/johan-st/dbstudio/internal/auth"
)

// Messages for async operations

// LoggedInMsg is sent when a login attempt finishes.
type LoggedInMsg struct {
	User  *auth.User
	Error error
}

// LoggedOutMsg is sent after the local session has been cleared.
type LoggedOutMsg struct{}

// OverviewLoadedMsg is sent when the profile and roles are loaded.
type OverviewLoadedMsg struct {
	Overview *auth.Overview
	Error    error
}

// PermissionsLoadedMsg is sent when the effective permissions are resolved.
type PermissionsLoadedMsg struct {
	Permissions *access.Set
	Error       error
}

// ReauthMsg is sent when the API client gives up on the session.
type ReauthMsg struct {
	Route string
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}
