// Package storage provides the key/value stores the studio keeps its local state in.
//
// Local is the durable store (tokens, stored accounts, persisted UI state) and
// Memory is the per-process store used for session-scoped values.
package storage

// Well-known keys.
const (
	KeyAccessToken    = "accessToken"
	KeyRefreshToken   = "refreshToken"
	KeyOrganizationID = "organizationId"
	KeyStoredAccounts = "storedAccounts"
	KeyAppState       = "app-storage"
	KeyAuthState      = "auth-storage"

	// Session-scoped, never written to Local.
	KeyAccountIdentifier = "accountIdentifier"
)

// Storage is a string key/value store.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes the given keys. Missing keys are ignored.
	Remove(keys ...string) error
}
