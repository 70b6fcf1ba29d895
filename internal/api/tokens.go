package api

import (
	"github.com/johan-st/dbstudio/internal/storage"
)

// Tokens reads and writes the bearer tokens in local storage.
// A storage read failure is treated as an absent token.
type Tokens struct {
	store storage.Storage
}

// NewTokens wraps store.
func NewTokens(store storage.Storage) *Tokens {
	return &Tokens{store: store}
}

// Access returns the access token or "".
func (t *Tokens) Access() string {
	return t.get(storage.KeyAccessToken)
}

// Refresh returns the refresh token or "".
func (t *Tokens) Refresh() string {
	return t.get(storage.KeyRefreshToken)
}

func (t *Tokens) get(key string) string {
	v, ok, err := t.store.Get(key)
	if err != nil || !ok {
		return ""
	}
	return v
}

// Set stores access and, when non-empty, refresh.
func (t *Tokens) Set(access, refresh string) error {
	if err := t.store.Set(storage.KeyAccessToken, access); err != nil {
		return err
	}
	if refresh != "" {
		return t.store.Set(storage.KeyRefreshToken, refresh)
	}
	return nil
}

// Clear removes both tokens.
func (t *Tokens) Clear() error {
	return t.store.Remove(storage.KeyAccessToken, storage.KeyRefreshToken)
}
