package auth

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/johan-st/dbstudio/internal/storage"
)

// MaxStoredAccounts bounds the remembered accounts list.
const MaxStoredAccounts = 10

// StoredAccount is an account that verified or logged in on this machine.
type StoredAccount struct {
	Identifier     string    `json:"identifier"`
	DisplayName    string    `json:"displayName,omitempty"`
	OrganizationID string    `json:"organizationId,omitempty"`
	LastUsedAt     time.Time `json:"lastUsedAt"`
}

// StoredAccounts returns remembered accounts, most recently used first.
func (s *Service) StoredAccounts() ([]StoredAccount, error) {
	raw, ok, err := s.local.Get(storage.KeyStoredAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored accounts: %w", err)
	}
	if !ok || raw == "" {
		return []StoredAccount{}, nil
	}
	var accounts []StoredAccount
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		s.logger.Warn("discarding unreadable stored accounts", "err", err)
		return []StoredAccount{}, nil
	}
	return accounts, nil
}

// RememberAccount moves acc to the front of the stored accounts, replacing
// any entry with the same identifier. Missing metadata is kept from the old
// entry.
func (s *Service) RememberAccount(acc StoredAccount) error {
	acc.Identifier = strings.TrimSpace(acc.Identifier)
	if acc.Identifier == "" {
		return nil
	}
	if acc.LastUsedAt.IsZero() {
		acc.LastUsedAt = s.now()
	}

	accounts, err := s.StoredAccounts()
	if err != nil {
		return err
	}
	if i := indexAccount(accounts, acc.Identifier); i >= 0 {
		old := accounts[i]
		if acc.DisplayName == "" {
			acc.DisplayName = old.DisplayName
		}
		if acc.OrganizationID == "" {
			acc.OrganizationID = old.OrganizationID
		}
		accounts = slices.Delete(accounts, i, i+1)
	}
	accounts = slices.Insert(accounts, 0, acc)
	if len(accounts) > MaxStoredAccounts {
		accounts = accounts[:MaxStoredAccounts]
	}
	return s.saveAccounts(accounts)
}

// ForgetAccount removes an account. It reports whether one was removed.
func (s *Service) ForgetAccount(identifier string) (bool, error) {
	accounts, err := s.StoredAccounts()
	if err != nil {
		return false, err
	}
	i := indexAccount(accounts, strings.TrimSpace(identifier))
	if i < 0 {
		return false, nil
	}
	return true, s.saveAccounts(slices.Delete(accounts, i, i+1))
}

func (s *Service) saveAccounts(accounts []StoredAccount) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to encode stored accounts: %w", err)
	}
	if err := s.local.Set(storage.KeyStoredAccounts, string(data)); err != nil {
		return fmt.Errorf("failed to store accounts: %w", err)
	}
	return nil
}

func indexAccount(accounts []StoredAccount, identifier string) int {
	return slices.IndexFunc(accounts, func(a StoredAccount) bool {
		return strings.EqualFold(a.Identifier, identifier)
	})
}
