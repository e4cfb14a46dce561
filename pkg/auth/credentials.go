package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const (
	appDir         = "douyindl"
	credentialFile = "credentials.enc"
	activeFile     = "active_account"

	// DefaultAccount names credentials that were not given a name
	DefaultAccount = "default"
)

// Account is a named Douyin web cookie
type Account struct {
	Name         string    `json:"name"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a given account
	Store(account *Account) error

	// Retrieve gets credentials for a specific account name
	Retrieve(name string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes credentials for a specific account name
	Delete(name string) error

	// Exists checks if credentials exist for an account name
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores     []CredentialStore
	activePath string
}

// NewManager creates a credential manager backed by the system keyring,
// an encrypted file and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, credentialFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{
		stores:     stores,
		activePath: filepath.Join(configDir, activeFile),
	}, nil
}

// Store validates and saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return errors.New("account name is required")
	}
	if err := ValidateCookie(account.Cookie); err != nil {
		return err
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault returns the environment cookie if set, then the active
// account, then the first stored account by name
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if envStore, ok := store.(*EnvironmentStore); ok {
			if account, err := envStore.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	if active := m.Active(); active != "" {
		if account, err := m.Retrieve(active); err == nil {
			return account, nil
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns all stored accounts from all stores sorted by name
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Name] = account
			}
		}
	}

	result := make([]*Account, 0, len(accountMap))
	for _, account := range accountMap {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if deleted && m.Active() == name {
		_ = m.SetActive("")
	}
	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		_ = m.Delete(account.Name)
	}

	return nil
}

// SetActive marks name as the account used by default; an empty name clears it
func (m *Manager) SetActive(name string) error {
	if m.activePath == "" {
		return ErrStoreUnavailable
	}
	if name == "" {
		if err := os.Remove(m.activePath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if _, err := m.Retrieve(name); err != nil {
		return err
	}
	return os.WriteFile(m.activePath, []byte(name), 0600)
}

// Active returns the active account name, if any
func (m *Manager) Active() string {
	if m.activePath == "" {
		return ""
	}
	data, err := os.ReadFile(m.activePath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// UsesKeyring reports whether the system keychain is one of the stores
func (m *Manager) UsesKeyring() bool {
	for _, store := range m.stores {
		if _, ok := store.(*KeyringStore); ok {
			return true
		}
	}
	return false
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, appDir)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// ParseCookie splits a Cookie header value into name/value pairs
func ParseCookie(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Cookie:"))
	if raw == "" {
		return nil, ErrInvalidCredentials
	}

	cookies, err := http.ParseCookie(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	pairs := make(map[string]string, len(cookies))
	for _, c := range cookies {
		pairs[c.Name] = c.Value
	}
	return pairs, nil
}

// ValidateCookie checks that raw is a non-empty Cookie header value
func ValidateCookie(raw string) error {
	_, err := ParseCookie(raw)
	return err
}

// HasSession reports whether the cookie carries a logged-in session
func HasSession(raw string) bool {
	pairs, err := ParseCookie(raw)
	if err != nil {
		return false
	}
	for _, key := range []string{"sessionid", "sessionid_ss", "sid_tt"} {
		if pairs[key] != "" {
			return true
		}
	}
	return false
}

// SanitizeAccount creates a copy of the account with the cookie masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	return &Account{
		Name:         account.Name,
		Cookie:       maskString(account.Cookie),
		UserAgent:    account.UserAgent,
		LastModified: account.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
