package auth

import (
	"os"
	"time"
)

const (
	// CookieEnv and UserAgentEnv supply credentials without storing them
	CookieEnv    = "DOUYINDL_COOKIE"
	UserAgentEnv = "DOUYINDL_USER_AGENT"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment cookie under the requested name
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	cookie := os.Getenv(CookieEnv)
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultAccount
	}

	return &Account{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    os.Getenv(UserAgentEnv),
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the cookie variable is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment cookie is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(CookieEnv) != ""
}
