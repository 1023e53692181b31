package auth

import (
	"os"
	"time"
)

// EnvAccountName is the account name reported for environment credentials
const EnvAccountName = "env"

// EnvironmentStore is a read-only CredentialStore over FIGHTGEN_API_KEY,
// falling back to OPENAI_API_KEY, with FIGHTGEN_BASE_URL as the endpoint.
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a store reading the process environment
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

func (e *EnvironmentStore) key() string {
	if key := e.getenv("FIGHTGEN_API_KEY"); key != "" {
		return key
	}
	return e.getenv("OPENAI_API_KEY")
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential under any name
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	key := e.key()
	if key == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:    EnvAccountName,
		APIKey:  key,
		BaseURL: e.getenv("FIGHTGEN_BASE_URL"),
		// environment credentials are always current
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if a key is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve(EnvAccountName)
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists reports whether an environment key is set
func (e *EnvironmentStore) Exists(name string) bool {
	return e.key() != ""
}
