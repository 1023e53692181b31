package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fightgen/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func testAccount(name string) *Account {
	return &Account{Name: name, APIKey: "sk-test-" + name + "-0123456789"}
}

func TestManagerLifecycle(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(testAccount("work")))
	assert.False(t, store.accounts["work"].LastModified.IsZero(), "Store stamps LastModified")

	got, err := manager.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-work-0123456789", got.APIKey)

	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("work"))
	_, err = manager.Retrieve("work")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.Equal(t, 0, store.Count())

	assert.ErrorIs(t, manager.Delete("work"), ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name    string
		account *Account
	}{
		{"nil account", nil},
		{"missing name", &Account{APIKey: "sk-123"}},
		{"missing key", &Account{Name: "work"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, manager.Store(tt.account))
		})
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keyring locked")
	backup := NewMockStore()

	manager := NewManagerWithStores(broken, backup)
	require.NoError(t, manager.Store(testAccount("work")))

	assert.Equal(t, 0, broken.Count())
	assert.True(t, backup.Exists("work"))
}

func TestManagerListPrefersNewest(t *testing.T) {
	older, newer := NewMockStore(), NewMockStore()
	now := time.Now()

	require.NoError(t, older.Store(&Account{Name: "work", APIKey: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Account{Name: "work", APIKey: "new", LastModified: now}))
	require.NoError(t, older.Store(&Account{Name: "home", APIKey: "home", LastModified: now.Add(-2 * time.Hour)}))

	accounts, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "work", accounts[0].Name)
	assert.Equal(t, "new", accounts[0].APIKey)
	assert.Equal(t, "home", accounts[1].Name)
}

func TestResolve(t *testing.T) {
	defaultURL := config.DefaultConfig().Generator.BaseURL

	tests := []struct {
		name       string
		stored     []*Account
		cfg        config.GeneratorConfig
		wantSource string
		wantKey    string
		wantURL    string
		wantErr    error
	}{
		{
			name:       "configured key wins",
			stored:     []*Account{testAccount("default")},
			cfg:        config.GeneratorConfig{APIKey: "sk-flag", BaseURL: defaultURL, Account: "default"},
			wantSource: "config",
			wantKey:    "sk-flag",
			wantURL:    defaultURL,
		},
		{
			name:       "named account",
			stored:     []*Account{testAccount("default"), {Name: "proxy", APIKey: "sk-proxy", BaseURL: "http://localhost:8080/v1/"}},
			cfg:        config.GeneratorConfig{BaseURL: defaultURL, Account: "proxy"},
			wantSource: "store:proxy",
			wantKey:    "sk-proxy",
			wantURL:    "http://localhost:8080/v1/",
		},
		{
			name:       "explicit base url is kept",
			stored:     []*Account{{Name: "proxy", APIKey: "sk-proxy", BaseURL: "http://localhost:8080/v1/"}},
			cfg:        config.GeneratorConfig{BaseURL: "http://other/v1/", Account: "proxy"},
			wantSource: "store:proxy",
			wantKey:    "sk-proxy",
			wantURL:    "http://other/v1/",
		},
		{
			name:       "unknown account falls back to any stored",
			stored:     []*Account{testAccount("home")},
			cfg:        config.GeneratorConfig{BaseURL: defaultURL, Account: "default"},
			wantSource: "store:home",
			wantKey:    "sk-test-home-0123456789",
			wantURL:    defaultURL,
		},
		{
			name:    "nothing stored",
			cfg:     config.GeneratorConfig{BaseURL: defaultURL, Account: "default"},
			wantErr: config.ErrMissingAPIKey,
			wantURL: defaultURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := NewMockManager()
			for _, a := range tt.stored {
				require.NoError(t, manager.Store(a))
			}

			cfg := tt.cfg
			source, err := manager.Resolve(&cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, tt.wantKey, cfg.APIKey)
			assert.Equal(t, tt.wantURL, cfg.BaseURL)
		})
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(passphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(testAccount("work")))
	require.NoError(t, store.Store(testAccount("home")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "sk-test-work", "key must not be stored in clear")

	info, err := os.Stat(path)
	require.NoError(t, err)
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("credentials file is readable by others: %v", info.Mode().Perm())
	}

	// a second instance with the same passphrase reads the same data
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	accounts, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "home", accounts[0].Name)

	require.NoError(t, reopened.Delete("work"))
	assert.False(t, reopened.Exists("work"))
	require.NoError(t, reopened.Delete("home"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file is removed with the last account")
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(passphraseEnv, "right")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(testAccount("work")))

	t.Setenv(passphraseEnv, "wrong")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("work")
	assert.ErrorContains(t, err, "failed to decrypt")
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(passphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(testAccount("work")))

	pass, err := os.ReadFile(filepath.Join(dir, passphraseFile))
	require.NoError(t, err)
	assert.NotEmpty(t, pass)

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.True(t, reopened.Exists("work"))
}

func TestEnvironmentStore(t *testing.T) {
	vars := map[string]string{}
	store := &EnvironmentStore{getenv: func(k string) string { return vars[k] }}

	_, err := store.Retrieve("anything")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))

	vars["OPENAI_API_KEY"] = "sk-openai"
	got, err := store.Retrieve("anything")
	require.NoError(t, err)
	assert.Equal(t, EnvAccountName, got.Name)
	assert.Equal(t, "sk-openai", got.APIKey)

	vars["FIGHTGEN_API_KEY"] = "sk-fightgen"
	vars["FIGHTGEN_BASE_URL"] = "http://proxy/v1/"
	got, err = store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fightgen", got.APIKey)
	assert.Equal(t, "http://proxy/v1/", got.BaseURL)

	assert.ErrorIs(t, store.Store(testAccount("x")), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("x"), ErrStoreUnavailable)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(testAccount("work")))
	require.NoError(t, store.Store(testAccount("home")))
	assert.True(t, store.Exists("work"))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "home", accounts[0].Name)
	assert.Equal(t, "work", accounts[1].Name)

	require.NoError(t, store.Delete("work"))
	assert.ErrorIs(t, store.Delete("work"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	_, err = store.Retrieve("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSanitizeAccount(t *testing.T) {
	a := &Account{Name: "work", APIKey: "sk-abcdefghijklmnop", BaseURL: "http://x/"}
	s := SanitizeAccount(a)

	assert.Equal(t, "sk-a...mnop", s.APIKey)
	assert.Equal(t, "work", s.Name)
	assert.Equal(t, "http://x/", s.BaseURL)
	assert.Equal(t, "********", MaskKey("short"))
	assert.Nil(t, SanitizeAccount(nil))
}
