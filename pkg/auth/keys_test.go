package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestManager_StoreRetrieveDelete(t *testing.T) {
	manager, store := NewMockManager()

	source, err := manager.Store(&APIKey{Name: DefaultKeyName, Key: "AIzaSyExampleKey1234"})
	require.NoError(t, err)
	assert.Equal(t, "mock", source)

	key, from, err := manager.Retrieve(DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "AIzaSyExampleKey1234", key.Key)
	assert.Equal(t, "mock", from)
	assert.False(t, key.LastModified.IsZero())

	keys, err := manager.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, manager.Delete(DefaultKeyName))
	assert.Zero(t, store.Count())

	_, _, err = manager.Retrieve(DefaultKeyName)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	err = manager.Delete(DefaultKeyName)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestManager_StoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	_, err := manager.Store(&APIKey{Key: "x"})
	assert.Error(t, err)
	_, err = manager.Store(&APIKey{Name: DefaultKeyName})
	assert.Error(t, err)
	_, err = manager.Store(nil)
	assert.Error(t, err)
}

func TestManager_FallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	_, err := manager.Store(&APIKey{Name: "other", Key: "secret-value"})
	require.NoError(t, err)
	assert.Zero(t, broken.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManager_Resolve(t *testing.T) {
	t.Setenv("SHORTSCRAPER_API_KEY", "")
	t.Setenv("YOUTUBE_API_KEY", "")

	manager, store := NewMockManager()

	tests := []struct {
		name       string
		setup      func()
		configured string
		wantKey    string
		wantSource string
		wantErr    bool
	}{
		{name: "nothing anywhere", wantErr: true},
		{name: "config wins", configured: "from-config", wantKey: "from-config", wantSource: "config"},
		{
			name:       "store used when config empty",
			setup:      func() { require.NoError(t, store.Store(&APIKey{Name: DefaultKeyName, Key: "from-store"})) },
			wantKey:    "from-store",
			wantSource: "mock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			key, source, err := manager.Resolve(DefaultKeyName, tt.configured)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "keys", "apikeys.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&APIKey{Name: DefaultKeyName, Key: "plaintext-secret-key"}))
	require.NoError(t, store.Store(&APIKey{Name: "backup", Key: "second-secret-key"}))

	retrieved, err := store.Retrieve(DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-secret-key", retrieved.Key)
	assert.True(t, store.Exists("backup"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	if bytes.Contains(content, []byte("plaintext-secret-key")) {
		t.Error("File contains the plaintext key")
	}

	// a different passphrase cannot read it
	t.Setenv(PassphraseEnv, "wrong")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve(DefaultKeyName)
	assert.Error(t, err)

	t.Setenv(PassphraseEnv, "test_passphrase_123")
	require.NoError(t, store.Delete("backup"))
	require.NoError(t, store.Delete(DefaultKeyName))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file removed with its last key")
}

func TestEncryptedFileStore_GeneratesPassphraseFile(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "apikeys.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&APIKey{Name: DefaultKeyName, Key: "abc"}))

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "apikeys.enc"))
	require.NoError(t, err)
	key, err := reopened.Retrieve(DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "abc", key.Key)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("SHORTSCRAPER_API_KEY", "")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")

	store := NewEnvironmentStore()
	key, err := store.Retrieve(DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "yt-key", key.Key)

	t.Setenv("SHORTSCRAPER_API_KEY", "own-key")
	key, err = store.Retrieve(DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "own-key", key.Key, "SHORTSCRAPER_API_KEY takes precedence")

	assert.Equal(t, ErrStoreUnavailable, store.Store(&APIKey{Name: "x", Key: "y"}))
	assert.Equal(t, ErrStoreUnavailable, store.Delete(DefaultKeyName))
	assert.Equal(t, []string{"SHORTSCRAPER_BACKUP_KEY"}, EnvVars("backup"))
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&APIKey{Name: DefaultKeyName, Key: "kr-key"}))
	assert.True(t, store.Exists(DefaultKeyName))

	keys, err := store.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "kr-key", keys[0].Key)

	require.NoError(t, store.Delete(DefaultKeyName))
	_, err = store.Retrieve(DefaultKeyName)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, store.Delete(DefaultKeyName), ErrKeyNotFound)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "AIza...1234", Mask("AIzaSyExampleKey1234"))
}

func TestShowAPIKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowAPIKeyGuide(&buf)
	out := buf.String()
	assert.Contains(t, out, "YouTube Data API")
	assert.True(t, strings.Contains(out, "SHORTSCRAPER_API_KEY"))
}
