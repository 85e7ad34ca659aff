// Package auth stores API keys outside the config file. Keys are looked up
// in the system keychain first, then an encrypted file, then the
// environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// DefaultKeyName names the metadata API key
const DefaultKeyName = "metadata_api"

// APIKey is one stored key
type APIKey struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
}

// KeyStore is the interface for storing and retrieving keys
type KeyStore interface {
	// Name identifies the backend in messages, e.g. "keyring"
	Name() string

	// Store saves a key under key.Name
	Store(key *APIKey) error

	// Retrieve gets the key stored under name
	Retrieve(name string) (*APIKey, error)

	// List returns all stored keys
	List() ([]*APIKey, error)

	// Delete removes the key stored under name
	Delete(name string) error

	// Exists checks if a key is stored under name
	Exists(name string) bool
}

// Manager handles key storage with fallback mechanisms
type Manager struct {
	stores []KeyStore
}

// NewManager creates a manager over the keychain (when available), the
// encrypted file store and the environment
func NewManager() (*Manager, error) {
	var stores []KeyStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "apikeys.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, in lookup order
func NewManagerWithStores(stores ...KeyStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the key in the first store that accepts it and returns that store's name
func (m *Manager) Store(key *APIKey) (string, error) {
	if key == nil || key.Name == "" {
		return "", errors.New("key name is required")
	}
	if key.Key == "" {
		return "", errors.New("key value is required")
	}

	key.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(key)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store key: %w", lastErr)
	}
	return "", errors.New("no available key stores")
}

// Retrieve gets the key from the first store that has it
func (m *Manager) Retrieve(name string) (*APIKey, string, error) {
	for _, store := range m.stores {
		if key, err := store.Retrieve(name); err == nil && key != nil {
			return key, store.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrKeyNotFound, name)
}

// Resolve returns the key to use: configured wins when set, otherwise the
// stores are searched. The second value names where the key came from.
func (m *Manager) Resolve(name, configured string) (string, string, error) {
	if configured != "" {
		return configured, "config", nil
	}
	key, source, err := m.Retrieve(name)
	if err != nil {
		return "", "", err
	}
	return key.Key, source, nil
}

// List returns all stored keys from all stores, newest version of each name
func (m *Manager) List() ([]*APIKey, error) {
	keyMap := make(map[string]*APIKey)

	for _, store := range m.stores {
		keys, err := store.List()
		if err != nil {
			continue
		}
		for _, key := range keys {
			if existing, ok := keyMap[key.Name]; !ok || key.LastModified.After(existing.LastModified) {
				keyMap[key.Name] = key
			}
		}
	}

	result := make([]*APIKey, 0, len(keyMap))
	for _, key := range keyMap {
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes the key from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete key: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "shortscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "shortscraper")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "shortscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "shortscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the first 4 and last 4 characters of a key
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrKeyNotFound      = errors.New("api key not found")
	ErrInvalidKey       = errors.New("invalid api key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)
