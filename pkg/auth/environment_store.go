package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore implements KeyStore over environment variables. It is
// read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based key store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

// EnvVars lists the variables consulted for name, in order
func EnvVars(name string) []string {
	if name == DefaultKeyName {
		return []string{"SHORTSCRAPER_API_KEY", "YOUTUBE_API_KEY"}
	}
	return []string{"SHORTSCRAPER_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_KEY"}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(key *APIKey) error {
	return ErrStoreUnavailable
}

// Retrieve reads the first non-empty variable for name
func (e *EnvironmentStore) Retrieve(name string) (*APIKey, error) {
	if name == "" {
		name = DefaultKeyName
	}
	for _, env := range EnvVars(name) {
		if value := os.Getenv(env); value != "" {
			return &APIKey{Name: name, Key: value, LastModified: time.Now()}, nil
		}
	}
	return nil, ErrKeyNotFound
}

// List returns the metadata API key if it is set in the environment
func (e *EnvironmentStore) List() ([]*APIKey, error) {
	key, err := e.Retrieve(DefaultKeyName)
	if err != nil {
		return []*APIKey{}, nil
	}
	return []*APIKey{key}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if a variable for name is set
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
