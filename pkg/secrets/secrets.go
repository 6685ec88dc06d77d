// Package secrets keeps the Jira API token out of the config file, either in
// the OS keyring or, for CI and headless hosts, in the environment.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Backend represents the type of secret storage backend
type Backend string

const (
	// BackendAuto automatically selects the best backend for the platform
	BackendAuto Backend = "auto"
	// BackendKeychain uses the OS keyring (macOS Keychain, Windows Credential Manager, Secret Service)
	BackendKeychain Backend = "keychain"
	// BackendEnv reads the token from JWS_API_TOKEN and cannot store anything
	BackendEnv Backend = "env"

	// ServiceName is the keyring service the token is filed under
	ServiceName = "jws"

	// EnvAPIToken holds the token for the env backend
	EnvAPIToken = "JWS_API_TOKEN"
	// EnvKeyringBackend forces a backend, e.g. JWS_KEYRING_BACKEND=env
	EnvKeyringBackend = "JWS_KEYRING_BACKEND"
)

// ErrKeyringUnavailable is returned when the keyring is not available
var ErrKeyringUnavailable = errors.New("keyring unavailable on this platform")

// ErrReadOnlyBackend is returned when storing into the env backend
var ErrReadOnlyBackend = errors.New("env backend is read-only (export JWS_API_TOKEN instead)")

// ErrNotFound is returned when no token is stored for the account
var ErrNotFound = errors.New("no token stored")

// Store handles secure credential storage
type Store struct {
	backend Backend

	// keyring is swapped out in tests
	keyring keyring
}

type keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// ParseBackend maps a config value to a Backend, defaulting to auto
func ParseBackend(s string) Backend {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendKeychain:
		return BackendKeychain
	case BackendEnv:
		return BackendEnv
	default:
		return BackendAuto
	}
}

// NewStore creates a new secret store with the specified backend
func NewStore(backend Backend) *Store {
	if backend == BackendAuto {
		backend = selectBestBackend()
	}
	return &Store{backend: backend, keyring: osKeyring{}}
}

// selectBestBackend chooses the most appropriate backend for the current platform
func selectBestBackend() Backend {
	if forced := os.Getenv(EnvKeyringBackend); forced != "" {
		if b := ParseBackend(forced); b != BackendAuto {
			return b
		}
	}

	// CI runners have no keyring daemon
	if os.Getenv("CI") != "" {
		return BackendEnv
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return BackendKeychain
	case "linux":
		// Secret Service needs a desktop session
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
			return BackendKeychain
		}
		return BackendEnv
	default:
		return BackendEnv
	}
}

// GetBackend returns the current backend type
func (s *Store) GetBackend() Backend {
	return s.backend
}

// SetToken saves the API token for account
func (s *Store) SetToken(account, token string) error {
	switch s.backend {
	case BackendKeychain:
		if err := s.keyring.Set(ServiceName, account, token); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
		return nil
	case BackendEnv:
		return ErrReadOnlyBackend
	default:
		return fmt.Errorf("unknown backend: %s", s.backend)
	}
}

// Token loads the API token for account
func (s *Store) Token(account string) (string, error) {
	switch s.backend {
	case BackendKeychain:
		token, err := s.keyring.Get(ServiceName, account)
		if err != nil {
			return "", fmt.Errorf("failed to read token for %s: %w", account, err)
		}
		if token == "" {
			return "", fmt.Errorf("%w for %s", ErrNotFound, account)
		}
		return token, nil
	case BackendEnv:
		token := os.Getenv(EnvAPIToken)
		if token == "" {
			return "", fmt.Errorf("%w: %s is not set", ErrNotFound, EnvAPIToken)
		}
		return token, nil
	default:
		return "", fmt.Errorf("unknown backend: %s", s.backend)
	}
}

// DeleteToken removes the API token for account
func (s *Store) DeleteToken(account string) error {
	switch s.backend {
	case BackendKeychain:
		return s.keyring.Delete(ServiceName, account)
	case BackendEnv:
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", s.backend)
	}
}
