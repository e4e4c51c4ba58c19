// Package credentials stores the database and cache passwords for the
// gendercode CLI in the system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// Environment variables always take precedence over stored secrets.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the system keyring.
const keyringService = "gendercode"

// Secret names.
const (
	DatabasePassword = "database-password"
	RedisPassword    = "redis-password"
)

var (
	// ErrNoCredentials is returned when a secret is not stored.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrKeyringUnavailable indicates the system keyring is not available.
	ErrKeyringUnavailable = errors.New("system keyring unavailable")
	// ErrUnknownSecret is returned for names other than the known secrets.
	ErrUnknownSecret = errors.New("unknown secret")
)

// envVars maps each secret to the environment variable that overrides it.
var envVars = map[string]string{
	DatabasePassword: "GENDERCODE_DB_PASSWORD",
	RedisPassword:    "GENDERCODE_REDIS_PASSWORD",
}

// Names lists the secrets that can be stored.
func Names() []string {
	return []string{DatabasePassword, RedisPassword}
}

// EnvVar returns the environment variable that overrides a secret.
func EnvVar(name string) string {
	return envVars[name]
}

// Store reads and writes secrets in the system keyring.
type Store struct {
	service string
}

// NewStore creates a Store using the default keyring service name.
func NewStore() *Store {
	return &Store{service: keyringService}
}

func validName(name string) error {
	if _, ok := envVars[name]; !ok {
		return fmt.Errorf("%w %q (known: %s)", ErrUnknownSecret, name, strings.Join(Names(), ", "))
	}
	return nil
}

// Set stores a secret.
func (s *Store) Set(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := keyring.Set(s.service, name, value); err != nil {
		return fmt.Errorf("%w: storing %s: %v", ErrKeyringUnavailable, name, err)
	}
	return nil
}

// Get returns a stored secret, or ErrNoCredentials.
func (s *Store) Get(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	value, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoCredentials
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Delete removes a stored secret. Deleting a missing secret is not an error.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := keyring.Delete(s.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Resolve returns the secret from its environment variable, then from the
// keyring. A missing or unavailable keyring yields an empty string.
func (s *Store) Resolve(name string) string {
	if v := os.Getenv(envVars[name]); v != "" {
		return v
	}
	v, err := s.Get(name)
	if err != nil {
		return ""
	}
	return v
}

// Description returns a human-readable name for the keyring backend.
func Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// MaskCredential returns a masked version of the credential for display.
func MaskCredential(cred string) string {
	if len(cred) <= 8 {
		return strings.Repeat("*", len(cred))
	}
	return cred[:2] + strings.Repeat("*", len(cred)-4) + cred[len(cred)-2:]
}
