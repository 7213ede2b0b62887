// Package secretstore wraps the OS-native keyring for connection passwords
// and LLM API keys, with an explicit plaintext-consent fallback when no
// keyring backend is available (e.g. headless Linux with no secret-service
// daemon).
package secretstore

import (
	"fmt"

	"github.com/99designs/keyring"

	"github.com/glance-db/glance/internal/glanceerr"
)

const serviceName = "db-glance"

// ConsentState tracks whether the process may fall back to plaintext
// storage after a failed keyring probe.
type ConsentState int

const (
	// PlaintextPending means the keyring probe failed and the user has not
	// yet consented to plaintext storage; writes are refused. It is the
	// zero value, so a SecretStorage not built by Open has no keyring.
	PlaintextPending ConsentState = iota
	// KeyringAvailable means the OS keyring probed successfully; secrets
	// are written there and plaintext storage is never used.
	KeyringAvailable
	// PlaintextConsented means the user explicitly accepted plaintext
	// storage (--allow-plaintext) after a failed probe.
	PlaintextConsented
)

// SecretStorage is the capability the rest of Glance depends on for
// connection passwords and LLM API keys.
type SecretStorage struct {
	ring  keyring.Keyring
	state ConsentState
}

// Open probes the OS keyring (set/get/remove a throwaway item) and returns
// a SecretStorage in KeyringAvailable or PlaintextPending state depending
// on the outcome. It never fails: a probe failure is a valid, reported
// state, not an error.
func Open() *SecretStorage {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.FileBackend,
		},
	})
	if err != nil {
		return &SecretStorage{state: PlaintextPending}
	}

	s := &SecretStorage{ring: ring}
	if probeKeyring(ring) {
		s.state = KeyringAvailable
	} else {
		s.state = PlaintextPending
	}
	return s
}

func probeKeyring(ring keyring.Keyring) bool {
	const probeKey = "__probe__"
	item := keyring.Item{Key: probeKey, Data: []byte("probe")}
	if err := ring.Set(item); err != nil {
		return false
	}
	if _, err := ring.Get(probeKey); err != nil {
		return false
	}
	return ring.Remove(probeKey) == nil
}

// State reports the current consent state.
func (s *SecretStorage) State() ConsentState { return s.state }

// GrantPlaintextConsent transitions PlaintextPending to PlaintextConsented.
// A no-op if the keyring is already available.
func (s *SecretStorage) GrantPlaintextConsent() {
	if s.state == PlaintextPending {
		s.state = PlaintextConsented
	}
}

// connKey / llmKey build the keyring item key for a connection password or
// an LLM provider's API key, per §4.H's `conn:<name>` / `llm:<provider>`
// convention.
func connKey(name string) string { return "conn:" + name }
func llmKey(provider string) string { return "llm:" + provider }

// SetConnectionPassword stores a connection's password in the keyring.
// Returns an error if the keyring is unavailable (PlaintextPending);
// callers should fall back to ConnectionProfile.PasswordPlaintext instead.
func (s *SecretStorage) SetConnectionPassword(name, password string) error {
	return s.set(connKey(name), password)
}

// GetConnectionPassword retrieves a connection's keychain-stored password.
func (s *SecretStorage) GetConnectionPassword(name string) (string, error) {
	return s.get(connKey(name))
}

// DeleteConnectionPassword removes a connection's stored password.
func (s *SecretStorage) DeleteConnectionPassword(name string) error {
	return s.delete(connKey(name))
}

// SetAPIKey stores an LLM provider's API key in the keyring.
func (s *SecretStorage) SetAPIKey(provider, apiKey string) error {
	return s.set(llmKey(provider), apiKey)
}

// GetAPIKey retrieves an LLM provider's keychain-stored API key.
func (s *SecretStorage) GetAPIKey(provider string) (string, error) {
	return s.get(llmKey(provider))
}

func (s *SecretStorage) set(key, value string) error {
	if s.state != KeyringAvailable {
		return glanceerr.PersistenceErr("No keyring backend available; grant plaintext consent with --allow-plaintext to store secrets")
	}
	if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return glanceerr.Wrap(glanceerr.Persistence, "Failed to write secret to OS keyring", err)
	}
	return nil
}

func (s *SecretStorage) get(key string) (string, error) {
	if s.state != KeyringAvailable {
		return "", glanceerr.PersistenceErr("No keyring backend available")
	}
	item, err := s.ring.Get(key)
	if err != nil {
		return "", glanceerr.Wrap(glanceerr.Persistence, "Failed to read secret from OS keyring", err)
	}
	return string(item.Data), nil
}

func (s *SecretStorage) delete(key string) error {
	if s.state != KeyringAvailable {
		return nil
	}
	if err := s.ring.Remove(key); err != nil {
		return glanceerr.Wrap(glanceerr.Persistence, "Failed to delete secret from OS keyring", err)
	}
	return nil
}

// Mask renders a secret for display: the last 4 characters preserved, the
// rest replaced with "****...".
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return fmt.Sprintf("****...%s", secret[len(secret)-4:])
}
