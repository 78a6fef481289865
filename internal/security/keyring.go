package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/acolita/mongo-shell-mcp/internal/logging"
)

const (
	// KeyringService is the service name used for keyring entries.
	KeyringService = "mongo-shell-mcp"
)

// KeyringStore keeps mongo passwords in the OS keyring (macOS Keychain,
// Linux Secret Service, Windows Credential Manager).
type KeyringStore struct {
	enabled bool
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewKeyringStore creates a new keyring store.
// If the system keyring is not available, the store will be disabled.
func NewKeyringStore(logger *slog.Logger) *KeyringStore {
	if logger == nil {
		logger = logging.Discard()
	}
	ks := &KeyringStore{
		enabled: true,
		logger:  logger,
	}

	// Probe with a throwaway entry.
	testKey := "__mongo_shell_mcp_test__"
	if err := keyring.Set(KeyringService, testKey, "test"); err != nil {
		logger.Debug("keyring not available",
			slog.String("error", err.Error()),
		)
		ks.enabled = false
		return ks
	}
	_ = keyring.Delete(KeyringService, testKey)

	logger.Debug("keyring storage enabled")
	return ks
}

// IsEnabled returns true if the keyring is available and enabled.
func (ks *KeyringStore) IsEnabled() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.enabled
}

// SetEnabled allows enabling/disabling keyring usage.
func (ks *KeyringStore) SetEnabled(enabled bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.enabled = enabled
}

// StoreMongoPassword stores the password for user@host.
func (ks *KeyringStore) StoreMongoPassword(host, user string, password []byte) error {
	if !ks.IsEnabled() {
		return errors.New(errKeyringNotAvailable)
	}

	encoded := base64.StdEncoding.EncodeToString(password)
	key := fmt.Sprintf(keyMongoPasswordFmt, user, host)

	if err := keyring.Set(KeyringService, key, encoded); err != nil {
		return fmt.Errorf("failed to store mongo password: %w", err)
	}

	ks.logger.Debug("stored mongo password in keyring",
		slog.String("user", user),
		slog.String("host", host),
	)
	return nil
}

// GetMongoPassword returns the password for user@host, or nil if none is
// stored.
func (ks *KeyringStore) GetMongoPassword(host, user string) ([]byte, error) {
	if !ks.IsEnabled() {
		return nil, errors.New(errKeyringNotAvailable)
	}

	key := fmt.Sprintf(keyMongoPasswordFmt, user, host)
	encoded, err := keyring.Get(KeyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mongo password: %w", err)
	}

	password, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mongo password: %w", err)
	}
	return password, nil
}

// DeleteMongoPassword removes the password for user@host.
func (ks *KeyringStore) DeleteMongoPassword(host, user string) error {
	if !ks.IsEnabled() {
		return errors.New(errKeyringNotAvailable)
	}

	key := fmt.Sprintf(keyMongoPasswordFmt, user, host)
	if err := keyring.Delete(KeyringService, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete mongo password: %w", err)
	}
	return nil
}
