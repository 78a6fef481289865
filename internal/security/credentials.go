package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/ports"
)

// PasswordSource says where the shell password comes from.
type PasswordSource struct {
	Host       string
	User       string
	Env        string // environment variable holding the password
	UseKeyring bool
}

// Credentials resolves the mongo password for a spawn. Keyring reads are
// cached so a respawn does not prompt the OS keyring every time.
type Credentials struct {
	fs      ports.FileSystem
	keyring *KeyringStore
	clock   ports.Clock
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]*SecureCache
}

// NewCredentials creates a resolver. keyring may be nil when the keyring is
// not configured.
func NewCredentials(fs ports.FileSystem, keyring *KeyringStore, clock ports.Clock, ttl time.Duration) *Credentials {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	return &Credentials{
		fs:      fs,
		keyring: keyring,
		clock:   clock,
		ttl:     ttl,
		cache:   make(map[string]*SecureCache),
	}
}

// Password returns the password for src, or nil when no user is set or no
// source holds one. The caller owns the returned slice.
func (c *Credentials) Password(src PasswordSource) ([]byte, error) {
	if src.User == "" {
		return nil, nil
	}
	if src.Env != "" {
		if v := c.fs.Getenv(src.Env); v != "" {
			return []byte(v), nil
		}
	}
	if !src.UseKeyring || c.keyring == nil {
		return nil, nil
	}

	k := key(src.Host, src.User)

	c.mu.Lock()
	defer c.mu.Unlock()

	if sc, ok := c.cache[k]; ok {
		if pw := sc.Get(); pw != nil {
			return pw, nil
		}
		delete(c.cache, k)
	}

	pw, err := c.keyring.GetMongoPassword(src.Host, src.User)
	if err != nil {
		return nil, fmt.Errorf("read password for %s: %w", k, err)
	}
	if pw == nil {
		return nil, nil
	}
	c.cache[k] = NewSecureCache(pw, c.ttl, c.clock)
	return pw, nil
}

// Forget wipes any cached password for src, e.g. after a failed login.
func (c *Credentials) Forget(src PasswordSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(src.Host, src.User)
	if sc, ok := c.cache[k]; ok {
		sc.Clear()
		delete(c.cache, k)
	}
}
