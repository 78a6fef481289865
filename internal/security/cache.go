package security

import (
	"sync"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/adapters/realclock"
	"github.com/acolita/mongo-shell-mcp/internal/ports"
)

// SecureCache stores one credential with TTL-based expiration. Expired or
// cleared data is wiped.
type SecureCache struct {
	data      []byte
	createdAt time.Time
	ttl       time.Duration
	mu        sync.Mutex
	cleared   bool
	clock     ports.Clock
}

// NewSecureCache creates a new secure cache holding a copy of data.
func NewSecureCache(data []byte, ttl time.Duration, clock ports.Clock) *SecureCache {
	if clock == nil {
		clock = realclock.New()
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	return &SecureCache{
		data:      dataCopy,
		ttl:       ttl,
		clock:     clock,
		createdAt: clock.Now(),
	}
}

// Get returns a copy of the cached data if still valid, or nil if expired.
func (sc *SecureCache) Get() []byte {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cleared || sc.data == nil {
		return nil
	}
	if sc.clock.Now().Sub(sc.createdAt) > sc.ttl {
		sc.clear()
		return nil
	}

	result := make([]byte, len(sc.data))
	copy(result, sc.data)
	return result
}

// ExpiresIn returns the duration until expiration.
func (sc *SecureCache) ExpiresIn() time.Duration {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cleared || sc.data == nil {
		return 0
	}
	remaining := sc.ttl - sc.clock.Now().Sub(sc.createdAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clear securely wipes and clears the cached data.
func (sc *SecureCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.clear()
}

// clear must be called with the lock held.
func (sc *SecureCache) clear() {
	if sc.data != nil {
		WipeBytes(sc.data)
		sc.data = nil
	}
	sc.cleared = true
}

// DefaultCredentialTTL is how long a password read from the keyring is
// reused across respawns.
const DefaultCredentialTTL = 15 * time.Minute
