package token

import (
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

// RevokedTokenCache remembers logged-out access tokens by jti. An entry only
// needs to outlive the token it blocks.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	// Cleanup drops entries whose tokens have expired and returns how many.
	Cleanup() int
	Len() int
}

type InMemoryRevokedTokenCache struct {
	mu      sync.RWMutex
	expires map[string]time.Time
	nowFunc func() time.Time
}

var _ RevokedTokenCache = (*InMemoryRevokedTokenCache)(nil)

// NewInMemoryRevokedTokenCache creates an empty cache. now may be nil.
func NewInMemoryRevokedTokenCache(now func() time.Time) *InMemoryRevokedTokenCache {
	if now == nil {
		now = time.Now
	}
	return &InMemoryRevokedTokenCache{
		expires: map[string]time.Time{},
		nowFunc: now,
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	if jti == "" {
		return errors.Wrap(autherrors.ErrInvalidToken, "[InMemoryRevokedTokenCache.Add] empty jti")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.expires[jti]; !ok || exp.After(current) {
		c.expires[jti] = exp
	}
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.expires[jti]
	return ok
}

func (c *InMemoryRevokedTokenCache) Cleanup() int {
	now := c.nowFunc()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for jti, exp := range c.expires {
		if !exp.After(now) {
			delete(c.expires, jti)
			removed++
		}
	}
	return removed
}

func (c *InMemoryRevokedTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.expires)
}
