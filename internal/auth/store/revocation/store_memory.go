package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL keeps revoked JTIs in process memory. Used when Redis is not configured.
type InMemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	clock   Clock
}

func NewInMemoryTRL(clock Clock) *InMemoryTRL {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryTRL{revoked: make(map[string]time.Time), clock: clock}
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	for k, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, k)
		}
	}
	t.revoked[jti] = now.Add(ttl)
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	exp, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	return !t.clock().After(exp), nil
}
