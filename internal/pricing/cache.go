package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/seat-inventory/internal/clock"
)

// DefaultCacheTTL bounds how long a decision is served from cache when no
// TTL is configured.
const DefaultCacheTTL = 10 * time.Minute

type cacheKey struct {
	tenantID       uint64
	eventSeatingID uint64
}

type cachedDecision struct {
	decision  Decision
	expiresAt time.Time
}

// MemoryCache keeps decisions in process. Each entry lives at most ttl, the
// same bound RedisCache puts on its hashes, so a worker that missed an
// invalidation converges once the entry lapses.
type MemoryCache struct {
	ttl   time.Duration
	clock clock.Clock

	mu    sync.RWMutex
	items map[cacheKey]map[string]cachedDecision
}

// NewMemoryCache returns an empty cache. A non-positive ttl falls back to
// DefaultCacheTTL; a nil clock means the system clock.
func NewMemoryCache(ttl time.Duration, clk clock.Clock) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryCache{ttl: ttl, clock: clk, items: make(map[cacheKey]map[string]cachedDecision)}
}

func (c *MemoryCache) Get(_ context.Context, tenantID, eventSeatingID uint64, seatUIDs []string) (map[string]Decision, error) {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	bucket := c.items[cacheKey{tenantID, eventSeatingID}]
	out := make(map[string]Decision, len(seatUIDs))
	for _, uid := range seatUIDs {
		if e, ok := bucket[uid]; ok && now.Before(e.expiresAt) {
			out[uid] = e.decision
		}
	}
	return out, nil
}

// Set stores decisions and drops lapsed entries of the same bucket.
func (c *MemoryCache) Set(_ context.Context, tenantID, eventSeatingID uint64, decisions map[string]Decision) error {
	now := c.clock.Now()
	expiresAt := now.Add(c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{tenantID, eventSeatingID}
	bucket, ok := c.items[k]
	if !ok {
		bucket = make(map[string]cachedDecision, len(decisions))
		c.items[k] = bucket
	}
	for uid, e := range bucket {
		if !now.Before(e.expiresAt) {
			delete(bucket, uid)
		}
	}
	for uid, d := range decisions {
		bucket[uid] = cachedDecision{decision: d, expiresAt: expiresAt}
	}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, tenantID, eventSeatingID uint64) error {
	c.mu.Lock()
	delete(c.items, cacheKey{tenantID, eventSeatingID})
	c.mu.Unlock()
	return nil
}
