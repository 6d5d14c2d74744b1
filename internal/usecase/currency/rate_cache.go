package currency

import (
	"sync"
	"time"

	"github.com/simaogato/wealthflow-core/internal/domain"
)

// rateCache keeps one rate table per pivot currency for a fixed TTL
type rateCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*domain.RateTable
}

func newRateCache(ttl time.Duration) *rateCache {
	return &rateCache{
		ttl:     ttl,
		entries: make(map[string]*domain.RateTable),
	}
}

// Get returns the table for pivot if it was fetched less than ttl before now.
// Expired entries are never served.
func (c *rateCache) Get(pivot string, now time.Time) (*domain.RateTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[pivot]
	if !ok || now.Sub(entry.FetchedAt) >= c.ttl {
		return nil, false
	}
	return entry, true
}

func (c *rateCache) Set(table *domain.RateTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[table.Base] = table
}

func (c *rateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.RateTable)
}

func (c *rateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
