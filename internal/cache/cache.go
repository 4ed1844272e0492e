package cache

import (
	"context"
	"sync"
	"time"

	"supermart/internal/domain"
)

// SummaryCache stores computed sales summaries. Keys embed the ledger
// revision, so an entry never outlives the books it was computed from.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.SalesSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.SalesSummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.SalesSummary, _ time.Duration) error {
	return nil
}

type memoryEntry struct {
	value     domain.SalesSummary
	expiresAt time.Time
}

// MemorySummaryCache is an in-process cache used when Redis is not configured.
type MemorySummaryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySummaryCache() *MemorySummaryCache {
	return &MemorySummaryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemorySummaryCache) Get(_ context.Context, key string) (*domain.SalesSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

func (c *MemorySummaryCache) Set(_ context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{value: *value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemorySummaryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
