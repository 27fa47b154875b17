package discovery

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/homemesh/onboard/pkg/models"
)

// CacheKey identifies one merged discovery result: the integration plus a
// fingerprint of the protocol set that produced it.
func CacheKey(integration string, protocols []string) string {
	sorted := make([]string, len(protocols))
	copy(sorted, protocols)
	sort.Strings(sorted)

	return integration + "|" + strings.Join(sorted, ",")
}

// Cache stores merged discovery results. Implementations must support
// concurrent reads and serialize writes per key; entries expire after the
// configured TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.DiscoveredDevice, bool)
	Set(ctx context.Context, key string, devices []models.DiscoveredDevice) error
	Invalidate(ctx context.Context, key string) error
}

type memoryEntry struct {
	key       string
	devices   []models.DiscoveredDevice
	expiresAt time.Time
}

// MemoryCache is a bounded in-memory TTL cache. When the entry count exceeds
// maxEntries the oldest entry is evicted, so the map can never grow without
// bound.
type MemoryCache struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = oldest
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]models.DiscoveredDevice, bool) {
	c.mu.RLock()
	element, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	entry := element.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		_ = c.Invalidate(context.Background(), key)

		return nil, false
	}

	return entry.devices, true
}

func (c *MemoryCache) Set(_ context.Context, key string, devices []models.DiscoveredDevice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.order.Remove(element)
	}

	c.entries[key] = c.order.PushBack(&memoryEntry{
		key:       key,
		devices:   devices,
		expiresAt: time.Now().Add(c.ttl),
	})

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
	}

	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.order.Remove(element)
		delete(c.entries, key)
	}

	return nil
}

// Len returns the current entry count.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.order.Len()
}
