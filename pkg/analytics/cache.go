package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/event_bus"
	"github.com/finbot-app/finbot/pkg/period"
	log "github.com/sirupsen/logrus"
)

// TrendsCache keeps computed trend reports per user. Every entry key carries the user's
// generation; bumping the generation on a ledger change makes all older entries unreachable,
// so they simply age out of the cache. A nil *TrendsCache caches nothing.
type TrendsCache struct {
	cache *ristretto.Cache[string, Trends]
	ttl   time.Duration

	mu          sync.Mutex
	generations map[int]uint64
}

func NewTrendsCache(cfg config.Cache) (*TrendsCache, error) {
	if !cfg.Enabled {
		log.Info("Trends cache disabled")
		return nil, nil
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, Trends]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
		// Every report costs 1, so MaxCost is the number of reports kept.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trends cache: %w", err)
	}
	return &TrendsCache{cache: cache, ttl: cfg.TTL, generations: make(map[int]uint64)}, nil
}

// Key names a report of the given user and window. The key must be taken before the ledger is
// read so a report computed across an invalidation is stored under the outdated generation.
func (c *TrendsCache) Key(userId int, current period.Month, months int) string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	generation := c.generations[userId]
	c.mu.Unlock()
	return fmt.Sprintf("%d/%d/%s/%d", userId, generation, current, months)
}

func (c *TrendsCache) Get(key string) (Trends, bool) {
	if c == nil {
		return Trends{}, false
	}
	return c.cache.Get(key)
}

func (c *TrendsCache) Set(key string, trends Trends) {
	if c == nil {
		return
	}
	c.cache.SetWithTTL(key, trends, 1, c.ttl)
}

// Invalidate drops every report cached for the user.
func (c *TrendsCache) Invalidate(userId int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generations[userId]++
	c.mu.Unlock()
	log.Tracef("trends cache invalidated for user %d", userId)
}

// Wait blocks until pending writes are visible to Get.
func (c *TrendsCache) Wait() {
	if c != nil {
		c.cache.Wait()
	}
}

func (c *TrendsCache) Close() {
	if c != nil {
		c.cache.Close()
	}
}

// InvalidateOnLedgerChange subscribes the cache to ledger changes of any user.
func (c *TrendsCache) InvalidateOnLedgerChange(bus *event_bus.EventBus) (unsubscribe func()) {
	if c == nil {
		return func() {}
	}
	return event_bus.SubscribeTyped(bus, event_bus.LedgerChangedType, func(e event_bus.EventT[event_bus.LedgerChanged]) error {
		c.Invalidate(e.Data.UserId)
		return nil
	})
}
