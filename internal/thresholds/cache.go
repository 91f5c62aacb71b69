package thresholds

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store reads the newest threshold rows.
type Store interface {
	Latest(limit int) (map[string]float64, error)
}

// Cache holds the per-asset thresholds behind a TTL gate. A refresh
// replaces the whole map in one assignment; a failed refresh keeps the
// previous map so decisions can keep running on stale cutoffs.
type Cache struct {
	store  Store
	assets int
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger

	mu        sync.RWMutex
	values    map[string]float64
	refreshed time.Time
}

// NewCache creates a threshold cache for the given number of assets.
func NewCache(store Store, assets int, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		store:  store,
		assets: assets,
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("cache", "thresholds").Logger(),
	}
}

// Get returns the last successfully cached thresholds, possibly stale
// and nil before the first successful refresh. The map must not be
// mutated by callers.
func (c *Cache) Get() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values
}

// Stale reports whether the cache is absent or past its TTL.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values == nil || c.now().Sub(c.refreshed) > c.ttl
}

// Refresh loads the newest thresholds and swaps the map in atomically.
func (c *Cache) Refresh() error {
	values, err := c.store.Latest(c.assets)
	if err != nil {
		return fmt.Errorf("refresh thresholds: %w", err)
	}
	if len(values) == 0 {
		return fmt.Errorf("refresh thresholds: store returned no rows")
	}

	c.mu.Lock()
	c.values = values
	c.refreshed = c.now()
	c.mu.Unlock()

	c.log.Info().Int("assets", len(values)).Msg("Thresholds refreshed")
	return nil
}
