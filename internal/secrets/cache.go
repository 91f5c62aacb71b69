package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/probelab/binancebot/internal/exchange"
)

// Source fetches a named secret's latest value.
type Source interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// Cache holds the exchange credentials behind a TTL gate. A refresh
// replaces the whole credential pair in one assignment; accessors keep
// returning the previous pair while a refresh fails, so stale-but-valid
// credentials survive a secret-store outage.
type Cache struct {
	source         Source
	apiKeyName     string
	privateKeyName string
	ttl            time.Duration
	now            func() time.Time
	log            zerolog.Logger

	mu        sync.RWMutex
	creds     exchange.Credentials
	loaded    bool
	refreshed time.Time
}

// NewCache creates a credential cache over a secret source.
func NewCache(source Source, apiKeyName, privateKeyName string, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		source:         source,
		apiKeyName:     apiKeyName,
		privateKeyName: privateKeyName,
		ttl:            ttl,
		now:            time.Now,
		log:            log.With().Str("cache", "secrets").Logger(),
	}
}

// Get returns the last successfully cached credentials, possibly stale.
func (c *Cache) Get() (exchange.Credentials, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds, c.loaded
}

// Stale reports whether the cache is absent or past its TTL.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loaded || c.now().Sub(c.refreshed) > c.ttl
}

// Refresh fetches both credentials and swaps them in atomically. On
// failure the previous pair stays cached.
func (c *Cache) Refresh(ctx context.Context) error {
	apiKey, err := c.source.Fetch(ctx, c.apiKeyName)
	if err != nil {
		return fmt.Errorf("refresh api key: %w", err)
	}
	privateKey, err := c.source.Fetch(ctx, c.privateKeyName)
	if err != nil {
		return fmt.Errorf("refresh private key: %w", err)
	}

	c.mu.Lock()
	c.creds = exchange.Credentials{APIKey: apiKey, PrivateKey: privateKey}
	c.loaded = true
	c.refreshed = c.now()
	c.mu.Unlock()

	c.log.Info().Msg("Credentials refreshed")
	return nil
}
