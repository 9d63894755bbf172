package planner

import (
	"context"
	"sync"
	"time"

	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultConfigTTL is how long a fetched LLM config is reused.
const DefaultConfigTTL = 60 * time.Second

// ConfigCache holds the last LLM config fetched from a source. It is owned
// by one Planner.
type ConfigCache struct {
	source contracts.LLMConfigSource
	ttl    time.Duration

	mu        sync.Mutex
	value     models.LLMConfig
	fetchedAt time.Time
}

func NewConfigCache(source contracts.LLMConfigSource, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	return &ConfigCache{source: source, ttl: ttl}
}

// Refresh returns the cached config, fetching it again once the TTL has
// elapsed at now. A failed fetch keeps the previous value.
func (c *ConfigCache) Refresh(ctx context.Context, now time.Time) models.LLMConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source == nil {
		return models.LLMConfig{}
	}
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl {
		return c.value
	}

	cfg, err := c.source.LLMConfig(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM config refresh failed, keeping previous value")
		// Retry on the next call rather than after a full TTL.
		return c.value
	}
	c.value = cfg
	c.fetchedAt = now
	return c.value
}

// FetchedAt returns when the value was last fetched.
func (c *ConfigCache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}
