package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/forgo/rotativos/api/internal/model"
)

// DefaultCapacityTTL is how long configured capacities are served from memory.
const DefaultCapacityTTL = 60 * time.Second

// ConfigGetter reads one persisted rule config. It returns nil, nil when the
// key has no override.
type ConfigGetter interface {
	GetRuleConfig(ctx context.Context, configKey string) (*model.RuleConfigValue, error)
}

// CapacityCache serves the per-event-type capacities stored in the
// cupo_diario config value. Concurrent misses share one load.
type CapacityCache struct {
	store ConfigGetter
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu         sync.RWMutex
	caps       map[string]int
	loadedAt   time.Time
	generation uint64
}

// NewCapacityCache creates a capacity cache. A non-positive ttl uses DefaultCapacityTTL.
func NewCapacityCache(store ConfigGetter, ttl time.Duration) *CapacityCache {
	if ttl <= 0 {
		ttl = DefaultCapacityTTL
	}
	return &CapacityCache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// CupoForEventType returns the configured capacity for eventType.
func (c *CapacityCache) CupoForEventType(ctx context.Context, eventType string) (int, bool, error) {
	caps, err := c.capacities(ctx)
	if err != nil {
		return 0, false, err
	}
	cupo, ok := caps[eventType]
	return cupo, ok, nil
}

// Invalidate drops the cached capacities. Called after every config write.
func (c *CapacityCache) Invalidate() {
	c.mu.Lock()
	c.caps = nil
	c.loadedAt = time.Time{}
	c.generation++
	c.mu.Unlock()
}

func (c *CapacityCache) capacities(ctx context.Context) (map[string]int, error) {
	c.mu.RLock()
	caps, loadedAt, gen := c.caps, c.loadedAt, c.generation
	c.mu.RUnlock()
	if caps != nil && c.now().Sub(loadedAt) < c.ttl {
		return caps, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("capacities-%d", gen), func() (interface{}, error) {
		loaded, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// a write that invalidated the cache during the load wins
		if c.generation == gen {
			c.caps = loaded
			c.loadedAt = c.now()
		}
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]int), nil
}

func (c *CapacityCache) load(ctx context.Context) (map[string]int, error) {
	caps := map[string]int{}
	if c.store == nil {
		return caps, nil
	}
	cfg, err := c.store.GetRuleConfig(ctx, RuleCupoDiario)
	if err != nil {
		return nil, fmt.Errorf("loading capacity config: %w", err)
	}
	if cfg == nil {
		return caps, nil
	}
	decoded := decodeConfig(RuleCupoDiario, cfg.Value, func() cupoConfig {
		return cupoConfig{CuposPorTipo: map[string]int{}}
	})
	for k, v := range decoded.CuposPorTipo {
		caps[k] = v
	}
	return caps, nil
}
