package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/malwarebo/switchboard/utils"
)

// ConfigCache is a read-through cache for hot dynamic-routing configs, keyed
// {profile_id}_{algorithm_id}. Entries expire on TTL and are dropped eagerly
// when an invalidation broadcast arrives, so staleness is bounded by the TTL
// rather than by lock contention.
type ConfigCache struct {
	redis  *RedisCache
	ttl    time.Duration
	mu     sync.RWMutex
	local  map[string]configEntry
	logger *utils.Logger
}

type configEntry struct {
	payload   string
	expiresAt time.Time
}

func NewConfigCache(redis *RedisCache, ttl time.Duration) *ConfigCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ConfigCache{
		redis:  redis,
		ttl:    ttl,
		local:  make(map[string]configEntry),
		logger: utils.NewLogger("config-cache"),
	}
}

// Get loads a cached config into out. The second return reports a hit.
func (c *ConfigCache) Get(ctx context.Context, profileID, algorithmID string, out interface{}) (bool, error) {
	key := InvalidationKey(profileID, algorithmID)

	c.mu.RLock()
	entry, ok := c.local[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return true, json.Unmarshal([]byte(entry.payload), out)
	}

	if c.redis == nil {
		return false, nil
	}
	payload, err := c.redis.Get(ctx, key)
	if err != nil {
		return false, nil
	}
	c.mu.Lock()
	c.local[key] = configEntry{payload: payload, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return true, json.Unmarshal([]byte(payload), out)
}

func (c *ConfigCache) Set(ctx context.Context, profileID, algorithmID string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	key := InvalidationKey(profileID, algorithmID)

	c.mu.Lock()
	c.local[key] = configEntry{payload: string(payload), expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	if c.redis == nil {
		return nil
	}
	return c.redis.SetWithTTL(ctx, key, string(payload), c.ttl)
}

func (c *ConfigCache) drop(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
	if c.redis != nil {
		if err := c.redis.Delete(ctx, key); err != nil {
			c.logger.Warn(ctx, "Failed to evict cached config", map[string]interface{}{
				"error": err.Error(),
				"key":   key,
			})
		}
	}
}

// Listen consumes invalidation broadcasts until the context is canceled.
// Run it once per process instance.
func (c *ConfigCache) Listen(ctx context.Context) {
	if c.redis == nil {
		return
	}
	sub := c.redis.Subscribe(ctx, InvalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.drop(ctx, msg.Payload)
			c.logger.Debug(ctx, "Dropped invalidated config", map[string]interface{}{
				"key": msg.Payload,
			})
		}
	}
}
