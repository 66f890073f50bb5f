package cache

import (
	"context"
	"fmt"

	"github.com/malwarebo/switchboard/utils"
)

// InvalidationChannel carries cache-invalidation broadcasts so in-memory
// caches across process instances converge after a config change.
const InvalidationChannel = "switchboard:routing:invalidate"

// InvalidationKey names a cached dynamic-routing config.
func InvalidationKey(profileID, algorithmID string) string {
	return fmt.Sprintf("%s_%s", profileID, algorithmID)
}

// Invalidator publishes invalidation broadcasts. Configuration state is
// changed by creating new records and repointing references, never by
// mutating cache entries directly.
type Invalidator struct {
	redis  *RedisCache
	logger *utils.Logger
}

func NewInvalidator(redis *RedisCache) *Invalidator {
	return &Invalidator{
		redis:  redis,
		logger: utils.NewLogger("cache-invalidator"),
	}
}

func (i *Invalidator) Invalidate(ctx context.Context, profileID, algorithmID string) error {
	if i.redis == nil {
		return nil
	}
	key := InvalidationKey(profileID, algorithmID)
	if err := i.redis.Publish(ctx, InvalidationChannel, key); err != nil {
		i.logger.Error(ctx, "Failed to publish cache invalidation", map[string]interface{}{
			"error": err.Error(),
			"key":   key,
		})
		return err
	}
	i.logger.Debug(ctx, "Published cache invalidation", map[string]interface{}{
		"key": key,
	})
	return nil
}
