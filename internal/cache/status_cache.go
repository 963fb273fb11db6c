package cache

import (
	"context"
	"time"

	"github.com/jespen/studioclay-sub001/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const statusTTL = 5 * time.Second

// StatusCache is the short-lived read cache in front of payment status
// lookups. The status endpoint's bypass_cache flag and the poller's
// escalation checkpoints skip it explicitly. A nil client degrades to a
// cache miss on every read, so redis is optional.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(cfg config.Config) *StatusCache {
	if cfg.Redis.Addr == "" {
		return &StatusCache{}
	}
	return &StatusCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
	}
}

func (c *StatusCache) Get(ctx context.Context, reference string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	value, err := c.client.Get(ctx, key(reference)).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *StatusCache) Set(ctx context.Context, reference string, status string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, key(reference), status, statusTTL).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, reference string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, key(reference)).Err()
}

func key(reference string) string {
	return "payment:status:" + reference
}

var Module = fx.Module("cache",
	fx.Provide(NewStatusCache),
)
