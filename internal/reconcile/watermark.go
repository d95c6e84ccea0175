package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WatermarkKey is the Redis key holding the auto-sync watermark.
const WatermarkKey = "opsdash:autosync:watermark"

// RedisWatermark stores the auto-sync watermark in Redis so every instance shares it.
type RedisWatermark struct {
	rdb redis.Cmdable
	key string
}

// NewRedisWatermark creates a watermark stored under WatermarkKey.
func NewRedisWatermark(rdb redis.Cmdable) *RedisWatermark {
	return &RedisWatermark{rdb: rdb, key: WatermarkKey}
}

// Get returns the stored watermark, or the zero time if none is set.
func (w *RedisWatermark) Get(ctx context.Context) (time.Time, error) {
	v, err := w.rdb.Get(ctx, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get watermark: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", v, err)
	}
	return t, nil
}

// Set stores t as the new watermark.
func (w *RedisWatermark) Set(ctx context.Context, t time.Time) error {
	if err := w.rdb.Set(ctx, w.key, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

// Reset clears the watermark so the next auto-sync scans every done bot.
func (w *RedisWatermark) Reset(ctx context.Context) error {
	return w.rdb.Del(ctx, w.key).Err()
}
