package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baechuer/rapidphoto/internal/domain"
)

// Cache wraps redis for presigned-URL caching and rate limiting.
type Cache struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb}
}

// GetDownloadURL returns a cached presigned read URL for an object key.
func (c *Cache) GetDownloadURL(ctx context.Context, s3Key string) (string, error) {
	val, err := c.Client.Get(ctx, "dl:"+s3Key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

// SetDownloadURL caches a presigned read URL. The TTL must stay under the
// grant's own expiry so a cached URL is never served after it stops working.
func (c *Cache) SetDownloadURL(ctx context.Context, s3Key, url string, grantTTL time.Duration) error {
	ttl := grantTTL - time.Minute
	if ttl <= 0 {
		ttl = grantTTL / 2
	}
	return c.Client.Set(ctx, "dl:"+s3Key, url, ttl).Err()
}

// AllowRequest: Simple Fixed Window Rate Limit
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
