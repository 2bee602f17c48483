package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/go-redis/redis/v8"
)

// Redis stores snapshots as plain string values under KeyPrefix+key.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedis connects to Redis and waits until it answers PING, retrying with exponential backoff
// for up to attempts tries.
func NewRedis(ctx context.Context, cfg config.RedisConfig, attempts int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MinIdleConns: 1,
	})
	r := &Redis{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL, timeout: cfg.Timeout}
	if err := r.waitReady(ctx, attempts); err != nil {
		_ = client.Close()
		return nil, err
	}
	return r, nil
}

func (r *Redis) waitReady(ctx context.Context, attempts int) error {
	backoff := 100 * time.Millisecond
	var err error
	for i := 0; i < max(attempts, 1); i++ {
		pingCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err = r.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 5*time.Second)
	}
	return fmt.Errorf("failed to connect to redis at %s: %w", r.client.Options().Addr, err)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("key %s: %w", key, perrors.ErrSlotEmpty)
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Put overwrites the value. A positive TTL is refreshed on every write.
func (r *Redis) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
