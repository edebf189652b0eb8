package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jobtrack/jobtrack/pkg/config"
)

var ErrLockNotObtained = errors.New("lock not obtained")

type Client struct {
	rdb    redis.UniversalClient
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewClient(cfg *config.RedisConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis addresses are not configured")
	}

	var rdb redis.UniversalClient

	if cfg.ClusterMode {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addresses,
			Password: cfg.Password,
			PoolSize: cfg.PoolSize,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Addresses[0],
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
	}

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return Wrap(rdb, cfg.LockTTL, cfg.LockWait), nil
}

// Wrap builds a Client around an existing redis connection.
func Wrap(rdb redis.UniversalClient, lockTTL, lockWait time.Duration) *Client {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &Client{rdb: rdb, locker: redislock.New(rdb), ttl: lockTTL, wait: lockWait}
}

func (c *Client) Client() redis.UniversalClient {
	return c.rdb
}

// Obtain takes the named lock, retrying with linear backoff for up to the
// configured wait. The returned func releases the lock.
func (c *Client) Obtain(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()

	lock, err := c.locker.Obtain(waitCtx, "jobtrack:lock:"+key, c.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}

	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
