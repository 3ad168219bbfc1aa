package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"movierec/pkg/logger"
)

// Redis is a Store shared between API and worker processes. Expiry is
// delegated to Redis itself (SET ... EX).
type Redis struct {
	rdb    *goredis.Client
	prefix string
	log    *logger.Logger
}

type RedisOptions struct {
	Addr   string
	DB     int
	Prefix string
}

func NewRedis(ctx context.Context, opts RedisOptions, log *logger.Logger) (*Redis, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		rdb:    rdb,
		prefix: opts.Prefix,
		log:    log.With("component", "RedisCache"),
	}, nil
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.log.Warn("cache get failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := r.rdb.Set(ctx, r.key(key), payload, ttl).Err(); err != nil {
		r.log.Warn("cache put failed", "key", key, "error", err)
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
