// Package redis implements cache.Cache on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/warden/internal/auth/cache"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "warden:"

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Cache struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ cache.Cache = (*Cache)(nil)

// Open dials Redis and checks the connection.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return New(rdb, opts.Prefix), nil
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{rdb: rdb, prefix: prefix}
}

func (c *Cache) SigningKeys() cache.SigningKeys { return &signingKeys{c} }
func (c *Cache) Otp() cache.Otp                 { return &otp{c} }

func (c *Cache) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }
func (c *Cache) Close() error                   { return c.rdb.Close() }

func (c *Cache) key(parts ...string) string {
	k := c.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func mapMiss(err error) error {
	if errors.Is(err, redis.Nil) {
		return cache.ErrMiss
	}
	return err
}
