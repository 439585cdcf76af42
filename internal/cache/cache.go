// Package cache is a two-level JSON cache: an in-process map in front of an
// optional Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ordersite/internal/metrics"
)

const keyPrefix = "ordersite:"

type entry struct {
	data      []byte
	expiresAt time.Time
}

type Cache struct {
	l1    sync.Map
	redis *redis.Client
	now   func() time.Time
	log   *logrus.Entry
}

// New returns a cache. A nil client keeps everything in process memory.
func New(client *redis.Client) *Cache {
	return &Cache{
		redis: client,
		now:   time.Now,
		log:   logrus.WithField("component", "cache"),
	}
}

// Connect parses a redis:// URL and pings it. An empty URL returns nil.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get decodes the cached value for key into dst and reports whether it was
// found.
func (c *Cache) Get(ctx context.Context, key string, dst interface{}) bool {
	if c.GetLocal(key, dst) {
		return true
	}
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("key", key).Warn("redis get failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false
	}
	ttl, err := c.redis.TTL(ctx, keyPrefix+key).Result()
	if err != nil || ttl <= 0 {
		ttl = time.Minute
	}
	c.l1.Store(key, entry{data: data, expiresAt: c.now().Add(ttl)})
	metrics.CacheHits.WithLabelValues("l2").Inc()
	return true
}

// GetLocal is Get restricted to the in-process level.
func (c *Cache) GetLocal(key string, dst interface{}) bool {
	v, ok := c.l1.Load(key)
	if !ok {
		return false
	}
	e := v.(entry)
	if c.now().Before(e.expiresAt) && json.Unmarshal(e.data, dst) == nil {
		metrics.CacheHits.WithLabelValues("l1").Inc()
		return true
	}
	c.l1.Delete(key)
	return false
}

// SetLocal stores v in process memory only. Values holding credentials use
// it so they never leave the process.
func (c *Cache) SetLocal(key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}
	c.l1.Store(key, entry{data: data, expiresAt: c.now().Add(ttl)})
}

// Set stores v in both levels for ttl.
func (c *Cache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}
	c.l1.Store(key, entry{data: data, expiresAt: c.now().Add(ttl)})

	if c.redis != nil {
		if err := c.redis.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("redis set failed")
		}
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	c.l1.Delete(key)
	if c.redis != nil {
		if err := c.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("redis delete failed")
		}
	}
}
