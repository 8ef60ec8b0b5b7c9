// Package cache stores connector answers in Redis so identical provider
// calls within the recency window are not repeated.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/visibility/internal/config"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

const keyPrefix = "visibility:answer"

// AnswerCache is a best-effort Redis cache for connector answers. Losing it
// only costs extra provider calls, so every failure degrades to a miss.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewAnswerCache creates an AnswerCache.
func NewAnswerCache(client *redis.Client, ttl time.Duration, log logger.Logger) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl, log: log}
}

// Key builds the cache key from provider, audited eTLD+1, and query hash.
func Key(provider, etld1, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, provider, etld1, hex.EncodeToString(sum[:]))
}

// Get returns the cached answer, or (nil, false) on miss or any Redis error.
func (c *AnswerCache) Get(ctx context.Context, provider, etld1, query string) (*connectors.Answer, bool) {
	data, err := c.client.Get(ctx, Key(provider, etld1, query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", logger.Error(err))
		}
		return nil, false
	}

	var answer connectors.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		c.log.Warn("cache entry corrupt, treating as miss", logger.Error(err))
		return nil, false
	}
	return &answer, true
}

// Set stores an answer with the configured TTL. Errors are logged, not
// propagated.
func (c *AnswerCache) Set(ctx context.Context, provider, etld1, query string, answer *connectors.Answer) {
	data, err := json.Marshal(answer)
	if err != nil {
		c.log.Warn("cache marshal failed", logger.Error(err))
		return
	}
	if err := c.client.Set(ctx, Key(provider, etld1, query), data, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", logger.Error(err))
	}
}
