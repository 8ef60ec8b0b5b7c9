package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/visibility/internal/cache"
	"github.com/jonesrussell/north-cloud/visibility/internal/citations"
	"github.com/jonesrussell/north-cloud/visibility/internal/connectors"
	"github.com/jonesrussell/north-cloud/visibility/internal/logger"
)

func newTestCache(t *testing.T, ttl time.Duration) (*cache.AnswerCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewAnswerCache(client, ttl, logger.NewNop()), mr
}

func TestAnswerCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, 48*time.Hour)
	ctx := context.Background()

	answer := &connectors.Answer{
		Text:    "Example sells widgets.",
		Sources: []citations.Source{{URL: "https://example.com/widgets", Title: "Widgets"}},
		Raw:     `{"x":1}`,
	}
	c.Set(ctx, "perplexity", "example.com", "where to buy widgets", answer)

	got, ok := c.Get(ctx, "perplexity", "example.com", "where to buy widgets")
	require.True(t, ok)
	assert.Equal(t, answer.Text, got.Text)
	assert.Equal(t, answer.Sources, got.Sources)
}

func TestAnswerCacheMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	_, ok := c.Get(context.Background(), "perplexity", "example.com", "never cached")
	assert.False(t, ok)
}

func TestAnswerCacheKeyIsolation(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, "perplexity", "example.com", "query", &connectors.Answer{Text: "a"})

	// Same query under a different provider or domain is a miss.
	_, ok := c.Get(ctx, "claude", "example.com", "query")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "perplexity", "other.org", "query")
	assert.False(t, ok)
}

func TestAnswerCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "perplexity", "example.com", "query", &connectors.Answer{Text: "a"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "perplexity", "example.com", "query")
	assert.False(t, ok)
}

func TestAnswerCacheCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, mr.Set(cache.Key("perplexity", "example.com", "query"), "not json"))

	_, ok := c.Get(context.Background(), "perplexity", "example.com", "query")
	assert.False(t, ok, "corrupt entries degrade to a miss")
}
