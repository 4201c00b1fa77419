package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkforge/shortener/internal/errx"
)

// negativeEntry marks a code known to be absent, so repeated lookups of
// unknown codes don't all fall through to the database.
const negativeEntry = "null"

// errCacheMiss is returned by CacheClient.Get for absent keys.
var errCacheMiss = errors.New("cache miss")

// CacheClient is the minimal key-value surface the resolve cache needs.
// Defined as an interface so tests can substitute fakes.
type CacheClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisCacheClient struct {
	client *redis.Client
}

// NewRedisCacheClient adapts a go-redis client to the CacheClient interface.
func NewRedisCacheClient(client *redis.Client) CacheClient {
	return &redisCacheClient{client: client}
}

func (c *redisCacheClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errCacheMiss
	}
	return val, err
}

func (c *redisCacheClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCacheClient) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CachedLinkStore is a read-through cache in front of a LinkStore for the
// resolve hot path. Only the code-to-URL mapping is cached; click counters
// always hit the durable store so accounting stays exact. Cache failures
// degrade to the backing store, never to request errors.
type CachedLinkStore struct {
	store       LinkStore
	cache       CacheClient
	logger      *slog.Logger
	ttl         time.Duration
	negativeTTL time.Duration
	keyPrefix   string
}

// CachedStoreConfig holds configuration for the cached store.
type CachedStoreConfig struct {
	TTL         time.Duration // default 1h
	NegativeTTL time.Duration // default 1m
	Logger      *slog.Logger
}

// NewCachedLinkStore wraps a LinkStore with a cache layer.
func NewCachedLinkStore(store LinkStore, cache CacheClient, config *CachedStoreConfig) *CachedLinkStore {
	if config == nil {
		config = &CachedStoreConfig{}
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	negativeTTL := config.NegativeTTL
	if negativeTTL <= 0 {
		negativeTTL = time.Minute
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedLinkStore{
		store:       store,
		cache:       cache,
		logger:      logger,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		keyPrefix:   "link:",
	}
}

// Put writes through to the backing store and primes the cache on success.
// Links are immutable, so a primed entry can never go stale.
func (c *CachedLinkStore) Put(ctx context.Context, link Link) (Link, error) {
	created, err := c.store.Put(ctx, link)
	if err != nil {
		return Link{}, err
	}

	c.prime(ctx, created)
	return created, nil
}

// Get serves cache-aside reads: hit returns immediately, miss falls through
// to the backing store and primes the cache. Unknown codes are cached as
// short-lived negative entries.
func (c *CachedLinkStore) Get(ctx context.Context, code string) (Link, error) {
	const op = "shortener.cache.Get"

	key := c.keyPrefix + code

	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		if cached == negativeEntry {
			return Link{}, errx.E(op, errx.NotFound, errors.New("link not found (cached)"))
		}

		var link Link
		if err := json.Unmarshal([]byte(cached), &link); err == nil {
			return link, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = c.cache.Del(ctx, key)
	} else if !errors.Is(err, errCacheMiss) {
		c.logger.DebugContext(ctx, "cache read failed", "code", code, "error", err)
	}

	link, err := c.store.Get(ctx, code)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			if setErr := c.cache.Set(ctx, key, negativeEntry, c.negativeTTL); setErr != nil {
				c.logger.DebugContext(ctx, "negative cache write failed", "code", code, "error", setErr)
			}
		}
		return Link{}, err
	}

	c.prime(ctx, link)
	return link, nil
}

// List delegates to the backing store; the catalog isn't a hot path.
func (c *CachedLinkStore) List(ctx context.Context) ([]LinkStats, error) {
	return c.store.List(ctx)
}

func (c *CachedLinkStore) prime(ctx context.Context, link Link) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.keyPrefix+link.ShortCode, string(data), c.ttl); err != nil {
		c.logger.DebugContext(ctx, "cache write failed", "code", link.ShortCode, "error", err)
	}
}
