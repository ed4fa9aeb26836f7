package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/redis/go-redis/v9"
)

// keyProduct holds the JSON of one product: product:{id}.
// keyGeneration counts its invalidations: product:{id}:gen.
const (
	keyProduct    = "product:%d"
	keyGeneration = "product:%d:gen"
)

// generationTTL only has to outlive any single load.
const generationTTL = 24 * time.Hour

// DefaultTTL bounds how stale a cached product can get if an invalidation is lost.
const DefaultTTL = 5 * time.Minute

// Config holds Redis connection details.
type Config struct {
	Addr string
	TTL  time.Duration
}

// ProductCache stores products in Redis.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache connects to Redis and verifies the connection.
func NewProductCache(ctx context.Context, cfg Config) (*ProductCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewProductCacheWithClient(client, cfg.TTL), nil
}

// NewProductCacheWithClient wraps an existing client.
func NewProductCacheWithClient(client *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProductCache{client: client, ttl: ttl}
}

func productKey(id uint) string {
	return fmt.Sprintf(keyProduct, id)
}

func generationKey(id uint) string {
	return fmt.Sprintf(keyGeneration, id)
}

// Get returns the cached product, or ok=false on a miss.
func (c *ProductCache) Get(ctx context.Context, id uint) (*models.Product, bool, error) {
	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read product %d from cache: %w", id, err)
	}
	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached product %d: %w", id, err)
	}
	return &product, true, nil
}

// Generation returns how many times the product has been invalidated.
func (c *ProductCache) Generation(ctx context.Context, id uint) (int64, error) {
	return readGeneration(ctx, c.client, id)
}

// getter is satisfied by both *redis.Client and the *redis.Tx of a WATCH.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd getter, id uint) (int64, error) {
	generation, err := cmd.Get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation of product %d: %w", id, err)
	}
	return generation, nil
}

// Set caches the product for the configured TTL, unless it was invalidated
// since generation was read. A skipped write is not an error.
func (c *ProductCache) Set(ctx context.Context, product *models.Product, generation int64) error {
	raw, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to encode product %d: %w", product.ID, err)
	}
	genKey := generationKey(product.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, product.ID)
		if err != nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productKey(product.ID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// invalidated between the check and the write
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cache product %d: %w", product.ID, err)
	}
	return nil
}

// Invalidate drops the given products from the cache and bumps their generations.
func (c *ProductCache) Invalidate(ctx context.Context, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, id := range ids {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), generationTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate products %v: %w", ids, err)
	}
	return nil
}

// Close closes the Redis client.
func (c *ProductCache) Close() error {
	return c.client.Close()
}
