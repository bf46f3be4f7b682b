package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed JSON caching utilities
// ⭐ SSOT: cache helpers live here only
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Enabled reports whether the backing client is live
func (c *Cache) Enabled() bool {
	return c.client.Enabled()
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value. A missing key is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL (0 keeps it until overwritten)
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Count returns the number of keys under a sub-namespace (e.g. "daily")
func (c *Cache) Count(ctx context.Context, namespace string) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	var (
		cursor uint64
		total  int
	)
	pattern := c.fullKey(namespace + ":*")
	for {
		keys, next, err := c.client.Redis().Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return 0, fmt.Errorf("cache scan failed: %w", err)
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// Predefined TTLs
const (
	TTLShort    = 1 * time.Minute  // intraday snapshots
	TTLMedium   = 10 * time.Minute // fund flow pages
	TTLDaily    = 24 * time.Hour   // end-of-day snapshots
	TTLNoExpiry = 0
)

// SnapshotKey names a per-ticker OHLCV snapshot inside a partition
func SnapshotKey(partition, ticker string) string {
	return fmt.Sprintf("%s:%s", partition, ticker)
}

// FundFlowKey names the cached auxiliary fund/valuation record of a ticker
func FundFlowKey(ticker string) string {
	return fmt.Sprintf("fundflow:%s", ticker)
}
