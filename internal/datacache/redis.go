package datacache

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/redis"
)

// RedisStore keeps snapshots in Redis so several processes share one cache.
// Values are JSON; keys are <prefix>:cache:<partition>:<ticker>.
type RedisStore struct {
	cache     *redis.Cache
	partition string
	ttl       time.Duration
}

// NewRedisStore creates a store over one partition
func NewRedisStore(client *redis.Client, prefix, partition string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		cache:     redis.NewCache(client, prefix),
		partition: partition,
		ttl:       ttl,
	}
}

// NewRedisPartitions returns both partitions backed by one client
func NewRedisPartitions(client *redis.Client, prefix string, ttl time.Duration) Partitions {
	return Partitions{
		Daily:    NewRedisStore(client, prefix, PartitionDaily, ttl),
		Intraday: NewRedisStore(client, prefix, PartitionIntraday, ttl),
	}
}

// Get returns the snapshot of a ticker
func (s *RedisStore) Get(ctx context.Context, ticker string) (contracts.CacheEntry, bool, error) {
	var entry contracts.CacheEntry
	found, err := s.cache.Get(ctx, redis.SnapshotKey(s.partition, ticker), &entry)
	if err != nil {
		return contracts.CacheEntry{}, false, fmt.Errorf("datacache get %s/%s: %w", s.partition, ticker, err)
	}
	return entry, found, nil
}

// Put replaces the snapshot of a ticker wholesale (SET is last-writer-wins)
func (s *RedisStore) Put(ctx context.Context, ticker string, entry contracts.CacheEntry) error {
	if err := s.cache.Set(ctx, redis.SnapshotKey(s.partition, ticker), entry, s.ttl); err != nil {
		return fmt.Errorf("datacache put %s/%s: %w", s.partition, ticker, err)
	}
	return nil
}

// Len counts stored tickers of the partition
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	return s.cache.Count(ctx, s.partition)
}
