package datacache

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/wonny/screener/internal/contracts"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]contracts.CacheEntry
}

// MemoryStore is a sharded in-process store. Each shard has its own lock so
// workers touching different tickers never contend on one global mutex.
type MemoryStore struct {
	shards [shardCount]*shard
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]contracts.CacheEntry)}
	}
	return s
}

func (s *MemoryStore) shardFor(ticker string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticker))
	return s.shards[h.Sum32()%shardCount]
}

// Get returns the snapshot of a ticker
func (s *MemoryStore) Get(_ context.Context, ticker string) (contracts.CacheEntry, bool, error) {
	sh := s.shardFor(ticker)
	sh.mu.RLock()
	entry, ok := sh.entries[ticker]
	sh.mu.RUnlock()
	return entry, ok, nil
}

// Put replaces the snapshot of a ticker wholesale
func (s *MemoryStore) Put(_ context.Context, ticker string, entry contracts.CacheEntry) error {
	// the column list is copied so a later Repair on the caller's value
	// cannot reach into the stored snapshot
	entry.Columns = append([]string(nil), entry.Columns...)

	sh := s.shardFor(ticker)
	sh.mu.Lock()
	sh.entries[ticker] = entry
	sh.mu.Unlock()
	return nil
}

// Len counts stored tickers
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n, nil
}
