package datacache

import (
	"context"

	"github.com/wonny/screener/internal/contracts"
)

// Store maps ticker -> serialized snapshot.
//
// Concurrent reads of distinct keys are always safe. Two writers racing on
// the same key resolve as last-writer-wins: each value is an immutable
// snapshot replaced wholesale, never mutated in place.
type Store interface {
	Get(ctx context.Context, ticker string) (contracts.CacheEntry, bool, error)
	Put(ctx context.Context, ticker string, entry contracts.CacheEntry) error
	Len(ctx context.Context) (int, error)
}

// Partition names
const (
	PartitionDaily    = "daily"
	PartitionIntraday = "intraday"
)

// Partitions are the two caches shared by every worker of a run.
// Keys are tickers only; use one Partitions per exchange.
type Partitions struct {
	Daily    Store
	Intraday Store
}

// NewMemoryPartitions returns process-local partitions
func NewMemoryPartitions() Partitions {
	return Partitions{
		Daily:    NewMemoryStore(),
		Intraday: NewMemoryStore(),
	}
}
