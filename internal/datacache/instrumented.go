package datacache

import (
	"context"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/metrics"
)

type instrumented struct {
	Store
	partition string
	reg       *metrics.Registry
}

// Instrument counts hits and misses of a store
func Instrument(s Store, partition string, reg *metrics.Registry) Store {
	if reg == nil {
		return s
	}
	return &instrumented{Store: s, partition: partition, reg: reg}
}

// InstrumentPartitions wraps both partitions
func InstrumentPartitions(p Partitions, reg *metrics.Registry) Partitions {
	return Partitions{
		Daily:    Instrument(p.Daily, PartitionDaily, reg),
		Intraday: Instrument(p.Intraday, PartitionIntraday, reg),
	}
}

func (s *instrumented) Get(ctx context.Context, ticker string) (contracts.CacheEntry, bool, error) {
	entry, ok, err := s.Store.Get(ctx, ticker)
	if err == nil {
		if ok && !entry.Empty() {
			s.reg.CacheHits.WithLabelValues(s.partition).Inc()
		} else {
			s.reg.CacheMisses.WithLabelValues(s.partition).Inc()
		}
	}
	return entry, ok, err
}
