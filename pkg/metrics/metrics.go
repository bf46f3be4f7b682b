package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus collectors of a screening process
// ⭐ SSOT: metric names are declared here only
type Registry struct {
	reg *prometheus.Registry

	// Per-ticker screening
	Screened       *prometheus.CounterVec
	ScreenDuration prometheus.Histogram

	// Shared data cache
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Run progress
	Processed prometheus.Gauge
	Matched   prometheus.Gauge
	Percent   prometheus.Gauge

	// Upstream sources
	FetchErrors *prometheus.CounterVec
}

// New creates a registry with every screener collector registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Screened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_tickers_screened_total",
				Help: "Tickers screened, by outcome (matched, not_eligible, unexpected)",
			},
			[]string{"outcome"},
		),

		ScreenDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screener_screen_duration_seconds",
				Help:    "Wall time to screen one ticker",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_cache_hits_total",
				Help: "Snapshot cache hits by partition",
			},
			[]string{"partition"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_cache_misses_total",
				Help: "Snapshot cache misses by partition",
			},
			[]string{"partition"},
		),

		Processed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_run_processed",
			Help: "Tickers processed in the current run",
		}),

		Matched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_run_matched",
			Help: "Tickers matched in the current run",
		}),

		Percent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screener_run_progress_percent",
			Help: "Completion of the current run (0 to 100)",
		}),

		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_fetch_errors_total",
				Help: "Upstream fetch failures by source",
			},
			[]string{"source"},
		),
	}

	r.reg.MustRegister(
		r.Screened,
		r.ScreenDuration,
		r.CacheHits,
		r.CacheMisses,
		r.Processed,
		r.Matched,
		r.Percent,
		r.FetchErrors,
	)

	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
