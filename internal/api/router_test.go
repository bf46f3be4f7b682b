package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/api/handlers"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/portfolio"
	"github.com/wonny/screener/internal/progress"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/internal/scheduler"
	"github.com/wonny/screener/internal/screener"
	"github.com/wonny/screener/internal/worker"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// fakeRunner sends one row per ticker to the collector
type fakeRunner struct {
	sink    *results.Collector
	release chan struct{}
	got     screener.Request
}

func (f *fakeRunner) Run(ctx context.Context, tickers []string, tmpl screener.Request) (worker.Summary, error) {
	f.got = tmpl
	if f.release != nil {
		<-f.release
	}
	for _, t := range tickers {
		_ = f.sink.Consume(ctx, "run-1", &contracts.Match{
			Ticker: t,
			Keys:   []string{"Stock", "LTP", "LTP1"},
			Save:   map[string]any{"Stock": t, "LTP": 100.0, "LTP1": 90.0},
		})
	}
	return worker.Summary{RunID: "run-1", Total: len(tickers), Matched: len(tickers)}, nil
}

type fakeScheduler struct {
	ran string
}

func (f *fakeScheduler) GetJobStats() map[string]scheduler.JobStats {
	return map[string]scheduler.JobStats{"cache_warm": {JobName: "cache_warm", Schedule: "0 0 16 * * 1-5"}}
}

func (f *fakeScheduler) RunJob(name string) error {
	if name != "cache_warm" {
		return errors.New("job not found")
	}
	f.ran = name
	return nil
}

type fixture struct {
	router    http.Handler
	runs      *handlers.RunHandler
	runner    *fakeRunner
	collector *results.Collector
	jobs      *fakeScheduler
}

func newFixture(t *testing.T, universe []string) *fixture {
	t.Helper()
	log := logger.Nop()
	col := results.NewCollector(nil, 5, log)
	runner := &fakeRunner{sink: col}
	prog := progress.New(nil)
	jobs := &fakeScheduler{}

	runs := handlers.NewRunHandler(context.Background(), runner, prog, datacache.NewMemoryPartitions(), universe, log)
	router := NewRouter(Handlers{
		Runs:    runs,
		Results: handlers.NewResultsHandler(col, nil, []int{1}, marketclock.NSE(), log),
		Stream:  handlers.NewStreamHandler(col, log),
		Jobs:    handlers.NewJobsHandler(jobs, log),
		Metrics: metrics.New().Handler(),
	}, log)

	return &fixture{router: router, runs: runs, runner: runner, collector: col, jobs: jobs}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "screener_")
}

func TestHealthDegraded(t *testing.T) {
	router := NewRouter(Handlers{Checks: map[string]func(context.Context) error{
		"redis":    func(context.Context) error { return nil },
		"database": func(context.Context) error { return errors.New("connection refused") },
	}}, logger.Nop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["redis"])
	assert.Equal(t, "connection refused", checks["database"])
}

func TestScreenRunAndResults(t *testing.T) {
	f := newFixture(t, []string{"SBIN", "TCS"})

	rec := f.do(t, http.MethodPost, "/api/screen", `{"execute": 5, "min_rsi": 40, "max_rsi": 60}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "rsi_band", decode(t, rec)["strategy"])
	f.runs.Wait()

	assert.Equal(t, 40.0, f.runner.got.MinRSI)

	rec = f.do(t, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode(t, rec)["run"].(map[string]interface{})
	assert.Equal(t, false, run["running"])
	assert.Equal(t, "run-1", run["last"].(map[string]interface{})["run_id"])

	rec = f.do(t, http.MethodGet, "/api/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, 2.0, body["count"])

	rec = f.do(t, http.MethodGet, "/api/portfolio?run=run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["entries"], 4, "buy and sell per ticker")

	rec = f.do(t, http.MethodGet, "/api/runs", "")
	assert.Equal(t, []interface{}{"run-1"}, decode(t, rec)["runs"])
}

func TestScreenRejects(t *testing.T) {
	tests := []struct {
		name     string
		universe []string
		body     string
		status   int
	}{
		{"bad json", []string{"SBIN"}, `{`, http.StatusBadRequest},
		{"bad strategy", []string{"SBIN"}, `{"execute": 99}`, http.StatusBadRequest},
		{"no universe", nil, `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.universe)
			rec := f.do(t, http.MethodPost, "/api/screen", tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestScreenConflict(t *testing.T) {
	f := newFixture(t, []string{"SBIN"})
	f.runner.release = make(chan struct{})

	rec := f.do(t, http.MethodPost, "/api/screen", `{}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/screen", `{"tickers": ["TCS"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(f.runner.release)
	f.runs.Wait()
}

func TestResultsWithoutRuns(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/results", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobs(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "cache_warm")

	rec = f.do(t, http.MethodPost, "/api/jobs/cache_warm/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "cache_warm", f.jobs.ran)

	rec = f.do(t, http.MethodPost, "/api/jobs/unknown/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultStream(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is registered after the upgrade; keep publishing until one arrives
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(10 * time.Millisecond):
				_ = f.collector.Consume(context.Background(), "live", &contracts.Match{Ticker: "SBIN"})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var row results.Row
	require.NoError(t, conn.ReadJSON(&row))
	assert.Equal(t, "SBIN", row.Ticker)
	assert.Equal(t, "live", row.RunID)
}

type fakeLedgers struct{}

func (fakeLedgers) GetSummary(_ context.Context, name string) (*portfolio.Summary, error) {
	switch name {
	case "backtest":
		return &portfolio.Summary{Portfolio: name, InitialValue: 100, CurrentValue: 110, Profit: 10}, nil
	case "broken":
		return nil, errors.New("connection reset")
	default:
		return nil, fmt.Errorf("portfolio %s: %w", name, portfolio.ErrNotFound)
	}
}

func TestLedgerSummary(t *testing.T) {
	log := logger.Nop()
	col := results.NewCollector(nil, 5, log)

	without := NewRouter(Handlers{Results: handlers.NewResultsHandler(col, nil, []int{1}, marketclock.NSE(), log)}, log)
	rec := httptest.NewRecorder()
	without.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/backtest/summary", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	router := NewRouter(Handlers{
		Results: handlers.NewResultsHandler(col, nil, []int{1}, marketclock.NSE(), log).WithLedgers(fakeLedgers{}),
	}, log)

	tests := []struct {
		name string
		want int
	}{
		{"backtest", http.StatusOK},
		{"missing", http.StatusNotFound},
		{"broken", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/"+tt.name+"/summary", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/backtest/summary", nil))
	body := decode(t, rec)
	assert.Equal(t, float64(10), body["profit"])
}
