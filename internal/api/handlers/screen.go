package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/screener/internal/datacache"
	"github.com/wonny/screener/internal/progress"
	"github.com/wonny/screener/internal/screener"
	"github.com/wonny/screener/internal/worker"
	"github.com/wonny/screener/pkg/logger"
)

// Runner fans a request template out over tickers
type Runner interface {
	Run(ctx context.Context, tickers []string, tmpl screener.Request) (worker.Summary, error)
}

// RunState is the public view of the current or last run
type RunState struct {
	Running   bool            `json:"running"`
	Total     int             `json:"total"`
	StartedAt time.Time       `json:"started_at,omitempty"`
	Last      *worker.Summary `json:"last,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ScreenRequest is the body of POST /api/screen
type ScreenRequest struct {
	screener.Options
	Tickers []string `json:"tickers"`
}

// RunHandler starts screening runs and reports their progress
// ⭐ SSOT: API-triggered screening runs start from this handler only
type RunHandler struct {
	runner   Runner
	progress *progress.Coordinator
	parts    datacache.Partitions
	universe []string
	base     context.Context
	logger   *logger.Logger

	mu    sync.Mutex
	state RunState
	done  chan struct{}
}

// NewRunHandler creates a run handler. Runs outlive the request and stop when base is cancelled.
func NewRunHandler(base context.Context, runner Runner, prog *progress.Coordinator, parts datacache.Partitions, universe []string, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runner:   runner,
		progress: prog,
		parts:    parts,
		universe: universe,
		base:     base,
		logger:   log,
	}
}

// Screen starts a run in the background
// POST /api/screen
func (h *RunHandler) Screen(w http.ResponseWriter, r *http.Request) {
	var body ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tmpl, err := body.Options.Request(h.parts)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tickers := body.Tickers
	if len(tickers) == 0 {
		tickers = h.universe
	}
	if len(tickers) == 0 {
		respondError(w, http.StatusBadRequest, "no tickers given and no default universe configured")
		return
	}

	h.mu.Lock()
	if h.state.Running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	h.state = RunState{Running: true, Total: len(tickers), StartedAt: time.Now(), Last: h.state.Last}
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go h.run(tickers, tmpl, done)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "accepted",
		"total":    len(tickers),
		"strategy": tmpl.Strategy.Name(),
	})
}

func (h *RunHandler) run(tickers []string, tmpl screener.Request, done chan struct{}) {
	defer close(done)

	summary, err := h.runner.Run(h.base, tickers, tmpl)

	h.mu.Lock()
	h.state.Running = false
	h.state.Last = &summary
	h.state.Error = ""
	if err != nil {
		h.state.Error = err.Error()
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.WithRun(summary.RunID).WithError(err).Warn("API run ended early")
	}
}

// Wait blocks until the current run, if any, finishes
func (h *RunHandler) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Progress reports the counters of the current run
// GET /api/progress
func (h *RunHandler) Progress(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()

	resp := map[string]interface{}{
		"run":      state,
		"counters": h.progress.Snapshot(),
	}
	if pct, ok := h.progress.Percent(state.Total); ok {
		resp["percent"] = pct
	}
	if rate, ok := h.progress.HitRate(); ok {
		resp["hit_rate"] = rate
	}
	respondJSON(w, http.StatusOK, resp)
}
