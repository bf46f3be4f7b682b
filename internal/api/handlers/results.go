package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/screener/internal/marketclock"
	"github.com/wonny/screener/internal/portfolio"
	"github.com/wonny/screener/internal/results"
	"github.com/wonny/screener/pkg/logger"
)

// RowReader reads persisted runs
type RowReader interface {
	ListRun(ctx context.Context, runID string) ([]results.Row, error)
}

// LedgerReader reads stored portfolio snapshots
type LedgerReader interface {
	GetSummary(ctx context.Context, name string) (*portfolio.Summary, error)
}

// ResultsHandler serves result rows and the portfolio ledger built from them
type ResultsHandler struct {
	collector *results.Collector
	repo      RowReader
	ledgers   LedgerReader
	periods   []int
	clock     *marketclock.Clock
	logger    *logger.Logger
}

// NewResultsHandler creates a results handler. repo may be nil.
func NewResultsHandler(col *results.Collector, repo RowReader, periods []int, clock *marketclock.Clock, log *logger.Logger) *ResultsHandler {
	return &ResultsHandler{
		collector: col,
		repo:      repo,
		periods:   periods,
		clock:     clock,
		logger:    log,
	}
}

// WithLedgers enables the stored ledger summary endpoint
func (h *ResultsHandler) WithLedgers(l LedgerReader) *ResultsHandler {
	h.ledgers = l
	return h
}

// GetRuns lists the runs kept in memory
// GET /api/runs
func (h *ResultsHandler) GetRuns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs": h.collector.Runs(),
	})
}

// GetResults returns the rows of a run, the latest by default
// GET /api/results?run=<id>
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	runID, rows, ok := h.rows(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"count":  len(rows),
		"rows":   rows,
	})
}

// GetPortfolio simulates the ledger of a backtest run
// GET /api/portfolio?run=<id>
func (h *ResultsHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	runID, rows, ok := h.rows(w, r)
	if !ok {
		return
	}

	p := portfolio.FromRows(runID, rows, h.periods, h.clock)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":        runID,
		"entries":       p.Entries(),
		"initial_value": p.InitialValue(),
		"current_value": p.CurrentValue(),
		"profit":        p.Profit(),
	})
}

// GetLedgerSummary returns the stored headline of a portfolio ledger
// GET /api/portfolio/{name}/summary
func (h *ResultsHandler) GetLedgerSummary(w http.ResponseWriter, r *http.Request) {
	if h.ledgers == nil {
		respondError(w, http.StatusNotFound, "no ledger store configured")
		return
	}

	name := mux.Vars(r)["name"]
	summary, err := h.ledgers.GetSummary(r.Context(), name)
	if errors.Is(err, portfolio.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("portfolio", name).Error("Failed to read ledger summary")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve ledger summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *ResultsHandler) rows(w http.ResponseWriter, r *http.Request) (string, []results.Row, bool) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		latest, ok := h.collector.LatestRun()
		if !ok {
			respondError(w, http.StatusNotFound, "no runs yet")
			return "", nil, false
		}
		runID = latest
	}

	rows := h.collector.Rows(runID)
	if len(rows) == 0 && h.repo != nil {
		stored, err := h.repo.ListRun(r.Context(), runID)
		if err != nil {
			h.logger.WithRun(runID).WithError(err).Error("Failed to list results")
			respondError(w, http.StatusInternalServerError, "Failed to retrieve results")
			return "", nil, false
		}
		rows = stored
	}
	if rows == nil {
		rows = []results.Row{}
	}
	return runID, rows, true
}
