package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRuns is returned when the results table is empty
var ErrNoRuns = errors.New("no screening runs stored")

const schema = `
	CREATE SCHEMA IF NOT EXISTS screener;
	CREATE TABLE IF NOT EXISTS screener.results (
		run_id     TEXT        NOT NULL,
		ticker     TEXT        NOT NULL,
		win        INTEGER     NOT NULL DEFAULT 0,
		trade_date DATE,
		fallback   BOOLEAN     NOT NULL DEFAULT FALSE,
		keys       JSONB       NOT NULL,
		display    JSONB       NOT NULL,
		save       JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, ticker, win)
	);
	CREATE INDEX IF NOT EXISTS results_created_idx ON screener.results (created_at DESC);
`

// Repository handles result persistence
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the results table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure results schema: %w", err)
	}
	return nil
}

// Save upserts one row
func (r *Repository) Save(ctx context.Context, row Row) error {
	keysJSON, err := json.Marshal(row.Keys)
	if err != nil {
		return fmt.Errorf("marshal keys: %w", err)
	}
	displayJSON, err := json.Marshal(row.Display)
	if err != nil {
		return fmt.Errorf("marshal display: %w", err)
	}
	saveJSON, err := json.Marshal(row.Save)
	if err != nil {
		return fmt.Errorf("marshal save: %w", err)
	}

	query := `
		INSERT INTO screener.results (
			run_id,
			ticker,
			win,
			trade_date,
			fallback,
			keys,
			display,
			save,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, ticker, win) DO UPDATE SET
			trade_date = EXCLUDED.trade_date,
			fallback = EXCLUDED.fallback,
			keys = EXCLUDED.keys,
			display = EXCLUDED.display,
			save = EXCLUDED.save,
			created_at = EXCLUDED.created_at
	`

	var tradeDate any
	if !row.Date.IsZero() {
		tradeDate = row.Date
	}

	_, err = r.db.Exec(ctx, query,
		row.RunID,
		row.Ticker,
		row.Window,
		tradeDate,
		row.Fallback,
		keysJSON,
		displayJSON,
		saveJSON,
		row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ListRun returns every row of a run ordered by ticker and window
func (r *Repository) ListRun(ctx context.Context, runID string) ([]Row, error) {
	query := `
		SELECT
			run_id,
			ticker,
			win,
			COALESCE(trade_date, '0001-01-01'::date),
			fallback,
			keys,
			display,
			save,
			created_at
		FROM screener.results
		WHERE run_id = $1
		ORDER BY ticker, win
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row                             Row
			keysJSON, displayJSON, saveJSON []byte
		)
		if err := rows.Scan(
			&row.RunID,
			&row.Ticker,
			&row.Window,
			&row.Date,
			&row.Fallback,
			&keysJSON,
			&displayJSON,
			&saveJSON,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(keysJSON, &row.Keys); err != nil {
			return nil, fmt.Errorf("unmarshal keys: %w", err)
		}
		if err := json.Unmarshal(displayJSON, &row.Display); err != nil {
			return nil, fmt.Errorf("unmarshal display: %w", err)
		}
		if err := json.Unmarshal(saveJSON, &row.Save); err != nil {
			return nil, fmt.Errorf("unmarshal save: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LatestRunID returns the run with the newest row
func (r *Repository) LatestRunID(ctx context.Context) (string, error) {
	query := `
		SELECT run_id
		FROM screener.results
		ORDER BY created_at DESC
		LIMIT 1
	`

	var runID string
	err := r.db.QueryRow(ctx, query).Scan(&runID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}
