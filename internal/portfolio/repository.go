package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE SCHEMA IF NOT EXISTS screener;
	CREATE TABLE IF NOT EXISTS screener.portfolio_ledger (
		portfolio  TEXT             NOT NULL,
		seq        INTEGER          NOT NULL,
		entry_date DATE             NOT NULL,
		ticker     TEXT             NOT NULL,
		ltp        DOUBLE PRECISION NOT NULL,
		quantity   INTEGER          NOT NULL,
		growth     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (portfolio, seq)
	);
	CREATE TABLE IF NOT EXISTS screener.portfolio_snapshots (
		portfolio     TEXT PRIMARY KEY,
		initial_value DOUBLE PRECISION NOT NULL,
		current_value DOUBLE PRECISION NOT NULL,
		profit        DOUBLE PRECISION NOT NULL,
		created_at    TIMESTAMPTZ      NOT NULL DEFAULT NOW()
	);
`

// ErrNotFound is returned when no snapshot was stored for a portfolio
var ErrNotFound = errors.New("portfolio not found")

// Summary is the stored headline of a ledger
type Summary struct {
	Portfolio    string  `json:"portfolio"`
	InitialValue float64 `json:"initial_value"`
	CurrentValue float64 `json:"current_value"`
	Profit       float64 `json:"profit"`
}

// Repository handles portfolio ledger persistence
// ⭐ SSOT: ledger persistence lives here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the ledger tables when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure portfolio schema: %w", err)
	}
	return nil
}

// SaveLedger replaces the stored ledger of a portfolio
func (r *Repository) SaveLedger(ctx context.Context, p *Portfolio) error {
	// Begin transaction
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM screener.portfolio_ledger WHERE portfolio = $1", p.Name)
	if err != nil {
		return fmt.Errorf("failed to delete old ledger: %w", err)
	}

	query := `
		INSERT INTO screener.portfolio_ledger (
			portfolio, seq, entry_date, ticker, ltp, quantity, growth
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, e := range p.Entries() {
		_, err := tx.Exec(ctx, query,
			p.Name, i, e.Date, e.Ticker, e.LTP, e.Quantity, e.Growth,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	summaryQuery := `
		INSERT INTO screener.portfolio_snapshots (
			portfolio, initial_value, current_value, profit, created_at
		) VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (portfolio) DO UPDATE SET
			initial_value = EXCLUDED.initial_value,
			current_value = EXCLUDED.current_value,
			profit = EXCLUDED.profit,
			created_at = NOW()
	`

	_, err = tx.Exec(ctx, summaryQuery,
		p.Name, p.InitialValue(), p.CurrentValue(), p.Profit(),
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio snapshot: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSummary retrieves the stored headline of a portfolio
func (r *Repository) GetSummary(ctx context.Context, name string) (*Summary, error) {
	s := &Summary{Portfolio: name}
	err := r.pool.QueryRow(ctx,
		"SELECT initial_value, current_value, profit FROM screener.portfolio_snapshots WHERE portfolio = $1",
		name,
	).Scan(&s.InitialValue, &s.CurrentValue, &s.Profit)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio snapshot: %w", err)
	}
	return s, nil
}
