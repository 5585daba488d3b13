package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// StateStore implements domain.StateStore over the balances, trades, and
// portfolio_summary tables. Save writes the whole state in one transaction
// so a crash never leaves the ledger and the trade log out of step.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a StateStore backed by the given connection pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Load reads the full portfolio state. It returns domain.ErrNotFound when no
// summary row exists yet, which means the store has never been initialized.
func (s *StateStore) Load(ctx context.Context) (domain.PortfolioState, error) {
	var state domain.PortfolioState

	err := s.pool.QueryRow(ctx, `
		SELECT user_id, total_invested, total_value, total_pnl,
		       total_pnl_percent, created_at, last_updated
		FROM portfolio_summary
		LIMIT 1`,
	).Scan(
		&state.Summary.UserID, &state.Summary.TotalInvested,
		&state.Summary.TotalValue, &state.Summary.TotalPnL,
		&state.Summary.TotalPnLPercent, &state.Summary.CreatedAt,
		&state.Summary.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PortfolioState{}, domain.ErrNotFound
		}
		return domain.PortfolioState{}, fmt.Errorf("postgres: load summary: %w", err)
	}

	balances, err := s.loadBalances(ctx)
	if err != nil {
		return domain.PortfolioState{}, err
	}
	state.Balances = balances

	trades, err := s.loadTrades(ctx)
	if err != nil {
		return domain.PortfolioState{}, err
	}
	state.Trades = trades

	return state, nil
}

func (s *StateStore) loadBalances(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, `SELECT token, amount FROM balances`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal)
	for rows.Next() {
		var token string
		var amount decimal.Decimal
		if err := rows.Scan(&token, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		balances[token] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	return balances, nil
}

func (s *StateStore) loadTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pair, side, amount, price, total_cost, fee, dex,
		       status, created_at, executed_at, tx_hash, error
		FROM trades
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.Pair, &t.Side, &t.Amount, &t.Price,
			&t.TotalCost, &t.Fee, &t.DEX, &t.Status,
			&t.CreatedAt, &t.ExecutedAt, &t.TxHash, &t.Error,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load trades: %w", err)
	}
	return trades, nil
}

// Save persists the full state in a single transaction, upserting balances,
// trades, and the summary with pgx batches.
func (s *StateStore) Save(ctx context.Context, state domain.PortfolioState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tokens := make([]string, 0, len(state.Balances))
	batch := &pgx.Batch{}
	for token, amount := range state.Balances {
		tokens = append(tokens, token)
		batch.Queue(`
			INSERT INTO balances (token, amount, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (token) DO UPDATE
			SET amount = EXCLUDED.amount, updated_at = NOW()`,
			token, amount)
	}
	for _, t := range state.Trades {
		batch.Queue(`
			INSERT INTO trades (
				id, pair, side, amount, price, total_cost, fee, dex,
				status, created_at, executed_at, tx_hash, error
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status,
			    executed_at = EXCLUDED.executed_at,
			    tx_hash = EXCLUDED.tx_hash,
			    error = EXCLUDED.error`,
			t.ID, t.Pair, t.Side, t.Amount, t.Price, t.TotalCost, t.Fee,
			t.DEX, t.Status, t.CreatedAt, t.ExecutedAt, t.TxHash, t.Error)
	}
	batch.Queue(`
		INSERT INTO portfolio_summary (
			user_id, total_invested, total_value, total_pnl,
			total_pnl_percent, created_at, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET total_invested = EXCLUDED.total_invested,
		    total_value = EXCLUDED.total_value,
		    total_pnl = EXCLUDED.total_pnl,
		    total_pnl_percent = EXCLUDED.total_pnl_percent,
		    last_updated = EXCLUDED.last_updated`,
		state.Summary.UserID, state.Summary.TotalInvested,
		state.Summary.TotalValue, state.Summary.TotalPnL,
		state.Summary.TotalPnLPercent, state.Summary.CreatedAt,
		state.Summary.LastUpdated)

	br := tx.SendBatch(ctx, batch)
	queued := len(state.Balances) + len(state.Trades) + 1
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: save batch item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close save batch: %w", err)
	}

	// Remove balances for tokens no longer held.
	if _, err := tx.Exec(ctx,
		`DELETE FROM balances WHERE token <> ALL($1)`, tokens,
	); err != nil {
		return fmt.Errorf("postgres: prune balances: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StateStore = (*StateStore)(nil)
