package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfold/updownbot/internal/domain"
)

// signalColumns is the column list shared by every signal query, in the same
// order as the 22-column CSV schema.
const signalColumns = `ts, market, side, phase, regime, edge, effective_edge,
	model_up, model_down, market_up, market_down, confidence, volatility_15m,
	price_to_beat, final_price, ob_imbalance, bid_depth, ask_depth, vwap,
	vwap_slope, rsi, spread`

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// InsertBatch inserts signals in one round trip using a pgx batch.
func (s *SignalStore) InsertBatch(ctx context.Context, signals []domain.BacktestSignal) error {
	if len(signals) == 0 {
		return nil
	}

	const query = `
		INSERT INTO backtest_signals (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)`

	batch := &pgx.Batch{}
	for _, sig := range signals {
		ts, err := time.Parse(time.RFC3339, sig.Timestamp)
		if err != nil {
			return fmt.Errorf("postgres: parse signal timestamp %q: %w", sig.Timestamp, err)
		}
		effEdge := nullifyNonFinite(sig.EffectiveEdge)
		batch.Queue(query,
			ts, sig.Market, string(sig.Side), string(sig.Phase), string(sig.Regime),
			sig.Edge, effEdge, sig.ModelUp, sig.ModelDown, sig.MarketUp, sig.MarketDown,
			sig.Confidence, sig.Volatility15m, sig.PriceToBeat, sig.FinalPrice,
			sig.OrderBookImbalance, sig.BidDepth, sig.AskDepth, sig.VWAP,
			sig.VWAPSlope, sig.RSI, sig.Spread,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range signals {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert signal batch: %w", err)
		}
	}
	return nil
}

// ListByMarket returns one market's signals in ascending timestamp order.
func (s *SignalStore) ListByMarket(ctx context.Context, market string, opts domain.ListOpts) ([]domain.BacktestSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM backtest_signals WHERE market = $1`
	args := []any{market}
	query, args = applyTimeWindow(query, args, opts)
	query += " ORDER BY ts ASC"
	query, args = applyLimitOffset(query, args, opts)

	return s.list(ctx, query, args)
}

// ListRange returns all signals in ascending timestamp order, optionally
// bounded by a time window.
func (s *SignalStore) ListRange(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM backtest_signals WHERE TRUE`
	var args []any
	query, args = applyTimeWindow(query, args, opts)
	query += " ORDER BY ts ASC"
	query, args = applyLimitOffset(query, args, opts)

	return s.list(ctx, query, args)
}

// Count returns the total number of stored signals.
func (s *SignalStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM backtest_signals").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count signals: %w", err)
	}
	return n, nil
}

func (s *SignalStore) list(ctx context.Context, query string, args []any) ([]domain.BacktestSignal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.BacktestSignal
	for rows.Next() {
		var (
			sig     domain.BacktestSignal
			ts      time.Time
			effEdge *float64
		)
		err := rows.Scan(
			&ts, &sig.Market, &sig.Side, &sig.Phase, &sig.Regime,
			&sig.Edge, &effEdge, &sig.ModelUp, &sig.ModelDown,
			&sig.MarketUp, &sig.MarketDown, &sig.Confidence, &sig.Volatility15m,
			&sig.PriceToBeat, &sig.FinalPrice, &sig.OrderBookImbalance,
			&sig.BidDepth, &sig.AskDepth, &sig.VWAP, &sig.VWAPSlope,
			&sig.RSI, &sig.Spread,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Timestamp = ts.UTC().Format(time.RFC3339)
		sig.EffectiveEdge = denullNonFinite(effEdge)
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list signals rows: %w", err)
	}
	return signals, nil
}

// applyTimeWindow appends Since/Until predicates to a query that already has
// a WHERE clause.
func applyTimeWindow(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND ts < $%d", len(args))
	}
	return query, args
}

// nullifyNonFinite maps a NaN/Inf effective edge to SQL NULL; the column is
// DOUBLE PRECISION and cannot hold non-finite values portably.
func nullifyNonFinite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// denullNonFinite is the inverse: a NULL effective edge comes back as NaN,
// which the engine treats as "fall back to the raw edge".
func denullNonFinite(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func applyLimitOffset(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
