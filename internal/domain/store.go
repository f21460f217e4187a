package domain

import (
	"context"
	"encoding/json"
	"time"
)

// ListOpts provides pagination and time-window filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SignalStore persists historical backtest signals. Implementations must
// return signals in ascending timestamp order; the engine and the
// cross-validator depend on chronological input.
type SignalStore interface {
	InsertBatch(ctx context.Context, signals []BacktestSignal) error
	ListByMarket(ctx context.Context, market string, opts ListOpts) ([]BacktestSignal, error)
	ListRange(ctx context.Context, opts ListOpts) ([]BacktestSignal, error)
	Count(ctx context.Context) (int64, error)
}

// RunRecord is one persisted evaluation run: a backtest, optimization sweep,
// cross-validation, or A/B test, together with the strategy config it used
// and the full report blob.
type RunRecord struct {
	ID        string          `json:"id"`
	Mode      string          `json:"mode"`
	Config    StrategyConfig  `json:"config"`
	Report    json.RawMessage `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunStore persists evaluation run reports.
type RunStore interface {
	Insert(ctx context.Context, run RunRecord) error
	GetByID(ctx context.Context, id string) (RunRecord, error)
	ListRecent(ctx context.Context, limit int) ([]RunRecord, error)
}

// ResultCache caches engine results keyed by a config/signal-window hash so
// repeated runs over identical inputs skip the engine entirely.
type ResultCache interface {
	Get(ctx context.Context, key string) (BacktestResult, bool, error)
	Set(ctx context.Context, key string, res BacktestResult) error
}

// BlobWriter uploads report payloads to blob storage. Implementations choose
// the upload strategy (single-shot or multipart) from the payload size.
type BlobWriter interface {
	PutReport(ctx context.Context, path string, payload []byte) error
}

// ReportArchiver uploads a run report to long-term storage and returns the
// object path it was written to.
type ReportArchiver interface {
	ArchiveRun(ctx context.Context, run RunRecord) (string, error)
}
