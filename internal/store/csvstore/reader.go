// Package csvstore reads and writes historical backtest signals in the
// flat-file fallback format: a fixed 22-column CSV schema, one signal per
// row. It exists for environments without a PostgreSQL instance and for
// exporting scraped signals to offline analysis.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/quantfold/updownbot/internal/domain"
)

// columns is the fixed CSV schema. Column order is load-bearing: it matches
// both the writer below and the backtest_signals table.
var columns = []string{
	"timestamp", "market", "side", "phase", "regime",
	"edge", "effective_edge", "model_up", "model_down",
	"market_up", "market_down", "confidence", "volatility_15m",
	"price_to_beat", "final_price", "ob_imbalance", "bid_depth",
	"ask_depth", "vwap", "vwap_slope", "rsi", "spread",
}

// Reader decodes signals from the 22-column CSV schema. Malformed rows are
// skipped and counted rather than failing the whole file; one bad record must
// never abort an analysis run.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger.With(slog.String("component", "csvstore"))}
}

// ReadFile reads every signal from the CSV file at path.
func (r *Reader) ReadFile(path string) ([]domain.BacktestSignal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvstore: open %s: %w", path, err)
	}
	defer f.Close()

	signals, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("csvstore: read %s: %w", path, err)
	}
	return signals, nil
}

// Read decodes signals from src. A leading header row is detected by its
// first cell and skipped.
func (r *Reader) Read(src io.Reader) ([]domain.BacktestSignal, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1 // row length is validated here, with skips

	var (
		signals []domain.BacktestSignal
		skipped int
		line    int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		line++

		if line == 1 && len(record) > 0 && record[0] == columns[0] {
			continue
		}
		if len(record) != len(columns) {
			skipped++
			continue
		}

		sig, ok := parseRecord(record)
		if !ok {
			skipped++
			continue
		}
		signals = append(signals, sig)
	}

	if skipped > 0 {
		r.logger.Warn("skipped malformed csv rows",
			slog.Int("skipped", skipped),
			slog.Int("parsed", len(signals)),
		)
	}
	return signals, nil
}

// parseRecord decodes one row. Required numeric cells must parse; optional
// cells may be empty. An empty effective_edge becomes NaN, which the engine
// treats as "fall back to the raw edge".
func parseRecord(rec []string) (domain.BacktestSignal, bool) {
	sig := domain.BacktestSignal{
		Timestamp: rec[0],
		Market:    rec[1],
		Side:      domain.Side(rec[2]),
		Phase:     domain.Phase(rec[3]),
		Regime:    domain.Regime(rec[4]),
	}
	if sig.Timestamp == "" || sig.Market == "" {
		return domain.BacktestSignal{}, false
	}

	required := []struct {
		dst *float64
		idx int
	}{
		{&sig.Edge, 5},
		{&sig.ModelUp, 7},
		{&sig.ModelDown, 8},
		{&sig.MarketUp, 9},
		{&sig.MarketDown, 10},
		{&sig.Confidence, 11},
		{&sig.Volatility15m, 12},
		{&sig.PriceToBeat, 13},
	}
	for _, fld := range required {
		v, err := strconv.ParseFloat(rec[fld.idx], 64)
		if err != nil {
			return domain.BacktestSignal{}, false
		}
		*fld.dst = v
	}

	sig.EffectiveEdge = math.NaN()
	if rec[6] != "" {
		if v, err := strconv.ParseFloat(rec[6], 64); err == nil {
			sig.EffectiveEdge = v
		}
	}

	sig.FinalPrice = parseOptional(rec[14])
	sig.OrderBookImbalance = parseOptional(rec[15])
	sig.BidDepth = parseOptional(rec[16])
	sig.AskDepth = parseOptional(rec[17])
	sig.VWAP = parseOptional(rec[18])
	sig.VWAPSlope = parseOptional(rec[19])
	sig.RSI = parseOptional(rec[20])
	sig.Spread = parseOptional(rec[21])

	return sig, true
}

func parseOptional(cell string) *float64 {
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}
