package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/quantfold/updownbot/internal/domain"
)

// WriteFile writes signals to path in the 22-column CSV schema, header
// included. Any existing file is truncated.
func WriteFile(path string, signals []domain.BacktestSignal) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvstore: create %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, signals); err != nil {
		return fmt.Errorf("csvstore: write %s: %w", path, err)
	}
	return nil
}

// Write encodes signals to dst, header first.
func Write(dst io.Writer, signals []domain.BacktestSignal) error {
	cw := csv.NewWriter(dst)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, sig := range signals {
		if err := cw.Write(formatRecord(sig)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatRecord(sig domain.BacktestSignal) []string {
	effEdge := ""
	if !math.IsNaN(sig.EffectiveEdge) && !math.IsInf(sig.EffectiveEdge, 0) {
		effEdge = formatFloat(sig.EffectiveEdge)
	}
	return []string{
		sig.Timestamp,
		sig.Market,
		string(sig.Side),
		string(sig.Phase),
		string(sig.Regime),
		formatFloat(sig.Edge),
		effEdge,
		formatFloat(sig.ModelUp),
		formatFloat(sig.ModelDown),
		formatFloat(sig.MarketUp),
		formatFloat(sig.MarketDown),
		formatFloat(sig.Confidence),
		formatFloat(sig.Volatility15m),
		formatFloat(sig.PriceToBeat),
		formatOptional(sig.FinalPrice),
		formatOptional(sig.OrderBookImbalance),
		formatOptional(sig.BidDepth),
		formatOptional(sig.AskDepth),
		formatOptional(sig.VWAP),
		formatOptional(sig.VWAPSlope),
		formatOptional(sig.RSI),
		formatOptional(sig.Spread),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}
