package backtest

import (
	"log/slog"
	"math"

	"github.com/quantfold/updownbot/internal/domain"
	"github.com/quantfold/updownbot/internal/stats"
)

// significanceLevel is the p-value threshold below which an A/B divergence is
// reported as significant.
const significanceLevel = 0.05

// ABTestResult compares two strategy configs evaluated over the same signal
// list. Deltas are A minus B.
type ABTestResult struct {
	ConfigA domain.StrategyConfig `json:"config_a"`
	ConfigB domain.StrategyConfig `json:"config_b"`

	ResultA domain.BacktestResult `json:"result_a"`
	ResultB domain.BacktestResult `json:"result_b"`

	WinRateDelta float64 `json:"win_rate_delta"`
	PnLDelta     float64 `json:"pnl_delta"`
	SharpeDelta  float64 `json:"sharpe_delta"`

	ChiSquared    float64 `json:"chi_squared"`
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`
}

// RunABTest evaluates both configs over the same signals, builds a 2x2
// strategy-by-outcome contingency table from the win/loss counts, and tests
// the divergence with a chi-squared statistic at one degree of freedom.
func RunABTest(cfgA, cfgB domain.StrategyConfig, signals []domain.BacktestSignal, tradeSize float64, logger *slog.Logger) ABTestResult {
	engine := NewEngine(cfgA, tradeSize, logger)

	resA := engine.Run(signals)
	resB := engine.RunConfig(signals, cfgB)

	chi := chiSquared2x2(resA.Wins, resA.Losses, resB.Wins, resB.Losses)
	p := chiSquaredPValue(chi)

	return ABTestResult{
		ConfigA:       cfgA.Clone(),
		ConfigB:       cfgB.Clone(),
		ResultA:       resA,
		ResultB:       resB,
		WinRateDelta:  resA.WinRate - resB.WinRate,
		PnLDelta:      resA.TotalPnL - resB.TotalPnL,
		SharpeDelta:   resA.SharpeRatio - resB.SharpeRatio,
		ChiSquared:    chi,
		PValue:        p,
		IsSignificant: p < significanceLevel,
	}
}

// chiSquared2x2 computes the standard (Yates-free) chi-squared statistic for
// a 2x2 contingency table. Cells whose expected count is zero are skipped.
func chiSquared2x2(winsA, lossesA, winsB, lossesB int) float64 {
	observed := [2][2]float64{
		{float64(winsA), float64(lossesA)},
		{float64(winsB), float64(lossesB)},
	}

	rowTotals := [2]float64{observed[0][0] + observed[0][1], observed[1][0] + observed[1][1]}
	colTotals := [2]float64{observed[0][0] + observed[1][0], observed[0][1] + observed[1][1]}
	grand := rowTotals[0] + rowTotals[1]
	if grand == 0 {
		return 0
	}

	var chi float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			expected := rowTotals[i] * colTotals[j] / grand
			if expected == 0 {
				continue
			}
			d := observed[i][j] - expected
			chi += d * d / expected
		}
	}
	return chi
}

// chiSquaredPValue converts a chi-squared statistic at one degree of freedom
// to a p-value via p = 1 - erf(sqrt(chi/2)). Non-positive or non-finite
// statistics yield p = 1 (no evidence of divergence).
func chiSquaredPValue(chi float64) float64 {
	if chi <= 0 || !stats.IsFinite(chi) {
		return 1
	}
	return 1 - stats.Erf(math.Sqrt(chi/2))
}
