// Package backtest implements the strategy evaluation kernel for 15-minute
// up/down prediction markets, plus the procedures built on it: A/B testing,
// grid-search parameter optimization, and walk-forward cross-validation.
//
// Everything in this package is deterministic and side-effect free: an engine
// run is a single pass over a chronologically ordered signal slice, and the
// slice is only ever read.
package backtest

import (
	"log/slog"
	"math"

	"github.com/quantfold/updownbot/internal/domain"
	"github.com/quantfold/updownbot/internal/stats"
)

// DefaultTradeSize is the fixed per-trade stake in USD used when the caller
// does not supply one.
const DefaultTradeSize = 5.0

// tradingDaysPerYear annualizes the Sharpe ratio computed from per-day
// returns.
const tradingDaysPerYear = 252.0

// Engine evaluates a strategy configuration against historical signals. The
// config is cloned at construction so a run can never mutate caller state.
type Engine struct {
	cfg       domain.StrategyConfig
	tradeSize float64
	logger    *slog.Logger
}

// NewEngine creates an Engine for the given strategy. A non-positive
// tradeSize falls back to DefaultTradeSize.
func NewEngine(cfg domain.StrategyConfig, tradeSize float64, logger *slog.Logger) *Engine {
	if tradeSize <= 0 || !stats.IsFinite(tradeSize) {
		tradeSize = DefaultTradeSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg.Clone(),
		tradeSize: tradeSize,
		logger:    logger.With(slog.String("component", "backtest_engine")),
	}
}

// TradeSize returns the fixed per-trade stake the engine uses.
func (e *Engine) TradeSize() float64 { return e.tradeSize }

// Run evaluates the engine's own strategy config over the signal slice.
func (e *Engine) Run(signals []domain.BacktestSignal) domain.BacktestResult {
	return e.RunConfig(signals, e.cfg)
}

// RunConfig evaluates an explicit strategy config over the signal slice,
// sharing the engine's trade size. The override config is cloned before use.
// This is the entry point the optimizer uses to share one engine across many
// candidate configs.
func (e *Engine) RunConfig(signals []domain.BacktestSignal, cfg domain.StrategyConfig) domain.BacktestResult {
	cfg = cfg.Clone()

	res := domain.BacktestResult{
		TotalSignals: len(signals),
		ByMarket:     make(map[string]domain.BucketStats),
		ByRegime:     make(map[string]domain.BucketStats),
		ByPhase:      make(map[string]domain.BucketStats),
	}

	var (
		grossProfit float64
		grossLoss   float64 // accumulated as a positive magnitude
		equity      float64
		peakEquity  float64
		dailyPnL    = make(map[string]float64)
		dayOrder    []string
	)

	for _, sig := range signals {
		// Unsettled or malformed windows are counted in TotalSignals only.
		if sig.FinalPrice == nil || !stats.IsFinite(*sig.FinalPrice) {
			continue
		}
		if cfg.SkipsMarket(sig.Market) {
			continue
		}

		threshold := cfg.EdgeThresholds.For(sig.Phase) * cfg.RegimeMultiplier(sig.Regime, sig.Side)

		modelProb := sig.ModelProb()
		buyPrice := sig.BuyPrice()

		// A non-finite effective edge (upstream could not regime-adjust)
		// falls back to the raw edge rather than rejecting the signal.
		edge := sig.EffectiveEdge
		if !stats.IsFinite(edge) {
			edge = sig.Edge
		}

		if !stats.IsFinite(modelProb) || !stats.IsFinite(buyPrice) || !stats.IsFinite(edge) {
			continue
		}
		if edge < threshold {
			continue
		}
		if modelProb < cfg.MinProbability.For(sig.Phase) {
			continue
		}
		if sig.Confidence < cfg.MinConfidence {
			continue
		}

		// Enter the trade. Settlement ties go to DOWN: an UP position needs
		// the final price strictly above the price to beat.
		var won bool
		if sig.Side == domain.SideDown {
			won = *sig.FinalPrice <= sig.PriceToBeat
		} else {
			won = *sig.FinalPrice > sig.PriceToBeat
		}

		var pnl float64
		if won {
			pnl = e.tradeSize * (1 - buyPrice)
		} else {
			pnl = -e.tradeSize * buyPrice
		}

		res.TradesEntered++
		if won {
			res.Wins++
			grossProfit += pnl
		} else {
			res.Losses++
			grossLoss += -pnl
		}
		res.TotalPnL += pnl

		equity += pnl
		if equity > peakEquity {
			peakEquity = equity
		}
		if dd := peakEquity - equity; dd > res.MaxDrawdown {
			res.MaxDrawdown = dd
		}

		bump(res.ByMarket, sig.Market, won, pnl)
		bump(res.ByRegime, string(sig.Regime), won, pnl)
		bump(res.ByPhase, string(sig.Phase), won, pnl)

		day := sig.Day()
		if _, ok := dailyPnL[day]; !ok {
			dayOrder = append(dayOrder, day)
		}
		dailyPnL[day] += pnl
	}

	if res.TradesEntered > 0 {
		res.WinRate = float64(res.Wins) / float64(res.TradesEntered)
		res.AvgPnL = res.TotalPnL / float64(res.TradesEntered)
	}

	res.SharpeRatio = sharpeFromDaily(dailyPnL, dayOrder, e.tradeSize)
	res.ProfitFactor = profitFactor(grossProfit, grossLoss)
	finalizeBuckets(res.ByMarket)
	finalizeBuckets(res.ByRegime)
	finalizeBuckets(res.ByPhase)

	return res
}

// sharpeFromDaily computes the annualized Sharpe-like ratio over per-day
// returns, where a day's return is its aggregated PnL divided by the trade
// size. Zero when the return series has no spread.
func sharpeFromDaily(dailyPnL map[string]float64, dayOrder []string, tradeSize float64) float64 {
	if len(dayOrder) == 0 {
		return 0
	}
	returns := make([]float64, 0, len(dayOrder))
	for _, day := range dayOrder {
		returns = append(returns, dailyPnL[day]/tradeSize)
	}
	sd := stats.StdDev(returns)
	if sd == 0 {
		return 0
	}
	return stats.Mean(returns) / sd * math.Sqrt(tradingDaysPerYear)
}

// profitFactor is grossProfit / grossLoss with the conventional edge cases:
// +Inf when there is profit but no loss, 0 when there is neither.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss <= 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}

func bump(m map[string]domain.BucketStats, key string, won bool, pnl float64) {
	b := m[key]
	b.Trades++
	if won {
		b.Wins++
	}
	b.PnL += pnl
	m[key] = b
}

func finalizeBuckets(m map[string]domain.BucketStats) {
	for k, b := range m {
		if b.Trades > 0 {
			b.WinRate = float64(b.Wins) / float64(b.Trades)
		}
		m[k] = b
	}
}
