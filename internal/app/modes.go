package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/updownbot/internal/backtest"
	"github.com/quantfold/updownbot/internal/cache/redis"
	"github.com/quantfold/updownbot/internal/domain"
	"github.com/quantfold/updownbot/internal/store/csvstore"
)

// BacktestMode runs a single backtest of the configured strategy over the
// loaded signal history. Results are served from the Redis cache when an
// identical config/signal-window pair was evaluated before.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backtest mode")

	signals, err := a.loadSignals(ctx, deps)
	if err != nil {
		return err
	}

	cfg := a.cfg.Strategy.ToDomain()
	tradeSize := a.cfg.Backtest.TradeSize

	var result domain.BacktestResult
	cacheKey := redis.RunKey(cfg, tradeSize, signals)
	cached := false

	if deps.ResultCache != nil {
		res, ok, err := deps.ResultCache.Get(ctx, cacheKey)
		if err != nil {
			a.logger.WarnContext(ctx, "result cache lookup failed",
				slog.String("error", err.Error()))
		} else if ok {
			result = res
			cached = true
			a.logger.InfoContext(ctx, "serving cached backtest result",
				slog.String("key", cacheKey))
		}
	}

	if !cached {
		engine := backtest.NewEngine(cfg, tradeSize, a.logger)
		result = engine.Run(signals)
		if deps.ResultCache != nil {
			if err := deps.ResultCache.Set(ctx, cacheKey, result); err != nil {
				a.logger.WarnContext(ctx, "result cache store failed",
					slog.String("error", err.Error()))
			}
		}
	}

	a.logger.InfoContext(ctx, "backtest complete",
		slog.Int("total_signals", result.TotalSignals),
		slog.Int("trades", result.TradesEntered),
		slog.Float64("win_rate", result.WinRate),
		slog.Float64("total_pnl", result.TotalPnL),
		slog.Float64("sharpe", result.SharpeRatio),
	)

	return a.finishRun(ctx, deps, "backtest", cfg, result)
}

// OptimizeMode sweeps the configured parameter grid and reports the best
// candidate by the configured sort metric. When the result cache is wired,
// each combination is keyed the same way as a standalone backtest, so a
// repeated sweep over an unchanged signal window reuses prior engine runs.
func (a *App) OptimizeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting optimize mode")

	signals, err := a.loadSignals(ctx, deps)
	if err != nil {
		return err
	}

	base := a.cfg.Strategy.ToDomain()
	tradeSize := a.cfg.Backtest.TradeSize
	opts := backtest.OptimizeOptions{
		SortBy:    backtest.SortMetric(a.cfg.Backtest.SortBy),
		Workers:   a.cfg.Backtest.Workers,
		TradeSize: tradeSize,
	}
	if deps.ResultCache != nil {
		opts.Cache = deps.ResultCache
		opts.CacheKey = func(cfg domain.StrategyConfig) string {
			return redis.RunKey(cfg, tradeSize, signals)
		}
	}

	result, err := backtest.Optimize(ctx, base, a.cfg.Grid, signals, opts, a.logger)
	if err != nil {
		return fmt.Errorf("app: optimize: %w", err)
	}

	a.logger.InfoContext(ctx, "optimization complete",
		slog.Int("combinations", result.TotalCombinations),
		slog.String("sorted_by", string(result.SortedBy)),
		slog.Float64("best_win_rate", result.Best.Result.WinRate),
		slog.Float64("best_sharpe", result.Best.Result.SharpeRatio),
	)

	return a.finishRun(ctx, deps, "optimize", result.Best.Config, result)
}

// CrossValidateMode runs walk-forward cross-validation of the configured
// strategy and reports per-fold results plus the overfitting verdict.
func (a *App) CrossValidateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting cross-validation mode")

	signals, err := a.loadSignals(ctx, deps)
	if err != nil {
		return err
	}

	cfg := a.cfg.Strategy.ToDomain()
	result := backtest.CrossValidate(cfg, signals, a.cfg.Backtest.Folds, a.cfg.Backtest.TradeSize, a.logger)

	a.logger.InfoContext(ctx, "cross-validation complete",
		slog.Int("folds", result.FoldCount),
		slog.Float64("avg_win_rate", result.AvgWinRate),
		slog.Float64("avg_sharpe", result.AvgSharpe),
		slog.Bool("overfit", result.Overfit),
	)

	return a.finishRun(ctx, deps, "crossval", cfg, result)
}

// ABTestMode runs the configured strategy pair over the same signal history
// and reports deltas plus chi-squared significance.
func (a *App) ABTestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting A/B test mode")

	signals, err := a.loadSignals(ctx, deps)
	if err != nil {
		return err
	}

	cfgA := a.cfg.Strategy.ToDomain()
	cfgB := a.cfg.StrategyB.ToDomain()
	result := backtest.RunABTest(cfgA, cfgB, signals, a.cfg.Backtest.TradeSize, a.logger)

	a.logger.InfoContext(ctx, "A/B test complete",
		slog.Float64("win_rate_delta", result.WinRateDelta),
		slog.Float64("pnl_delta", result.PnLDelta),
		slog.Float64("chi_squared", result.ChiSquared),
		slog.Float64("p_value", result.PValue),
		slog.Bool("significant", result.IsSignificant),
	)

	return a.finishRun(ctx, deps, "abtest", cfgA, result)
}

// loadSignals reads the signal history from the configured source: a CSV
// export when signals_csv is set, otherwise Postgres. The optional market
// filter narrows the Postgres query; for CSV input it filters in memory.
func (a *App) loadSignals(ctx context.Context, deps *Dependencies) ([]domain.BacktestSignal, error) {
	var (
		signals []domain.BacktestSignal
		err     error
	)

	switch {
	case a.cfg.SignalsCSV != "":
		reader := csvstore.NewReader(a.logger)
		signals, err = reader.ReadFile(a.cfg.SignalsCSV)
		if err != nil {
			return nil, fmt.Errorf("app: read signals csv: %w", err)
		}
		if a.cfg.Market != "" {
			filtered := signals[:0]
			for _, s := range signals {
				if s.Market == a.cfg.Market {
					filtered = append(filtered, s)
				}
			}
			signals = filtered
		}
	case deps.SignalStore != nil:
		if a.cfg.Market != "" {
			signals, err = deps.SignalStore.ListByMarket(ctx, a.cfg.Market, domain.ListOpts{})
		} else {
			signals, err = deps.SignalStore.ListRange(ctx, domain.ListOpts{})
		}
		if err != nil {
			return nil, fmt.Errorf("app: load signals: %w", err)
		}
	default:
		return nil, fmt.Errorf("app: no signal source configured: %w", domain.ErrNoSignals)
	}

	if len(signals) == 0 {
		return nil, fmt.Errorf("app: signal history is empty: %w", domain.ErrNoSignals)
	}

	a.logger.InfoContext(ctx, "loaded signal history",
		slog.Int("count", len(signals)),
		slog.String("market", a.cfg.Market),
	)
	return signals, nil
}

// finishRun serializes the report, prints it to stdout, and persists the run
// record to whichever backends are wired (Postgres, S3). Persistence failures
// are logged, not fatal: the report has already been delivered.
func (a *App) finishRun(ctx context.Context, deps *Dependencies, mode string, cfg domain.StrategyConfig, report any) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("app: marshal %s report: %w", mode, err)
	}

	fmt.Fprintln(os.Stdout, string(payload))

	run := domain.RunRecord{
		ID:        uuid.NewString(),
		Mode:      mode,
		Config:    cfg,
		Report:    json.RawMessage(payload),
		CreatedAt: time.Now().UTC(),
	}

	if deps.RunStore != nil {
		if err := deps.RunStore.Insert(ctx, run); err != nil {
			a.logger.WarnContext(ctx, "persist run record failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()))
		}
	}

	if deps.Archiver != nil {
		if key, err := deps.Archiver.ArchiveRun(ctx, run); err != nil {
			a.logger.WarnContext(ctx, "archive run report failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "run report archived",
				slog.String("run_id", run.ID),
				slog.String("key", key))
		}
	}

	return nil
}
