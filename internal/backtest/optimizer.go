package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/quantfold/updownbot/internal/domain"
)

// SortMetric selects which result field the optimizer ranks candidates by.
type SortMetric string

const (
	SortBySharpe   SortMetric = "sharpe_ratio"
	SortByWinRate  SortMetric = "win_rate"
	SortByTotalPnL SortMetric = "total_pnl"
)

// Grid supplies candidate values per tunable strategy field. Any empty
// dimension defaults to the base config's current value, so a zero Grid
// degenerates to a single run of the base config.
type Grid struct {
	EdgeEarly []float64 `toml:"edge_early"`
	EdgeMid   []float64 `toml:"edge_mid"`
	EdgeLate  []float64 `toml:"edge_late"`

	MinProbEarly []float64 `toml:"min_prob_early"`
	MinProbMid   []float64 `toml:"min_prob_mid"`
	MinProbLate  []float64 `toml:"min_prob_late"`

	ChopMult         []float64 `toml:"chop_mult"`
	RangeMult        []float64 `toml:"range_mult"`
	TrendAlignedMult []float64 `toml:"trend_aligned_mult"`
	TrendOpposedMult []float64 `toml:"trend_opposed_mult"`
}

// Candidate pairs one grid combination with its engine result.
type Candidate struct {
	Config domain.StrategyConfig `json:"config"`
	Result domain.BacktestResult `json:"result"`
}

// OptimizationResult is the outcome of a full grid sweep. AllResults holds
// every combination, sorted descending by the requested metric; Best is its
// first element.
type OptimizationResult struct {
	Best              Candidate   `json:"best"`
	AllResults        []Candidate `json:"all_results"`
	TotalCombinations int         `json:"total_combinations"`
	SortedBy          SortMetric  `json:"sorted_by"`
}

// OptimizeOptions tunes a grid sweep. Zero values take defaults: SortBy
// SortBySharpe, Workers runtime.NumCPU, TradeSize DefaultTradeSize.
//
// Cache, when set together with CacheKey, is consulted before each
// combination's engine run and updated afterwards, so a repeated sweep over
// the same signal window reuses prior results. Cache errors are logged and
// the combination is evaluated normally.
type OptimizeOptions struct {
	SortBy    SortMetric
	Workers   int
	TradeSize float64

	Cache    domain.ResultCache
	CacheKey func(domain.StrategyConfig) string
}

// gridSpace is the mixed-radix index space over the grid's ten dimensions.
// Dimension order is fixed so combination indices are stable across runs.
type gridSpace struct {
	dims [10][]float64
}

func newGridSpace(base domain.StrategyConfig, grid Grid) gridSpace {
	orDefault := func(vals []float64, fallback float64) []float64 {
		if len(vals) == 0 {
			return []float64{fallback}
		}
		return vals
	}
	return gridSpace{dims: [10][]float64{
		orDefault(grid.EdgeEarly, base.EdgeThresholds.Early),
		orDefault(grid.EdgeMid, base.EdgeThresholds.Mid),
		orDefault(grid.EdgeLate, base.EdgeThresholds.Late),
		orDefault(grid.MinProbEarly, base.MinProbability.Early),
		orDefault(grid.MinProbMid, base.MinProbability.Mid),
		orDefault(grid.MinProbLate, base.MinProbability.Late),
		orDefault(grid.ChopMult, base.RegimeMultipliers.Chop),
		orDefault(grid.RangeMult, base.RegimeMultipliers.Range),
		orDefault(grid.TrendAlignedMult, base.RegimeMultipliers.TrendAligned),
		orDefault(grid.TrendOpposedMult, base.RegimeMultipliers.TrendOpposed),
	}}
}

// size returns the cartesian-product cardinality of the space.
func (g gridSpace) size() int {
	total := 1
	for _, dim := range g.dims {
		total *= len(dim)
	}
	return total
}

// configAt decodes combination index n as a mixed-radix counter over the ten
// dimensions and applies the resulting values to a clone of the base config.
func (g gridSpace) configAt(base domain.StrategyConfig, n int) domain.StrategyConfig {
	var vals [10]float64
	for i := len(g.dims) - 1; i >= 0; i-- {
		radix := len(g.dims[i])
		vals[i] = g.dims[i][n%radix]
		n /= radix
	}

	cfg := base.Clone()
	cfg.EdgeThresholds = domain.PhaseValues{Early: vals[0], Mid: vals[1], Late: vals[2]}
	cfg.MinProbability = domain.PhaseValues{Early: vals[3], Mid: vals[4], Late: vals[5]}
	cfg.RegimeMultipliers = domain.RegimeMultipliers{
		Chop:         vals[6],
		Range:        vals[7],
		TrendAligned: vals[8],
		TrendOpposed: vals[9],
	}
	return cfg
}

// Optimize runs the engine once per grid combination and returns every
// candidate ranked by the requested metric. Combinations are independent and
// run on a bounded worker pool; results land at their combination index, so
// the final ordering does not depend on completion order.
func Optimize(ctx context.Context, base domain.StrategyConfig, grid Grid, signals []domain.BacktestSignal, opts OptimizeOptions, logger *slog.Logger) (OptimizationResult, error) {
	if opts.SortBy == "" {
		opts.SortBy = SortBySharpe
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "optimizer"))

	engine := NewEngine(base, opts.TradeSize, logger)
	space := newGridSpace(base, grid)
	total := space.size()

	if total <= 0 {
		// Cannot happen after per-dimension defaulting, but an empty space
		// must still degrade to a plain run of the base config.
		res := engine.Run(signals)
		only := Candidate{Config: base.Clone(), Result: res}
		return OptimizationResult{
			Best:              only,
			AllResults:        []Candidate{only},
			TotalCombinations: 1,
			SortedBy:          opts.SortBy,
		}, nil
	}

	logger.Info("starting grid sweep",
		slog.Int("combinations", total),
		slog.Int("signals", len(signals)),
		slog.Int("workers", opts.Workers),
	)

	candidates := make([]Candidate, total)
	useCache := opts.Cache != nil && opts.CacheKey != nil

	var cacheHits atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cfg := space.configAt(base, i)

			if useCache {
				key := opts.CacheKey(cfg)
				if res, ok, err := opts.Cache.Get(gctx, key); err != nil {
					logger.Debug("result cache lookup failed",
						slog.String("key", key),
						slog.String("error", err.Error()))
				} else if ok {
					cacheHits.Add(1)
					candidates[i] = Candidate{Config: cfg, Result: res}
					return nil
				}

				res := engine.RunConfig(signals, cfg)
				if err := opts.Cache.Set(gctx, key, res); err != nil {
					logger.Debug("result cache store failed",
						slog.String("key", key),
						slog.String("error", err.Error()))
				}
				candidates[i] = Candidate{Config: cfg, Result: res}
				return nil
			}

			candidates[i] = Candidate{
				Config: cfg,
				Result: engine.RunConfig(signals, cfg),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return OptimizationResult{}, fmt.Errorf("optimize: grid sweep: %w", err)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return metricOf(candidates[a].Result, opts.SortBy) > metricOf(candidates[b].Result, opts.SortBy)
	})

	logger.Info("grid sweep complete",
		slog.Int("combinations", total),
		slog.Int64("cache_hits", cacheHits.Load()),
		slog.Float64("best_metric", metricOf(candidates[0].Result, opts.SortBy)),
	)

	return OptimizationResult{
		Best:              candidates[0],
		AllResults:        candidates,
		TotalCombinations: total,
		SortedBy:          opts.SortBy,
	}, nil
}

func metricOf(res domain.BacktestResult, by SortMetric) float64 {
	switch by {
	case SortByWinRate:
		return res.WinRate
	case SortByTotalPnL:
		return res.TotalPnL
	default:
		return res.SharpeRatio
	}
}
