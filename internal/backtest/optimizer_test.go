package backtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/updownbot/internal/domain"
)

func TestOptimizeEmptyGridRunsBaseConfig(t *testing.T) {
	base := permissiveConfig()
	signals := []domain.BacktestSignal{
		upSignal("2026-08-01T10:00:00Z", 0.46, 100, 101),
	}

	res, err := Optimize(context.Background(), base, Grid{}, signals, OptimizeOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalCombinations)
	require.Len(t, res.AllResults, 1)
	assert.Equal(t, 1, res.Best.Result.TradesEntered)
	assert.Equal(t, SortBySharpe, res.SortedBy)
}

func TestOptimizeCombinationCount(t *testing.T) {
	base := permissiveConfig()
	grid := Grid{
		EdgeMid:  []float64{0, 0.04, 0.08},
		ChopMult: []float64{1.0, 1.5},
	}
	signals := []domain.BacktestSignal{
		upSignal("2026-08-01T10:00:00Z", 0.46, 100, 101),
	}

	res, err := Optimize(context.Background(), base, grid, signals, OptimizeOptions{Workers: 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, res.TotalCombinations)
	assert.Len(t, res.AllResults, 6)
}

func TestOptimizeRanksByMetric(t *testing.T) {
	base := permissiveConfig()
	// One threshold admits the winning signal, one rejects everything.
	grid := Grid{EdgeMid: []float64{0, 0.99}}
	signals := []domain.BacktestSignal{
		upSignal("2026-08-01T10:00:00Z", 0.46, 100, 101),
		upSignal("2026-08-02T10:00:00Z", 0.46, 100, 101),
	}

	res, err := Optimize(context.Background(), base, grid, signals, OptimizeOptions{SortBy: SortByTotalPnL}, nil)
	require.NoError(t, err)

	require.Equal(t, 2, res.TotalCombinations)
	assert.Equal(t, SortByTotalPnL, res.SortedBy)
	assert.Equal(t, 2, res.Best.Result.TradesEntered)
	assert.Equal(t, 0.0, res.Best.Config.EdgeThresholds.Mid)

	// Descending by the metric.
	assert.GreaterOrEqual(t,
		res.AllResults[0].Result.TotalPnL,
		res.AllResults[1].Result.TotalPnL,
	)
}

// memoryResultCache is an in-memory domain.ResultCache for sweep reuse tests.
type memoryResultCache struct {
	mu      sync.Mutex
	results map[string]domain.BacktestResult
	hits    int
	sets    int
}

func newMemoryResultCache() *memoryResultCache {
	return &memoryResultCache{results: make(map[string]domain.BacktestResult)}
}

func (c *memoryResultCache) Get(_ context.Context, key string) (domain.BacktestResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.results[key]
	if ok {
		c.hits++
	}
	return res, ok, nil
}

func (c *memoryResultCache) Set(_ context.Context, key string, res domain.BacktestResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = res
	c.sets++
	return nil
}

func TestOptimizeReusesCachedResults(t *testing.T) {
	base := permissiveConfig()
	grid := Grid{EdgeMid: []float64{0, 0.99}}
	signals := []domain.BacktestSignal{
		upSignal("2026-08-01T10:00:00Z", 0.46, 100, 101),
	}

	cache := newMemoryResultCache()
	opts := OptimizeOptions{
		Workers: 1,
		Cache:   cache,
		CacheKey: func(cfg domain.StrategyConfig) string {
			return fmt.Sprintf("%v", cfg.EdgeThresholds)
		},
	}

	first, err := Optimize(context.Background(), base, grid, signals, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, 2, cache.sets)

	second, err := Optimize(context.Background(), base, grid, signals, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.hits)
	assert.Equal(t, 2, cache.sets)
	assert.Equal(t, first.Best.Result, second.Best.Result)
	assert.Equal(t, first.AllResults, second.AllResults)
}

func TestOptimizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid := Grid{EdgeMid: []float64{0, 0.01, 0.02, 0.03}}
	_, err := Optimize(ctx, permissiveConfig(), grid, nil, OptimizeOptions{Workers: 1}, nil)
	assert.Error(t, err)
}

func TestGridSpaceConfigAt(t *testing.T) {
	base := permissiveConfig()
	base.EdgeThresholds = domain.PhaseValues{Early: 0.05, Mid: 0.04, Late: 0.03}

	space := newGridSpace(base, Grid{
		EdgeMid:  []float64{0.01, 0.02},
		ChopMult: []float64{1.0, 1.5},
	})

	require.Equal(t, 4, space.size())

	// Index 0 takes the first value of every dimension; unset dimensions keep
	// the base config's values.
	cfg := space.configAt(base, 0)
	assert.Equal(t, 0.05, cfg.EdgeThresholds.Early)
	assert.Equal(t, 0.01, cfg.EdgeThresholds.Mid)
	assert.Equal(t, 1.0, cfg.RegimeMultipliers.Chop)

	// The last dimension varies fastest.
	cfg = space.configAt(base, 1)
	assert.Equal(t, 0.01, cfg.EdgeThresholds.Mid)
	assert.Equal(t, 1.5, cfg.RegimeMultipliers.Chop)

	cfg = space.configAt(base, 3)
	assert.Equal(t, 0.02, cfg.EdgeThresholds.Mid)
	assert.Equal(t, 1.5, cfg.RegimeMultipliers.Chop)
}
