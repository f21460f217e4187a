package backtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/updownbot/internal/domain"
)

// sequentialSignals builds n settled winning signals spread over n days.
func sequentialSignals(n int) []domain.BacktestSignal {
	out := make([]domain.BacktestSignal, n)
	for i := range out {
		ts := fmt.Sprintf("2026-07-%02dT10:00:00Z", i%28+1)
		out[i] = upSignal(ts, 0.46, 100, 101)
	}
	return out
}

func TestCrossValidateFoldLayout(t *testing.T) {
	res := CrossValidate(permissiveConfig(), sequentialSignals(100), 5, 5.0, nil)

	require.Equal(t, 5, res.FoldCount)
	// The first boundary slice is train-only, so 5 folds yield 4 evaluations.
	require.Len(t, res.Folds, 4)

	for i, fold := range res.Folds {
		assert.Equal(t, i+1, fold.Fold)
		assert.Equal(t, 20*(i+1), fold.TrainSize)
		assert.Equal(t, 20, fold.TestSize)
	}
}

func TestCrossValidateClampsFoldCount(t *testing.T) {
	// Two signals cannot support ten folds; foldCount clamps to N.
	res := CrossValidate(permissiveConfig(), sequentialSignals(2), 10, 5.0, nil)

	assert.Equal(t, 2, res.FoldCount)
	require.Len(t, res.Folds, 1)
	assert.Equal(t, 1, res.Folds[0].TrainSize)
	assert.Equal(t, 1, res.Folds[0].TestSize)
}

func TestCrossValidateAggregates(t *testing.T) {
	res := CrossValidate(permissiveConfig(), sequentialSignals(40), 4, 5.0, nil)

	require.Len(t, res.Folds, 3)
	// Every signal wins, so every fold has a perfect win rate and no spread.
	assert.Equal(t, 1.0, res.AvgWinRate)
	assert.Equal(t, 0.0, res.StdDevWinRate)
	assert.Equal(t, 1.0, res.AvgTrainWinRate)
	assert.False(t, res.Overfit)
}

func TestCrossValidateOverfitFlag(t *testing.T) {
	// First three quarters of the history win, the last quarter loses: the
	// train windows look great and the final test fold collapses.
	signals := sequentialSignals(40)
	for i := 30; i < 40; i++ {
		signals[i].FinalPrice = ptr(99.0)
	}

	res := CrossValidate(permissiveConfig(), signals, 4, 5.0, nil)

	require.Len(t, res.Folds, 3)
	assert.True(t, res.Overfit)
}

func TestCrossValidateEmptySignals(t *testing.T) {
	res := CrossValidate(permissiveConfig(), nil, 5, 5.0, nil)

	assert.Equal(t, 2, res.FoldCount)
	assert.Empty(t, res.Folds)
	assert.Equal(t, 0.0, res.AvgWinRate)
	assert.False(t, res.Overfit)
}
