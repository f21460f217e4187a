package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/updownbot/internal/domain"
)

func TestRunABTestIdenticalConfigs(t *testing.T) {
	cfg := permissiveConfig()
	signals := []domain.BacktestSignal{
		upSignal("2026-08-01T10:00:00Z", 0.46, 100, 101),
		upSignal("2026-08-01T10:15:00Z", 0.46, 100, 99),
		upSignal("2026-08-01T10:30:00Z", 0.46, 100, 101),
	}

	res := RunABTest(cfg, cfg, signals, 5.0, nil)

	assert.Equal(t, res.ResultA, res.ResultB)
	assert.Equal(t, 0.0, res.WinRateDelta)
	assert.Equal(t, 0.0, res.PnLDelta)
	assert.Equal(t, 0.0, res.SharpeDelta)
	assert.Equal(t, 0.0, res.ChiSquared)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, res.IsSignificant)
}

func TestRunABTestDivergentConfigs(t *testing.T) {
	cfgA := permissiveConfig()
	cfgB := permissiveConfig()
	cfgB.MinConfidence = 0.9 // strategy B enters nothing

	signals := []domain.BacktestSignal{
		upSignal("2026-08-01T10:00:00Z", 0.46, 100, 101),
		upSignal("2026-08-01T10:15:00Z", 0.46, 100, 99),
	}

	res := RunABTest(cfgA, cfgB, signals, 5.0, nil)

	require.Equal(t, 2, res.ResultA.TradesEntered)
	require.Equal(t, 0, res.ResultB.TradesEntered)
	assert.Equal(t, 0.5, res.WinRateDelta)
	// B contributed an empty row; its expected cells are nonzero only where
	// A's counts make them so, and the statistic stays finite.
	assert.GreaterOrEqual(t, res.ChiSquared, 0.0)
	assert.LessOrEqual(t, res.PValue, 1.0)
}

func TestChiSquared2x2(t *testing.T) {
	// Symmetric table carries no signal.
	assert.Equal(t, 0.0, chiSquared2x2(10, 10, 10, 10))

	// Empty table short-circuits.
	assert.Equal(t, 0.0, chiSquared2x2(0, 0, 0, 0))

	// 2x2 with rows (30,10) and (10,30): chi = sum((o-e)^2/e) with every
	// expected cell 20, giving 4 * 100/20 = 20.
	assert.InDelta(t, 20.0, chiSquared2x2(30, 10, 10, 30), 1e-9)

	// A zero column is skipped rather than divided by.
	assert.Equal(t, 0.0, chiSquared2x2(5, 0, 7, 0))
}

func TestChiSquaredPValue(t *testing.T) {
	assert.Equal(t, 1.0, chiSquaredPValue(0))
	assert.Equal(t, 1.0, chiSquaredPValue(-3))

	// chi = 3.841 is the 5% critical value at one degree of freedom.
	p := chiSquaredPValue(3.841)
	assert.InDelta(t, 0.05, p, 0.001)

	assert.Greater(t, chiSquaredPValue(1), chiSquaredPValue(10))
}
