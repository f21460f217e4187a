package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/updownbot/internal/domain"
)

func enabledStopConfig() VolatilityStopConfig {
	return VolatilityStopConfig{
		Enabled:        true,
		Multiplier:     2.0,
		MinStopPercent: 0.01,
		MaxStopPercent: 0.10,
	}
}

func TestVolatilityStop(t *testing.T) {
	cfg := enabledStopConfig()

	res := VolatilityStop(0.50, domain.SideUp, 0.02, cfg)
	require.Equal(t, ReasonVolatilityStop, res.Reason)
	assert.InDelta(t, 0.04, res.StopPercent, 1e-9) // 0.02 * 2, within bounds
	assert.InDelta(t, 0.48, res.StopPrice, 1e-9)   // below entry for UP

	res = VolatilityStop(0.50, domain.SideDown, 0.02, cfg)
	assert.InDelta(t, 0.52, res.StopPrice, 1e-9) // above entry for DOWN
}

func TestVolatilityStopBounds(t *testing.T) {
	cfg := enabledStopConfig()

	// Tiny volatility floors at the minimum stop distance.
	res := VolatilityStop(0.50, domain.SideUp, 0.001, cfg)
	assert.InDelta(t, cfg.MinStopPercent, res.StopPercent, 1e-9)

	// Huge volatility caps at the maximum.
	res = VolatilityStop(0.50, domain.SideUp, 0.5, cfg)
	assert.InDelta(t, cfg.MaxStopPercent, res.StopPercent, 1e-9)

	// Negative or non-finite volatility normalizes to zero, then floors.
	res = VolatilityStop(0.50, domain.SideUp, -1, cfg)
	assert.InDelta(t, cfg.MinStopPercent, res.StopPercent, 1e-9)
	res = VolatilityStop(0.50, domain.SideUp, math.NaN(), cfg)
	assert.InDelta(t, cfg.MinStopPercent, res.StopPercent, 1e-9)

	// An inverted max collapses onto the min.
	inverted := cfg
	inverted.MaxStopPercent = 0.005
	res = VolatilityStop(0.50, domain.SideUp, 0.5, inverted)
	assert.InDelta(t, cfg.MinStopPercent, res.StopPercent, 1e-9)
}

func TestVolatilityStopRejections(t *testing.T) {
	cfg := enabledStopConfig()

	res := VolatilityStop(0, domain.SideUp, 0.02, cfg)
	assert.Equal(t, ReasonInvalidEntryPrice, res.Reason)

	res = VolatilityStop(math.NaN(), domain.SideUp, 0.02, cfg)
	assert.Equal(t, ReasonInvalidEntryPrice, res.Reason)

	cfg.Enabled = false
	res = VolatilityStop(0.50, domain.SideUp, 0.02, cfg)
	assert.Equal(t, ReasonVolatilityStopDisabled, res.Reason)
}

func TestTrailingStopActivation(t *testing.T) {
	state := NewTrailingStop(0.50, domain.SideUp, 0.05, 0.10)
	assert.Equal(t, 0.50, state.HighestPrice)
	assert.False(t, state.Activated)

	// Below the activation level nothing arms.
	state, stop, ok := UpdateTrailingStop(state, 0.52)
	assert.False(t, ok)
	assert.Equal(t, 0.0, stop)

	// Reaching entry*(1+activation) arms the stop.
	state, stop, ok = UpdateTrailingStop(state, 0.55)
	require.True(t, ok)
	assert.True(t, state.Activated)
	assert.InDelta(t, 0.55*0.95, stop, 1e-9)

	// The stop trails the running high and stays armed on pullbacks.
	state, stop, ok = UpdateTrailingStop(state, 0.60)
	require.True(t, ok)
	assert.InDelta(t, 0.60*0.95, stop, 1e-9)

	state, stop, ok = UpdateTrailingStop(state, 0.53)
	require.True(t, ok)
	assert.Equal(t, 0.60, state.HighestPrice)
	assert.InDelta(t, 0.60*0.95, stop, 1e-9)
}

func TestTrailingStopDownSide(t *testing.T) {
	state := NewTrailingStop(0.50, domain.SideDown, 0.05, 0.10)

	// DOWN arms when price falls to entry*(1-activation).
	state, _, ok := UpdateTrailingStop(state, 0.46)
	assert.False(t, ok)

	state, stop, ok := UpdateTrailingStop(state, 0.45)
	require.True(t, ok)
	assert.InDelta(t, 0.45*1.05, stop, 1e-9)

	// Trails the running low.
	state, stop, ok = UpdateTrailingStop(state, 0.40)
	require.True(t, ok)
	assert.InDelta(t, 0.40*1.05, stop, 1e-9)
}

func TestTrailingStopInvalidPrice(t *testing.T) {
	state := NewTrailingStop(0.50, domain.SideUp, 0.05, 0.10)

	next, stop, ok := UpdateTrailingStop(state, 0)
	assert.False(t, ok)
	assert.Equal(t, 0.0, stop)
	assert.Equal(t, state, next)

	next, _, ok = UpdateTrailingStop(state, math.Inf(1))
	assert.False(t, ok)
	assert.Equal(t, state, next)
}

func TestTrailingStopNegativeTrailingPercent(t *testing.T) {
	state := NewTrailingStop(0.50, domain.SideUp, -0.05, 0)
	assert.Equal(t, 0.0, state.TrailingPercent)

	// Zero activation arms immediately at entry.
	_, stop, ok := UpdateTrailingStop(state, 0.50)
	require.True(t, ok)
	assert.InDelta(t, 0.50, stop, 1e-9)
}

func TestTakeProfitDecay(t *testing.T) {
	cfg := TakeProfitConfig{
		Enabled:           true,
		BaseProfitPercent: 0.20,
		MinProfitPercent:  0.05,
		DecayPerMinute:    0.01,
	}

	// No elapsed time: full base target.
	target, ok := TakeProfit(0.50, domain.SideUp, 0, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.50*1.20, target, 1e-9)

	// Five minutes in, the target shrinks linearly.
	target, ok = TakeProfit(0.50, domain.SideUp, 5, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.50*1.15, target, 1e-9)

	// Deep into the window the target floors at the minimum.
	target, ok = TakeProfit(0.50, domain.SideUp, 60, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.50*1.05, target, 1e-9)

	// DOWN targets sit below entry.
	target, ok = TakeProfit(0.50, domain.SideDown, 0, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.50*0.80, target, 1e-9)
}

func TestTakeProfitRejections(t *testing.T) {
	cfg := TakeProfitConfig{
		Enabled:           true,
		BaseProfitPercent: 0.20,
		MinProfitPercent:  0.05,
		DecayPerMinute:    0.01,
	}

	_, ok := TakeProfit(0, domain.SideUp, 0, cfg)
	assert.False(t, ok)

	_, ok = TakeProfit(math.NaN(), domain.SideUp, 0, cfg)
	assert.False(t, ok)

	cfg.Enabled = false
	_, ok = TakeProfit(0.50, domain.SideUp, 0, cfg)
	assert.False(t, ok)
}

func TestTakeProfitNormalizesBadTimeAndDecay(t *testing.T) {
	cfg := TakeProfitConfig{
		Enabled:           true,
		BaseProfitPercent: 0.20,
		MinProfitPercent:  0.05,
		DecayPerMinute:    -0.01,
	}

	// Negative decay and negative elapsed time both normalize to zero, so the
	// base target holds.
	target, ok := TakeProfit(0.50, domain.SideUp, -10, cfg)
	require.True(t, ok)
	assert.InDelta(t, 0.50*1.20, target, 1e-9)
}
