package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseValuesFor(t *testing.T) {
	p := PhaseValues{Early: 0.05, Mid: 0.04, Late: 0.03}

	assert.Equal(t, 0.05, p.For(PhaseEarly))
	assert.Equal(t, 0.04, p.For(PhaseMid))
	assert.Equal(t, 0.03, p.For(PhaseLate))
	assert.Equal(t, 0.04, p.For("SOMETHING_ELSE"))
}

func TestBlendWeights(t *testing.T) {
	w := BlendWeights{VolImplied: 0.6, Technical: 0.4}
	assert.InDelta(t, 0.56, w.Blend(0.5, 0.65), 1e-12)
}

func TestStrategyConfigClone(t *testing.T) {
	cfg := StrategyConfig{
		Name:        "base",
		SkipMarkets: []string{"sol-updown"},
		MarketOverrides: map[string]MarketOverride{
			"btc-updown": {Trades: 10, WinRate: 0.6, PnL: 12},
		},
	}

	clone := cfg.Clone()
	clone.SkipMarkets[0] = "btc-updown"
	clone.MarketOverrides["eth-updown"] = MarketOverride{Trades: 1}

	assert.Equal(t, []string{"sol-updown"}, cfg.SkipMarkets)
	assert.NotContains(t, cfg.MarketOverrides, "eth-updown")
}

func TestSkipsMarket(t *testing.T) {
	cfg := StrategyConfig{SkipMarkets: []string{"a", "b"}}
	assert.True(t, cfg.SkipsMarket("a"))
	assert.False(t, cfg.SkipsMarket("c"))
	assert.False(t, StrategyConfig{}.SkipsMarket("a"))
}

func TestRegimeMultiplier(t *testing.T) {
	cfg := StrategyConfig{RegimeMultipliers: RegimeMultipliers{
		Chop:         1.5,
		Range:        1.2,
		TrendAligned: 0.9,
		TrendOpposed: 1.3,
	}}

	assert.Equal(t, 1.5, cfg.RegimeMultiplier(RegimeChop, SideUp))
	assert.Equal(t, 1.2, cfg.RegimeMultiplier(RegimeRange, SideDown))
	assert.Equal(t, 0.9, cfg.RegimeMultiplier(RegimeTrendUp, SideUp))
	assert.Equal(t, 1.3, cfg.RegimeMultiplier(RegimeTrendUp, SideDown))
	assert.Equal(t, 0.9, cfg.RegimeMultiplier(RegimeTrendDown, SideDown))
	assert.Equal(t, 1.3, cfg.RegimeMultiplier(RegimeTrendDown, SideUp))
}

func TestSignalAccessors(t *testing.T) {
	sig := BacktestSignal{
		Timestamp:  "2026-08-01T10:00:00Z",
		Side:       SideDown,
		ModelUp:    0.4,
		ModelDown:  0.6,
		MarketUp:   0.45,
		MarketDown: 0.55,
	}

	assert.Equal(t, "2026-08-01", sig.Day())
	assert.Equal(t, 0.6, sig.ModelProb())
	assert.Equal(t, 0.55, sig.BuyPrice())
	assert.False(t, sig.Settled())

	sig.Side = SideUp
	assert.Equal(t, 0.4, sig.ModelProb())
	assert.Equal(t, 0.45, sig.BuyPrice())

	short := BacktestSignal{Timestamp: "2026"}
	assert.Equal(t, "", short.Day())
}
