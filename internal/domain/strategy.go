package domain

// PhaseValues holds one float per window phase. It is used both for edge
// thresholds and for minimum model-probability gates.
type PhaseValues struct {
	Early float64 `json:"early" toml:"early"`
	Mid   float64 `json:"mid" toml:"mid"`
	Late  float64 `json:"late" toml:"late"`
}

// For returns the value for the given phase. Unrecognised phases fall back to
// the MID value.
func (p PhaseValues) For(phase Phase) float64 {
	switch phase {
	case PhaseEarly:
		return p.Early
	case PhaseLate:
		return p.Late
	default:
		return p.Mid
	}
}

// BlendWeights weight the two model-probability sources the upstream pipeline
// blends: the volatility-implied probability and the technical-analysis
// probability. The pair need not sum exactly to 1; config validation flags
// pairs that drift far from it.
type BlendWeights struct {
	VolImplied float64 `json:"vol_implied" toml:"vol_implied"`
	Technical  float64 `json:"technical" toml:"technical"`
}

// Blend combines the two probability estimates using the configured weights.
func (w BlendWeights) Blend(volProb, taProb float64) float64 {
	return w.VolImplied*volProb + w.Technical*taProb
}

// RegimeMultipliers scale the per-phase edge threshold by market regime.
// A multiplier above 1 demands more edge before entering; below 1 relaxes it.
type RegimeMultipliers struct {
	Chop         float64 `json:"chop" toml:"chop"`
	Range        float64 `json:"range" toml:"range"`
	TrendAligned float64 `json:"trend_aligned" toml:"trend_aligned"`
	TrendOpposed float64 `json:"trend_opposed" toml:"trend_opposed"`
}

// MarketOverride records a market's historical performance under the current
// strategy. The engine does not consult these for entry decisions; they are
// carried on the config for reporting and for the skip-list tooling that
// maintains SkipMarkets from realised results.
type MarketOverride struct {
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	PnL     float64 `json:"pnl"`
}

// StrategyConfig is the immutable-per-run strategy parameter set. The engine
// clones it on construction and on every explicit-config run, so a run can
// never mutate caller state.
//
// Invariants (enforced by config validation, assumed by the core): all
// threshold and probability fields are finite, multipliers are non-negative.
type StrategyConfig struct {
	Name              string                    `json:"name"`
	EdgeThresholds    PhaseValues               `json:"edge_thresholds"`
	MinProbability    PhaseValues               `json:"min_probability"`
	BlendWeights      BlendWeights              `json:"blend_weights"`
	RegimeMultipliers RegimeMultipliers         `json:"regime_multipliers"`
	SkipMarkets       []string                  `json:"skip_markets,omitempty"`
	MinConfidence     float64                   `json:"min_confidence"`
	MarketOverrides   map[string]MarketOverride `json:"market_overrides,omitempty"`
}

// Clone returns a deep copy of the config. The nested value structs copy by
// assignment; the slice and map members are duplicated explicitly.
func (c StrategyConfig) Clone() StrategyConfig {
	out := c
	if c.SkipMarkets != nil {
		out.SkipMarkets = make([]string, len(c.SkipMarkets))
		copy(out.SkipMarkets, c.SkipMarkets)
	}
	if c.MarketOverrides != nil {
		out.MarketOverrides = make(map[string]MarketOverride, len(c.MarketOverrides))
		for k, v := range c.MarketOverrides {
			out.MarketOverrides[k] = v
		}
	}
	return out
}

// SkipsMarket reports whether the market is on the config's skip list.
func (c StrategyConfig) SkipsMarket(market string) bool {
	for _, m := range c.SkipMarkets {
		if m == market {
			return true
		}
	}
	return false
}

// RegimeMultiplier resolves the edge-threshold multiplier for a signal's
// regime and side. Trends count as aligned when the trade direction matches
// the trend direction, opposed otherwise.
func (c StrategyConfig) RegimeMultiplier(regime Regime, side Side) float64 {
	switch regime {
	case RegimeChop:
		return c.RegimeMultipliers.Chop
	case RegimeRange:
		return c.RegimeMultipliers.Range
	}
	aligned := (regime == RegimeTrendUp && side == SideUp) ||
		(regime == RegimeTrendDown && side == SideDown)
	if aligned {
		return c.RegimeMultipliers.TrendAligned
	}
	return c.RegimeMultipliers.TrendOpposed
}
