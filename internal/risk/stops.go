// Package risk implements the per-position exit calculators: a
// volatility-scaled stop loss, a trailing stop state machine, and a
// time-decaying take profit. Everything here is a pure function or an
// explicit state transition; the caller owns all state and re-supplies it
// each tick.
package risk

import (
	"github.com/quantfold/updownbot/internal/domain"
	"github.com/quantfold/updownbot/internal/stats"
)

// Volatility stop reasons.
const (
	ReasonVolatilityStop         = "volatility_stop"
	ReasonInvalidEntryPrice      = "invalid_entry_price"
	ReasonVolatilityStopDisabled = "volatility_stop_disabled"
)

// VolatilityStopConfig configures the volatility-scaled stop loss.
type VolatilityStopConfig struct {
	Enabled        bool    `toml:"enabled"`
	Multiplier     float64 `toml:"multiplier"`
	MinStopPercent float64 `toml:"min_stop_percent"`
	MaxStopPercent float64 `toml:"max_stop_percent"`
}

// VolatilityStopResult carries the stop level or the reason none was set.
type VolatilityStopResult struct {
	StopPrice   float64 `json:"stop_price"`
	StopPercent float64 `json:"stop_percent"`
	Reason      string  `json:"reason"`
}

// VolatilityStop derives a stop price from realized 15-minute volatility:
// the stop distance is volatility times the configured multiplier, bounded to
// [MinStopPercent, max(MinStopPercent, MaxStopPercent)]. UP positions stop
// below entry, DOWN positions above.
func VolatilityStop(entryPrice float64, side domain.Side, volatility15m float64, cfg VolatilityStopConfig) VolatilityStopResult {
	if entryPrice <= 0 || !stats.IsFinite(entryPrice) {
		return VolatilityStopResult{Reason: ReasonInvalidEntryPrice}
	}
	if !cfg.Enabled {
		return VolatilityStopResult{Reason: ReasonVolatilityStopDisabled}
	}
	if !stats.IsFinite(volatility15m) || volatility15m < 0 {
		volatility15m = 0
	}

	maxStop := cfg.MaxStopPercent
	if maxStop < cfg.MinStopPercent {
		maxStop = cfg.MinStopPercent
	}
	stopPercent := stats.Clamp(volatility15m*cfg.Multiplier, cfg.MinStopPercent, maxStop)

	stopPrice := entryPrice - entryPrice*stopPercent
	if side == domain.SideDown {
		stopPrice = entryPrice + entryPrice*stopPercent
	}

	return VolatilityStopResult{
		StopPrice:   stopPrice,
		StopPercent: stopPercent,
		Reason:      ReasonVolatilityStop,
	}
}

// TrailingStopState tracks one position's trailing stop. The caller owns the
// state and passes the previous value to each UpdateTrailingStop call; there
// is no internal persistence.
type TrailingStopState struct {
	EntryPrice        float64     `json:"entry_price"`
	Side              domain.Side `json:"side"`
	HighestPrice      float64     `json:"highest_price"`
	LowestPrice       float64     `json:"lowest_price"`
	TrailingPercent   float64     `json:"trailing_percent"`
	ActivationPercent float64     `json:"activation_percent"`
	Activated         bool        `json:"activated"`
}

// NewTrailingStop seeds the state at entry. The running extremes start at the
// entry price; a negative trailing percent is normalized to 0.
func NewTrailingStop(entryPrice float64, side domain.Side, trailingPercent, activationPercent float64) TrailingStopState {
	if trailingPercent < 0 {
		trailingPercent = 0
	}
	return TrailingStopState{
		EntryPrice:        entryPrice,
		Side:              side,
		HighestPrice:      entryPrice,
		LowestPrice:       entryPrice,
		TrailingPercent:   trailingPercent,
		ActivationPercent: activationPercent,
	}
}

// UpdateTrailingStop advances the state with the latest price and returns the
// updated state plus the stop price, which is only meaningful once the stop
// has activated (ok true). An invalid price leaves the state unchanged.
//
// Activation: UP positions arm once price reaches
// entry*(1+ActivationPercent), DOWN once it reaches
// entry*(1-ActivationPercent). Once armed the stop stays armed, trailing the
// running high (UP) or low (DOWN).
func UpdateTrailingStop(state TrailingStopState, currentPrice float64) (TrailingStopState, float64, bool) {
	if currentPrice <= 0 || !stats.IsFinite(currentPrice) {
		return state, 0, false
	}
	if state.TrailingPercent < 0 {
		state.TrailingPercent = 0
	}

	if currentPrice > state.HighestPrice {
		state.HighestPrice = currentPrice
	}
	if currentPrice < state.LowestPrice || state.LowestPrice == 0 {
		state.LowestPrice = currentPrice
	}

	if !state.Activated {
		if state.Side == domain.SideDown {
			state.Activated = currentPrice <= state.EntryPrice*(1-state.ActivationPercent)
		} else {
			state.Activated = currentPrice >= state.EntryPrice*(1+state.ActivationPercent)
		}
	}
	if !state.Activated {
		return state, 0, false
	}

	if state.Side == domain.SideDown {
		return state, state.LowestPrice * (1 + state.TrailingPercent), true
	}
	return state, state.HighestPrice * (1 - state.TrailingPercent), true
}

// TakeProfitConfig configures the time-decaying take profit.
type TakeProfitConfig struct {
	Enabled           bool    `toml:"enabled"`
	BaseProfitPercent float64 `toml:"base_profit_percent"`
	MinProfitPercent  float64 `toml:"min_profit_percent"`
	DecayPerMinute    float64 `toml:"decay_per_minute"`
}

// TakeProfit returns the profit target for a position, shrinking it as the
// window ages: the required profit decays linearly per elapsed minute down to
// the configured floor. Returns ok false when disabled or the entry price is
// invalid.
func TakeProfit(entryPrice float64, side domain.Side, minutesElapsed float64, cfg TakeProfitConfig) (float64, bool) {
	if !cfg.Enabled {
		return 0, false
	}
	if entryPrice <= 0 || !stats.IsFinite(entryPrice) {
		return 0, false
	}

	if !stats.IsFinite(minutesElapsed) || minutesElapsed < 0 {
		minutesElapsed = 0
	}
	decay := cfg.DecayPerMinute
	if !stats.IsFinite(decay) || decay < 0 {
		decay = 0
	}

	profitPercent := cfg.BaseProfitPercent - minutesElapsed*decay
	if profitPercent < cfg.MinProfitPercent {
		profitPercent = cfg.MinProfitPercent
	}

	if side == domain.SideDown {
		return entryPrice * (1 - profitPercent), true
	}
	return entryPrice * (1 + profitPercent), true
}
