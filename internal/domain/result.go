package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// BucketStats is one row of a breakdown map (per market, regime, or phase).
type BucketStats struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	PnL     float64 `json:"pnl"`
}

// BacktestResult is the aggregate output of one engine run. It is fully
// recomputed on every run; nothing is carried over between runs.
//
// ProfitFactor is +Inf when the run had profit and no losses; see the custom
// JSON codec below for how that survives serialization.
type BacktestResult struct {
	TotalSignals  int     `json:"total_signals"`
	TradesEntered int     `json:"trades_entered"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgPnL        float64 `json:"avg_pnl"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	ProfitFactor  float64 `json:"profit_factor"`

	ByMarket map[string]BucketStats `json:"by_market"`
	ByRegime map[string]BucketStats `json:"by_regime"`
	ByPhase  map[string]BucketStats `json:"by_phase"`
}

// profitFactorInf is the wire representation of an infinite profit factor,
// which encoding/json cannot emit as a number.
const profitFactorInf = `"inf"`

// MarshalJSON encodes the result with an infinite profit factor written as
// the string "inf" so reports remain valid JSON.
func (r BacktestResult) MarshalJSON() ([]byte, error) {
	type alias BacktestResult
	pf := json.RawMessage(profitFactorInf)
	if !math.IsInf(r.ProfitFactor, 0) && !math.IsNaN(r.ProfitFactor) {
		num, err := json.Marshal(r.ProfitFactor)
		if err != nil {
			return nil, err
		}
		pf = num
	}
	return json.Marshal(struct {
		alias
		ProfitFactor json.RawMessage `json:"profit_factor"`
	}{alias: alias(r), ProfitFactor: pf})
}

// UnmarshalJSON is the inverse of MarshalJSON: the string "inf" decodes back
// to +Inf.
func (r *BacktestResult) UnmarshalJSON(data []byte) error {
	type alias BacktestResult
	aux := struct {
		*alias
		ProfitFactor json.RawMessage `json:"profit_factor"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if bytes.Equal(aux.ProfitFactor, []byte(profitFactorInf)) {
		r.ProfitFactor = math.Inf(1)
		return nil
	}
	if len(aux.ProfitFactor) > 0 {
		return json.Unmarshal(aux.ProfitFactor, &r.ProfitFactor)
	}
	return nil
}
