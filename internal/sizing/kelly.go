// Package sizing implements fractional-Kelly position sizing for live
// up/down trades. All functions are pure and never panic: malformed numeric
// input is reported through the Reason field of the result rather than an
// error.
package sizing

import (
	"github.com/quantfold/updownbot/internal/domain"
	"github.com/quantfold/updownbot/internal/stats"
)

const (
	// MaxBankrollRisk caps the adjusted Kelly fraction at 25% of bankroll
	// per trade regardless of how strong the edge looks.
	MaxBankrollRisk = 0.25

	DefaultKellyFraction = 0.5
	DefaultConfidence    = 0.5
	DefaultMinSize       = 0.5
)

// Result reasons.
const (
	ReasonKellySized    = "kelly_sized"
	ReasonInvalidInputs = "invalid_inputs"
	ReasonNegativeEdge  = "negative_edge"
)

// Params are the inputs to one sizing decision. Zero-valued optional fields
// take their documented defaults (KellyFraction 0.5, Confidence 0.5, MinSize
// 0.5); WinProbability and the payouts are always required.
type Params struct {
	WinProbability float64
	AvgWinPayout   float64 // average return per $1 staked on wins, > 0
	AvgLossPayout  float64 // average loss per $1 staked on losses, > 0
	Bankroll       float64

	KellyFraction float64
	Confidence    float64
	Regime        string // regime label, e.g. "CHOP", "TREND_UP", "TREND_ALIGNED"
	Side          domain.Side

	MinSize float64
	MaxSize float64
}

// Result is the sizing decision. Size is in bankroll currency; RawKelly and
// AdjustedKelly are bankroll fractions.
type Result struct {
	Size          float64 `json:"size"`
	RawKelly      float64 `json:"raw_kelly"`
	AdjustedKelly float64 `json:"adjusted_kelly"`
	Reason        string  `json:"reason"`
}

// Calculate computes the fractional-Kelly position size with confidence and
// regime adjustments.
func Calculate(p Params) Result {
	if !stats.IsFinite(p.WinProbability) ||
		!stats.IsFinite(p.AvgWinPayout) || p.AvgWinPayout <= 0 ||
		!stats.IsFinite(p.AvgLossPayout) || p.AvgLossPayout <= 0 {
		return Result{Reason: ReasonInvalidInputs}
	}

	winProb := stats.Clamp(p.WinProbability, 0, 1)
	b := p.AvgWinPayout / p.AvgLossPayout
	rawKelly := (b*winProb - (1 - winProb)) / b

	if rawKelly <= 0 || !stats.IsFinite(rawKelly) {
		return Result{RawKelly: rawKelly, Reason: ReasonNegativeEdge}
	}

	fraction := p.KellyFraction
	if fraction == 0 {
		fraction = DefaultKellyFraction
	}
	fraction = stats.Clamp(fraction, 0, 1)

	confidence := p.Confidence
	if confidence == 0 {
		confidence = DefaultConfidence
	}
	confidence = stats.Clamp(confidence, 0, 1)

	adjusted := rawKelly * fraction * confidenceMultiplier(confidence) * regimeMultiplier(p.Regime, p.Side)
	adjusted = stats.Clamp(adjusted, 0, MaxBankrollRisk)

	bankroll := p.Bankroll
	if !stats.IsFinite(bankroll) || bankroll < 0 {
		bankroll = 0
	}

	minSize := p.MinSize
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	maxSize := p.MaxSize
	if maxSize < minSize {
		maxSize = minSize
	}

	return Result{
		Size:          stats.Clamp(adjusted*bankroll, minSize, maxSize),
		RawKelly:      rawKelly,
		AdjustedKelly: adjusted,
		Reason:        ReasonKellySized,
	}
}

// confidenceMultiplier scales the stake by signal confidence: strong signals
// size up, weak ones size down hard.
func confidenceMultiplier(confidence float64) float64 {
	switch {
	case confidence >= 0.8:
		return 1.2
	case confidence >= 0.5:
		return 1.0
	default:
		return 0.6
	}
}

// regimeMultiplier scales the stake by market regime. Directional trend
// regimes count as aligned when the trade side matches the trend (or when no
// side is supplied); opposed trades are cut back. Unrecognised or absent
// regimes are neutral.
func regimeMultiplier(regime string, side domain.Side) float64 {
	switch regime {
	case string(domain.RegimeChop):
		return 0.5
	case string(domain.RegimeRange):
		return 0.8
	case "TREND", "TREND_ALIGNED":
		return 1.1
	case "TREND_OPPOSED":
		return 0.6
	case string(domain.RegimeTrendUp):
		if side == "" || side == domain.SideUp {
			return 1.1
		}
		return 0.6
	case string(domain.RegimeTrendDown):
		if side == "" || side == domain.SideDown {
			return 1.1
		}
		return 0.6
	default:
		return 1.0
	}
}
