// Package quality implements a similarity-weighted k-nearest-neighbor
// win-rate predictor over labeled past signals. The model is an explicit,
// caller-owned object with bounded history and deterministic eviction; it is
// not safe for concurrent use, so callers sharing one instance across
// goroutines must serialize access themselves.
package quality

import (
	"math"
	"sort"
	"time"

	"github.com/quantfold/updownbot/internal/domain"
)

const (
	DefaultMaxPerMarket = 500
	DefaultMaxTotal     = 2000
	DefaultNeighbors    = 20

	// minPoolSize is the smallest candidate pool the model will predict
	// from; below it the prediction is INSUFFICIENT.
	minPoolSize = 10
)

// Prediction confidence labels.
const (
	ConfidenceHigh         = "HIGH"
	ConfidenceMedium       = "MEDIUM"
	ConfidenceLow          = "LOW"
	ConfidenceInsufficient = "INSUFFICIENT"
)

// Features is the per-signal feature vector similarity is computed over. The
// pointer fields are optional context: a distance term is only added when
// both sides of a comparison carry the value.
type Features struct {
	Market     string
	Edge       float64
	Confidence float64
	Volatility float64
	ModelProb  float64
	Phase      domain.Phase
	Regime     domain.Regime

	OrderBookImbalance *float64
	RSI                *float64
	VWAPSlope          *float64
}

// Outcome is one labeled historical signal.
type Outcome struct {
	Features  Features
	Won       bool
	PnL       float64
	Timestamp time.Time
}

// Prediction is the model's estimate for a new signal.
type Prediction struct {
	PredictedWinRate float64 `json:"predicted_win_rate"`
	AvgSimilarity    float64 `json:"avg_similarity"`
	SampleSize       int     `json:"sample_size"`
	Confidence       string  `json:"confidence"`
}

// Model holds the bounded outcome history, globally and per market. Both
// structures share outcome identity: evicting from one removes the matching
// entry from the other, so the two views never diverge.
type Model struct {
	global   []*Outcome
	byMarket map[string][]*Outcome

	maxPerMarket int
	maxTotal     int
}

// NewModel creates a Model with the given history caps; non-positive caps
// take the defaults (500 per market, 2000 total).
func NewModel(maxPerMarket, maxTotal int) *Model {
	if maxPerMarket <= 0 {
		maxPerMarket = DefaultMaxPerMarket
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	return &Model{
		byMarket:     make(map[string][]*Outcome),
		maxPerMarket: maxPerMarket,
		maxTotal:     maxTotal,
	}
}

// Size returns the current global history length.
func (m *Model) Size() int { return len(m.global) }

// MarketSize returns the current history length for one market.
func (m *Model) MarketSize(market string) int { return len(m.byMarket[market]) }

// RecordOutcome appends a labeled signal to both histories, evicting the
// oldest entries once either cap is exceeded.
func (m *Model) RecordOutcome(o Outcome) {
	rec := &o
	market := o.Features.Market

	m.global = append(m.global, rec)
	m.byMarket[market] = append(m.byMarket[market], rec)

	if len(m.byMarket[market]) > m.maxPerMarket {
		oldest := m.byMarket[market][0]
		m.byMarket[market] = m.byMarket[market][1:]
		m.global = removeOutcome(m.global, oldest)
	}
	if len(m.global) > m.maxTotal {
		oldest := m.global[0]
		m.global = m.global[1:]
		om := oldest.Features.Market
		m.byMarket[om] = removeOutcome(m.byMarket[om], oldest)
		if len(m.byMarket[om]) == 0 {
			delete(m.byMarket, om)
		}
	}
}

// PredictWinRate estimates the win probability of a prospective signal from
// its k most similar recorded outcomes; k defaults to 20 and is clamped to
// the candidate pool size. The pool is the signal's per-market history when
// that has at least 10 entries, otherwise the global history; a pool below 10
// yields a neutral 0.5 with INSUFFICIENT confidence.
func (m *Model) PredictWinRate(f Features, k int) Prediction {
	if k <= 0 {
		k = DefaultNeighbors
	}

	pool := m.byMarket[f.Market]
	if len(pool) < minPoolSize {
		pool = m.global
	}
	if len(pool) < minPoolSize {
		return Prediction{
			PredictedWinRate: 0.5,
			SampleSize:       len(pool),
			Confidence:       ConfidenceInsufficient,
		}
	}

	type scored struct {
		sim float64
		won bool
	}
	neighbors := make([]scored, len(pool))
	for i, o := range pool {
		neighbors[i] = scored{sim: Similarity(f, o.Features), won: o.Won}
	}
	sort.SliceStable(neighbors, func(a, b int) bool {
		return neighbors[a].sim > neighbors[b].sim
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	top := neighbors[:k]

	var simSum, weightSum, winWeight float64
	for _, nb := range top {
		simSum += nb.sim
		w := nb.sim * nb.sim
		weightSum += w
		if nb.won {
			winWeight += w
		}
	}

	predicted := 0.5
	if weightSum > 0 {
		predicted = winWeight / weightSum
	}
	avgSim := simSum / float64(k)

	return Prediction{
		PredictedWinRate: predicted,
		AvgSimilarity:    avgSim,
		SampleSize:       k,
		Confidence:       confidenceLabel(k, avgSim),
	}
}

// Similarity maps the weighted squared-Euclidean feature distance into
// (0, 1]; identical features score exactly 1. Optional RSI and VWAP-slope
// terms only contribute when present on both sides, and categorical
// mismatches (phase, regime, market) add flat penalties.
func Similarity(a, b Features) float64 {
	d := 0.0
	d += sq(a.Edge-b.Edge) * 5
	d += sq(a.Confidence-b.Confidence) * 2
	d += sq(a.Volatility-b.Volatility) * 100
	d += sq(a.ModelProb-b.ModelProb) * 3

	if a.RSI != nil && b.RSI != nil {
		d += sq((*a.RSI-*b.RSI)/100) * 2
	}
	if a.VWAPSlope != nil && b.VWAPSlope != nil {
		d += sq(*a.VWAPSlope-*b.VWAPSlope) * 10
	}

	if a.Phase != b.Phase {
		d += 1.0
	}
	if a.Regime != b.Regime {
		d += 0.5
	}
	if a.Market != b.Market {
		d += 0.3
	}

	return 1 / (1 + math.Sqrt(d))
}

func confidenceLabel(sampleSize int, avgSimilarity float64) string {
	switch {
	case sampleSize >= 20 && avgSimilarity >= 0.7:
		return ConfidenceHigh
	case sampleSize >= 15 && avgSimilarity >= 0.55:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func removeOutcome(list []*Outcome, target *Outcome) []*Outcome {
	for i, o := range list {
		if o == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func sq(x float64) float64 { return x * x }
