// Package domain defines the core data types shared by the backtest engine,
// the risk calculators, the stores, and the application layer. All types here
// are plain values: they carry no behaviour beyond accessors and defensive
// copies, and none of them perform I/O.
package domain

// Side is the direction of an up/down prediction-market position.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// Phase identifies where inside the 15-minute window a signal was generated.
type Phase string

const (
	PhaseEarly Phase = "EARLY"
	PhaseMid   Phase = "MID"
	PhaseLate  Phase = "LATE"
)

// Regime is the market regime label attached to a signal by the upstream
// pipeline.
type Regime string

const (
	RegimeTrendUp   Regime = "TREND_UP"
	RegimeTrendDown Regime = "TREND_DOWN"
	RegimeRange     Regime = "RANGE"
	RegimeChop      Regime = "CHOP"
)

// BacktestSignal is one historical observation produced by the signal
// pipeline: the full feature set the strategy saw at decision time, plus the
// window's settlement price once known. FinalPrice is nil while the window is
// unsettled; unsettled signals are counted but never traded.
//
// The trailing context pointers (order book, VWAP, RSI, spread) are not used
// by the engine's entry logic; they are retained for analysis and round-trip
// through the 22-column CSV schema.
type BacktestSignal struct {
	Timestamp     string  `json:"timestamp"` // ISO-8601
	Market        string  `json:"market"`
	Side          Side    `json:"side"`
	Phase         Phase   `json:"phase"`
	Regime        Regime  `json:"regime"`
	Edge          float64 `json:"edge"`
	EffectiveEdge float64 `json:"effective_edge"` // regime-adjusted; NaN when unavailable
	ModelUp       float64 `json:"model_up"`
	ModelDown     float64 `json:"model_down"`
	MarketUp      float64 `json:"market_up"`
	MarketDown    float64 `json:"market_down"`
	Confidence    float64 `json:"confidence"`
	Volatility15m float64 `json:"volatility_15m"`
	PriceToBeat   float64 `json:"price_to_beat"`

	FinalPrice *float64 `json:"final_price,omitempty"`

	OrderBookImbalance *float64 `json:"ob_imbalance,omitempty"`
	BidDepth           *float64 `json:"bid_depth,omitempty"`
	AskDepth           *float64 `json:"ask_depth,omitempty"`
	VWAP               *float64 `json:"vwap,omitempty"`
	VWAPSlope          *float64 `json:"vwap_slope,omitempty"`
	RSI                *float64 `json:"rsi,omitempty"`
	Spread             *float64 `json:"spread,omitempty"`
}

// Settled reports whether the signal's window has a settlement price.
func (s BacktestSignal) Settled() bool {
	return s.FinalPrice != nil
}

// Day returns the calendar-day key of the signal's timestamp (the leading
// "YYYY-MM-DD" of the ISO string). Empty when the timestamp is too short to
// carry a date.
func (s BacktestSignal) Day() string {
	if len(s.Timestamp) < 10 {
		return ""
	}
	return s.Timestamp[:10]
}

// ModelProb returns the model-implied probability for the signal's side.
func (s BacktestSignal) ModelProb() float64 {
	if s.Side == SideDown {
		return s.ModelDown
	}
	return s.ModelUp
}

// BuyPrice returns the market-implied price of the token for the signal's
// side, i.e. the cost of one share paying $1 if the side wins.
func (s BacktestSignal) BuyPrice() float64 {
	if s.Side == SideDown {
		return s.MarketDown
	}
	return s.MarketUp
}
