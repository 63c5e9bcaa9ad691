package core

import "time"

// Quote represents the latest price observation for a symbol.
type Quote struct {
	Symbol    string
	Price     float64
	Change    float64
	ChangePct float64
	Volume    int64
	Time      time.Time
	Stale     bool
	Source    string
}

// IsValid checks if the quote has required fields
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price > 0
}

// IndicatorSet holds the technical indicators derived from a symbol's
// close history. Recomputed every tick, never mutated in place.
type IndicatorSet struct {
	Symbol      string
	RSI         float64
	SMA20       float64
	ChangePct   float64
	VolumeDelta int64
}

// Entry pairs a quote with its indicators inside a snapshot.
type Entry struct {
	Quote      Quote
	Indicators IndicatorSet
}

// MarketState is a point-in-time snapshot of the symbol universe.
// Consumers receive copies and must never mutate a shared instance.
type MarketState struct {
	Time    time.Time
	Entries map[string]Entry
}

// Clone returns a deep copy safe to hand to callers.
func (s MarketState) Clone() MarketState {
	entries := make(map[string]Entry, len(s.Entries))
	for sym, e := range s.Entries {
		entries[sym] = e
	}
	return MarketState{Time: s.Time, Entries: entries}
}

// Symbols returns the symbols present in the snapshot.
func (s MarketState) Symbols() []string {
	out := make([]string, 0, len(s.Entries))
	for sym := range s.Entries {
		out = append(out, sym)
	}
	return out
}

// Action represents a trading action
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// StrategyMode is a named risk profile that shifts decision thresholds.
type StrategyMode string

const (
	ModeConservative StrategyMode = "conservative"
	ModeBalanced     StrategyMode = "balanced"
	ModeAggressive   StrategyMode = "aggressive"
)

// Decision is a trade recommendation produced by an advisor.
// Consumed by the risk manager once per tick, then discarded.
type Decision struct {
	Action      Action
	Symbol      string
	Quantity    int64
	Confidence  float64
	Mode        StrategyMode
	Reasoning   string
	Provider    string
	GeneratedAt time.Time
}

// IsActionable reports whether the decision requires execution.
func (d Decision) IsActionable() bool {
	return (d.Action == ActionBuy || d.Action == ActionSell) &&
		d.Symbol != "" && d.Quantity > 0
}

// Side represents the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Originator identifies who requested a trade.
type Originator string

const (
	OriginatorHuman Originator = "human"
	OriginatorAI    Originator = "ai"
)

// Trade is an executed transaction. Immutable once appended to a
// portfolio's history.
type Trade struct {
	ID         string
	Side       Side
	Symbol     string
	Quantity   int64
	Price      float64
	Total      float64
	Time       time.Time
	Originator Originator
	Reasoning  string
}

// CashDelta returns the signed effect of the trade on cash.
func (t Trade) CashDelta() float64 {
	if t.Side == SideBuy {
		return -t.Total
	}
	return t.Total
}
