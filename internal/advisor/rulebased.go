package advisor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/indicator"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
)

// RuleBasedName identifies the deterministic fallback advisor.
const RuleBasedName = "rulebased"

// defaultCashFraction sizes a BUY relative to available cash.
const defaultCashFraction = 0.1

// RuleBased is a deterministic RSI threshold advisor. It makes no
// external calls and never fails, which makes it the terminal fallback.
type RuleBased struct {
	cashFraction float64
	now          func() time.Time
}

// NewRuleBased creates the fallback advisor.
func NewRuleBased() *RuleBased {
	return &RuleBased{cashFraction: defaultCashFraction, now: time.Now}
}

// Name implements Advisor.
func (r *RuleBased) Name() string {
	return RuleBasedName
}

// thresholds returns the (buyBelow, sellAbove) RSI levels for a mode.
func thresholds(mode core.StrategyMode) (float64, float64) {
	switch mode {
	case core.ModeConservative:
		return 25, 75
	case core.ModeAggressive:
		return 35, 65
	default:
		return 30, 70
	}
}

// Advise sells the most overbought held symbol if one crosses the sell
// threshold, otherwise buys the most oversold symbol below the buy
// threshold, otherwise holds.
func (r *RuleBased) Advise(_ context.Context, state core.MarketState, view portfolio.View, mode core.StrategyMode) (*core.Decision, error) {
	buyBelow, sellAbove := thresholds(mode)

	var (
		sellSym string
		sellRSI float64
		buySym  string
		buyRSI  = indicator.NeutralRSI
	)
	for sym, entry := range state.Entries {
		if !entry.Quote.IsValid() {
			continue
		}
		// Ties break on symbol so map iteration order never changes
		// the outcome.
		rsi := entry.Indicators.RSI
		if rsi > sellAbove && (rsi > sellRSI || (rsi == sellRSI && sym < sellSym)) {
			if pos, ok := view.Positions[sym]; ok && pos.Quantity > 0 {
				sellSym, sellRSI = sym, rsi
			}
		}
		if rsi < buyBelow && (rsi < buyRSI || (rsi == buyRSI && (buySym == "" || sym < buySym))) {
			buySym, buyRSI = sym, rsi
		}
	}

	if sellSym != "" {
		pos := view.Positions[sellSym]
		return &core.Decision{
			Action:      core.ActionSell,
			Symbol:      sellSym,
			Quantity:    pos.Quantity,
			Confidence:  ruleConfidence(sellRSI, sellAbove),
			Mode:        mode,
			Reasoning:   fmt.Sprintf("RSI %.1f above %.0f overbought threshold", sellRSI, sellAbove),
			Provider:    RuleBasedName,
			GeneratedAt: r.now(),
		}, nil
	}

	if buySym != "" {
		price := state.Entries[buySym].Quote.Price
		qty := int64(math.Floor(view.Cash * r.cashFraction / price))
		if qty > 0 {
			return &core.Decision{
				Action:      core.ActionBuy,
				Symbol:      buySym,
				Quantity:    qty,
				Confidence:  ruleConfidence(buyRSI, buyBelow),
				Mode:        mode,
				Reasoning:   fmt.Sprintf("RSI %.1f below %.0f oversold threshold", buyRSI, buyBelow),
				Provider:    RuleBasedName,
				GeneratedAt: r.now(),
			}, nil
		}
	}

	return &core.Decision{
		Action:      core.ActionHold,
		Confidence:  0.5,
		Mode:        mode,
		Reasoning:   "no symbol crossed an RSI threshold",
		Provider:    RuleBasedName,
		GeneratedAt: r.now(),
	}, nil
}

// ruleConfidence grows with the distance past the threshold, floored
// at 0.6 so actionable signals survive the selector's confidence gate.
func ruleConfidence(rsi, threshold float64) float64 {
	conf := 0.6 + math.Abs(rsi-threshold)/100
	return math.Min(conf, 0.95)
}
