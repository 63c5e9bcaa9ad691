// Package risk constrains trade decisions before they reach execution.
// Constraints downgrade or rewrite decisions, they never fail.
package risk

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/quantumtrader/quantumtrader/internal/config"
	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
)

// Manager applies position sizing and loss limits to decisions.
type Manager struct {
	cfg config.RiskConfig
	log *zap.Logger
	now func() time.Time
}

// NewManager creates a Manager with the given limits.
func NewManager(cfg config.RiskConfig, log *zap.Logger) *Manager {
	return &Manager{cfg: cfg, log: log, now: time.Now}
}

// Constrain applies the risk rules in order: stop-loss override,
// notional cap, diversification cap. The input decision is not
// mutated; the returned decision is always safe to execute.
func (m *Manager) Constrain(d *core.Decision, view portfolio.View, state core.MarketState) *core.Decision {
	if stop := m.stopLoss(view, state, d); stop != nil {
		m.log.Warn("stop loss override",
			zap.String("symbol", stop.Symbol),
			zap.Int64("quantity", stop.Quantity))
		return stop
	}

	if d == nil {
		return &core.Decision{Action: core.ActionHold, Provider: "risk", GeneratedAt: m.now()}
	}

	out := *d
	if out.Action != core.ActionBuy {
		return &out
	}

	entry, ok := state.Entries[out.Symbol]
	if !ok || !entry.Quote.IsValid() {
		return m.hold(out, "no usable price for "+out.Symbol)
	}
	price := entry.Quote.Price

	// Cap the position's total market value at a fraction of the book.
	limit := m.cfg.MaxPositionPct / 100 * view.Value
	held := view.Positions[out.Symbol]
	headroom := limit - float64(held.Quantity)*price
	maxQty := int64(math.Floor(headroom / price))
	if maxQty <= 0 {
		return m.hold(out, fmt.Sprintf("%s already at %.0f%% position cap", out.Symbol, m.cfg.MaxPositionPct))
	}
	if out.Quantity > maxQty {
		m.log.Info("position cap clamp",
			zap.String("symbol", out.Symbol),
			zap.Int64("requested", out.Quantity),
			zap.Int64("allowed", maxQty))
		out.Quantity = maxQty
		out.Reasoning += fmt.Sprintf(" [risk: clamped to %d shares, %.0f%% position cap]", maxQty, m.cfg.MaxPositionPct)
	}

	if held.Quantity == 0 && len(view.Positions) >= m.cfg.MaxOpenPositions {
		return m.hold(out, fmt.Sprintf("open position limit %d reached", m.cfg.MaxOpenPositions))
	}

	return &out
}

// stopLoss scans the book for a position whose unrealized loss exceeds
// the threshold and, if found, rewrites the tick's decision into a
// sell-to-flat of the worst offender.
func (m *Manager) stopLoss(view portfolio.View, state core.MarketState, d *core.Decision) *core.Decision {
	if m.cfg.StopLossPct <= 0 {
		return nil
	}

	var (
		worstSym  string
		worstQty  int64
		worstLoss float64
	)
	for sym, pos := range view.Positions {
		if pos.Quantity <= 0 || pos.AvgCost <= 0 {
			continue
		}
		entry, ok := state.Entries[sym]
		if !ok || !entry.Quote.IsValid() {
			continue
		}
		lossPct := (entry.Quote.Price/pos.AvgCost - 1) * 100
		if lossPct <= -m.cfg.StopLossPct && lossPct < worstLoss {
			worstSym = sym
			worstQty = pos.Quantity
			worstLoss = lossPct
		}
	}
	if worstSym == "" {
		return nil
	}

	mode := core.ModeBalanced
	if d != nil && d.Mode != "" {
		mode = d.Mode
	}
	return &core.Decision{
		Action:      core.ActionSell,
		Symbol:      worstSym,
		Quantity:    worstQty,
		Confidence:  1.0,
		Mode:        mode,
		Reasoning:   fmt.Sprintf("stop loss: %s down %.1f%% from average cost", worstSym, -worstLoss),
		Provider:    "risk",
		GeneratedAt: m.now(),
	}
}

func (m *Manager) hold(d core.Decision, reason string) *core.Decision {
	m.log.Info("decision downgraded to hold",
		zap.String("symbol", d.Symbol),
		zap.String("reason", reason))
	d.Action = core.ActionHold
	d.Quantity = 0
	d.Reasoning += " [risk: " + reason + "]"
	return &d
}
