// Package portfolio tracks cash, positions and trade history for the
// two competing books, and prices them against market snapshots.
package portfolio

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantumtrader/quantumtrader/internal/core"
)

// Position is a holding within a single book. AvgCost is the
// weighted-average purchase price across all fills still held.
type Position struct {
	Symbol   string
	Quantity int64
	AvgCost  float64
}

// CostBasis returns the capital locked in the position.
func (p Position) CostBasis() float64 {
	return float64(p.Quantity) * p.AvgCost
}

// Portfolio is a single book. Every mutation happens under mu, so the
// human and AI books trade concurrently without further coordination.
type Portfolio struct {
	id        core.Originator
	initial   float64
	cash      float64
	positions map[string]*Position
	trades    []core.Trade
	mu        sync.RWMutex
}

func newPortfolio(id core.Originator, initial float64) *Portfolio {
	return &Portfolio{
		id:        id,
		initial:   initial,
		cash:      initial,
		positions: make(map[string]*Position),
	}
}

// ID returns the book identifier.
func (p *Portfolio) ID() core.Originator {
	return p.id
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// Positions returns a copy of all open positions keyed by symbol.
func (p *Portfolio) Positions() map[string]Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positionsLocked()
}

func (p *Portfolio) positionsLocked() map[string]Position {
	out := make(map[string]Position, len(p.positions))
	for sym, pos := range p.positions {
		out[sym] = *pos
	}
	return out
}

// Trades returns the trade history ordered by timestamp ascending.
func (p *Portfolio) Trades() []core.Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]core.Trade, len(p.trades))
	copy(out, p.trades)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// apply mutates the book for an already validated trade.
// Callers must hold p.mu.
func (p *Portfolio) apply(t core.Trade) {
	p.cash += t.CashDelta()

	pos, exists := p.positions[t.Symbol]
	if !exists {
		pos = &Position{Symbol: t.Symbol}
		p.positions[t.Symbol] = pos
	}

	switch t.Side {
	case core.SideBuy:
		// new avg cost = (old_cost*old_qty + price*qty) / (old_qty + qty)
		totalCost := float64(pos.Quantity)*pos.AvgCost + t.Price*float64(t.Quantity)
		pos.Quantity += t.Quantity
		if pos.Quantity > 0 {
			pos.AvgCost = totalCost / float64(pos.Quantity)
		}
	case core.SideSell:
		pos.Quantity -= t.Quantity
	}

	if pos.Quantity == 0 {
		delete(p.positions, t.Symbol)
	}

	p.trades = append(p.trades, t)
}

// valueLocked prices the book against a snapshot. Symbols without a
// usable quote fall back to their average cost. Callers must hold p.mu.
func (p *Portfolio) valueLocked(state core.MarketState) float64 {
	total := p.cash
	for sym, pos := range p.positions {
		price := pos.AvgCost
		if entry, ok := state.Entries[sym]; ok && entry.Quote.IsValid() {
			price = entry.Quote.Price
		}
		total += float64(pos.Quantity) * price
	}
	return total
}

// View is a consistent read-only copy of a book handed to advisors,
// the risk manager and external callers.
type View struct {
	ID        core.Originator
	Cash      float64
	Positions map[string]Position
	Value     float64
	PnL       float64
}

// Ledger owns the two books for the lifetime of the process.
type Ledger struct {
	human *Portfolio
	ai    *Portfolio
}

// NewLedger creates both books with the same initial capital.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		human: newPortfolio(core.OriginatorHuman, initialCapital),
		ai:    newPortfolio(core.OriginatorAI, initialCapital),
	}
}

// Portfolio resolves a book by originator.
func (l *Ledger) Portfolio(id core.Originator) (*Portfolio, error) {
	switch id {
	case core.OriginatorHuman:
		return l.human, nil
	case core.OriginatorAI:
		return l.ai, nil
	default:
		return nil, core.WrapError(core.ErrInvalidTrade, fmt.Errorf("unknown portfolio %q", id))
	}
}

// Valuate returns the total value of a book: cash plus the mark of
// every open position against the snapshot.
func (l *Ledger) Valuate(id core.Originator, state core.MarketState) (float64, error) {
	p, err := l.Portfolio(id)
	if err != nil {
		return 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valueLocked(state), nil
}

// PnL returns the book's gain relative to its initial capital.
func (l *Ledger) PnL(id core.Originator, state core.MarketState) (float64, error) {
	v, err := l.Valuate(id, state)
	if err != nil {
		return 0, err
	}
	p, _ := l.Portfolio(id)
	return v - p.initial, nil
}

// View returns a consistent snapshot of a book priced against state.
func (l *Ledger) View(id core.Originator, state core.MarketState) (View, error) {
	p, err := l.Portfolio(id)
	if err != nil {
		return View{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	value := p.valueLocked(state)
	return View{
		ID:        p.id,
		Cash:      p.cash,
		Positions: p.positionsLocked(),
		Value:     value,
		PnL:       value - p.initial,
	}, nil
}

// History returns a book's trades ordered by timestamp ascending.
func (l *Ledger) History(id core.Originator) ([]core.Trade, error) {
	p, err := l.Portfolio(id)
	if err != nil {
		return nil, err
	}
	return p.Trades(), nil
}
