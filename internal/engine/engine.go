// Package engine runs the tick loop that drives the simulation and
// exposes the read and trade surface used by commands and callers.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantumtrader/quantumtrader/internal/advisor"
	"github.com/quantumtrader/quantumtrader/internal/config"
	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/feed"
	"github.com/quantumtrader/quantumtrader/internal/metrics"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
	"github.com/quantumtrader/quantumtrader/internal/risk"
)

// subscriberBuffer bounds how many snapshots a slow subscriber can lag
// behind before it starts missing updates.
const subscriberBuffer = 4

// Status is the externally visible engine state.
type Status struct {
	Running        bool
	MarketOpen     bool
	LastTickTime   time.Time
	ActiveProvider string
	SymbolsTracked int
	DataSource     string
	UpdateInterval time.Duration
}

// Engine orchestrates one tick: snapshot, valuation, AI decision,
// risk constraints, execution, publication.
type Engine struct {
	cfg      *config.Config
	log      *zap.Logger
	feed     *feed.Feed
	selector *advisor.Selector
	risk     *risk.Manager
	ledger   *portfolio.Ledger
	executor *portfolio.Executor
	metrics  *metrics.Registry
	mode     core.StrategyMode

	// tickMu serializes ticks; a tick that would overlap a running one
	// is skipped, not queued.
	tickMu sync.Mutex

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	lastState   core.MarketState
	lastTick    time.Time
	subscribers map[int]chan core.MarketState
	nextSubID   int
}

// New wires an Engine from its components.
func New(cfg *config.Config, f *feed.Feed, sel *advisor.Selector, rm *risk.Manager,
	ledger *portfolio.Ledger, exec *portfolio.Executor, log *zap.Logger, m *metrics.Registry) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:         cfg,
		log:         log,
		feed:        f,
		selector:    sel,
		risk:        rm,
		ledger:      ledger,
		executor:    exec,
		metrics:     m,
		mode:        cfg.StrategyMode(),
		subscribers: make(map[int]chan core.MarketState),
	}
}

// Start runs the tick loop until the context is cancelled. The first
// tick runs immediately so callers see data without waiting a full
// interval.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.log.Info("engine starting",
		zap.Strings("symbols", e.cfg.Market.Symbols),
		zap.Duration("interval", e.cfg.Market.UpdateInterval),
		zap.String("mode", string(e.mode)),
	)

	e.tick(ctx)

	ticker := time.NewTicker(e.cfg.Market.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine shutting down")
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// Stop cancels the tick loop. A tick already in flight finishes first.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// RunOnce performs a single tick outside the loop.
func (e *Engine) RunOnce(ctx context.Context) {
	e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) {
	if !e.tickMu.TryLock() {
		if e.metrics != nil {
			e.metrics.RecordTickSkipped()
		}
		e.log.Warn("tick still running, skipping")
		return
	}
	defer e.tickMu.Unlock()

	start := time.Now()

	state, err := e.feed.Snapshot(ctx, e.cfg.Market.Symbols)
	if err != nil {
		e.log.Error("snapshot failed", zap.Error(err))
		return
	}

	e.mu.Lock()
	e.lastState = state
	e.lastTick = time.Now()
	e.mu.Unlock()

	e.refreshValuations(state)
	e.runAIDecision(ctx, state)
	e.publish(state)

	if e.metrics != nil {
		e.metrics.RecordTick(time.Since(start).Seconds())
	}
	e.log.Debug("tick complete",
		zap.Int("symbols", len(state.Entries)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (e *Engine) refreshValuations(state core.MarketState) {
	if e.metrics == nil {
		return
	}
	for _, id := range []core.Originator{core.OriginatorHuman, core.OriginatorAI} {
		view, err := e.ledger.View(id, state)
		if err != nil {
			continue
		}
		e.metrics.SetPortfolioValue(string(id), view.Value)
		e.metrics.SetPortfolioPnL(string(id), view.PnL)
	}
}

// runAIDecision advises, constrains and executes for the AI book.
// Execution failures are logged and dropped; the next tick starts from
// the ledger's actual state.
func (e *Engine) runAIDecision(ctx context.Context, state core.MarketState) {
	view, err := e.ledger.View(core.OriginatorAI, state)
	if err != nil {
		e.log.Error("ai view failed", zap.Error(err))
		return
	}

	decision := e.selector.Decide(ctx, state, view, e.mode)
	decision = e.risk.Constrain(decision, view, state)
	if !decision.IsActionable() {
		e.log.Debug("ai holds",
			zap.String("provider", decision.Provider),
			zap.String("reasoning", decision.Reasoning),
		)
		return
	}

	entry, ok := state.Entries[decision.Symbol]
	if !ok || !entry.Quote.IsValid() {
		e.log.Warn("decision symbol not priceable", zap.String("symbol", decision.Symbol))
		return
	}

	trade, err := e.executor.Execute(portfolio.TradeRequest{
		Portfolio: core.OriginatorAI,
		Side:      sideFor(decision.Action),
		Symbol:    decision.Symbol,
		Quantity:  decision.Quantity,
		Price:     entry.Quote.Price,
		Reasoning: decision.Reasoning,
	})
	if err != nil {
		e.log.Warn("ai trade rejected",
			zap.String("symbol", decision.Symbol),
			zap.Error(err),
		)
		return
	}
	e.log.Info("ai trade",
		zap.String("id", trade.ID),
		zap.String("side", string(trade.Side)),
		zap.String("symbol", trade.Symbol),
		zap.Int64("quantity", trade.Quantity),
		zap.String("provider", decision.Provider),
	)
}

func sideFor(a core.Action) core.Side {
	if a == core.ActionSell {
		return core.SideSell
	}
	return core.SideBuy
}

// GetMarketData returns the latest snapshot, fetching one if the loop
// has not produced any yet.
func (e *Engine) GetMarketData(ctx context.Context) (core.MarketState, error) {
	e.mu.RLock()
	state := e.lastState
	e.mu.RUnlock()

	if state.Entries != nil {
		return state.Clone(), nil
	}
	return e.feed.Snapshot(ctx, e.cfg.Market.Symbols)
}

// GetPortfolio returns a priced view and full trade history for one book.
func (e *Engine) GetPortfolio(id core.Originator) (portfolio.View, []core.Trade, error) {
	e.mu.RLock()
	state := e.lastState
	e.mu.RUnlock()

	view, err := e.ledger.View(id, state)
	if err != nil {
		return portfolio.View{}, nil, err
	}
	history, err := e.ledger.History(id)
	if err != nil {
		return portfolio.View{}, nil, err
	}
	return view, history, nil
}

// SubmitManualTrade executes a trade for the human book, priced from
// the latest snapshot. It shares the book's lock with AI execution, so
// concurrent submissions serialize rather than conflict.
func (e *Engine) SubmitManualTrade(symbol string, side core.Side, quantity int64) (*core.Trade, error) {
	e.mu.RLock()
	state := e.lastState
	e.mu.RUnlock()

	entry, ok := state.Entries[symbol]
	if !ok || !entry.Quote.IsValid() {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("no quote for %s", symbol))
	}

	return e.executor.Execute(portfolio.TradeRequest{
		Portfolio: core.OriginatorHuman,
		Side:      side,
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     entry.Quote.Price,
		Reasoning: "manual trade",
	})
}

// GetStatus reports the engine's externally visible state.
func (e *Engine) GetStatus() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Status{
		Running:        e.running,
		MarketOpen:     e.feed.MarketOpen(),
		LastTickTime:   e.lastTick,
		ActiveProvider: e.selector.Active(),
		SymbolsTracked: len(e.cfg.Market.Symbols),
		DataSource:     dataSource(e.lastState),
		UpdateInterval: e.cfg.Market.UpdateInterval,
	}
}

// dataSource summarizes where the snapshot's quotes came from.
func dataSource(state core.MarketState) string {
	if len(state.Entries) == 0 {
		return "none"
	}
	source := "live"
	for _, entry := range state.Entries {
		if entry.Quote.Source == "demo" {
			return "demo"
		}
		if entry.Quote.Stale {
			source = "cached"
		}
	}
	return source
}

// Subscribe registers a snapshot listener. Publishes never block; a
// subscriber that falls behind misses updates instead of stalling the
// tick loop.
func (e *Engine) Subscribe() (int, <-chan core.MarketState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	ch := make(chan core.MarketState, subscriberBuffer)
	e.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (e *Engine) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.subscribers[id]; ok {
		delete(e.subscribers, id)
		close(ch)
	}
}

func (e *Engine) publish(state core.MarketState) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- state.Clone():
		default:
		}
	}
}
