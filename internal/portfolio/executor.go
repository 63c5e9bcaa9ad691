package portfolio

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/metrics"
)

// TradeRequest describes a trade to be executed against one book.
type TradeRequest struct {
	Portfolio core.Originator
	Side      core.Side
	Symbol    string
	Quantity  int64
	Price     float64
	Reasoning string
}

// Executor validates and applies trades against the ledger. Validation
// and mutation happen under the target book's lock, so a request either
// fully applies or leaves the book untouched.
type Executor struct {
	ledger  *Ledger
	log     *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// NewExecutor creates an Executor over the given ledger.
func NewExecutor(ledger *Ledger, log *zap.Logger, m *metrics.Registry) *Executor {
	return &Executor{
		ledger:  ledger,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Execute applies a trade request atomically. On any error the target
// book is unchanged.
func (e *Executor) Execute(req TradeRequest) (*core.Trade, error) {
	if err := validate(req); err != nil {
		e.reject(req, err)
		return nil, err
	}

	p, err := e.ledger.Portfolio(req.Portfolio)
	if err != nil {
		e.reject(req, err)
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	total := req.Price * float64(req.Quantity)

	switch req.Side {
	case core.SideBuy:
		if total > p.cash {
			err := core.WrapError(core.ErrInsufficientFunds,
				fmt.Errorf("need %.2f, have %.2f", total, p.cash))
			e.reject(req, err)
			return nil, err
		}
	case core.SideSell:
		pos, exists := p.positions[req.Symbol]
		if !exists || pos.Quantity < req.Quantity {
			var held int64
			if exists {
				held = pos.Quantity
			}
			err := core.WrapError(core.ErrInvalidPosition,
				fmt.Errorf("selling %d %s, holding %d", req.Quantity, req.Symbol, held))
			e.reject(req, err)
			return nil, err
		}
	}

	trade := core.Trade{
		ID:         uuid.NewString(),
		Side:       req.Side,
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Total:      total,
		Time:       e.now(),
		Originator: req.Portfolio,
		Reasoning:  req.Reasoning,
	}
	p.apply(trade)

	if e.metrics != nil {
		e.metrics.RecordTrade(string(req.Portfolio), string(req.Side))
	}
	e.log.Info("trade executed",
		zap.String("id", trade.ID),
		zap.String("portfolio", string(trade.Originator)),
		zap.String("side", string(trade.Side)),
		zap.String("symbol", trade.Symbol),
		zap.Int64("quantity", trade.Quantity),
		zap.Float64("price", trade.Price),
		zap.Float64("total", trade.Total))

	return &trade, nil
}

func validate(req TradeRequest) error {
	switch {
	case req.Symbol == "":
		return core.WrapError(core.ErrInvalidTrade, fmt.Errorf("symbol required"))
	case req.Side != core.SideBuy && req.Side != core.SideSell:
		return core.WrapError(core.ErrInvalidTrade, fmt.Errorf("unknown side %q", req.Side))
	case req.Quantity <= 0:
		return core.WrapError(core.ErrInvalidTrade, fmt.Errorf("quantity must be positive, got %d", req.Quantity))
	case req.Price <= 0:
		return core.WrapError(core.ErrInvalidTrade, fmt.Errorf("price must be positive, got %f", req.Price))
	}
	return nil
}

func (e *Executor) reject(req TradeRequest, err error) {
	reason := "invalid"
	var cerr *core.Error
	if errors.As(err, &cerr) {
		reason = cerr.Code
	}
	if e.metrics != nil {
		e.metrics.RecordTradeRejected(string(req.Portfolio), reason)
	}
	e.log.Warn("trade rejected",
		zap.String("portfolio", string(req.Portfolio)),
		zap.String("side", string(req.Side)),
		zap.String("symbol", req.Symbol),
		zap.Int64("quantity", req.Quantity),
		zap.Error(err))
}
