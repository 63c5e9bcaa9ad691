package advisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/metrics"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
)

// Selector walks a priority-ordered advisor list. Each advisor gets a
// hard timeout; on error or timeout the next one is tried within the
// same tick, with no retry of earlier advisors. The list always ends
// with the rule-based advisor, so Decide never comes back empty.
type Selector struct {
	advisors      []Advisor
	timeout       time.Duration
	minConfidence float64
	log           *zap.Logger
	metrics       *metrics.Registry

	mu     sync.RWMutex
	active string
}

// NewSelector builds a Selector. The rule-based fallback is appended
// automatically if the list does not already end with it.
func NewSelector(advisors []Advisor, timeout time.Duration, minConfidence float64, log *zap.Logger, m *metrics.Registry) *Selector {
	if len(advisors) == 0 || advisors[len(advisors)-1].Name() != RuleBasedName {
		advisors = append(advisors, NewRuleBased())
	}
	return &Selector{
		advisors:      advisors,
		timeout:       timeout,
		minConfidence: minConfidence,
		log:           log,
		metrics:       m,
	}
}

// Decide returns the first usable decision in priority order.
func (s *Selector) Decide(ctx context.Context, state core.MarketState, view portfolio.View, mode core.StrategyMode) *core.Decision {
	for i, adv := range s.advisors {
		d, err := s.advise(ctx, adv, state, view, mode)
		if err != nil || d == nil {
			status := "error"
			if errors.Is(err, core.ErrProviderTimeout) {
				status = "timeout"
			}
			if s.metrics != nil {
				s.metrics.RecordProviderCall(adv.Name(), status)
				if i < len(s.advisors)-1 {
					s.metrics.RecordFallback()
				}
			}
			s.log.Warn("advisor failed, falling through",
				zap.String("advisor", adv.Name()),
				zap.Error(err))
			continue
		}

		if s.metrics != nil {
			s.metrics.RecordProviderCall(adv.Name(), "ok")
		}
		s.setActive(adv.Name())

		if d.IsActionable() && d.Confidence < s.minConfidence {
			s.log.Info("low confidence decision downgraded",
				zap.String("advisor", adv.Name()),
				zap.String("symbol", d.Symbol),
				zap.Float64("confidence", d.Confidence))
			held := *d
			held.Action = core.ActionHold
			held.Quantity = 0
			return &held
		}
		return d
	}

	// Unreachable while the rule-based advisor terminates the list.
	s.setActive("")
	return &core.Decision{Action: core.ActionHold, Mode: mode, Reasoning: "no advisor available", GeneratedAt: time.Now()}
}

func (s *Selector) advise(ctx context.Context, adv Advisor, state core.MarketState, view portfolio.View, mode core.StrategyMode) (*core.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return adv.Advise(ctx, state, view, mode)
}

// Active reports the advisor that produced the most recent decision.
func (s *Selector) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Selector) setActive(name string) {
	s.mu.Lock()
	s.active = name
	s.mu.Unlock()
}
