// Package advisor turns market snapshots into trade decisions. A
// selector walks a priority-ordered list of advisors and always ends
// at the rule-based one, so every tick yields a decision.
package advisor

import (
	"context"

	"github.com/quantumtrader/quantumtrader/internal/core"
	"github.com/quantumtrader/quantumtrader/internal/portfolio"
)

// Advisor produces at most one decision per snapshot.
type Advisor interface {
	Name() string
	Advise(ctx context.Context, state core.MarketState, view portfolio.View, mode core.StrategyMode) (*core.Decision, error)
}
