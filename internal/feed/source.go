// Package feed provides the market data feed: quote sources, TTL caching,
// staleness degradation and snapshot assembly for the symbol universe.
package feed

import (
	"context"

	"github.com/quantumtrader/quantumtrader/internal/core"
)

// Source defines the interface for quote providers.
type Source interface {
	Name() string
	// FetchQuote returns the current quote for a symbol.
	FetchQuote(ctx context.Context, symbol string) (*core.Quote, error)
	// FetchCloses returns up to n historical daily closes, oldest first.
	FetchCloses(ctx context.Context, symbol string, n int) ([]float64, error)
}
