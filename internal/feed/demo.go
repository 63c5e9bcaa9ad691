package feed

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/quantumtrader/quantumtrader/internal/core"
)

// demoBasePrices are the reference prices for the default universe when
// no live data has ever been available.
var demoBasePrices = map[string]float64{
	"AAPL":  227.52,
	"GOOGL": 175.84,
	"MSFT":  424.17,
	"AMZN":  186.29,
	"TSLA":  248.50,
	"NVDA":  875.30,
	"META":  563.92,
	"NFLX":  697.25,
}

const demoDefaultPrice = 100.0

// DemoSource produces synthetic quotes seeded by symbol so that repeated
// calls for the same symbol are reproducible.
type DemoSource struct {
	now func() time.Time
}

// NewDemoSource creates a new demo source.
func NewDemoSource() *DemoSource {
	return &DemoSource{now: time.Now}
}

func (d *DemoSource) Name() string {
	return "demo"
}

// symbolSeed derives a stable seed from a symbol.
func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64())
}

func basePrice(symbol string) float64 {
	if p, ok := demoBasePrices[symbol]; ok {
		return p
	}
	return demoDefaultPrice
}

// FetchQuote returns a deterministic synthetic quote for the symbol.
func (d *DemoSource) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(symbolSeed(symbol)))
	base := basePrice(symbol)
	change := rng.Float64()*10 - 5 // [-5, 5)
	volume := int64(rng.Intn(49_000_000) + 1_000_000)

	return &core.Quote{
		Symbol:    symbol,
		Price:     round2(base + change),
		Change:    round2(change),
		ChangePct: round2(change / base * 100),
		Volume:    volume,
		Time:      d.now(),
		Source:    "demo",
	}, nil
}

// FetchCloses returns a deterministic synthetic price walk ending at the
// symbol's base price, oldest first.
func (d *DemoSource) FetchCloses(ctx context.Context, symbol string, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(symbolSeed(symbol) + 1))
	base := basePrice(symbol)

	// Walk backwards from the base price, then reverse.
	closes := make([]float64, n)
	price := base
	for i := n - 1; i >= 0; i-- {
		closes[i] = round2(price)
		price -= price * (rng.Float64()*0.04 - 0.02) // +/-2% daily drift
		if price < 1 {
			price = 1
		}
	}
	return closes, nil
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
