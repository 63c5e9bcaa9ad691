// Package indicator provides pure technical indicator computations over
// ordered close histories (oldest to newest).
package indicator

import "github.com/quantumtrader/quantumtrader/internal/core"

// DefaultRSIPeriod is the window used when callers do not override it.
const DefaultRSIPeriod = 14

// NeutralRSI is returned when the history is too short for the window.
const NeutralRSI = 50.0

// SMAPeriod is the moving-average window included in the indicator set.
const SMAPeriod = 20

// RSI calculates the Relative Strength Index over the given period using
// the average-gain/average-loss ratio of the last period deltas.
// Requires period+1 closes; shorter histories yield the neutral value
// rather than an error.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI
	}

	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI // flat series
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// PercentChange returns the percent change of the last close versus the
// previous one, or 0 when fewer than two closes exist.
func PercentChange(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	prev := closes[len(closes)-2]
	if prev == 0 {
		return 0
	}
	last := closes[len(closes)-1]
	return (last - prev) / prev * 100
}

// VolumeDelta returns the change in traded volume between two observations.
func VolumeDelta(prev, cur int64) int64 {
	if prev == 0 {
		return 0
	}
	return cur - prev
}

// Compute derives the full indicator set for a symbol. Pure: the same
// inputs always produce the same result.
func Compute(symbol string, closes []float64, prevVolume, curVolume int64) core.IndicatorSet {
	var sma20 float64
	if sma := SMA(closes, SMAPeriod); len(sma) > 0 {
		sma20 = sma[len(sma)-1]
	}
	return core.IndicatorSet{
		Symbol:      symbol,
		RSI:         RSI(closes, DefaultRSIPeriod),
		SMA20:       sma20,
		ChangePct:   PercentChange(closes),
		VolumeDelta: VolumeDelta(prevVolume, curVolume),
	}
}

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}
