package ta

import (
	"fmt"
	"math"

	"github.com/pkoukos/argus/internal/domain"
)

// hiddenWeight discounts hidden divergences relative to regular ones.
const hiddenWeight = 0.6

// detectDivergences compares price and RSI across the last five swing pivots.
// Regular divergences (reversal reads) carry full strength; hidden divergences
// (continuation reads) carry 60%.
func detectDivergences(candles []domain.Candle, rsi []float64, highIdx, lowIdx []int) []domain.Divergence {
	var out []domain.Divergence

	lows := lastN(lowIdx, 5)
	for i := 1; i < len(lows); i++ {
		a, b := lows[i-1], lows[i]
		if b >= len(rsi) || math.IsNaN(rsi[a]) || math.IsNaN(rsi[b]) {
			continue
		}
		priceLower := candles[b].Low < candles[a].Low
		rsiHigher := rsi[b] > rsi[a]
		strength := math.Min(1, math.Abs(rsi[b]-rsi[a])/20)

		if priceLower && rsiHigher {
			out = append(out, domain.Divergence{
				Type:     domain.RegularBull,
				Strength: strength,
				Detail:   fmt.Sprintf("price LL %.2f→%.2f, RSI HL %.1f→%.1f", candles[a].Low, candles[b].Low, rsi[a], rsi[b]),
			})
		} else if !priceLower && !rsiHigher && candles[b].Low > candles[a].Low {
			out = append(out, domain.Divergence{
				Type:     domain.HiddenBull,
				Strength: strength * hiddenWeight,
				Detail:   fmt.Sprintf("price HL %.2f→%.2f, RSI LL %.1f→%.1f", candles[a].Low, candles[b].Low, rsi[a], rsi[b]),
			})
		}
	}

	highs := lastN(highIdx, 5)
	for i := 1; i < len(highs); i++ {
		a, b := highs[i-1], highs[i]
		if b >= len(rsi) || math.IsNaN(rsi[a]) || math.IsNaN(rsi[b]) {
			continue
		}
		priceHigher := candles[b].High > candles[a].High
		rsiLower := rsi[b] < rsi[a]
		strength := math.Min(1, math.Abs(rsi[b]-rsi[a])/20)

		if priceHigher && rsiLower {
			out = append(out, domain.Divergence{
				Type:     domain.RegularBear,
				Strength: strength,
				Detail:   fmt.Sprintf("price HH %.2f→%.2f, RSI LH %.1f→%.1f", candles[a].High, candles[b].High, rsi[a], rsi[b]),
			})
		} else if !priceHigher && !rsiLower && candles[b].High < candles[a].High {
			out = append(out, domain.Divergence{
				Type:     domain.HiddenBear,
				Strength: strength * hiddenWeight,
				Detail:   fmt.Sprintf("price LH %.2f→%.2f, RSI HH %.1f→%.1f", candles[a].High, candles[b].High, rsi[a], rsi[b]),
			})
		}
	}

	return out
}

func lastN(idx []int, n int) []int {
	if len(idx) <= n {
		return idx
	}
	return idx[len(idx)-n:]
}
