// Package regime classifies the coarse market state from VIX, index trend
// strength, breadth and the options tide. The label feeds signal dampening.
package regime

import (
	"github.com/pkoukos/argus/internal/domain"
)

// vixVolatileLevel is the absolute VIX level above which the tape is treated
// as volatile regardless of trend reads.
const vixVolatileLevel = 28.0

// Classify derives the regime label. indexTA is the benchmark index's daily
// technicals (SPY); a nil indexTA yields RegimeUnknown.
func Classify(vix *domain.VIXState, indexTA *domain.Technicals, breadth float64, tide *domain.MarketTide) domain.Regime {
	if indexTA == nil {
		return domain.RegimeUnknown
	}

	if vix != nil && (vix.Spiking || vix.Level >= vixVolatileLevel) {
		return domain.RegimeVolatile
	}

	adx := indexTA.ADX
	if adx.Value >= 25 {
		if adx.PlusDI > adx.MinusDI && breadth >= 0.5 {
			return domain.RegimeTrendingUp
		}
		if adx.MinusDI > adx.PlusDI && breadth <= 0.5 {
			return domain.RegimeTrendingDown
		}
		// Strong ADX with conflicting breadth: let the tide break the tie.
		if tide != nil {
			if tide.BullPremium > tide.BearPremium {
				return domain.RegimeTrendingUp
			}
			return domain.RegimeTrendingDown
		}
	}

	if adx.Value < 18 {
		return domain.RegimeRanging
	}

	// Middling ADX: lean on the EMA stack.
	switch indexTA.EMABias {
	case domain.Bullish:
		return domain.RegimeTrendingUp
	case domain.Bearish:
		return domain.RegimeTrendingDown
	}
	return domain.RegimeRanging
}

// Score maps a regime to a [-1,1] scalar for the ML feature vector.
func Score(r domain.Regime) float64 {
	switch r {
	case domain.RegimeTrendingUp:
		return 1
	case domain.RegimeTrendingDown:
		return -1
	case domain.RegimeVolatile:
		return -0.5
	case domain.RegimeRanging:
		return 0.25
	default:
		return 0
	}
}
