package ta

import (
	"fmt"

	"github.com/pkoukos/argus/internal/domain"
)

// findSwings returns indexes of swing highs and lows using a lookback/lookahead
// window of span bars on each side.
func findSwings(candles []domain.Candle, span int) (highs, lows []int) {
	for i := span; i < len(candles)-span; i++ {
		isHigh, isLow := true, true
		for j := i - span; j <= i+span; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, i)
		}
		if isLow {
			lows = append(lows, i)
		}
	}
	return highs, lows
}

// latestSwingPair picks the most recent detectable swing high and low prices.
// Falls back to the series extremes when no pivot qualified.
func latestSwingPair(candles []domain.Candle, highs, lows []int) (high, low float64) {
	if len(highs) > 0 {
		high = candles[highs[len(highs)-1]].High
	}
	if len(lows) > 0 {
		low = candles[lows[len(lows)-1]].Low
	}
	if high == 0 || low == 0 {
		for _, c := range candles {
			if c.High > high {
				high = c.High
			}
			if low == 0 || c.Low < low {
				low = c.Low
			}
		}
	}
	return high, low
}

// fibonacci computes retracement levels and long-side extensions anchored to
// the most recent swing.
func fibonacci(swingHigh, swingLow float64) domain.Fibonacci {
	fib := domain.Fibonacci{
		SwingHigh:  swingHigh,
		SwingLow:   swingLow,
		Levels:     make(map[string]float64),
		Extensions: make(map[string]float64),
	}
	diff := swingHigh - swingLow
	if diff <= 0 {
		return fib
	}
	for _, r := range []float64{0.236, 0.382, 0.5, 0.618, 0.786} {
		fib.Levels[fmt.Sprintf("%.3g", r)] = swingHigh - diff*r
	}
	for _, e := range []float64{1.272, 1.618} {
		fib.Extensions[fmt.Sprintf("%.4g", e)] = swingLow + diff*e
	}
	return fib
}

// floorPivots computes classic pivot points from the previous completed bar.
func floorPivots(candles []domain.Candle) domain.Pivots {
	if len(candles) < 2 {
		return domain.Pivots{}
	}
	prev := candles[len(candles)-2]
	pp := (prev.High + prev.Low + prev.Close) / 3
	return domain.Pivots{
		PP: pp,
		R1: 2*pp - prev.Low,
		S1: 2*pp - prev.High,
		R2: pp + (prev.High - prev.Low),
		S2: pp - (prev.High - prev.Low),
	}
}
