package ta

import (
	"math"

	"github.com/pkoukos/argus/internal/domain"
)

// minPatternStrength filters out marginal pattern matches.
const minPatternStrength = 0.3

// detectPatterns scans the last bars for candlestick patterns. Only patterns
// with strength >= 0.3 are emitted.
func detectPatterns(candles []domain.Candle) []domain.Pattern {
	n := len(candles)
	if n < 3 {
		return nil
	}
	cur, prev := candles[n-1], candles[n-2]

	var out []domain.Pattern
	add := func(name string, dir domain.Direction, strength float64) {
		if strength >= minPatternStrength {
			if strength > 1 {
				strength = 1
			}
			out = append(out, domain.Pattern{Name: name, Direction: dir, Strength: strength})
		}
	}

	body := math.Abs(cur.Close - cur.Open)
	rng := cur.High - cur.Low
	if rng <= 0 {
		return nil
	}
	upperWick := cur.High - math.Max(cur.Open, cur.Close)
	lowerWick := math.Min(cur.Open, cur.Close) - cur.Low
	prevBody := math.Abs(prev.Close - prev.Open)

	// Engulfing: current body swallows the previous bar's body.
	if prevBody > 0 && body > prevBody {
		engulfs := math.Min(cur.Open, cur.Close) <= math.Min(prev.Open, prev.Close) &&
			math.Max(cur.Open, cur.Close) >= math.Max(prev.Open, prev.Close)
		if engulfs {
			strength := math.Min(1, body/prevBody/2)
			if cur.Close > cur.Open && prev.Close < prev.Open {
				add("bullish-engulfing", domain.Bullish, strength)
			} else if cur.Close < cur.Open && prev.Close > prev.Open {
				add("bearish-engulfing", domain.Bearish, strength)
			}
		}
	}

	// Hammer: long lower wick, small body near the top.
	if body > 0 && lowerWick >= 2*body && upperWick <= 0.3*body {
		add("hammer", domain.Bullish, math.Min(1, lowerWick/(3*body)))
	}

	// Shooting star: long upper wick, small body near the bottom.
	if body > 0 && upperWick >= 2*body && lowerWick <= 0.3*body {
		add("shooting-star", domain.Bearish, math.Min(1, upperWick/(3*body)))
	}

	// Doji: open and close within 10% of the range. Directionless on its own,
	// leans against the prior bar.
	if body <= 0.1*rng {
		dir := domain.Bearish
		if prev.Close < prev.Open {
			dir = domain.Bullish
		}
		add("doji", dir, 0.35)
	}

	// Marubozu: body fills nearly the whole range.
	if body >= 0.9*rng {
		if cur.Close > cur.Open {
			add("bullish-marubozu", domain.Bullish, body/rng)
		} else {
			add("bearish-marubozu", domain.Bearish, body/rng)
		}
	}

	// Inside bar: full range inside the prior bar, a compression read.
	if cur.High <= prev.High && cur.Low >= prev.Low {
		dir := domain.Bullish
		if prev.Close < prev.Open {
			dir = domain.Bearish
		}
		add("inside-bar", dir, 0.4)
	}

	return out
}
