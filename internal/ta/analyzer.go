// Package ta computes the per-ticker Technicals bundle from a candle series.
// It is a pure function of its input: no clocks, no I/O.
package ta

import (
	"errors"
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/pkoukos/argus/internal/domain"
)

// ErrInsufficientData is returned for series shorter than domain.MinCandles.
var ErrInsufficientData = errors.New("insufficient candle data")

// Compute derives the full Technicals bundle from candles (oldest first).
func Compute(candles []domain.Candle) (*domain.Technicals, error) {
	if len(candles) < domain.MinCandles {
		return nil, ErrInsufficientData
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = float64(c.Volume)
	}
	last := len(candles) - 1

	t := &domain.Technicals{}

	// RSI, period 14 with Wilder smoothing (talib default).
	rsi := talib.Rsi(closes, 14)
	t.RSI = tail(rsi)
	t.RSISlope = tail(rsi) - prev(rsi)

	// EMA stack and bias.
	ema9 := talib.Ema(closes, 9)
	ema20 := talib.Ema(closes, 20)
	ema50 := talib.Ema(closes, 50)
	t.EMA9, t.EMA20, t.EMA50 = tail(ema9), tail(ema20), tail(ema50)
	switch {
	case len(candles) >= 50 && t.EMA9 > t.EMA20 && t.EMA20 > t.EMA50:
		t.EMABias = domain.Bullish
	case len(candles) >= 50 && t.EMA9 < t.EMA20 && t.EMA20 < t.EMA50:
		t.EMABias = domain.Bearish
	default:
		t.EMABias = domain.Neutral
	}

	// ATR and its short history.
	atr := talib.Atr(highs, lows, closes, 14)
	t.ATR = tail(atr)
	if n := len(atr); n >= 10 {
		t.ATRSeries = append([]float64(nil), atr[n-10:]...)
	}
	if p := prev(atr); p > 0 {
		t.ATRChange = (tail(atr) - p) / p
	}

	// MACD(12,26,9). The histogram is suppressed below 0.5% of ATR so noise
	// never fires a crossover signal.
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	t.MACD = domain.MACD{
		Value:     tail(macd),
		Signal:    tail(signal),
		Histogram: tail(hist),
		Slope:     tail(hist) - prev(hist),
		Accel:     (tail(hist) - prev(hist)) - (prev(hist) - prev2(hist)),
	}
	if math.Abs(t.MACD.Histogram) < 0.005*t.ATR {
		t.MACD.Suppressed = true
	}

	// Bollinger(20, 2). Position is price normalized into [0,1] across the band.
	upper, middle, lower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	u, m, l := tail(upper), tail(middle), tail(lower)
	t.Bollinger = domain.Bollinger{Upper: u, Middle: m, Lower: l}
	if width := u - l; width > 0 {
		t.Bollinger.Position = clamp01((closes[last] - l) / width)
	} else {
		t.Bollinger.Position = 0.5
	}
	if m > 0 {
		t.Bollinger.Bandwidth = (u - l) / m
	}

	// ADX with directional components.
	adx := talib.Adx(highs, lows, closes, 14)
	plusDI := talib.PlusDI(highs, lows, closes, 14)
	minusDI := talib.MinusDI(highs, lows, closes, 14)
	t.ADX = domain.ADX{
		Value:         tail(adx),
		PlusDI:        tail(plusDI),
		MinusDI:       tail(minusDI),
		TrendStrength: trendStrength(tail(adx)),
	}

	// Swings, Fibonacci and pivots.
	swingHighs, swingLows := findSwings(candles, 2)
	t.SwingHigh, t.SwingLow = latestSwingPair(candles, swingHighs, swingLows)
	t.Fib = fibonacci(t.SwingHigh, t.SwingLow)
	t.Pivots = floorPivots(candles)

	// Candlestick patterns (strength >= 0.3 only).
	t.Patterns = detectPatterns(candles)

	// RSI divergences on the last five swing pivots.
	t.Divergences = detectDivergences(candles, rsi, swingHighs, swingLows)

	// Volume spike: last bar above twice the trailing 20-bar average.
	t.VolumeSpike = volumeSpike(volumes)

	// VWAP over the series (for intraday series this is the session VWAP).
	t.VWAP = vwap(candles)

	return t, nil
}

func trendStrength(adx float64) string {
	switch {
	case adx >= 40:
		return "very-strong"
	case adx >= 25:
		return "strong"
	case adx >= 18:
		return "weak"
	default:
		return "absent"
	}
}

func volumeSpike(volumes []float64) bool {
	n := len(volumes)
	if n < 21 {
		return false
	}
	var sum float64
	for _, v := range volumes[n-21 : n-1] {
		sum += v
	}
	avg := sum / 20
	return avg > 0 && volumes[n-1] > 2*avg
}

func vwap(candles []domain.Candle) float64 {
	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * float64(c.Volume)
		vol += float64(c.Volume)
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// tail returns the last finite value of a talib output series.
func tail(s []float64) float64 {
	for i := len(s) - 1; i >= 0; i-- {
		if !math.IsNaN(s[i]) {
			return s[i]
		}
	}
	return 0
}

func prev(s []float64) float64 {
	if len(s) < 2 {
		return 0
	}
	v := s[len(s)-2]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func prev2(s []float64) float64 {
	if len(s) < 3 {
		return 0
	}
	v := s[len(s)-3]
	if math.IsNaN(v) {
		return 0
	}
	return v
}
