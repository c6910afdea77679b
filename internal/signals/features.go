package signals

import (
	"math"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/regime"
)

// FeatureNames labels the vector positions, index-aligned with
// ExtractFeatures. Used for importance reporting only.
var FeatureNames = []string{
	"rsi", "macd_hist", "ema_align", "bb_position", "atr",
	"call_put_ratio", "darkpool_bias", "iv_rank", "short_interest", "volume_spike",
	"bb_bandwidth", "vwap_dev_pct", "regime_score", "gamma_proximity", "iv_skew",
	"pattern_score", "news_sentiment", "adx", "divergence_score", "fib_proximity",
	"rsi_slope", "macd_accel", "atr_change", "rsi_x_ema", "volume_x_macd",
}

// ExtractFeatures builds the fixed-order feature vector consumed by the
// calibrator. Order is part of the model contract: stored training samples
// and live inference must agree, so entries are never reordered or removed,
// only appended.
func ExtractFeatures(in *Inputs) []float64 {
	f := make([]float64, 0, domain.FeatureCount)

	var ta domain.Technicals
	if in.TA != nil {
		ta = *in.TA
	}

	rsi := ta.RSI
	macdHist := ta.MACD.Histogram
	emaAlign := 0.0
	switch ta.EMABias {
	case domain.Bullish:
		emaAlign = 1
	case domain.Bearish:
		emaAlign = -1
	}

	var callPut, ivRank, ivSkew, gammaProx float64
	if o := in.Options; o != nil {
		if o.PutPremium > 0 {
			callPut = o.CallPremium / o.PutPremium
		}
		ivRank = o.IVRank
		ivSkew = o.IVSkew
		if p := in.price(); p > 0 && o.MaxPain > 0 {
			gammaProx = 1 - math.Min(1, math.Abs(p-o.MaxPain)/p/0.02)
		}
	}

	var dpBias float64
	if in.DarkPool != nil {
		dpBias = in.DarkPool.AggressorBias
	}

	si := in.ShortInterest
	if si < 0 || si > 100 {
		si = 0
	}

	volSpike := 0.0
	if ta.VolumeSpike {
		volSpike = 1
	}

	var vwapDev float64
	if p, v := in.price(), vwapOf(in); p > 0 && v > 0 {
		vwapDev = 100 * (p - v) / v
	}

	patternScore := 0.0
	for _, p := range ta.Patterns {
		s := p.Strength
		if p.Direction == domain.Bearish {
			s = -s
		}
		patternScore += s
	}

	divScore := 0.0
	if bullS, _ := divergenceSide(in.TA, true); bullS > 0 {
		divScore = bullS
	} else if bearS, _ := divergenceSide(in.TA, false); bearS > 0 {
		divScore = -bearS
	}

	fibProx := 0.0
	if p := in.price(); p > 0 {
		for _, lvl := range ta.Fib.Levels {
			if lvl <= 0 {
				continue
			}
			prox := 1 - math.Min(1, math.Abs(p-lvl)/p/0.01)
			if prox > fibProx {
				fibProx = prox
			}
		}
	}

	f = append(f,
		rsi,                      // 0
		macdHist,                 // 1
		emaAlign,                 // 2
		ta.Bollinger.Position,    // 3
		ta.ATR,                   // 4
		callPut,                  // 5
		dpBias,                   // 6
		ivRank,                   // 7
		si,                       // 8
		volSpike,                 // 9
		ta.Bollinger.Bandwidth,   // 10
		vwapDev,                  // 11
		regime.Score(in.Regime),  // 12
		gammaProx,                // 13
		ivSkew,                   // 14
		patternScore,             // 15
		in.NewsSentiment,         // 16
		ta.ADX.Value,             // 17
		divScore,                 // 18
		fibProx,                  // 19
		ta.RSISlope,              // 20
		ta.MACD.Accel,            // 21
		ta.ATRChange,             // 22
		rsi*emaAlign,             // 23 interaction
		volSpike*macdHist,        // 24 interaction
	)
	return f
}
