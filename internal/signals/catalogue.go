package signals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkoukos/argus/internal/domain"
)

// Signal names. The catalogue is evaluated in declaration order and the
// SignalScore lists every fired indicator in that order.
const (
	SigRSIOversold       = "RSI Oversold"
	SigRSIOverbought     = "RSI Overbought"
	SigRSIBullish        = "RSI Bullish"
	SigRSIBearish        = "RSI Bearish"
	SigRSIContinuation   = "RSI Momentum Continuation"
	SigEMAAlignBull      = "EMA Alignment Bull"
	SigEMAAlignBear      = "EMA Alignment Bear"
	SigMACDPositive      = "MACD Positive"
	SigMACDNegative      = "MACD Negative"
	SigMACDSlopeUp       = "MACD Slope Up"
	SigMACDSlopeDown     = "MACD Slope Down"
	SigBBDipBuy          = "BB Dip Buy (Vol)"
	SigBBBreakoutUpper   = "BB Breakout Upper"
	SigBBBreakdownLower  = "BB Breakdown Lower"
	SigBBSqueeze         = "BB Squeeze"
	SigADXTrendBull      = "ADX Strong Trend Bull"
	SigADXTrendBear      = "ADX Strong Trend Bear"
	SigAboveVWAP         = "Above VWAP"
	SigBelowVWAP         = "Below VWAP"
	SigVolumeSpike       = "Intraday Volume Spike"
	SigPattern           = "Candle Pattern"
	SigDivergenceBull    = "RSI Divergence Bull"
	SigDivergenceBear    = "RSI Divergence Bear"
	SigFibGoldenPocket   = "Fib Golden Pocket"
	SigPivotSupportHold  = "Pivot Support Hold"
	SigPivotResistReject = "Pivot Resistance Reject"
	SigCallPremiumDom    = "Call Premium Dominance"
	SigPutPremiumDom     = "Put Premium Dominance"
	SigAggressiveCalls   = "Aggressive Call Flow"
	SigAggressivePuts    = "Aggressive Put Flow"
	SigNetPremiumRising  = "Net Premium Rising"
	SigNetPremiumFalling = "Net Premium Falling"
	SigGammaPin          = "Gamma Pin Near Spot"
	SigNegativeGEX       = "Negative GEX"
	SigMaxPainAbove      = "Max Pain Magnet Above"
	SigMaxPainBelow      = "Max Pain Magnet Below"
	SigIVRankHigh        = "IV Rank High"
	SigIVRankLow         = "IV Rank Low"
	SigIVSkewBullish     = "IV Skew Bullish"
	SigIVSkewBearish     = "IV Skew Bearish"
	SigIVContango        = "IV Contango"
	SigIVBackwardation   = "IV Backwardation"
	SigNOPEExtremeHigh   = "NOPE Extreme High"
	SigNOPEExtremeLow    = "NOPE Extreme Low"
	SigOISurgeBull       = "OI Surge Bull"
	SigOISurgeBear       = "OI Surge Bear"
	SigDarkPoolAccum     = "Dark Pool Accumulation"
	SigDarkPoolDistrib   = "Dark Pool Distribution"
	SigBlockBuys         = "Large Block Buys"
	SigBlockSells        = "Large Block Sells"
	SigTapeImbalanceBuy  = "Tape Imbalance Buy"
	SigTapeImbalanceSell = "Tape Imbalance Sell"
	SigNewHighOfDay      = "New High Of Day"
	SigNewLowOfDay       = "New Low Of Day"
	SigSqueezeFuel       = "Squeeze Fuel"
	SigShortIntInvalid   = "Short Interest Invalid"
	SigEarningsBeatGapUp = "Earnings Beat + Gap Up"
	SigEarningsMissGapDn = "Earnings Miss + Gap Down"
	SigEarningsSoon      = "Earnings Within 48h"
	SigNewsPositive      = "News Sentiment Positive"
	SigNewsNegative      = "News Sentiment Negative"
	SigCongressBuying    = "Congress Buying"
	SigInsiderBuying     = "Insider Buying"
	SigInsiderSelling    = "Insider Selling"
	SigMarketTideBull    = "Market Tide Bullish"
	SigMarketTideBear    = "Market Tide Bearish"
	SigVIXSpike          = "VIX Spike"
	SigBreadthStrong     = "Breadth Strong"
	SigBreadthWeak       = "Breadth Weak"
	SigGapUpMomentum     = "Gap Up Momentum"
	SigGapDownMomentum   = "Gap Down Momentum"
	SigGapFillFade       = "Gap Fill Fade"
	SigOversoldBounce    = "Oversold Bounce"
	SigOverboughtFade    = "Overbought Fade"
)

// Indicator classes drive session multipliers and regime dampening.
const (
	ClassTrend         = "trend"
	ClassMeanReversion = "mean-reversion"
	ClassTape          = "tape"
	ClassOptions       = "options"
	ClassCatalyst      = "catalyst"
	ClassContext       = "context"
	ClassInfo          = "info"
)

// Contribution is one indicator's vote. Scale multiplies the configured base
// weight; informational entries use direction neutral and scale 0.
type Contribution struct {
	Direction domain.Direction
	Scale     float64
	Detail    string
}

// Indicator is one catalogue entry: a pure evaluation over the inputs.
type Indicator struct {
	Name  string
	Class string
	Eval  func(in *Inputs) *Contribution
}

func bull(scale float64, detail string) *Contribution {
	return &Contribution{Direction: domain.Bullish, Scale: scale, Detail: detail}
}

func bear(scale float64, detail string) *Contribution {
	return &Contribution{Direction: domain.Bearish, Scale: scale, Detail: detail}
}

func info(detail string) *Contribution {
	return &Contribution{Direction: domain.Neutral, Scale: 0, Detail: detail}
}

// Catalogue returns the fixed indicator list, in evaluation order.
func Catalogue() []Indicator {
	return []Indicator{
		// --- RSI family -----------------------------------------------------
		{SigRSIOversold, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.RSI <= 0 || in.TA.RSI >= 30 {
				return nil
			}
			// In a strong downtrend a washed-out RSI is continuation, not a
			// reversal read; the continuation indicator picks it up instead.
			if in.Regime == domain.RegimeTrendingDown && in.TA.ADX.Value >= 30 {
				return nil
			}
			return bull(1, fmt.Sprintf("RSI %.1f", in.TA.RSI))
		}},
		{SigRSIOverbought, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.RSI <= 70 {
				return nil
			}
			if in.Regime == domain.RegimeTrendingUp && in.TA.ADX.Value >= 30 {
				return nil // continuation case
			}
			return bear(1, fmt.Sprintf("RSI %.1f", in.TA.RSI))
		}},
		{SigRSIContinuation, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil {
				return nil
			}
			if in.Regime == domain.RegimeTrendingUp && in.TA.ADX.Value >= 30 && in.TA.RSI > 70 {
				return bull(1, fmt.Sprintf("RSI %.1f riding strong uptrend", in.TA.RSI))
			}
			if in.Regime == domain.RegimeTrendingDown && in.TA.ADX.Value >= 30 && in.TA.RSI < 30 {
				return bear(1, fmt.Sprintf("RSI %.1f riding strong downtrend", in.TA.RSI))
			}
			return nil
		}},
		{SigRSIBullish, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.RSI < 50 || in.TA.RSI > 70 || in.TA.RSISlope <= 0 {
				return nil
			}
			return bull(1, fmt.Sprintf("RSI %.1f rising", in.TA.RSI))
		}},
		{SigRSIBearish, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.RSI < 30 || in.TA.RSI > 50 || in.TA.RSISlope >= 0 {
				return nil
			}
			return bear(1, fmt.Sprintf("RSI %.1f falling", in.TA.RSI))
		}},

		// --- EMA / MACD trend stack ----------------------------------------
		{SigEMAAlignBull, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.EMABias != domain.Bullish {
				return nil
			}
			return bull(1, "EMA9 > EMA20 > EMA50")
		}},
		{SigEMAAlignBear, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.EMABias != domain.Bearish {
				return nil
			}
			return bear(1, "EMA9 < EMA20 < EMA50")
		}},
		{SigMACDPositive, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.MACD.Suppressed || in.TA.MACD.Histogram <= 0 {
				return nil
			}
			return bull(1, fmt.Sprintf("histogram %.3f", in.TA.MACD.Histogram))
		}},
		{SigMACDNegative, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.MACD.Suppressed || in.TA.MACD.Histogram >= 0 {
				return nil
			}
			return bear(1, fmt.Sprintf("histogram %.3f", in.TA.MACD.Histogram))
		}},
		{SigMACDSlopeUp, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.MACD.Suppressed || in.TA.MACD.Slope <= 0 || in.TA.MACD.Histogram <= 0 {
				return nil
			}
			return bull(1, "histogram expanding")
		}},
		{SigMACDSlopeDown, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.MACD.Suppressed || in.TA.MACD.Slope >= 0 || in.TA.MACD.Histogram >= 0 {
				return nil
			}
			return bear(1, "histogram expanding down")
		}},

		// --- Bollinger -----------------------------------------------------
		{SigBBDipBuy, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.Bollinger.Position >= 0.15 || !in.TA.VolumeSpike {
				return nil
			}
			return bull(1, fmt.Sprintf("BB position %.2f with volume", in.TA.Bollinger.Position))
		}},
		{SigBBBreakoutUpper, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.Bollinger.Position <= 0.95 || !in.TA.VolumeSpike {
				return nil
			}
			return bull(1, "close above upper band on volume")
		}},
		{SigBBBreakdownLower, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.Bollinger.Position >= 0.05 || !in.TA.VolumeSpike {
				return nil
			}
			return bear(1, "close below lower band on volume")
		}},
		{SigBBSqueeze, ClassInfo, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.Bollinger.Bandwidth <= 0 || in.TA.Bollinger.Bandwidth >= 0.05 {
				return nil
			}
			return info(fmt.Sprintf("bandwidth %.3f, expansion pending", in.TA.Bollinger.Bandwidth))
		}},

		// --- ADX / VWAP ----------------------------------------------------
		{SigADXTrendBull, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.ADX.Value < 25 || in.TA.ADX.PlusDI <= in.TA.ADX.MinusDI {
				return nil
			}
			return bull(1, fmt.Sprintf("ADX %.1f, +DI leads", in.TA.ADX.Value))
		}},
		{SigADXTrendBear, ClassTrend, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.ADX.Value < 25 || in.TA.ADX.MinusDI <= in.TA.ADX.PlusDI {
				return nil
			}
			return bear(1, fmt.Sprintf("ADX %.1f, -DI leads", in.TA.ADX.Value))
		}},
		{SigAboveVWAP, ClassTrend, func(in *Inputs) *Contribution {
			p := in.price()
			vwap := vwapOf(in)
			if p <= 0 || vwap <= 0 || p <= vwap {
				return nil
			}
			return bull(1, fmt.Sprintf("%.2f above VWAP %.2f", p, vwap))
		}},
		{SigBelowVWAP, ClassTrend, func(in *Inputs) *Contribution {
			p := in.price()
			vwap := vwapOf(in)
			if p <= 0 || vwap <= 0 || p >= vwap {
				return nil
			}
			return bear(1, fmt.Sprintf("%.2f below VWAP %.2f", p, vwap))
		}},
		{SigVolumeSpike, ClassTape, func(in *Inputs) *Contribution {
			ta := in.IntradayTA
			if ta == nil {
				ta = in.TA
			}
			if ta == nil || !ta.VolumeSpike {
				return nil
			}
			return info("volume 2x above 20-bar average")
		}},

		// --- Patterns & divergences ---------------------------------------
		{SigPattern, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil || len(in.TA.Patterns) == 0 {
				return nil
			}
			best := in.TA.Patterns[0]
			for _, p := range in.TA.Patterns[1:] {
				if p.Strength > best.Strength {
					best = p
				}
			}
			c := &Contribution{Direction: best.Direction, Scale: best.Strength, Detail: best.Name}
			return c
		}},
		{SigDivergenceBull, ClassMeanReversion, func(in *Inputs) *Contribution {
			s, detail := divergenceSide(in.TA, true)
			if s <= 0 {
				return nil
			}
			return bull(s, detail)
		}},
		{SigDivergenceBear, ClassMeanReversion, func(in *Inputs) *Contribution {
			s, detail := divergenceSide(in.TA, false)
			if s <= 0 {
				return nil
			}
			return bear(s, detail)
		}},
		{SigFibGoldenPocket, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil {
				return nil
			}
			p := in.price()
			lvl, ok := in.TA.Fib.Levels["0.618"]
			if !ok || p <= 0 || lvl <= 0 {
				return nil
			}
			if math.Abs(p-lvl)/lvl < 0.005 {
				return bull(1, fmt.Sprintf("price %.2f at 0.618 retrace %.2f", p, lvl))
			}
			return nil
		}},
		{SigPivotSupportHold, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil {
				return nil
			}
			p := in.price()
			if p <= 0 || in.TA.Pivots.S1 <= 0 {
				return nil
			}
			if math.Abs(p-in.TA.Pivots.S1)/in.TA.Pivots.S1 < 0.003 && in.TA.RSISlope > 0 {
				return bull(1, fmt.Sprintf("holding S1 %.2f", in.TA.Pivots.S1))
			}
			return nil
		}},
		{SigPivotResistReject, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil {
				return nil
			}
			p := in.price()
			if p <= 0 || in.TA.Pivots.R1 <= 0 {
				return nil
			}
			if math.Abs(p-in.TA.Pivots.R1)/in.TA.Pivots.R1 < 0.003 && in.TA.RSISlope < 0 {
				return bear(1, fmt.Sprintf("rejected at R1 %.2f", in.TA.Pivots.R1))
			}
			return nil
		}},

		// --- Options surface -----------------------------------------------
		{SigCallPremiumDom, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.PutPremium <= 0 {
				return nil
			}
			ratio := in.Options.CallPremium / in.Options.PutPremium
			if ratio < 1.5 {
				return nil
			}
			return bull(1, fmt.Sprintf("call/put premium %.2f", ratio))
		}},
		{SigPutPremiumDom, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.CallPremium <= 0 {
				return nil
			}
			ratio := in.Options.PutPremium / in.Options.CallPremium
			if ratio < 1.5 {
				return nil
			}
			return bear(1, fmt.Sprintf("put/call premium %.2f", ratio))
		}},
		{SigAggressiveCalls, ClassOptions, func(in *Inputs) *Contribution {
			n := aggressiveFlow(in.Options, "call")
			if n < 3 {
				return nil
			}
			return bull(1, fmt.Sprintf("%d aggressive call sweeps", n))
		}},
		{SigAggressivePuts, ClassOptions, func(in *Inputs) *Contribution {
			n := aggressiveFlow(in.Options, "put")
			if n < 3 {
				return nil
			}
			return bear(1, fmt.Sprintf("%d aggressive put sweeps", n))
		}},
		{SigNetPremiumRising, ClassOptions, func(in *Inputs) *Contribution {
			d := netPremiumDelta(in.Options)
			if d <= 0 {
				return nil
			}
			return bull(1, fmt.Sprintf("net premium +%.0f", d))
		}},
		{SigNetPremiumFalling, ClassOptions, func(in *Inputs) *Contribution {
			d := netPremiumDelta(in.Options)
			if d >= 0 {
				return nil
			}
			return bear(1, fmt.Sprintf("net premium %.0f", d))
		}},
		{SigGammaPin, ClassInfo, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.MaxPain <= 0 {
				return nil
			}
			p := in.price()
			if p <= 0 {
				return nil
			}
			if math.Abs(p-in.Options.MaxPain)/p < 0.005 {
				return info(fmt.Sprintf("spot %.2f pinned at max pain %.2f", p, in.Options.MaxPain))
			}
			return nil
		}},
		{SigNegativeGEX, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.SpotGamma >= 0 {
				return nil
			}
			return bear(1, "dealers short gamma, moves amplify")
		}},
		{SigMaxPainAbove, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.MaxPain <= 0 {
				return nil
			}
			p := in.price()
			if p <= 0 || in.Options.MaxPain <= p*1.01 {
				return nil
			}
			return bull(1, fmt.Sprintf("max pain %.2f above spot", in.Options.MaxPain))
		}},
		{SigMaxPainBelow, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.MaxPain <= 0 {
				return nil
			}
			p := in.price()
			if p <= 0 || in.Options.MaxPain >= p*0.99 {
				return nil
			}
			return bear(1, fmt.Sprintf("max pain %.2f below spot", in.Options.MaxPain))
		}},
		{SigIVRankHigh, ClassInfo, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.IVRank < 80 {
				return nil
			}
			return info(fmt.Sprintf("IV rank %.0f, premium rich", in.Options.IVRank))
		}},
		{SigIVRankLow, ClassInfo, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.IVRank <= 0 || in.Options.IVRank > 20 {
				return nil
			}
			return info(fmt.Sprintf("IV rank %.0f, premium cheap", in.Options.IVRank))
		}},
		{SigIVSkewBullish, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.IVSkew < 2 {
				return nil
			}
			return bull(1, fmt.Sprintf("risk reversal %.1f, calls bid", in.Options.IVSkew))
		}},
		{SigIVSkewBearish, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.IVSkew > -2 {
				return nil
			}
			return bear(1, fmt.Sprintf("risk reversal %.1f, puts bid", in.Options.IVSkew))
		}},
		{SigIVContango, ClassInfo, func(in *Inputs) *Contribution {
			if in.Options == nil || !in.Options.TermContango {
				return nil
			}
			return info("vol term structure in contango")
		}},
		{SigIVBackwardation, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.TermContango || in.Options.RealizedVol <= 0 {
				return nil
			}
			return bear(1, "vol term structure inverted")
		}},
		{SigNOPEExtremeHigh, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.NOPE < 60 {
				return nil
			}
			return bear(1, fmt.Sprintf("NOPE %.0f", in.Options.NOPE))
		}},
		{SigNOPEExtremeLow, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.NOPE > -60 {
				return nil
			}
			return bull(1, fmt.Sprintf("NOPE %.0f", in.Options.NOPE))
		}},
		{SigOISurgeBull, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.OIChange < 0.1 || netPremiumDelta(in.Options) <= 0 {
				return nil
			}
			return bull(1, fmt.Sprintf("OI +%.0f%% with bullish premium", 100*in.Options.OIChange))
		}},
		{SigOISurgeBear, ClassOptions, func(in *Inputs) *Contribution {
			if in.Options == nil || in.Options.OIChange < 0.1 || netPremiumDelta(in.Options) >= 0 {
				return nil
			}
			return bear(1, fmt.Sprintf("OI +%.0f%% with bearish premium", 100*in.Options.OIChange))
		}},

		// --- Dark pool & tape ---------------------------------------------
		{SigDarkPoolAccum, ClassTape, func(in *Inputs) *Contribution {
			if in.DarkPool == nil || in.DarkPool.AggressorBias < 0.3 {
				return nil
			}
			return bull(1, fmt.Sprintf("aggressor bias %.2f over %d blocks", in.DarkPool.AggressorBias, in.DarkPool.BlockCount))
		}},
		{SigDarkPoolDistrib, ClassTape, func(in *Inputs) *Contribution {
			if in.DarkPool == nil || in.DarkPool.AggressorBias > -0.3 {
				return nil
			}
			return bear(1, fmt.Sprintf("aggressor bias %.2f over %d blocks", in.DarkPool.AggressorBias, in.DarkPool.BlockCount))
		}},
		{SigBlockBuys, ClassTape, func(in *Inputs) *Contribution {
			if in.Tick == nil || in.Tick.LargeBlockBuys < 3 || in.Tick.LargeBlockBuys <= in.Tick.LargeBlockSells {
				return nil
			}
			return bull(1, fmt.Sprintf("%d block buys vs %d sells", in.Tick.LargeBlockBuys, in.Tick.LargeBlockSells))
		}},
		{SigBlockSells, ClassTape, func(in *Inputs) *Contribution {
			if in.Tick == nil || in.Tick.LargeBlockSells < 3 || in.Tick.LargeBlockSells <= in.Tick.LargeBlockBuys {
				return nil
			}
			return bear(1, fmt.Sprintf("%d block sells vs %d buys", in.Tick.LargeBlockSells, in.Tick.LargeBlockBuys))
		}},
		{SigTapeImbalanceBuy, ClassTape, func(in *Inputs) *Contribution {
			if in.Tick == nil || in.Tick.FlowImbalance < 0.3 || stale(in.Tick.UpdatedAt, in.Now) {
				return nil
			}
			return bull(1, fmt.Sprintf("flow imbalance %.2f", in.Tick.FlowImbalance))
		}},
		{SigTapeImbalanceSell, ClassTape, func(in *Inputs) *Contribution {
			if in.Tick == nil || in.Tick.FlowImbalance > -0.3 || stale(in.Tick.UpdatedAt, in.Now) {
				return nil
			}
			return bear(1, fmt.Sprintf("flow imbalance %.2f", in.Tick.FlowImbalance))
		}},
		{SigNewHighOfDay, ClassTape, func(in *Inputs) *Contribution {
			if in.Tick == nil || in.Tick.HighOfDay <= 0 || in.Tick.LastPrice < in.Tick.HighOfDay*0.999 {
				return nil
			}
			return bull(1, fmt.Sprintf("printing HOD %.2f", in.Tick.HighOfDay))
		}},
		{SigNewLowOfDay, ClassTape, func(in *Inputs) *Contribution {
			if in.Tick == nil || in.Tick.LowOfDay <= 0 || in.Tick.LastPrice > in.Tick.LowOfDay*1.001 {
				return nil
			}
			return bear(1, fmt.Sprintf("printing LOD %.2f", in.Tick.LowOfDay))
		}},

		// --- Short interest -------------------------------------------------
		{SigSqueezeFuel, ClassCatalyst, func(in *Inputs) *Contribution {
			if in.ShortInterest < 20 || in.ShortInterest > 100 {
				return nil
			}
			if in.Tick == nil || in.Tick.FlowImbalance < 0.2 {
				return nil
			}
			return bull(1, fmt.Sprintf("SI %.1f%% with buy pressure", in.ShortInterest))
		}},
		{SigShortIntInvalid, ClassInfo, func(in *Inputs) *Contribution {
			if in.ShortInterest <= 100 {
				return nil
			}
			// Impossible read: refuse to score, surface as informational only.
			return info(fmt.Sprintf("short interest %.1f%% exceeds float, ignored", in.ShortInterest))
		}},

		// --- Earnings & news -----------------------------------------------
		{SigEarningsBeatGapUp, ClassCatalyst, func(in *Inputs) *Contribution {
			if in.Earnings == nil || in.Earnings.Beat != "BEAT" || in.Earnings.AfterHoursChange < 2 {
				return nil
			}
			return bull(1, fmt.Sprintf("beat by %.1f%%, AH +%.1f%%", in.Earnings.SurprisePct, in.Earnings.AfterHoursChange))
		}},
		{SigEarningsMissGapDn, ClassCatalyst, func(in *Inputs) *Contribution {
			if in.Earnings == nil || in.Earnings.Beat != "MISS" || in.Earnings.AfterHoursChange > -2 {
				return nil
			}
			return bear(1, fmt.Sprintf("missed by %.1f%%, AH %.1f%%", in.Earnings.SurprisePct, in.Earnings.AfterHoursChange))
		}},
		{SigEarningsSoon, ClassInfo, func(in *Inputs) *Contribution {
			if in.Earnings == nil || in.Earnings.NextDate == "" {
				return nil
			}
			d, err := time.ParseInLocation("2006-01-02", in.Earnings.NextDate, domain.Eastern)
			if err != nil {
				return nil
			}
			until := d.Sub(in.Now)
			if until < 0 || until > 48*time.Hour {
				return nil
			}
			return info(fmt.Sprintf("earnings %s %s", in.Earnings.NextDate, in.Earnings.AnnounceTime))
		}},
		{SigNewsPositive, ClassCatalyst, func(in *Inputs) *Contribution {
			if in.NewsSentiment < 0.4 {
				return nil
			}
			return bull(1, fmt.Sprintf("news sentiment %.2f", in.NewsSentiment))
		}},
		{SigNewsNegative, ClassCatalyst, func(in *Inputs) *Contribution {
			if in.NewsSentiment > -0.4 {
				return nil
			}
			return bear(1, fmt.Sprintf("news sentiment %.2f", in.NewsSentiment))
		}},
		{SigCongressBuying, ClassCatalyst, func(in *Inputs) *Contribution {
			n := congressBuys(in)
			if n == 0 {
				return nil
			}
			return bull(1, fmt.Sprintf("%d recent congressional buys", n))
		}},
		{SigInsiderBuying, ClassCatalyst, func(in *Inputs) *Contribution {
			v := insiderNet(in)
			if v <= 0 {
				return nil
			}
			return bull(1, fmt.Sprintf("insider net buying $%.0f", v))
		}},
		{SigInsiderSelling, ClassCatalyst, func(in *Inputs) *Contribution {
			v := insiderNet(in)
			if v >= 0 {
				return nil
			}
			return bear(1, fmt.Sprintf("insider net selling $%.0f", -v))
		}},

		// --- Market context -------------------------------------------------
		{SigMarketTideBull, ClassContext, func(in *Inputs) *Contribution {
			t := in.Market.Tide
			if t == nil || t.BearPremium <= 0 || t.BullPremium/t.BearPremium < 1.3 {
				return nil
			}
			return bull(1, fmt.Sprintf("tide %.2f bull", t.BullPremium/t.BearPremium))
		}},
		{SigMarketTideBear, ClassContext, func(in *Inputs) *Contribution {
			t := in.Market.Tide
			if t == nil || t.BullPremium <= 0 || t.BearPremium/t.BullPremium < 1.3 {
				return nil
			}
			return bear(1, fmt.Sprintf("tide %.2f bear", t.BearPremium/t.BullPremium))
		}},
		{SigVIXSpike, ClassContext, func(in *Inputs) *Contribution {
			if in.Market.VIX == nil || !in.Market.VIX.Spiking {
				return nil
			}
			return bear(1, fmt.Sprintf("VIX %.1f spiking %+.1f%%", in.Market.VIX.Level, in.Market.VIX.ChangePct))
		}},
		{SigBreadthStrong, ClassContext, func(in *Inputs) *Contribution {
			if in.Market.Breadth < 0.65 {
				return nil
			}
			return bull(1, fmt.Sprintf("breadth %.2f", in.Market.Breadth))
		}},
		{SigBreadthWeak, ClassContext, func(in *Inputs) *Contribution {
			if in.Market.Breadth <= 0 || in.Market.Breadth > 0.35 {
				return nil
			}
			return bear(1, fmt.Sprintf("breadth %.2f", in.Market.Breadth))
		}},

		// --- Gaps -----------------------------------------------------------
		{SigGapUpMomentum, ClassCatalyst, func(in *Inputs) *Contribution {
			g := in.gapPct()
			if g < 1 || in.Quote == nil || in.price() <= in.Quote.Open {
				return nil
			}
			return bull(1, fmt.Sprintf("gap +%.1f%% holding above open", g))
		}},
		{SigGapDownMomentum, ClassCatalyst, func(in *Inputs) *Contribution {
			g := in.gapPct()
			if g > -1 || in.Quote == nil || in.price() >= in.Quote.Open {
				return nil
			}
			return bear(1, fmt.Sprintf("gap %.1f%% breaking below open", g))
		}},
		{SigGapFillFade, ClassMeanReversion, func(in *Inputs) *Contribution {
			g := in.gapPct()
			if g < 1 || in.Quote == nil || in.price() >= in.Quote.Open {
				return nil
			}
			return bear(1, fmt.Sprintf("gap +%.1f%% failing, fade toward fill", g))
		}},
		{SigOversoldBounce, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.TA == nil || in.TA.RSI <= 0 || in.TA.RSI >= 25 || in.TA.Bollinger.Position >= 0.1 {
				return nil
			}
			return bull(1, fmt.Sprintf("RSI %.1f at band low", in.TA.RSI))
		}},
		{SigOverboughtFade, ClassMeanReversion, func(in *Inputs) *Contribution {
			if in.Regime != domain.RegimeRanging {
				return nil
			}
			if in.TA == nil || in.TA.RSI < 78 || in.TA.Bollinger.Position < 0.95 {
				return nil
			}
			return bear(1, fmt.Sprintf("RSI %.1f stretched in range", in.TA.RSI))
		}},
	}
}

func vwapOf(in *Inputs) float64 {
	if in.Tick != nil && in.Tick.VWAP > 0 {
		return in.Tick.VWAP
	}
	if in.Quote != nil && in.Quote.VWAP > 0 {
		return in.Quote.VWAP
	}
	if in.IntradayTA != nil && in.IntradayTA.VWAP > 0 {
		return in.IntradayTA.VWAP
	}
	return 0
}

func stale(updated, now time.Time) bool {
	return updated.IsZero() || now.Sub(updated) > 60*time.Second
}

func aggressiveFlow(o *domain.OptionsFacts, side string) int {
	if o == nil {
		return 0
	}
	n := 0
	for _, a := range o.FlowAlerts {
		if a.Aggressive && a.Side == side {
			n++
		}
	}
	return n
}

func netPremiumDelta(o *domain.OptionsFacts) float64 {
	if o == nil || len(o.NetPremium) < 2 {
		return 0
	}
	return o.NetPremium[len(o.NetPremium)-1].NetPremium - o.NetPremium[len(o.NetPremium)-2].NetPremium
}

func congressBuys(in *Inputs) int {
	n := 0
	for _, c := range in.Market.Congress {
		if c.Ticker == in.Ticker && strings.EqualFold(c.Side, "buy") && in.Now.Sub(c.DisclosedAt) < 14*24*time.Hour {
			n++
		}
	}
	return n
}

func insiderNet(in *Inputs) float64 {
	var net float64
	found := false
	for _, tx := range in.Market.Insiders {
		if tx.Ticker != in.Ticker || in.Now.Sub(tx.At) > 30*24*time.Hour {
			continue
		}
		found = true
		if strings.EqualFold(tx.Side, "buy") {
			net += tx.Value
		} else {
			net -= tx.Value
		}
	}
	if !found {
		return 0
	}
	return net
}

// divergenceSide returns the strongest divergence strength for one side.
func divergenceSide(ta *domain.Technicals, bullSide bool) (float64, string) {
	if ta == nil {
		return 0, ""
	}
	var best float64
	var detail string
	for _, d := range ta.Divergences {
		isBull := d.Type == domain.RegularBull || d.Type == domain.HiddenBull
		if isBull != bullSide {
			continue
		}
		if d.Strength > best {
			best = d.Strength
			detail = string(d.Type) + ": " + d.Detail
		}
	}
	return best, detail
}
