package signals

import "github.com/pkoukos/argus/internal/domain"

// Setup is a curated multi-condition pattern. Match inspects the raw inputs
// and the set of fired signals and returns a strength in [0,1]; matching a
// setup lifts confidence past the no-setup ceiling.
type Setup struct {
	Name      string
	Direction domain.Direction
	Match     func(in *Inputs, fired map[string]bool) (float64, bool)
}

func allFired(fired map[string]bool, names ...string) bool {
	for _, n := range names {
		if !fired[n] {
			return false
		}
	}
	return true
}

// Setups returns the curated setup library, in evaluation order.
func Setups() []Setup {
	return []Setup{
		{
			Name:      "oversold-reversal-long",
			Direction: domain.Bullish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if in.TA == nil || in.TA.RSI <= 0 || in.TA.RSI >= 25 {
					return 0, false
				}
				if in.TA.Bollinger.Position >= 0.1 || !in.TA.VolumeSpike {
					return 0, false
				}
				s := 0.3
				if fired[SigDivergenceBull] {
					s += 0.2
				}
				if fired[SigDarkPoolAccum] {
					s += 0.1
				}
				return s, true
			},
		},
		{
			Name:      "trend-continuation-long",
			Direction: domain.Bullish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !allFired(fired, SigEMAAlignBull, SigMACDPositive, SigAboveVWAP) {
					return 0, false
				}
				s := 0.4
				if fired[SigADXTrendBull] {
					s += 0.2
				}
				if fired[SigCallPremiumDom] {
					s += 0.15
				}
				return s, true
			},
		},
		{
			Name:      "trend-continuation-short",
			Direction: domain.Bearish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if in.Regime == domain.RegimeRanging {
					return 0, false
				}
				if !allFired(fired, SigEMAAlignBear, SigMACDNegative, SigBelowVWAP) {
					return 0, false
				}
				s := 0.4
				if fired[SigADXTrendBear] {
					s += 0.2
				}
				if fired[SigPutPremiumDom] {
					s += 0.15
				}
				return s, true
			},
		},
		{
			Name:      "breakout-ignition-long",
			Direction: domain.Bullish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigBBBreakoutUpper] || !fired[SigNewHighOfDay] {
					return 0, false
				}
				s := 0.5
				if fired[SigTapeImbalanceBuy] {
					s += 0.2
				}
				if fired[SigAggressiveCalls] {
					s += 0.15
				}
				return s, true
			},
		},
		{
			Name:      "breakdown-flush-short",
			Direction: domain.Bearish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigBBBreakdownLower] || !fired[SigNewLowOfDay] {
					return 0, false
				}
				s := 0.5
				if fired[SigTapeImbalanceSell] {
					s += 0.2
				}
				if fired[SigAggressivePuts] {
					s += 0.15
				}
				return s, true
			},
		},
		{
			Name:      "gap-and-go-long",
			Direction: domain.Bullish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigGapUpMomentum] {
					return 0, false
				}
				if in.Session != domain.SessionOpenRush && in.Session != domain.SessionPowerOpen {
					return 0, false
				}
				s := 0.35
				if fired[SigAboveVWAP] {
					s += 0.15
				}
				if fired[SigVolumeSpike] {
					s += 0.15
				}
				return s, true
			},
		},
		{
			Name:      "gap-fade-short",
			Direction: domain.Bearish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigGapFillFade] || !fired[SigBelowVWAP] {
					return 0, false
				}
				s := 0.35
				if fired[SigTapeImbalanceSell] {
					s += 0.2
				}
				return s, true
			},
		},
		{
			Name:      "squeeze-ignition-long",
			Direction: domain.Bullish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigSqueezeFuel] || !fired[SigTapeImbalanceBuy] {
					return 0, false
				}
				s := 0.45
				if fired[SigNewHighOfDay] {
					s += 0.25
				}
				if fired[SigNegativeGEX] {
					s += 0.1
				}
				return s, true
			},
		},
		{
			Name:      "earnings-momentum-long",
			Direction: domain.Bullish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigEarningsBeatGapUp] {
					return 0, false
				}
				s := 0.4
				if fired[SigCallPremiumDom] {
					s += 0.2
				}
				if fired[SigAboveVWAP] {
					s += 0.1
				}
				return s, true
			},
		},
		{
			Name:      "distribution-rollover-short",
			Direction: domain.Bearish,
			Match: func(in *Inputs, fired map[string]bool) (float64, bool) {
				if !fired[SigDarkPoolDistrib] || !fired[SigPutPremiumDom] {
					return 0, false
				}
				s := 0.4
				if fired[SigBelowVWAP] {
					s += 0.15
				}
				if fired[SigBlockSells] {
					s += 0.15
				}
				return s, true
			},
		},
	}
}
