package signals

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultVersions(), zerolog.Nop())
}

func TestScoreEmptyInputsIsNeutral(t *testing.T) {
	e := newTestEngine()
	score := e.Score(&Inputs{
		Ticker:  "XYZ",
		Session: domain.SessionMidday,
		Regime:  domain.RegimeUnknown,
		Horizon: domain.HorizonDay,
		Now:     time.Now(),
	})

	assert.Equal(t, domain.Neutral, score.Direction)
	assert.LessOrEqual(t, score.Confidence, 40, "neutral confidence is capped")
	assert.Zero(t, score.BullWeight)
	assert.Zero(t, score.BearWeight)
	assert.Len(t, score.Features, domain.FeatureCount)
}

func TestScoreOversoldReversalSetup(t *testing.T) {
	e := newTestEngine()
	in := &Inputs{
		Ticker: "XYZ",
		TA: &domain.Technicals{
			RSI:         20,
			Bollinger:   domain.Bollinger{Position: 0.05, Upper: 102, Middle: 100, Lower: 98},
			VolumeSpike: true,
		},
		Session: domain.SessionMidday,
		Regime:  domain.RegimeUnknown,
		Horizon: domain.HorizonDay,
		Now:     time.Now(),
	}
	score := e.Score(in)

	require.Equal(t, domain.Bullish, score.Direction)
	assert.Contains(t, score.MatchedSetups, "oversold-reversal-long")
	// Base strength 0.3: 60 + 30*0.3, plus the bonus for the weighted read
	// agreeing with the setup direction.
	assert.Equal(t, 74, score.Confidence)
	assert.Greater(t, score.BullWeight, score.BearWeight+directionSpread)

	names := make([]string, 0, len(score.Signals))
	for _, s := range score.Signals {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, SigRSIOversold)
	assert.Contains(t, names, SigBBDipBuy)
	assert.Contains(t, names, SigOversoldBounce)
}

func TestSetupOverridesNeutralWeightedRead(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	// A washed-out long read (RSI 20 at the band low on volume) against a
	// bearish trend stack and tape: the weights nearly cancel, so the
	// weighted read alone would stay neutral. The matched long setup still
	// decides the direction; no agreement bonus without a concurring read.
	in := &Inputs{
		Ticker: "XYZ",
		Quote:  &domain.Quote{Ticker: "XYZ", Last: 99, VWAP: 100},
		TA: &domain.Technicals{
			RSI:         20,
			Bollinger:   domain.Bollinger{Position: 0.05, Upper: 102, Middle: 100, Lower: 98},
			VolumeSpike: true,
			EMABias:     domain.Bearish,
		},
		Tick: &domain.TickSummary{
			Ticker:          "XYZ",
			LastPrice:       99,
			LowOfDay:        99,
			HighOfDay:       101,
			FlowImbalance:   -0.5,
			LargeBlockSells: 4,
			UpdatedAt:       now,
		},
		Market:  domain.MarketFacts{VIX: &domain.VIXState{Level: 28, ChangePct: 12, Spiking: true}},
		Session: domain.SessionMidday,
		Regime:  domain.RegimeUnknown,
		Horizon: domain.HorizonDay,
		Now:     now,
	}
	score := e.Score(in)

	assert.LessOrEqual(t, score.BullWeight, score.BearWeight+directionSpread,
		"the weighted read alone would not go long here")
	require.Equal(t, domain.Bullish, score.Direction)
	assert.Contains(t, score.MatchedSetups, "oversold-reversal-long")
	assert.Equal(t, 69, score.Confidence)
}

func TestScoreWithoutSetupStaysUnderCeiling(t *testing.T) {
	e := newTestEngine()
	// Bullish trend stack but price below VWAP, so no curated setup matches.
	in := &Inputs{
		Ticker: "XYZ",
		Quote:  &domain.Quote{Ticker: "XYZ", Last: 99, VWAP: 100},
		TA: &domain.Technicals{
			RSI:      60,
			RSISlope: 1,
			EMABias:  domain.Bullish,
			MACD:     domain.MACD{Histogram: 1.5, Slope: 0.2},
			ADX:      domain.ADX{Value: 30, PlusDI: 30, MinusDI: 10},
		},
		Session: domain.SessionMidday,
		Regime:  domain.RegimeUnknown,
		Horizon: domain.HorizonDay,
		Now:     time.Now(),
	}
	score := e.Score(in)

	require.Equal(t, domain.Bullish, score.Direction)
	assert.Empty(t, score.MatchedSetups)
	assert.LessOrEqual(t, score.Confidence, int(noSetupCeiling))
}

func TestRangingRegimeRaisesBearThreshold(t *testing.T) {
	e := newTestEngine()
	now := time.Now()
	mkInputs := func(r domain.Regime) *Inputs {
		return &Inputs{
			Ticker: "XYZ",
			Tick: &domain.TickSummary{
				Ticker:          "XYZ",
				LastPrice:       10,
				LowOfDay:        10,
				HighOfDay:       11,
				FlowImbalance:   -0.5,
				LargeBlockSells: 4,
				UpdatedAt:       now,
			},
			Session: domain.SessionMidday,
			Regime:  r,
			Horizon: domain.HorizonDay,
			Now:     now,
		}
	}

	// Tape-driven bear weight ~3.2: enough for a short in a normal tape.
	trending := e.Score(mkInputs(domain.RegimeUnknown))
	require.Equal(t, domain.Bearish, trending.Direction)

	// Same weight in a ranging tape stays under the raised threshold.
	ranging := e.Score(mkInputs(domain.RegimeRanging))
	assert.Equal(t, domain.Neutral, ranging.Direction)
}

func TestShadowScoresComputed(t *testing.T) {
	e := newTestEngine()
	score := e.Score(&Inputs{
		Ticker: "XYZ",
		TA: &domain.Technicals{
			EMABias: domain.Bullish,
			MACD:    domain.MACD{Histogram: 2},
		},
		Session: domain.SessionMidday,
		Regime:  domain.RegimeUnknown,
		Horizon: domain.HorizonDay,
		Now:     time.Now(),
	})

	require.Contains(t, score.ShadowScores, "v2")
	shadow := score.ShadowScores["v2"]
	// v2 weighs the trend stack heavier than v3.
	assert.Greater(t, shadow.BullWeight, score.BullWeight)
}

func TestInformationalSignalsCarryNoWeight(t *testing.T) {
	e := newTestEngine()
	score := e.Score(&Inputs{
		Ticker:        "XYZ",
		ShortInterest: 140, // impossible, surfaces info-only
		Session:       domain.SessionMidday,
		Regime:        domain.RegimeUnknown,
		Horizon:       domain.HorizonDay,
		Now:           time.Now(),
	})

	assert.Equal(t, domain.Neutral, score.Direction)
	assert.Zero(t, score.BullWeight)
	assert.Zero(t, score.BearWeight)

	found := false
	for _, s := range score.Signals {
		if s.Name == SigShortIntInvalid {
			found = true
			assert.Zero(t, s.Weight)
		}
	}
	assert.True(t, found, "invalid short interest should surface informationally")
}

func TestSessionMultiplierProfile(t *testing.T) {
	assert.Equal(t, 1.3, sessionMultiplier(domain.SessionOpenRush, ClassTape))
	assert.Equal(t, 0.7, sessionMultiplier(domain.SessionOpenRush, ClassMeanReversion))
	assert.Equal(t, 1.2, sessionMultiplier(domain.SessionMidday, ClassMeanReversion))
	assert.Equal(t, 1.2, sessionMultiplier(domain.SessionPowerHour, ClassTrend))
	assert.Equal(t, 0.4, sessionMultiplier(domain.SessionOvernight, ClassOptions))
	assert.Equal(t, 1.0, sessionMultiplier(domain.SessionMidday, ClassContext))
}

func TestRegimeMultiplierDampening(t *testing.T) {
	// Ranging guts trend-following shorts.
	assert.Equal(t, 0.25, regimeMultiplier(domain.RegimeRanging, ClassTrend, SigEMAAlignBear, domain.Bearish, 25))
	assert.Equal(t, 0.4, regimeMultiplier(domain.RegimeRanging, ClassTrend, SigMACDNegative, domain.Bearish, 25))
	// Mean reversion gets the ranging boost.
	assert.Equal(t, 1.3, regimeMultiplier(domain.RegimeRanging, ClassMeanReversion, SigBBDipBuy, domain.Bullish, 25))
	// Weak-trend bear cut.
	assert.Equal(t, 0.75, regimeMultiplier(domain.RegimeUnknown, ClassTrend, SigEMAAlignBear, domain.Bearish, 15))
	// No dampening outside the special cases.
	assert.Equal(t, 1.0, regimeMultiplier(domain.RegimeTrendingUp, ClassTrend, SigEMAAlignBull, domain.Bullish, 30))
}

func TestAbsorbWeightsBounded(t *testing.T) {
	e := newTestEngine()
	before := e.Versions().Versions[e.ActiveVersion()].Weights[SigRSIOversold]

	e.AbsorbWeights(map[string]float64{
		SigRSIOversold:  1.0, // max importance: x1.15
		SigEMAAlignBull: 0.0, // zero importance: x0.85
	})

	after := e.Versions().Versions[e.ActiveVersion()].Weights
	assert.InDelta(t, before*1.15, after[SigRSIOversold], 0.01)
	assert.Less(t, after[SigEMAAlignBull], 2.0)
	for _, w := range after {
		assert.GreaterOrEqual(t, w, 0.25)
		assert.LessOrEqual(t, w, 5.0)
	}
}

func TestExtractFeaturesContract(t *testing.T) {
	assert.Len(t, FeatureNames, domain.FeatureCount)

	in := &Inputs{
		Ticker: "XYZ",
		TA: &domain.Technicals{
			RSI:     55,
			EMABias: domain.Bullish,
			MACD:    domain.MACD{Histogram: 0.8},
		},
		ShortInterest: 12,
		Session:       domain.SessionMidday,
		Regime:        domain.RegimeTrendingUp,
		Now:           time.Now(),
	}
	f := ExtractFeatures(in)
	require.Len(t, f, domain.FeatureCount)
	assert.Equal(t, 55.0, f[0], "rsi leads the vector")
	assert.Equal(t, 1.0, f[2], "ema alignment encodes bullish as +1")
	assert.Equal(t, 12.0, f[8])
	assert.Equal(t, 55.0, f[23], "rsi x ema interaction")
}

func TestLoadVersionsFallsBackToDefaults(t *testing.T) {
	v := LoadVersions(t.TempDir(), zerolog.Nop())
	require.NotNil(t, v)
	assert.Equal(t, "v3", v.ActiveVersion)
	assert.Contains(t, v.Versions, "v2")
}
