package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
)

func gapQuote(open, prevClose float64) *domain.Quote {
	return &domain.Quote{Ticker: "XYZ", Last: open, Open: open, PrevClose: prevClose}
}

func newsFacts(headline string) *domain.MarketFacts {
	return &domain.MarketFacts{News: []domain.NewsHeadline{
		{Ticker: "OTHER", Headline: "Something unrelated"},
		{Ticker: "XYZ", Headline: headline},
	}}
}

func TestClassifyGapCauses(t *testing.T) {
	now := time.Now()
	noNews := &domain.MarketFacts{}

	// Post-report enrichment outranks everything.
	facts := &domain.TickerFacts{Earnings: &domain.Earnings{Beat: "BEAT", SurprisePct: 12.4}}
	d := classifyGap("XYZ", gapQuote(104, 100), facts, noNews, 4, now)
	assert.Equal(t, "earnings", d.Meta.GapCause)

	cases := []struct {
		headline string
		cause    string
	}{
		{"XYZ agrees to acquisition by MegaCorp", "merger-acquisition"},
		{"XYZ receives FDA approval for lead candidate", "fda-catalyst"},
		{"Analyst upgrades XYZ, lifts price target", "analyst"},
		{"XYZ raises full-year guidance", "guidance"},
	}
	for _, tc := range cases {
		d = classifyGap("XYZ", gapQuote(104, 100), &domain.TickerFacts{}, newsFacts(tc.headline), 4, now)
		assert.Equal(t, tc.cause, d.Meta.GapCause, tc.headline)
		assert.Contains(t, d.TopSignals, tc.headline, "the matched headline rides along")
	}

	// Heavy short interest explains an up gap with no news.
	facts = &domain.TickerFacts{ShortInterest: 26}
	d = classifyGap("XYZ", gapQuote(104, 100), facts, noNews, 4, now)
	assert.Equal(t, "short-squeeze", d.Meta.GapCause)

	// A large trend-aligned gap reads as momentum.
	facts = &domain.TickerFacts{Technicals: &domain.Technicals{EMABias: domain.Bullish}}
	d = classifyGap("XYZ", gapQuote(104, 100), facts, noNews, 4, now)
	assert.Equal(t, "momentum", d.Meta.GapCause)

	// Tide context can make the momentum read without the chart.
	tide := &domain.MarketFacts{Tide: &domain.MarketTide{BullPremium: 2e6, BearPremium: 1e6}}
	d = classifyGap("XYZ", gapQuote(104, 100), &domain.TickerFacts{}, tide, 4, now)
	assert.Equal(t, "momentum", d.Meta.GapCause)

	// Small drift gap on a quiet name falls back to technical.
	d = classifyGap("XYZ", gapQuote(102, 100), &domain.TickerFacts{}, noNews, 2, now)
	assert.Equal(t, "technical", d.Meta.GapCause)
}

func TestClassifyGapPersonalities(t *testing.T) {
	now := time.Now()
	m := &domain.MarketFacts{}
	ta := func(rsi float64, bias domain.Direction, adx float64) *domain.TickerFacts {
		return &domain.TickerFacts{Technicals: &domain.Technicals{
			RSI: rsi, EMABias: bias, ADX: domain.ADX{Value: adx},
		}}
	}

	// Stretched chart gapping higher fades.
	d := classifyGap("XYZ", gapQuote(102, 100), ta(75, domain.Bullish, 30), m, 2, now)
	assert.Equal(t, "overbought-gapper", d.Meta.Personality)
	assert.Equal(t, domain.Bearish, d.Direction)

	// Established uptrend gapping higher runs.
	d = classifyGap("XYZ", gapQuote(102, 100), ta(60, domain.Bullish, 30), m, 2, now)
	assert.Equal(t, "momentum-runner", d.Meta.Personality)
	assert.Equal(t, domain.Bullish, d.Direction)

	// Washed-out chart gapping lower bounces.
	d = classifyGap("XYZ", gapQuote(98, 100), ta(25, domain.Bearish, 30), m, -2, now)
	assert.Equal(t, "oversold-bounce", d.Meta.Personality)
	assert.Equal(t, domain.Bullish, d.Direction)

	// Downtrend gapping lower keeps going.
	d = classifyGap("XYZ", gapQuote(98, 100), ta(45, domain.Bearish, 30), m, -2, now)
	assert.Equal(t, "breakdown", d.Meta.Personality)
	assert.Equal(t, domain.Bearish, d.Direction)

	// Down gap inside an uptrend is a dip to buy.
	d = classifyGap("XYZ", gapQuote(98, 100), ta(55, domain.Bullish, 30), m, -2, now)
	assert.Equal(t, "pullback-dip", d.Meta.Personality)
	assert.Equal(t, domain.Bullish, d.Direction)

	// No chart, no edge: ride the gap.
	d = classifyGap("XYZ", gapQuote(102, 100), &domain.TickerFacts{}, m, 2, now)
	assert.Equal(t, "neutral-gapper", d.Meta.Personality)
	assert.Equal(t, domain.Bullish, d.Direction)
	assert.Equal(t, 2.0, d.Meta.GapPct)
}

func TestGapFadeSignalTargetsTheFill(t *testing.T) {
	now := time.Now()
	overbought := &domain.TickerFacts{Technicals: &domain.Technicals{RSI: 75, EMABias: domain.Bullish}}

	d := classifyGap("XYZ", gapQuote(104, 100), overbought, &domain.MarketFacts{}, 4, now)
	require.Equal(t, domain.Bearish, d.Direction)
	sig := d.Meta.GapSignal
	require.NotNil(t, sig)
	assert.Equal(t, 104.0, sig.Entry)
	assert.Equal(t, 106.0, sig.Stop, "half the fill distance against the fade")
	assert.Equal(t, 102.0, sig.Target1, "partial fill")
	assert.Equal(t, 100.0, sig.Target2, "full fill at the prior close")
}

func TestGapContinuationSignalProjectsMeasuredMove(t *testing.T) {
	now := time.Now()
	runner := &domain.TickerFacts{Technicals: &domain.Technicals{
		RSI: 60, EMABias: domain.Bullish, ADX: domain.ADX{Value: 30},
	}}

	q := gapQuote(104, 100)
	q.Last = 104.5
	d := classifyGap("XYZ", q, runner, &domain.MarketFacts{}, 4, now)
	require.Equal(t, domain.Bullish, d.Direction)
	sig := d.Meta.GapSignal
	require.NotNil(t, sig)
	assert.Equal(t, 104.5, sig.Entry)
	assert.Equal(t, 102.5, sig.Stop)
	assert.Equal(t, 106.5, sig.Target1)
	assert.Equal(t, 108.5, sig.Target2, "full measured move of the gap")
}

func TestGapConfidenceFromCauseAndTide(t *testing.T) {
	now := time.Now()

	// Drift gap, no tide: baseline.
	d := classifyGap("XYZ", gapQuote(102, 100), &domain.TickerFacts{}, &domain.MarketFacts{}, 2, now)
	assert.Equal(t, 50, d.Confidence)

	// Event gap with the tide behind it.
	facts := &domain.TickerFacts{Earnings: &domain.Earnings{Beat: "BEAT", SurprisePct: 8}}
	m := &domain.MarketFacts{Tide: &domain.MarketTide{BullPremium: 2e6, BearPremium: 1e6}}
	d = classifyGap("XYZ", gapQuote(102, 100), facts, m, 2, now)
	assert.Equal(t, 70, d.Confidence)
}
