package discovery

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/state"
)

const (
	// gapMinPct is the smallest open-over-close move treated as a gap.
	gapMinPct = 0.5

	// gapMomentumPct is the size at which a trend-aligned gap reads as
	// momentum-driven rather than technical drift.
	gapMomentumPct = 3.0

	// gapSqueezeShortPct is the short interest (% of float) above which an
	// up gap reads as a squeeze.
	gapSqueezeShortPct = 20.0

	// gapStrongADX marks an established trend for the personality read.
	gapStrongADX = 25.0
)

// Gap causes, most specific first. News and post-report enrichment beat the
// price-derived reads; technical is the drift fallback.
const (
	gapCauseEarnings  = "earnings"
	gapCauseFDA       = "fda-catalyst"
	gapCauseAnalyst   = "analyst"
	gapCauseMerger    = "merger-acquisition"
	gapCauseSqueeze   = "short-squeeze"
	gapCauseGuidance  = "guidance"
	gapCauseMomentum  = "momentum"
	gapCauseTechnical = "technical"
)

// Gap personalities inferred from RSI, EMA bias and trend strength. The
// fade personalities trade toward the fill; the rest ride the gap.
const (
	gapOverboughtGapper = "overbought-gapper"
	gapMomentumRunner   = "momentum-runner"
	gapOversoldBounce   = "oversold-bounce"
	gapBreakdown        = "breakdown"
	gapPullbackDip      = "pullback-dip"
	gapNeutralGapper    = "neutral-gapper"
)

// GapAnalyzer classifies opening gaps on watchlist tickers once per session
// day: likely cause from news and post-report enrichment, the name's
// personality from its chart, and a tradeable signal around the fill or the
// measured move. Unlike the other producers it reads state already fetched
// instead of calling out.
type GapAnalyzer struct {
	store *state.Store
	log   zerolog.Logger

	mu      sync.Mutex
	doneDay map[string]string // ticker -> ET date analyzed
}

// NewGapAnalyzer creates the producer.
func NewGapAnalyzer(store *state.Store, log zerolog.Logger) *GapAnalyzer {
	return &GapAnalyzer{
		store:   store,
		log:     log.With().Str("component", "gap").Logger(),
		doneDay: make(map[string]string),
	}
}

// Name implements Producer.
func (g *GapAnalyzer) Name() domain.DiscoverySource { return domain.DiscoveryGapAnalyzer }

// Scan implements Producer. Only meaningful shortly after the open; each
// ticker is analyzed once per day.
func (g *GapAnalyzer) Scan(_ context.Context) []domain.Discovery {
	now := time.Now()
	session := domain.SessionAt(now)
	if session != domain.SessionOpenRush && session != domain.SessionPowerOpen {
		return nil
	}
	today := domain.ETDate(now)
	market := g.store.Market()

	var out []domain.Discovery
	for _, sym := range g.store.Watchlist() {
		g.mu.Lock()
		if g.doneDay[sym] == today {
			g.mu.Unlock()
			continue
		}
		g.mu.Unlock()

		facts := g.store.Ticker(sym)
		if facts == nil || facts.Quote == nil {
			continue
		}
		q := facts.Quote
		if q.PrevClose <= 0 || q.Open <= 0 {
			continue
		}
		gap := 100 * (q.Open - q.PrevClose) / q.PrevClose
		if math.Abs(gap) < gapMinPct {
			g.mu.Lock()
			g.doneDay[sym] = today
			g.mu.Unlock()
			continue
		}

		g.mu.Lock()
		g.doneDay[sym] = today
		g.mu.Unlock()

		d := classifyGap(sym, q, facts, &market, gap, now)
		out = append(out, d)
		g.log.Info().
			Str("ticker", sym).
			Float64("gapPct", round2(gap)).
			Str("cause", d.Meta.GapCause).
			Str("personality", d.Meta.Personality).
			Msg("Opening gap classified")
	}
	return out
}

func classifyGap(sym string, q *domain.Quote, facts *domain.TickerFacts, market *domain.MarketFacts, gap float64, now time.Time) domain.Discovery {
	cause, causeDetail := gapCauseFor(sym, facts, market, gap)
	personality := gapPersonalityFor(facts.Technicals, gap)

	// The personality carries the tradeable read: fade personalities point
	// at the fill, the rest ride the gap.
	gapDir := domain.Bullish
	if gap < 0 {
		gapDir = domain.Bearish
	}
	dir := gapDir
	switch personality {
	case gapOverboughtGapper:
		dir = domain.Bearish
	case gapOversoldBounce, gapPullbackDip:
		dir = domain.Bullish
	case gapBreakdown:
		dir = domain.Bearish
	}
	fade := dir != gapDir

	conf := 50
	switch cause {
	case gapCauseEarnings, gapCauseFDA, gapCauseMerger:
		// Event gaps fill far less often than drift gaps.
		conf += 10
	}
	if tideLean(market.Tide) == dir {
		conf += 10
	}

	signals := []string{
		fmt.Sprintf("gap %+.1f%% (%s)", gap, cause),
		personality,
	}
	if causeDetail != "" {
		signals = append(signals, causeDetail)
	}

	return domain.Discovery{
		Ticker:       sym,
		Source:       domain.DiscoveryGapAnalyzer,
		DiscoveredAt: now,
		Price:        q.Last,
		Direction:    dir,
		Confidence:   conf,
		TopSignals:   signals,
		Meta: domain.DiscoveryMeta{
			GapPct:      round2(gap),
			GapCause:    cause,
			Personality: personality,
			GapSignal:   gapSignalFor(q, dir, fade),
		},
	}
}

// gapCauseFor picks the most specific explanation available: post-report
// earnings enrichment, then the name's tagged headlines, then short interest,
// then a trend-or-tide-aligned momentum read, technical last.
func gapCauseFor(sym string, facts *domain.TickerFacts, market *domain.MarketFacts, gap float64) (string, string) {
	if e := facts.Earnings; e != nil && e.Beat != "" {
		return gapCauseEarnings, fmt.Sprintf("earnings %s, surprise %+.1f%%", strings.ToLower(e.Beat), e.SurprisePct)
	}

	for _, h := range market.News {
		if h.Ticker != sym {
			continue
		}
		if cause, ok := headlineCause(h.Headline); ok {
			return cause, h.Headline
		}
	}

	if gap > 0 && facts.ShortInterest >= gapSqueezeShortPct {
		return gapCauseSqueeze, fmt.Sprintf("short interest %.0f%% of float", facts.ShortInterest)
	}

	if math.Abs(gap) >= gapMomentumPct {
		gapDir := domain.Bullish
		if gap < 0 {
			gapDir = domain.Bearish
		}
		trendAligned := facts.Technicals != nil && facts.Technicals.EMABias == gapDir
		if trendAligned || tideLean(market.Tide) == gapDir {
			return gapCauseMomentum, ""
		}
	}

	return gapCauseTechnical, ""
}

// headlineCause maps a headline onto a gap cause by keyword.
func headlineCause(headline string) (string, bool) {
	h := strings.ToUpper(headline)
	switch {
	case containsAny(h, "MERGER", "ACQUIR", "BUYOUT", "TAKEOVER"):
		return gapCauseMerger, true
	case containsAny(h, "FDA", "PHASE ", "TRIAL", "APPROV", "CLEARANCE"):
		return gapCauseFDA, true
	case containsAny(h, "UPGRADE", "DOWNGRADE", "PRICE TARGET", "INITIAT", "OVERWEIGHT", "UNDERWEIGHT"):
		return gapCauseAnalyst, true
	case containsAny(h, "GUIDANCE", "OUTLOOK", "FORECAST"):
		return gapCauseGuidance, true
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// gapPersonalityFor reads the chart into one of six gap personalities.
func gapPersonalityFor(ta *domain.Technicals, gap float64) string {
	if ta == nil {
		return gapNeutralGapper
	}
	if gap > 0 {
		switch {
		case ta.RSI >= 70:
			return gapOverboughtGapper
		case ta.EMABias == domain.Bullish && ta.ADX.Value >= gapStrongADX:
			return gapMomentumRunner
		default:
			return gapNeutralGapper
		}
	}
	switch {
	case ta.RSI > 0 && ta.RSI <= 30:
		return gapOversoldBounce
	case ta.EMABias == domain.Bearish:
		return gapBreakdown
	case ta.EMABias == domain.Bullish:
		return gapPullbackDip
	default:
		return gapNeutralGapper
	}
}

// gapSignalFor projects the trade geometry. Fades target the gap fill:
// target1 is the halfway (partial) fill, target2 the full fill at the prior
// close, with the stop half the fill distance against. Continuations project
// half and full measured moves of the gap itself.
func gapSignalFor(q *domain.Quote, dir domain.Direction, fade bool) *domain.GapSignal {
	entry := q.Last
	if entry <= 0 {
		entry = q.Open
	}
	if entry <= 0 || dir == domain.Neutral {
		return nil
	}

	sign := 1.0
	if dir == domain.Bearish {
		sign = -1
	}

	var dist float64
	if fade {
		dist = math.Abs(entry - q.PrevClose)
	} else {
		dist = math.Abs(q.Open - q.PrevClose)
	}
	if dist <= 0 {
		return nil
	}

	sig := &domain.GapSignal{
		Entry: round2(entry),
		Stop:  round2(entry - sign*dist/2),
	}
	sig.Target1 = round2(entry + sign*dist/2)
	if fade {
		sig.Target2 = round2(q.PrevClose)
	} else {
		sig.Target2 = round2(entry + sign*dist)
	}
	return sig
}

// tideLean reads the market tide into a coarse direction.
func tideLean(t *domain.MarketTide) domain.Direction {
	if t == nil {
		return domain.Neutral
	}
	switch {
	case t.BullPremium > 1.2*t.BearPremium:
		return domain.Bullish
	case t.BearPremium > 1.2*t.BullPremium:
		return domain.Bearish
	}
	return domain.Neutral
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
