package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/ml"
	"github.com/pkoukos/argus/internal/notify"
	"github.com/pkoukos/argus/internal/regime"
	"github.com/pkoukos/argus/internal/signals"
	"github.com/pkoukos/argus/internal/ta"
)

// tradeMinConfidence gates paper-trade entry on the blended score.
const tradeMinConfidence = 70

// indexTicker anchors regime classification.
const indexTicker = "SPY"

// cycle runs one full refresh pass: fetch, analyze, score, trade, discover,
// persist, broadcast. Exactly one cycle runs at a time; a trigger landing
// mid-cycle queues a single immediate rerun.
func (s *Scheduler) cycle(ctx context.Context) {
	s.mu.Lock()
	if s.inFlight {
		s.rerun = true
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		rerun := s.rerun
		s.rerun = false
		s.inFlight = false
		s.mu.Unlock()
		if rerun && ctx.Err() == nil {
			s.cycle(ctx)
		}
	}()

	now := time.Now()
	session := domain.SessionAt(now)

	var cycleN int64
	s.store.UpdateScheduler(func(st *domain.SchedulerState) {
		cycleN = st.CycleCount
		st.CycleCount++
		st.SessionName = session
		st.SessionInterval = session.Interval().Milliseconds()
	})

	if closed, _ := s.holidayToday(now); closed {
		s.log.Debug().Msg("Market holiday, skipping refresh cycle")
		return
	}

	tier := tierFor(cycleN)
	used, limit, exhausted := s.budgetExhausted()
	if exhausted {
		s.log.Warn().Int("used", used).Int("limit", limit).Msg("Daily call budget ceiling reached, skipping provider calls")
		s.events.Add("budget", "", fmt.Sprintf("budget ceiling: %d/%d calls used", used, limit))
	} else {
		s.fetcher.FetchMarket(ctx, tier)
		for _, sym := range s.universe() {
			if ctx.Err() != nil {
				return
			}
			s.fetcher.FetchTicker(ctx, sym, tier)
		}
	}

	marketRegime := s.classifyRegime()
	horizon := session.DefaultHorizon()

	for _, sym := range s.universe() {
		if ctx.Err() != nil {
			return
		}
		s.scoreAndTrade(ctx, sym, session, marketRegime, horizon, now)
	}

	// Discovery rides after scoring so new tickers enter next cycle with the
	// tape already warm.
	if tier == domain.TierHot {
		s.scanner.NotifyCycle(now)
	}
	for _, d := range s.pipeline.Run(ctx) {
		s.events.Add("discovery", d.Ticker, fmt.Sprintf("surfaced by %s", d.Source))
		s.notifier.Send(ctx, notify.DiscoveryAlert(&d))
	}

	s.persistAndBroadcast()
}

// universe is the watchlist plus live discoveries.
func (s *Scheduler) universe() []string {
	out := s.store.Watchlist()
	for _, d := range s.store.Discoveries() {
		if !s.store.OnWatchlist(d.Ticker) {
			out = append(out, d.Ticker)
		}
	}
	return out
}

// classifyRegime derives the market regime from the index ticker's daily
// technicals plus breadth, tide and VIX.
func (s *Scheduler) classifyRegime() domain.Regime {
	market := s.store.Market()
	var indexTA *domain.Technicals
	if s.history != nil {
		if candles, err := s.history.LoadSeries(indexTicker, domain.TF1d); err == nil && len(candles) >= domain.MinCandles {
			if tech, err := ta.Compute(candles); err == nil {
				indexTA = tech
			}
		}
	}
	if indexTA == nil {
		if facts := s.store.Ticker(indexTicker); facts != nil {
			indexTA = facts.Technicals
		}
	}
	return regime.Classify(market.VIX, indexTA, market.Breadth, market.Tide)
}

// scoreAndTrade runs technicals, scoring, outcome checks and entry logic for
// one symbol.
func (s *Scheduler) scoreAndTrade(ctx context.Context, sym string, session domain.Session, marketRegime domain.Regime, horizon domain.Horizon, now time.Time) {
	facts := s.store.Ticker(sym)
	if facts == nil {
		return
	}

	// Recompute technicals from the freshest persisted series.
	var daily, intraday *domain.Technicals
	if s.history != nil {
		if candles, err := s.history.LoadSeries(sym, domain.TF1d); err == nil && len(candles) >= domain.MinCandles {
			if tech, err := ta.Compute(candles); err == nil {
				daily = tech
			}
		}
		if candles, err := s.history.LoadSeries(sym, domain.TF5m); err == nil && len(candles) >= domain.MinCandles {
			if tech, err := ta.Compute(candles); err == nil {
				intraday = tech
			}
		}
	}
	if daily != nil || intraday != nil {
		s.store.UpdateTicker(sym, func(tf *domain.TickerFacts) {
			if daily != nil {
				tf.Technicals = daily
			}
			if intraday != nil {
				tf.IntradayTA = intraday
			}
			tf.Updated["technicals"] = now
		})
		facts = s.store.Ticker(sym)
	}

	in := &signals.Inputs{
		Ticker:        sym,
		Quote:         facts.Quote,
		TA:            facts.Technicals,
		IntradayTA:    facts.IntradayTA,
		Options:       facts.Options,
		DarkPool:      facts.DarkPool,
		Earnings:      facts.Earnings,
		Tick:          s.ticks.Summary(sym),
		ShortInterest: facts.ShortInterest,
		NewsSentiment: facts.NewsSentiment,
		Market:        s.store.Market(),
		Session:       session,
		Regime:        marketRegime,
		Horizon:       horizon,
		Now:           now,
	}
	score := s.engine.Score(in)
	s.store.SetScore(score)

	s.resolveOutcomes(sym, in, now)

	if price := in.Price(); price > 0 {
		s.journal.MarkToMarket(sym, price)
	}

	if score.Direction == domain.Neutral {
		return
	}
	setup := s.buildSetup(in, score)
	if setup == nil {
		return
	}
	s.journal.LogSetup(*setup)
	if setup.BlendedConfidence < tradeMinConfidence {
		return
	}

	trade, err := s.journal.OpenTrade(setup, s.engine.ActiveVersion(), now)
	if err != nil {
		s.log.Debug().Err(err).Str("ticker", sym).Msg("Entry guard blocked trade")
		return
	}
	s.featMu.Lock()
	s.lastFeatures[trade.ID] = score.Features
	s.featMu.Unlock()

	s.events.Add("trade", sym, fmt.Sprintf("opened %s @ %.2f (%d%%)", trade.Direction, trade.EntryPrice, trade.Confidence))
	s.notifier.Send(ctx, notify.SetupAlert(setup))

	if d := s.store.Discovery(sym); d != nil {
		s.pipeline.RecordQualified(d.Source, now)
	}
}

// buildSetup projects targets, snaps to structure, blends ML and sizes the
// position. Returns nil when no tradeable geometry exists.
func (s *Scheduler) buildSetup(in *signals.Inputs, score *domain.SignalScore) *domain.TradeSetup {
	entry := in.Price()
	if entry <= 0 || in.TA == nil || in.TA.ATR <= 0 {
		return nil
	}
	dir := domain.Long
	if score.Direction == domain.Bearish {
		dir = domain.Short
	}

	t1, t2, stop, atrMult := signals.ProjectTargets(entry, in.TA.ATR, dir, in.Horizon)
	if t1 <= 0 || stop <= 0 {
		return nil
	}
	snap := signals.SnapStructure(in, dir, entry, t1, stop)

	blended, mlConf, _ := s.calibrator.Blend(score.Confidence, score.Features, in.Horizon)
	kellyPct, shares := s.journal.KellySize(entry, snap.Stop)

	risk := entry - snap.Stop
	reward := snap.Target1 - entry
	if dir == domain.Short {
		risk = snap.Stop - entry
		reward = entry - snap.Target1
	}
	var rr float64
	if risk > 0 {
		rr = reward / risk
	}

	return &domain.TradeSetup{
		Ticker:              in.Ticker,
		Direction:           dir,
		Entry:               entry,
		Target1:             snap.Target1,
		Target2:             t2,
		Stop:                snap.Stop,
		RiskReward:          rr,
		Horizon:             in.Horizon,
		ATRMultiplier:       atrMult,
		TechnicalConfidence: score.Confidence,
		MLConfidence:        mlConf,
		BlendedConfidence:   blended,
		KellyPct:            kellyPct,
		KellyShares:         shares,
		Signals:             score.Signals,
		Structure:           &snap,
		CreatedAt:           in.Now,
	}
}

// resolveOutcomes folds post-entry price action into pending trades. Each
// trade's bar covers only ticks printed after its own entry; without tape
// coverage the last price alone decides, so a stop or target can never fill
// on an extreme the day printed before the trade existed.
func (s *Scheduler) resolveOutcomes(sym string, in *signals.Inputs, now time.Time) {
	last := in.Price()
	if last <= 0 {
		return
	}

	closed := s.journal.CheckOutcomesPer(sym, func(t *domain.PaperTrade) (journal.Bar, bool) {
		bar := journal.Bar{High: last, Low: last, Close: last, At: now}
		if hi, lo, ok := s.ticks.RangeSince(sym, t.EntryTime); ok {
			if hi > bar.High {
				bar.High = hi
			}
			if lo < bar.Low {
				bar.Low = lo
			}
		}
		return bar, true
	})
	for i := range closed {
		s.recordOutcome(&closed[i])
	}
}

// recordOutcome turns a closed trade into a training sample, appends it to
// the dataset, retrains on cadence, and notifies.
func (s *Scheduler) recordOutcome(t *domain.PaperTrade) {
	s.featMu.Lock()
	features := s.lastFeatures[t.ID]
	delete(s.lastFeatures, t.ID)
	s.featMu.Unlock()

	if sample, ok := journal.TrainingSample(t, features); ok {
		if err := s.dataset.Append(sample); err != nil {
			s.log.Warn().Err(err).Msg("Training sample persist failed")
		} else if ml.ShouldTrain(s.dataset.Len()) {
			s.calibrator.Train(s.dataset.All())
			if err := s.calibrator.SaveModels(s.dataDir); err != nil {
				s.log.Warn().Err(err).Msg("Model persist failed")
			}
			s.events.Add("train", "", fmt.Sprintf("calibrator retrained on %d samples", s.dataset.Len()))
		}
	}

	s.events.Add("trade", t.Ticker, fmt.Sprintf("closed %s: %+.2f%%", t.Status, t.PnlPct))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.notifier.Send(ctx, notify.TradeClosedAlert(t))
}

// TriggerCycle schedules an immediate refresh (operator endpoint).
func (s *Scheduler) TriggerCycle(ctx context.Context) {
	go s.cycle(ctx)
}
