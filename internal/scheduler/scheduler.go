// Package scheduler drives the engine heartbeat: session-aware refresh
// cycles, the HOT/WARM/COLD tier rotation, the daily provider-call budget,
// and the clock-pinned jobs (EOD close-out, reporting, nightly retrain).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/discovery"
	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/eod"
	"github.com/pkoukos/argus/internal/events"
	"github.com/pkoukos/argus/internal/history"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/ml"
	"github.com/pkoukos/argus/internal/notify"
	"github.com/pkoukos/argus/internal/signals"
	"github.com/pkoukos/argus/internal/sources"
	"github.com/pkoukos/argus/internal/state"
)

// budgetCeiling is the fraction of the daily call limit at which refresh
// cycles stop issuing provider calls.
const budgetCeiling = 0.9

// Broadcaster pushes state changes to connected clients.
type Broadcaster interface {
	BroadcastState()
}

// Scheduler owns the cycle loop and the cron jobs.
type Scheduler struct {
	store      *state.Store
	fetcher    *sources.Fetcher
	ticks      *sources.TickStream
	engine     *signals.Engine
	calibrator *ml.Calibrator
	dataset    *ml.Dataset
	journal    *journal.Journal
	pipeline   *discovery.Pipeline
	scanner    *discovery.Scanner
	reporter   *eod.Reporter
	notifier   *notify.Notifier
	events     *events.Log
	broadcast  Broadcaster
	history    *history.Store
	dataDir    string
	log        zerolog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	inFlight bool
	rerun    bool

	// lastFeatures keeps the feature vector each open trade was scored with,
	// keyed by trade ID, so the closing sample reuses the entry-time features.
	featMu       sync.Mutex
	lastFeatures map[string][]float64
}

// Deps bundles construction dependencies.
type Deps struct {
	Store      *state.Store
	Fetcher    *sources.Fetcher
	Ticks      *sources.TickStream
	Engine     *signals.Engine
	Calibrator *ml.Calibrator
	Dataset    *ml.Dataset
	Journal    *journal.Journal
	Pipeline   *discovery.Pipeline
	Scanner    *discovery.Scanner
	Reporter   *eod.Reporter
	Notifier   *notify.Notifier
	Events     *events.Log
	Broadcast  Broadcaster
	History    *history.Store
	DataDir    string
	DailyLimit int
}

// New creates the scheduler and seeds persisted scheduler state.
func New(d Deps, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		store:        d.Store,
		fetcher:      d.Fetcher,
		ticks:        d.Ticks,
		engine:       d.Engine,
		calibrator:   d.Calibrator,
		dataset:      d.Dataset,
		journal:      d.Journal,
		pipeline:     d.Pipeline,
		scanner:      d.Scanner,
		reporter:     d.Reporter,
		notifier:     d.Notifier,
		events:       d.Events,
		broadcast:    d.Broadcast,
		history:      d.History,
		dataDir:      d.DataDir,
		log:          log.With().Str("component", "scheduler").Logger(),
		lastFeatures: make(map[string][]float64),
	}
	s.store.UpdateScheduler(func(st *domain.SchedulerState) {
		if st.DailyLimit == 0 {
			st.DailyLimit = d.DailyLimit
		}
		if st.LastResetDate == "" {
			st.LastResetDate = domain.ETDate(time.Now())
		}
	})
	return s
}

// Record implements sources.CallRecorder: every provider call lands here,
// with a midnight-ET rollover of the counter.
func (s *Scheduler) Record(_ string, n int) {
	today := domain.ETDate(time.Now())
	s.store.UpdateScheduler(func(st *domain.SchedulerState) {
		if st.LastResetDate != today {
			st.LastResetDate = today
			st.DailyCallCount = 0
		}
		st.DailyCallCount += n
	})
}

// budgetExhausted reports whether the cycle should skip provider calls.
func (s *Scheduler) budgetExhausted() (used, limit int, exhausted bool) {
	st := s.store.SchedulerState()
	if st.DailyLimit <= 0 {
		return st.DailyCallCount, st.DailyLimit, false
	}
	return st.DailyCallCount, st.DailyLimit,
		float64(st.DailyCallCount) >= budgetCeiling*float64(st.DailyLimit)
}

// tierFor maps the cycle ordinal onto the refresh tier. COLD outranks WARM
// when both cadences land on the same cycle.
func tierFor(n int64) domain.Tier {
	switch {
	case n%15 == 14:
		return domain.TierCold
	case n%5 == 4:
		return domain.TierWarm
	default:
		return domain.TierHot
	}
}

// holidayToday reports whether the ET date of now is a full market holiday,
// and whether it is an early close.
func (s *Scheduler) holidayToday(now time.Time) (closed, earlyClose bool) {
	today := domain.ETDate(now)
	for _, h := range s.store.Market().Holidays {
		if h.Date != today {
			continue
		}
		if h.EarlyClose {
			return false, true
		}
		return true, false
	}
	return false, false
}

// Run drives the refresh loop until ctx is cancelled. The sleep between
// cycles tracks the live session interval; a cycle that overruns its
// interval triggers the next one immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.startCron()
	defer s.cron.Stop()

	s.log.Info().Msg("Scheduler loop started")
	for {
		if ctx.Err() != nil {
			return
		}
		session := domain.SessionAt(time.Now())
		interval := session.Interval()

		start := time.Now()
		s.cycle(ctx)
		elapsed := time.Since(start)

		if elapsed >= interval {
			s.log.Warn().
				Dur("elapsed", elapsed).
				Dur("interval", interval).
				Msg("Cycle overran session interval, starting next immediately")
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval - elapsed):
		}
	}
}

// startCron pins the clock jobs to Eastern wall time.
func (s *Scheduler) startCron() {
	s.cron = cron.New(cron.WithLocation(domain.Eastern))

	mustAdd := func(spec, name string, fn func()) {
		if _, err := s.cron.AddJob(spec, namedJob{name: name, fn: fn, log: s.log}); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Failed to schedule job")
		}
	}

	// 15:55 ET: force-close intraday paper trades before the bell.
	mustAdd("55 15 * * 1-5", "close-intraday", func() { s.closeIntraday(time.Now()) })
	// 16:20 ET: end-of-day report.
	mustAdd("20 16 * * 1-5", "eod-report", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.reporter.Generate(ctx, time.Now()); err != nil {
			s.log.Error().Err(err).Msg("EOD report failed")
		}
	})
	// 17:00 ET: nightly retrain over the cumulative dataset.
	mustAdd("0 17 * * 1-5", "nightly-retrain", s.retrain)
	// Every 15 minutes: discovery expiry sweep.
	mustAdd("*/15 * * * *", "discovery-sweep", func() {
		s.pipeline.Sweep(time.Now())
	})
	// 03:00 ET: prune candle history beyond retention.
	mustAdd("0 3 * * *", "history-prune", func() {
		if s.history != nil {
			if _, err := s.history.Prune(30 * 24 * time.Hour); err != nil {
				s.log.Warn().Err(err).Msg("History prune failed")
			}
		}
	})

	s.cron.Start()
}

// namedJob wraps a cron func with logging.
type namedJob struct {
	name string
	fn   func()
	log  zerolog.Logger
}

func (j namedJob) Run() {
	j.log.Debug().Str("job", j.name).Msg("Cron job firing")
	j.fn()
}

// closeIntraday force-closes day-scoped positions at the latest known price.
func (s *Scheduler) closeIntraday(now time.Time) {
	prices := make(map[string]float64)
	for _, t := range s.journal.Pending() {
		if facts := s.store.Ticker(t.Ticker); facts != nil && facts.Quote != nil {
			prices[t.Ticker] = facts.Quote.Last
		}
	}
	closed := s.journal.CloseIntraday(prices, now)
	for i := range closed {
		s.recordOutcome(&closed[i])
	}
	if len(closed) > 0 {
		s.events.Add("trade", "", "intraday positions closed at 15:55 ET")
		s.persistAndBroadcast()
	}
}

// retrain refits the calibrator from the full dataset and persists models.
func (s *Scheduler) retrain() {
	samples := s.dataset.All()
	if len(samples) < ml.MinSamples {
		return
	}
	s.calibrator.Train(samples)
	if err := s.calibrator.SaveModels(s.dataDir); err != nil {
		s.log.Warn().Err(err).Msg("Model persist failed")
	}
	s.events.Add("train", "", "nightly calibrator retrain complete")
}

func (s *Scheduler) persistAndBroadcast() {
	if err := s.store.Save(); err != nil {
		s.log.Error().Err(err).Msg("State persist failed")
	}
	if s.broadcast != nil {
		s.broadcast.BroadcastState()
	}
}
