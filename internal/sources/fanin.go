package sources

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/history"
	"github.com/pkoukos/argus/internal/state"
)

// CallRecorder counts provider calls against the daily budget.
type CallRecorder interface {
	Record(provider string, n int)
}

// Fetcher fans out provider calls for one cycle and merges the responses into
// the state store. Every call is independent and optional: a failure leaves
// the previous state entry intact.
type Fetcher struct {
	reg      *Registry
	store    *state.Store
	history  *history.Store
	ticks    *TickStream
	recorder CallRecorder
	log      zerolog.Logger
}

// NewFetcher wires the fan-in.
func NewFetcher(reg *Registry, st *state.Store, hist *history.Store, ticks *TickStream, rec CallRecorder, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		reg:      reg,
		store:    st,
		history:  hist,
		ticks:    ticks,
		recorder: rec,
		log:      log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchTicker pulls the tier-appropriate categories for one symbol. Calls are
// dispatched in parallel and the method returns when all complete or fail.
func (f *Fetcher) FetchTicker(ctx context.Context, sym string, tier domain.Tier) {
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// HOT categories refresh every cycle.
	run(func() { f.fetchQuote(ctx, sym) })
	run(func() { f.fetchOptions(ctx, sym, tier) })
	run(func() { f.fetchDarkPool(ctx, sym) })
	run(func() { f.fetchCandles(ctx, sym, domain.TF5m, 120) })

	if tier == domain.TierWarm || tier == domain.TierCold {
		run(func() { f.fetchCandles(ctx, sym, domain.TF1d, 200) })
	}
	if tier == domain.TierCold {
		run(func() { f.fetchShortInterest(ctx, sym) })
		run(func() { f.fetchEarnings(ctx, sym) })
	}

	wg.Wait()
}

// FetchMarket pulls market-wide facts at the given depth.
func (f *Fetcher) FetchMarket(ctx context.Context, tier domain.Tier) {
	for _, p := range f.reg.Providers() {
		mp, ok := p.(MarketProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var facts *domain.MarketFacts
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			facts, err = mp.Market(ctx, tier)
			return err
		})
		if err != nil || facts == nil {
			f.log.Warn().Err(err).Str("provider", p.Name()).Msg("Market fetch failed, keeping previous facts")
			continue
		}
		f.store.UpdateMarket(func(m *domain.MarketFacts) {
			mergeMarket(m, facts)
		})
	}
}

// FetchQuote pulls a one-off quote outside the tier loop (discovery
// producers). Guarded and budget-counted like every other call.
func (f *Fetcher) FetchQuote(ctx context.Context, sym string) (*domain.Quote, error) {
	var lastErr error
	for _, p := range f.reg.Providers() {
		qp, ok := p.(QuoteProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var q *domain.Quote
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			q, err = qp.Quote(ctx, sym)
			return err
		})
		if err != nil || q == nil {
			lastErr = err
			continue
		}
		q.Ticker = sym
		q.UpdatedAt = time.Now()
		return q, nil
	}
	if lastErr == nil {
		lastErr = ErrNoProvider
	}
	return nil, lastErr
}

// Screen runs a screener query against the first capable provider.
func (f *Fetcher) Screen(ctx context.Context, query ScreenQuery) ([]ScreenRow, error) {
	var lastErr error
	for _, p := range f.reg.Providers() {
		sp, ok := p.(ScreenerProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var rows []ScreenRow
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			rows, err = sp.Screen(ctx, query)
			return err
		})
		if err != nil {
			lastErr = err
			continue
		}
		return rows, nil
	}
	if lastErr == nil {
		lastErr = ErrNoProvider
	}
	return nil, lastErr
}

func (f *Fetcher) fetchQuote(ctx context.Context, sym string) {
	for _, p := range f.reg.Providers() {
		qp, ok := p.(QuoteProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var q *domain.Quote
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			q, err = qp.Quote(ctx, sym)
			return err
		})
		if err != nil || q == nil {
			f.log.Debug().Err(err).Str("provider", p.Name()).Str("ticker", sym).Msg("Quote fetch failed")
			continue
		}
		q.Ticker = sym
		q.UpdatedAt = time.Now()

		// A fresh tick-stream read supersedes any REST snapshot.
		if f.ticks != nil {
			if ts := f.ticks.Summary(sym); ts != nil && time.Since(ts.UpdatedAt) < 10*time.Second {
				q.Last = ts.LastPrice
				q.Bid = ts.Bid
				q.Ask = ts.Ask
				if ts.VWAP > 0 {
					q.VWAP = ts.VWAP
				}
				q.PriceSource = domain.SourceRealTimeStream
			}
		}

		f.store.UpdateTicker(sym, func(tf *domain.TickerFacts) {
			tf.Quote = q
			tf.Updated["quote"] = time.Now()
		})
		return // first successful provider wins; preference is registration order
	}
}

func (f *Fetcher) fetchOptions(ctx context.Context, sym string, tier domain.Tier) {
	for _, p := range f.reg.Providers() {
		op, ok := p.(OptionsProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var facts *domain.OptionsFacts
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			facts, err = op.Options(ctx, sym, tier)
			return err
		})
		if err != nil || facts == nil {
			f.log.Debug().Err(err).Str("provider", p.Name()).Str("ticker", sym).Msg("Options fetch failed")
			continue
		}
		f.store.UpdateTicker(sym, func(tf *domain.TickerFacts) {
			if tf.Options == nil {
				tf.Options = &domain.OptionsFacts{}
			}
			mergeOptions(tf.Options, facts)
			tf.Updated["options"] = time.Now()
		})
		return
	}
}

func (f *Fetcher) fetchDarkPool(ctx context.Context, sym string) {
	for _, p := range f.reg.Providers() {
		dp, ok := p.(DarkPoolProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var facts *domain.DarkPool
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			facts, err = dp.DarkPool(ctx, sym)
			return err
		})
		if err != nil || facts == nil {
			continue
		}
		f.store.UpdateTicker(sym, func(tf *domain.TickerFacts) {
			tf.DarkPool = facts
			tf.Updated["darkpool"] = time.Now()
		})
		return
	}
}

func (f *Fetcher) fetchCandles(ctx context.Context, sym string, tf domain.Timeframe, limit int) {
	for _, p := range f.reg.Providers() {
		cp, ok := p.(CandleProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var candles []domain.Candle
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			candles, err = cp.Candles(ctx, sym, tf, limit)
			return err
		})
		if err != nil || len(candles) == 0 {
			continue
		}
		if f.history != nil {
			if err := f.history.SaveSeries(sym, tf, candles); err != nil {
				f.log.Warn().Err(err).Str("ticker", sym).Msg("Failed to persist candle series")
			}
		}
		return
	}
}

func (f *Fetcher) fetchShortInterest(ctx context.Context, sym string) {
	for _, p := range f.reg.Providers() {
		sp, ok := p.(ShortInterestProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var si float64
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			si, err = sp.ShortInterest(ctx, sym)
			return err
		})
		if err != nil {
			continue
		}
		// Short interest above 100% of float is an impossible read; the stale
		// entry stays and the signal layer refuses to score it.
		if si < 0 || si > 100 {
			f.log.Warn().Float64("shortInterest", si).Str("ticker", sym).Msg("Discarding impossible short interest")
			return
		}
		f.store.UpdateTicker(sym, func(tf *domain.TickerFacts) {
			tf.ShortInterest = si
			tf.Updated["shortinterest"] = time.Now()
		})
		return
	}
}

func (f *Fetcher) fetchEarnings(ctx context.Context, sym string) {
	for _, p := range f.reg.Providers() {
		ep, ok := p.(EarningsProvider)
		if !ok {
			continue
		}
		f.recorder.Record(p.Name(), 1)
		var e *domain.Earnings
		err := f.reg.Guard(p.Name()).Do(ctx, func(ctx context.Context) error {
			var err error
			e, err = ep.Earnings(ctx, sym)
			return err
		})
		if err != nil || e == nil {
			continue
		}
		f.store.UpdateTicker(sym, func(tf *domain.TickerFacts) {
			tf.Earnings = e
			tf.Updated["earnings"] = time.Now()
		})
		return
	}
}

// mergeOptions overlays non-empty fields of src onto dst so WARM-only fields
// survive HOT refreshes.
func mergeOptions(dst, src *domain.OptionsFacts) {
	if len(src.FlowAlerts) > 0 {
		dst.FlowAlerts = src.FlowAlerts
	}
	if len(src.NetPremium) > 0 {
		dst.NetPremium = src.NetPremium
	}
	if len(src.FlowPerStrike) > 0 {
		dst.FlowPerStrike = src.FlowPerStrike
	}
	if len(src.IntradayPerStrike) > 0 {
		dst.IntradayPerStrike = src.IntradayPerStrike
	}
	if len(src.GEXPerStrike) > 0 {
		dst.GEXPerStrike = src.GEXPerStrike
	}
	if src.CallPremium != 0 {
		dst.CallPremium = src.CallPremium
	}
	if src.PutPremium != 0 {
		dst.PutPremium = src.PutPremium
	}
	if src.SpotGamma != 0 {
		dst.SpotGamma = src.SpotGamma
	}
	if src.MaxPain != 0 {
		dst.MaxPain = src.MaxPain
	}
	if src.OIChange != 0 {
		dst.OIChange = src.OIChange
	}
	if src.IVRank != 0 {
		dst.IVRank = src.IVRank
	}
	if src.IVSkew != 0 {
		dst.IVSkew = src.IVSkew
	}
	if src.RealizedVol != 0 {
		dst.RealizedVol = src.RealizedVol
	}
	if src.NOPE != 0 {
		dst.NOPE = src.NOPE
	}
	dst.TermContango = src.TermContango || dst.TermContango
}

// mergeMarket overlays non-empty fields of src onto dst.
func mergeMarket(dst, src *domain.MarketFacts) {
	if src.Tide != nil {
		dst.Tide = src.Tide
	}
	if src.VIX != nil {
		dst.VIX = src.VIX
	}
	if len(src.SectorTides) > 0 {
		dst.SectorTides = src.SectorTides
	}
	if len(src.ETFTides) > 0 {
		dst.ETFTides = src.ETFTides
	}
	if len(src.Calendar) > 0 {
		dst.Calendar = src.Calendar
	}
	if len(src.TopImpact) > 0 {
		dst.TopImpact = src.TopImpact
	}
	if len(src.Insiders) > 0 {
		dst.Insiders = src.Insiders
	}
	if len(src.Congress) > 0 {
		dst.Congress = src.Congress
	}
	if len(src.News) > 0 {
		dst.News = src.News
	}
	if len(src.Holidays) > 0 {
		dst.Holidays = src.Holidays
	}
	if src.Breadth != 0 {
		dst.Breadth = src.Breadth
	}
}
