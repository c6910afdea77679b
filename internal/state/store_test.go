package state

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), zerolog.Nop())
}

func TestLoadFirstRunUsesDefaults(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load([]string{"spy", "NVDA", "spy", "bad!"}))
	assert.Equal(t, []string{"SPY", "NVDA"}, s.Watchlist())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, zerolog.Nop())
	require.NoError(t, s.Load([]string{"SPY"}))

	s.UpdateTicker("SPY", func(tf *domain.TickerFacts) {
		tf.Quote = &domain.Quote{Ticker: "SPY", Last: 512.34, PriceSource: domain.SourceSnapshot}
		tf.ShortInterest = 1.2
	})
	s.SetScore(&domain.SignalScore{Ticker: "SPY", Direction: domain.Bullish, Confidence: 62})
	s.SetDiscovery(&domain.Discovery{
		ID:           "d1",
		Ticker:       "ABCD",
		Source:       domain.DiscoveryVolatilityRunner,
		DiscoveredAt: time.Now(),
		ExpiresAt:    time.Now().Add(2 * time.Hour),
	})
	s.UpdateScheduler(func(st *domain.SchedulerState) {
		st.CycleCount = 42
		st.DailyCallCount = 1234
	})
	require.NoError(t, s.Save())
	require.NoError(t, s.SaveWatchlist())

	reloaded := New(dir, zerolog.Nop())
	require.NoError(t, reloaded.Load(nil))

	assert.Equal(t, []string{"SPY"}, reloaded.Watchlist())
	facts := reloaded.Ticker("SPY")
	require.NotNil(t, facts)
	require.NotNil(t, facts.Quote)
	assert.Equal(t, 512.34, facts.Quote.Last)
	assert.Equal(t, 1.2, facts.ShortInterest)

	score := reloaded.Score("SPY")
	require.NotNil(t, score)
	assert.Equal(t, 62, score.Confidence)

	require.NotNil(t, reloaded.Discovery("ABCD"))
	assert.Equal(t, int64(42), reloaded.SchedulerState().CycleCount)
	assert.Equal(t, 1234, reloaded.SchedulerState().DailyCallCount)
}

func TestAddRemoveTicker(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load([]string{"SPY"}))

	added, err := s.AddTicker("tsla")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, s.OnWatchlist("TSLA"))

	added, err = s.AddTicker("TSLA")
	require.NoError(t, err)
	assert.False(t, added, "duplicate add should report false")

	_, err = s.AddTicker("not a ticker")
	assert.Error(t, err)

	s.SetScore(&domain.SignalScore{Ticker: "TSLA"})
	removed, err := s.RemoveTicker("TSLA")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, s.OnWatchlist("TSLA"))
	assert.Nil(t, s.Score("TSLA"), "removal clears state entries")

	removed, err = s.RemoveTicker("TSLA")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDiscoveriesSortedNewestFirst(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load([]string{"SPY"}))

	base := time.Now()
	s.SetDiscovery(&domain.Discovery{Ticker: "OLD", DiscoveredAt: base.Add(-time.Hour)})
	s.SetDiscovery(&domain.Discovery{Ticker: "NEW", DiscoveredAt: base})

	ds := s.Discoveries()
	require.Len(t, ds, 2)
	assert.Equal(t, "NEW", ds[0].Ticker)

	s.RemoveDiscovery("NEW")
	assert.Len(t, s.Discoveries(), 1)
}

func TestSaveConcurrentWithWriters(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load([]string{"SPY"}))

	// Save encodes the live snapshot; hammer it from one goroutine while
	// another mutates the maps. The race detector flags any encode that
	// escapes the lock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.UpdateTicker("SPY", func(tf *domain.TickerFacts) {
				tf.ShortInterest = float64(i)
			})
			s.SetScore(&domain.SignalScore{Ticker: "SPY", Confidence: i % 95})
		}
	}()
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Save())
	}
	<-done
	require.NoError(t, s.Save())
}

func TestCloneIsDeep(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load([]string{"SPY"}))
	s.UpdateTicker("SPY", func(tf *domain.TickerFacts) {
		tf.Quote = &domain.Quote{Ticker: "SPY", Last: 100}
	})

	snap, err := s.Clone()
	require.NoError(t, err)
	snap.Tickers["SPY"].Quote.Last = 999

	assert.Equal(t, 100.0, s.Ticker("SPY").Quote.Last, "mutating the clone must not touch the store")
}
