package sources

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream() *TickStream {
	return NewTickStream("", zerolog.Nop())
}

func tick(ticker string, price float64, size int64, side string, at time.Time) Tick {
	return Tick{Ticker: ticker, Price: price, Size: size, Side: side, Bid: price - 0.01, Ask: price + 0.01, At: at}
}

func TestIngestDropsUnsubscribed(t *testing.T) {
	ts := newTestStream()
	ts.Ingest(tick("XYZ", 10, 100, "buy", time.Now()))
	assert.Nil(t, ts.Summary("XYZ"))
}

func TestSummarizeFlowAndLevels(t *testing.T) {
	ts := newTestStream()
	ts.Subscribe("XYZ", 0)
	now := time.Now()

	ts.Ingest(tick("XYZ", 10.0, 300, "buy", now))
	ts.Ingest(tick("XYZ", 10.2, 100, "sell", now.Add(time.Second)))
	ts.Ingest(tick("XYZ", 9.8, 12_000, "sell", now.Add(2*time.Second)))

	s := ts.Summary("XYZ")
	require.NotNil(t, s)
	assert.Equal(t, 9.8, s.LastPrice)
	assert.Equal(t, 10.2, s.HighOfDay)
	assert.Equal(t, 9.8, s.LowOfDay)
	assert.Equal(t, int64(12_400), s.TotalVolume)
	assert.Equal(t, 1, s.LargeBlockSells, "only the 12k print clears the block threshold")
	assert.Zero(t, s.LargeBlockBuys)

	// buy 300 vs sell 12,100.
	assert.InDelta(t, 100*300.0/12_400, s.BuyVolumePct, 1e-9)
	assert.InDelta(t, (300.0-12_100)/12_400, s.FlowImbalance, 1e-9)

	wantVWAP := (10.0*300 + 10.2*100 + 9.8*12_000) / 12_400
	assert.InDelta(t, wantVWAP, s.VWAP, 1e-9)
	assert.Equal(t, now.Add(2*time.Second), s.UpdatedAt)
}

func TestRangeSinceExcludesOlderPrints(t *testing.T) {
	ts := newTestStream()
	ts.Subscribe("XYZ", 0)
	now := time.Now()

	ts.Ingest(tick("XYZ", 95, 100, "sell", now.Add(-10*time.Minute)))
	ts.Ingest(tick("XYZ", 99.5, 100, "buy", now.Add(time.Minute)))
	ts.Ingest(tick("XYZ", 101, 100, "buy", now.Add(2*time.Minute)))

	hi, lo, ok := ts.RangeSince("XYZ", now)
	require.True(t, ok)
	assert.Equal(t, 101.0, hi)
	assert.Equal(t, 99.5, lo, "prints before the cutoff stay out of the range")

	_, _, ok = ts.RangeSince("XYZ", now.Add(time.Hour))
	assert.False(t, ok)
	_, _, ok = ts.RangeSince("NONE", now)
	assert.False(t, ok)
}

func TestRingBounded(t *testing.T) {
	ts := newTestStream()
	ts.Subscribe("XYZ", 0)
	now := time.Now()
	for i := 0; i < tickRingSize+50; i++ {
		ts.Ingest(tick("XYZ", 10, 1, "buy", now))
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	assert.Len(t, ts.rings["XYZ"], tickRingSize)
}

func TestSubscribeTTLSemantics(t *testing.T) {
	ts := newTestStream()

	ts.Subscribe("PERM", 0)
	assert.True(t, ts.Subscribed("PERM"))

	// A later TTL subscribe never downgrades a permanent one.
	ts.Subscribe("PERM", time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	assert.True(t, ts.Subscribed("PERM"))

	ts.Subscribe("TEMP", time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	assert.False(t, ts.Subscribed("TEMP"))

	dropped := ts.SweepExpired()
	assert.Contains(t, dropped, "TEMP")
	assert.NotContains(t, dropped, "PERM")
	assert.True(t, ts.Subscribed("PERM"))
}

func TestUnsubscribeClearsBuffers(t *testing.T) {
	ts := newTestStream()
	ts.Subscribe("XYZ", 0)
	ts.Ingest(tick("XYZ", 10, 100, "buy", time.Now()))
	require.NotNil(t, ts.Summary("XYZ"))

	ts.Unsubscribe("XYZ")
	assert.False(t, ts.Subscribed("XYZ"))
	assert.Nil(t, ts.Summary("XYZ"))
}
