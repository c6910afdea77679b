package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/pkoukos/argus/internal/domain"
)

type recordingChannel struct {
	name string
	sent []Alert
	err  error
}

func (c *recordingChannel) Name() string { return c.name }
func (c *recordingChannel) Send(_ context.Context, a Alert) error {
	c.sent = append(c.sent, a)
	return c.err
}

func TestSendDedupesByKindAndTicker(t *testing.T) {
	ch := &recordingChannel{name: "rec"}
	n := New(zerolog.Nop(), ch)
	base := time.Now()

	assert.True(t, n.Send(context.Background(), Alert{Kind: "setup", Ticker: "NVDA", At: base}))
	assert.False(t, n.Send(context.Background(), Alert{Kind: "setup", Ticker: "NVDA", At: base.Add(10 * time.Minute)}))
	assert.Len(t, ch.sent, 1)

	// Different ticker or kind is a different key.
	assert.True(t, n.Send(context.Background(), Alert{Kind: "setup", Ticker: "TSLA", At: base}))
	assert.True(t, n.Send(context.Background(), Alert{Kind: "trade-closed", Ticker: "NVDA", At: base}))

	// Past the window the key fires again.
	assert.True(t, n.Send(context.Background(), Alert{Kind: "setup", Ticker: "NVDA", At: base.Add(dedupeTTL)}))
	assert.Len(t, ch.sent, 4)
}

func TestSendToleratesChannelFailure(t *testing.T) {
	broken := &recordingChannel{name: "broken", err: errors.New("webhook 500")}
	healthy := &recordingChannel{name: "healthy"}
	n := New(zerolog.Nop(), broken, healthy)

	assert.True(t, n.Send(context.Background(), Alert{Kind: "discovery", Ticker: "ABCD"}))
	assert.Len(t, broken.sent, 1)
	assert.Len(t, healthy.sent, 1, "one failing channel never blocks the rest")
}

func TestSendWithoutChannels(t *testing.T) {
	n := New(zerolog.Nop())
	assert.True(t, n.Send(context.Background(), Alert{Kind: "eod"}))
}

func TestAlertFormatting(t *testing.T) {
	a := SetupAlert(&domain.TradeSetup{
		Ticker:            "NVDA",
		Direction:         domain.Long,
		Entry:             100,
		Target1:           103,
		Target2:           105,
		Stop:              98,
		RiskReward:        1.5,
		Horizon:           domain.HorizonDay,
		BlendedConfidence: 78,
	})
	assert.Equal(t, "setup", a.Kind)
	assert.Contains(t, a.Title, "NVDA")
	assert.Contains(t, a.Title, "78%")
	assert.Contains(t, a.Body, "Entry 100.00")
	assert.Contains(t, a.Body, "Stop 98.00")

	tr := TradeClosedAlert(&domain.PaperTrade{
		Ticker: "NVDA", Direction: domain.Long, Status: domain.StatusWinT1,
		EntryPrice: 100, ExitPrice: 103, PnlPoints: 3, PnlPct: 3,
	})
	assert.Equal(t, "trade-closed", tr.Kind)
	assert.Contains(t, tr.Body, "+3.00 pts")

	d := DiscoveryAlert(&domain.Discovery{
		Ticker: "ABCD", Price: 4.2, Source: domain.DiscoveryHaltResume,
		TopSignals: []string{"resumed after LUDP"},
	})
	assert.Equal(t, "discovery:ABCD", d.Key())
	assert.Contains(t, d.Body, "resumed after LUDP")
}
