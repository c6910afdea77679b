// Package notify fans alerts out to the configured channels with per-key
// deduplication, so a setup that stays hot across cycles pings once.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
)

// dedupeTTL silences repeats of the same kind+ticker alert.
const dedupeTTL = 30 * time.Minute

// Alert is one outbound notification.
type Alert struct {
	Kind   string // setup | trade-open | trade-closed | discovery | eod | brief
	Ticker string
	Title  string
	Body   string
	At     time.Time
}

// Key is the dedupe identity.
func (a Alert) Key() string {
	return a.Kind + ":" + a.Ticker
}

// Channel delivers one alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Notifier is the deduplicating fan-out.
type Notifier struct {
	channels []Channel
	log      zerolog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New creates the notifier; nil or zero channels is valid and silent.
func New(log zerolog.Logger, channels ...Channel) *Notifier {
	return &Notifier{
		channels: channels,
		log:      log.With().Str("component", "notify").Logger(),
		lastSent: make(map[string]time.Time),
	}
}

// Send delivers an alert to every channel unless an identical key fired
// within the dedupe window. Channel failures are logged, never propagated.
func (n *Notifier) Send(ctx context.Context, a Alert) bool {
	if a.At.IsZero() {
		a.At = time.Now()
	}

	n.mu.Lock()
	if last, ok := n.lastSent[a.Key()]; ok && a.At.Sub(last) < dedupeTTL {
		n.mu.Unlock()
		return false
	}
	n.lastSent[a.Key()] = a.At
	n.mu.Unlock()

	for _, ch := range n.channels {
		if err := ch.Send(ctx, a); err != nil {
			n.log.Warn().Err(err).Str("channel", ch.Name()).Str("kind", a.Kind).Msg("Alert delivery failed")
		}
	}
	return true
}

// SetupAlert formats a qualified trade setup.
func SetupAlert(s *domain.TradeSetup) Alert {
	return Alert{
		Kind:   "setup",
		Ticker: s.Ticker,
		Title:  fmt.Sprintf("%s %s setup (%d%%)", s.Ticker, s.Direction, s.BlendedConfidence),
		Body: fmt.Sprintf("Entry %.2f | T1 %.2f | T2 %.2f | Stop %.2f | R:R %.1f | %s",
			s.Entry, s.Target1, s.Target2, s.Stop, s.RiskReward, s.Horizon),
	}
}

// TradeClosedAlert formats a resolved paper trade.
func TradeClosedAlert(t *domain.PaperTrade) Alert {
	return Alert{
		Kind:   "trade-closed",
		Ticker: t.Ticker,
		Title:  fmt.Sprintf("%s %s closed: %s", t.Ticker, t.Direction, t.Status),
		Body: fmt.Sprintf("Entry %.2f -> Exit %.2f | %+.2f pts (%+.2f%%)",
			t.EntryPrice, t.ExitPrice, t.PnlPoints, t.PnlPct),
	}
}

// DiscoveryAlert formats a newly discovered ticker.
func DiscoveryAlert(d *domain.Discovery) Alert {
	body := fmt.Sprintf("Source: %s", d.Source)
	if len(d.TopSignals) > 0 {
		body += " | " + strings.Join(d.TopSignals, ", ")
	}
	return Alert{
		Kind:   "discovery",
		Ticker: d.Ticker,
		Title:  fmt.Sprintf("%s discovered at %.2f", d.Ticker, d.Price),
		Body:   body,
	}
}
