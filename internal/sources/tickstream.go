package sources

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/pkoukos/argus/internal/domain"
)

const (
	// tickRingSize bounds the per-ticker tick buffer (FIFO eviction).
	tickRingSize = 500

	// largeBlockShares is the block-print threshold.
	largeBlockShares = 10_000

	dialTimeout        = 30 * time.Second
	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute
)

// Tick is one trade print from the real-time stream.
type Tick struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	Size   int64     `json:"size"`
	Side   string    `json:"side"` // buy | sell | unknown
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	At     time.Time `json:"at"`
}

// TickStream consumes the real-time trade feed and maintains a per-ticker
// rolling summary that the signal engine reads synchronously. Subscriptions
// carry an optional TTL: discovery tickers expire, watchlist tickers do not.
type TickStream struct {
	url string
	log zerolog.Logger

	mu        sync.RWMutex
	rings     map[string][]Tick
	summaries map[string]*domain.TickSummary
	expiry    map[string]time.Time // zero time = permanent
}

// NewTickStream creates the subscriber. An empty url disables the network
// consumer; Ingest can still be fed directly (tests, simulated provider).
func NewTickStream(url string, log zerolog.Logger) *TickStream {
	return &TickStream{
		url:       url,
		log:       log.With().Str("component", "tickstream").Logger(),
		rings:     make(map[string][]Tick),
		summaries: make(map[string]*domain.TickSummary),
		expiry:    make(map[string]time.Time),
	}
}

// Subscribe registers interest in a ticker. ttl == 0 means permanent.
func (ts *TickStream) Subscribe(ticker string, ttl time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ttl == 0 {
		ts.expiry[ticker] = time.Time{}
		return
	}
	// Never downgrade a permanent subscription to an expiring one.
	if exp, ok := ts.expiry[ticker]; ok && exp.IsZero() {
		return
	}
	ts.expiry[ticker] = time.Now().Add(ttl)
}

// Unsubscribe drops a ticker and its buffers.
func (ts *TickStream) Unsubscribe(ticker string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.expiry, ticker)
	delete(ts.rings, ticker)
	delete(ts.summaries, ticker)
}

// Subscribed reports whether ticker has a live subscription.
func (ts *TickStream) Subscribed(ticker string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	exp, ok := ts.expiry[ticker]
	return ok && (exp.IsZero() || exp.After(time.Now()))
}

// SweepExpired removes subscriptions past their TTL and returns the tickers
// that were dropped.
func (ts *TickStream) SweepExpired() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := time.Now()
	var dropped []string
	for ticker, exp := range ts.expiry {
		if !exp.IsZero() && exp.Before(now) {
			delete(ts.expiry, ticker)
			delete(ts.rings, ticker)
			delete(ts.summaries, ticker)
			dropped = append(dropped, ticker)
		}
	}
	return dropped
}

// Ingest folds one tick into the ring and summary for its ticker. Ticks for
// unsubscribed tickers are dropped.
func (ts *TickStream) Ingest(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if exp, ok := ts.expiry[t.Ticker]; !ok || (!exp.IsZero() && exp.Before(time.Now())) {
		return
	}

	ring := append(ts.rings[t.Ticker], t)
	if len(ring) > tickRingSize {
		ring = ring[len(ring)-tickRingSize:]
	}
	ts.rings[t.Ticker] = ring

	ts.summaries[t.Ticker] = summarize(t.Ticker, ring)
}

// Summary returns the rolling summary for a ticker, or nil.
func (ts *TickStream) Summary(ticker string) *domain.TickSummary {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.summaries[ticker]
}

// RangeSince returns the high and low of the ticks printed strictly after
// since. ok is false when no tick in the ring postdates it.
func (ts *TickStream) RangeSince(ticker string, since time.Time) (high, low float64, ok bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	low = math.MaxFloat64
	for _, t := range ts.rings[ticker] {
		if !t.At.After(since) {
			continue
		}
		if t.Price > high {
			high = t.Price
		}
		if t.Price < low {
			low = t.Price
		}
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return high, low, true
}

func summarize(ticker string, ring []Tick) *domain.TickSummary {
	s := &domain.TickSummary{Ticker: ticker, LowOfDay: math.MaxFloat64}
	var buyVol, sellVol, pv float64
	for _, t := range ring {
		vol := float64(t.Size)
		s.TotalVolume += t.Size
		pv += t.Price * vol
		switch t.Side {
		case "buy":
			buyVol += vol
			if t.Size >= largeBlockShares {
				s.LargeBlockBuys++
			}
		case "sell":
			sellVol += vol
			if t.Size >= largeBlockShares {
				s.LargeBlockSells++
			}
		}
		if t.Price > s.HighOfDay {
			s.HighOfDay = t.Price
		}
		if t.Price < s.LowOfDay {
			s.LowOfDay = t.Price
		}
	}
	last := ring[len(ring)-1]
	s.LastPrice = last.Price
	s.Bid = last.Bid
	s.Ask = last.Ask
	s.UpdatedAt = last.At
	if s.TotalVolume > 0 {
		s.VWAP = pv / float64(s.TotalVolume)
	}
	if total := buyVol + sellVol; total > 0 {
		s.BuyVolumePct = 100 * buyVol / total
		s.SellVolumePct = 100 * sellVol / total
		s.FlowImbalance = (buyVol - sellVol) / total
	}
	if s.LowOfDay == math.MaxFloat64 {
		s.LowOfDay = 0
	}
	return s
}

// Run consumes the websocket feed until ctx is cancelled, reconnecting with
// exponential backoff. No-op when no URL is configured.
func (ts *TickStream) Run(ctx context.Context) {
	if ts.url == "" {
		ts.log.Info().Msg("No tick stream URL configured, running without real-time feed")
		return
	}
	delay := baseReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}
		if err := ts.consume(ctx); err != nil && ctx.Err() == nil {
			ts.log.Warn().Err(err).Dur("retryIn", delay).Msg("Tick stream disconnected")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}
		delay = baseReconnectDelay
	}
}

func (ts *TickStream) consume(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, ts.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutdown")
	conn.SetReadLimit(1 << 20)

	ts.log.Info().Msg("Tick stream connected")
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var t Tick
		if err := json.Unmarshal(data, &t); err != nil {
			// Malformed frame: drop it, keep the connection.
			continue
		}
		t.Ticker = domain.NormalizeTicker(t.Ticker)
		if t.At.IsZero() {
			t.At = time.Now()
		}
		ts.Ingest(t)
	}
}
