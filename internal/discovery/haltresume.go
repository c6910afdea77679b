package discovery

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
)

const (
	// haltFeedURL is the NASDAQ trade-halts RSS feed.
	haltFeedURL = "https://www.nasdaqtrader.com/rss.aspx?feed=tradehalts"

	haltPollInterval = 60 * time.Second
	haltFetchTimeout = 15 * time.Second

	// haltTopN caps resumptions surfaced per pass.
	haltTopN = 3

	// haltRetention drops stale halt records.
	haltRetention = 4 * time.Hour
)

type haltFeed struct {
	Channel struct {
		Items []haltItem `xml:"item"`
	} `xml:"channel"`
}

type haltItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type haltRecord struct {
	reason   string
	haltedAt time.Time
	resumed  bool
}

// HaltResume polls the halt feed and surfaces tickers transitioning from
// halted to resumed; the resumption print is the tradeable moment, not the
// halt itself.
type HaltResume struct {
	client *http.Client
	url    string
	log    zerolog.Logger

	mu       sync.Mutex
	lastPoll time.Time
	halted   map[string]*haltRecord
}

// NewHaltResume creates the producer.
func NewHaltResume(log zerolog.Logger) *HaltResume {
	return &HaltResume{
		client: &http.Client{Timeout: haltFetchTimeout},
		url:    haltFeedURL,
		log:    log.With().Str("component", "haltresume").Logger(),
		halted: make(map[string]*haltRecord),
	}
}

// Name implements Producer.
func (h *HaltResume) Name() domain.DiscoverySource { return domain.DiscoveryHaltResume }

// Scan implements Producer. Polls at most once per interval.
func (h *HaltResume) Scan(ctx context.Context) []domain.Discovery {
	h.mu.Lock()
	if time.Since(h.lastPoll) < haltPollInterval {
		h.mu.Unlock()
		return nil
	}
	h.lastPoll = time.Now()
	h.mu.Unlock()

	items, err := h.fetch(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Halt feed poll failed")
		return nil
	}
	return h.apply(items, time.Now())
}

func (h *HaltResume) fetch(ctx context.Context) ([]haltItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var feed haltFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, err
	}
	return feed.Channel.Items, nil
}

// apply folds feed items into the halt map and returns resumption
// discoveries, newest halts first, capped at haltTopN.
func (h *HaltResume) apply(items []haltItem, now time.Time) []domain.Discovery {
	h.mu.Lock()
	defer h.mu.Unlock()

	type resumption struct {
		ticker   string
		reason   string
		haltedAt time.Time
	}
	var resumed []resumption

	for _, it := range items {
		ticker, reason, isResume := parseHaltTitle(it.Title, it.Description)
		if ticker == "" || !domain.ValidTicker(ticker) {
			continue
		}
		rec := h.halted[ticker]
		switch {
		case !isResume && rec == nil:
			h.halted[ticker] = &haltRecord{reason: reason, haltedAt: now}
		case isResume && rec != nil && !rec.resumed:
			rec.resumed = true
			resumed = append(resumed, resumption{ticker: ticker, reason: rec.reason, haltedAt: rec.haltedAt})
		}
	}

	for ticker, rec := range h.halted {
		if now.Sub(rec.haltedAt) > haltRetention {
			delete(h.halted, ticker)
		}
	}

	sort.Slice(resumed, func(i, j int) bool { return resumed[i].haltedAt.After(resumed[j].haltedAt) })
	if len(resumed) > haltTopN {
		resumed = resumed[:haltTopN]
	}

	var out []domain.Discovery
	for _, r := range resumed {
		out = append(out, domain.Discovery{
			Ticker:       r.ticker,
			Source:       domain.DiscoveryHaltResume,
			DiscoveredAt: now,
			Meta:         domain.DiscoveryMeta{HaltReason: r.reason},
		})
	}
	return out
}

// parseHaltTitle extracts the ticker and halt code from a feed row. Titles
// look like "HALT: TICKER - Reason", "RESUME: TICKER" or "RESUMPTION: TICKER".
func parseHaltTitle(title, desc string) (ticker, reason string, isResume bool) {
	upper := strings.ToUpper(strings.TrimSpace(title))
	switch {
	case strings.HasPrefix(upper, "RESUME"), strings.HasPrefix(upper, "RESUMPTION"):
		isResume = true
		upper = strings.TrimPrefix(upper, "RESUMPTION:")
		upper = strings.TrimPrefix(upper, "RESUME:")
	case strings.HasPrefix(upper, "HALT"):
		upper = strings.TrimPrefix(upper, "HALT:")
	default:
		return "", "", false
	}
	fields := strings.FieldsFunc(strings.TrimSpace(upper), func(r rune) bool {
		return r == ' ' || r == '-'
	})
	if len(fields) == 0 {
		return "", "", false
	}
	ticker = domain.NormalizeTicker(fields[0])
	if len(fields) > 1 {
		reason = strings.TrimSpace(strings.Join(fields[1:], " "))
	}
	if reason == "" {
		reason = strings.TrimSpace(desc)
	}
	return ticker, reason, isResume
}
