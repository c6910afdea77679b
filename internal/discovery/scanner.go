package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/sources"
)

// scannerDefer keeps the scanner off the wire right after the hot cycle so
// watchlist refreshes always get the call budget first.
const scannerDefer = 60 * time.Second

// Scanner wraps a provider-side candidate scan. It arms on NotifyCycle and
// fires one deferred pass per arm.
type Scanner struct {
	provider sources.ScannerProvider
	fetch    quoteFetcher
	log      zerolog.Logger

	mu      sync.Mutex
	armedAt time.Time
	fired   bool
}

type quoteFetcher interface {
	FetchQuote(ctx context.Context, ticker string) (*domain.Quote, error)
}

// NewScanner creates the producer.
func NewScanner(provider sources.ScannerProvider, fetch quoteFetcher, log zerolog.Logger) *Scanner {
	return &Scanner{
		provider: provider,
		fetch:    fetch,
		log:      log.With().Str("component", "scanner").Logger(),
		fired:    true,
	}
}

// Name implements Producer.
func (s *Scanner) Name() domain.DiscoverySource { return domain.DiscoveryScanner }

// NotifyCycle arms the deferred scan; called at the end of each hot cycle.
func (s *Scanner) NotifyCycle(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armedAt = now
	s.fired = false
}

// Scan implements Producer. Returns nothing until the defer window after the
// last arm has elapsed, then fires once.
func (s *Scanner) Scan(ctx context.Context) []domain.Discovery {
	if s.provider == nil {
		return nil
	}
	s.mu.Lock()
	if s.fired || s.armedAt.IsZero() || time.Since(s.armedAt) < scannerDefer {
		s.mu.Unlock()
		return nil
	}
	s.fired = true
	s.mu.Unlock()

	candidates, err := s.provider.ScanCandidates(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Candidate scan failed")
		return nil
	}

	now := time.Now()
	var out []domain.Discovery
	for _, ticker := range candidates {
		sym := domain.NormalizeTicker(ticker)
		if blacklistedETF(sym) {
			continue
		}
		d := domain.Discovery{
			Ticker:       sym,
			Source:       domain.DiscoveryScanner,
			DiscoveredAt: now,
		}
		if s.fetch != nil {
			if q, err := s.fetch.FetchQuote(ctx, d.Ticker); err == nil {
				d.Price = q.Last
			}
		}
		out = append(out, d)
	}
	return out
}
