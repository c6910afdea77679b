// Package discovery finds non-watchlist tickers worth scoring: scanner
// candidates, low-float volatility runners, halt resumptions and opening
// gaps. Producers push into a shared sink that subscribes the real-time
// tape, tracks expiry, and keeps a per-source performance file.
package discovery

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
	"github.com/pkoukos/argus/internal/sources"
	"github.com/pkoukos/argus/internal/state"
)

const (
	// DiscoveryTTL is how long a discovered ticker stays in the scoring loop.
	DiscoveryTTL = 2 * time.Hour

	// SweepInterval is the expiry sweep cadence.
	SweepInterval = 15 * time.Minute

	perfFile = "scanner-performance.json"
)

// SourcePerf is the per-producer hit ledger.
type SourcePerf struct {
	Proposed  int       `json:"proposed"`
	Qualified int       `json:"qualified"` // reached tradeable confidence
	LastHit   time.Time `json:"lastHit,omitempty"`
}

// Pipeline owns the producers and the sink.
type Pipeline struct {
	store *state.Store
	ticks *sources.TickStream
	log   zerolog.Logger

	mu      sync.Mutex
	dataDir string
	perf    map[domain.DiscoverySource]*SourcePerf

	producers []Producer
}

// Producer is one discovery source.
type Producer interface {
	Name() domain.DiscoverySource
	// Scan returns candidate discoveries for this pass. Implementations own
	// their cadence guards; Scan may return nothing most of the time.
	Scan(ctx context.Context) []domain.Discovery
}

// New creates the pipeline with the given producers.
func New(dataDir string, store *state.Store, ticks *sources.TickStream, log zerolog.Logger, producers ...Producer) *Pipeline {
	p := &Pipeline{
		store:     store,
		ticks:     ticks,
		log:       log.With().Str("component", "discovery").Logger(),
		dataDir:   dataDir,
		perf:      make(map[domain.DiscoverySource]*SourcePerf),
		producers: producers,
	}
	var loaded map[domain.DiscoverySource]*SourcePerf
	if err := persist.ReadJSON(p.perfPath(), &loaded); err == nil && loaded != nil {
		p.perf = loaded
	}
	return p
}

func (p *Pipeline) perfPath() string {
	return filepath.Join(p.dataDir, perfFile)
}

// Run executes one discovery pass over every producer. Duplicate tickers
// (already watched or already discovered) are dropped; new ones subscribe
// the tape with a TTL and enter shared state.
func (p *Pipeline) Run(ctx context.Context) []domain.Discovery {
	var accepted []domain.Discovery
	for _, prod := range p.producers {
		for _, d := range prod.Scan(ctx) {
			d.Ticker = domain.NormalizeTicker(d.Ticker)
			if !domain.ValidTicker(d.Ticker) {
				continue
			}
			// Gap reads cover watchlist names too; every other producer only
			// surfaces tickers not already in the loop.
			if d.Source != domain.DiscoveryGapAnalyzer && p.store.OnWatchlist(d.Ticker) {
				continue
			}
			if p.store.Discovery(d.Ticker) != nil {
				continue
			}
			if d.ID == "" {
				d.ID = uuid.NewString()
			}
			if d.DiscoveredAt.IsZero() {
				d.DiscoveredAt = time.Now()
			}
			d.ExpiresAt = d.DiscoveredAt.Add(DiscoveryTTL)

			p.store.SetDiscovery(&d)
			p.ticks.Subscribe(d.Ticker, DiscoveryTTL)
			p.recordProposed(d.Source)
			accepted = append(accepted, d)
			p.log.Info().
				Str("ticker", d.Ticker).
				Str("source", string(d.Source)).
				Float64("price", d.Price).
				Msg("Ticker discovered")
		}
	}
	return accepted
}

// Sweep drops expired discoveries from state and the tape, on the 15-minute
// cadence.
func (p *Pipeline) Sweep(now time.Time) []string {
	var dropped []string
	for _, d := range p.store.Discoveries() {
		if d.ExpiresAt.After(now) {
			continue
		}
		p.store.RemoveDiscovery(d.Ticker)
		p.ticks.Unsubscribe(d.Ticker)
		dropped = append(dropped, d.Ticker)
	}
	for _, t := range p.ticks.SweepExpired() {
		dropped = append(dropped, t)
	}
	if len(dropped) > 0 {
		p.log.Info().Strs("tickers", dropped).Msg("Expired discoveries swept")
	}
	return dropped
}

func (p *Pipeline) recordProposed(src domain.DiscoverySource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.perf[src]
	if sp == nil {
		sp = &SourcePerf{}
		p.perf[src] = sp
	}
	sp.Proposed++
	p.savePerfLocked()
}

// RecordQualified marks that a discovery from src reached tradeable
// confidence, the number the per-source hit rate is judged on.
func (p *Pipeline) RecordQualified(src domain.DiscoverySource, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp := p.perf[src]
	if sp == nil {
		sp = &SourcePerf{}
		p.perf[src] = sp
	}
	sp.Qualified++
	sp.LastHit = now
	p.savePerfLocked()
}

func (p *Pipeline) savePerfLocked() {
	if err := persist.WriteJSON(p.perfPath(), p.perf); err != nil {
		p.log.Warn().Err(err).Msg("Scanner performance persist failed")
	}
}

// Performance returns the per-source ledger copy.
func (p *Pipeline) Performance() map[domain.DiscoverySource]SourcePerf {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[domain.DiscoverySource]SourcePerf, len(p.perf))
	for k, v := range p.perf {
		out[k] = *v
	}
	return out
}
