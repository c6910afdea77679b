package discovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/sources"
)

const (
	runnerMinChangePct = 10.0
	runnerMinVolume    = 500_000
	runnerMaxMarketCap = 50_000_000
	runnerMinRelVolume = 3.0

	// runnerCooldown keeps a ticker from being re-proposed in quick succession.
	runnerCooldown = 10 * time.Minute

	// runnerTopN caps how many runners one pass may emit.
	runnerTopN = 2
)

type screener interface {
	Screen(ctx context.Context, q sources.ScreenQuery) ([]sources.ScreenRow, error)
}

// VolRunner screens for small-cap volatility runners: big percent move, real
// volume, tight float. Emits at most two per pass, ranked by relative volume.
type VolRunner struct {
	screen screener
	log    zerolog.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewVolRunner creates the producer.
func NewVolRunner(screen screener, log zerolog.Logger) *VolRunner {
	return &VolRunner{
		screen:   screen,
		log:      log.With().Str("component", "volrunner").Logger(),
		lastSeen: make(map[string]time.Time),
	}
}

// Name implements Producer.
func (v *VolRunner) Name() domain.DiscoverySource { return domain.DiscoveryVolatilityRunner }

// Scan implements Producer.
func (v *VolRunner) Scan(ctx context.Context) []domain.Discovery {
	rows, err := v.screen.Screen(ctx, sources.ScreenQuery{
		MinChangePct: runnerMinChangePct,
		MinVolume:    runnerMinVolume,
		MaxMarketCap: runnerMaxMarketCap,
		MinRelVolume: runnerMinRelVolume,
		LowFloat:     true,
	})
	if err != nil {
		v.log.Warn().Err(err).Msg("Runner screen failed")
		return nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].RelVolume > rows[j].RelVolume })

	now := time.Now()
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []domain.Discovery
	for _, r := range rows {
		if len(out) >= runnerTopN {
			break
		}
		if blacklistedETF(r.Ticker) {
			continue
		}
		if seen, ok := v.lastSeen[r.Ticker]; ok && now.Sub(seen) < runnerCooldown {
			continue
		}
		v.lastSeen[r.Ticker] = now
		out = append(out, domain.Discovery{
			Ticker:       r.Ticker,
			Source:       domain.DiscoveryVolatilityRunner,
			DiscoveredAt: now,
			Price:        r.Price,
			Direction:    domain.Bullish,
			Meta: domain.DiscoveryMeta{
				RelVolume: r.RelVolume,
			},
		})
	}
	return out
}
