package sources

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkoukos/argus/internal/domain"
)

// SimProvider is a deterministic synthetic market used in dev mode and tests.
// Each ticker gets a seeded random walk so repeated runs look the same. It
// implements every capability interface so the whole pipeline exercises
// without credentials.
type SimProvider struct {
	mu    sync.Mutex
	rngs  map[string]*rand.Rand
	walks map[string]float64
}

// NewSimProvider creates the synthetic provider.
func NewSimProvider() *SimProvider {
	return &SimProvider{
		rngs:  make(map[string]*rand.Rand),
		walks: make(map[string]float64),
	}
}

// Name implements Provider.
func (s *SimProvider) Name() string { return "sim" }

func (s *SimProvider) rng(ticker string) *rand.Rand {
	if r, ok := s.rngs[ticker]; ok {
		return r
	}
	h := fnv.New64a()
	h.Write([]byte(ticker))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	s.rngs[ticker] = r
	return r
}

func (s *SimProvider) price(ticker string) float64 {
	if p, ok := s.walks[ticker]; ok {
		return p
	}
	p := 20 + float64(len(ticker))*45.0
	s.walks[ticker] = p
	return p
}

func (s *SimProvider) step(ticker string) float64 {
	r := s.rng(ticker)
	p := s.price(ticker)
	p *= 1 + (r.Float64()-0.5)*0.004
	s.walks[ticker] = p
	return p
}

// Quote implements QuoteProvider.
func (s *SimProvider) Quote(_ context.Context, ticker string) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.step(ticker)
	r := s.rng(ticker)
	return &domain.Quote{
		Ticker:      ticker,
		Last:        p,
		Open:        p * (1 + (r.Float64()-0.5)*0.01),
		High:        p * 1.01,
		Low:         p * 0.99,
		PrevClose:   p * (1 + (r.Float64()-0.5)*0.02),
		Volume:      int64(1_000_000 + r.Intn(5_000_000)),
		VWAP:        p * (1 + (r.Float64()-0.5)*0.002),
		Bid:         p - 0.01,
		Ask:         p + 0.01,
		PriceSource: domain.SourceSnapshot,
	}, nil
}

// Candles implements CandleProvider.
func (s *SimProvider) Candles(_ context.Context, ticker string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rng(ticker)
	p := s.price(ticker)

	step := time.Minute * 5
	if tf == domain.TF1d {
		step = 24 * time.Hour
	}

	out := make([]domain.Candle, limit)
	t := time.Now().Add(-time.Duration(limit) * step)
	for i := 0; i < limit; i++ {
		drift := math.Sin(float64(i)/9) * 0.003
		p *= 1 + drift + (r.Float64()-0.5)*0.01
		c := domain.Candle{
			Date:   t,
			Open:   p * (1 + (r.Float64()-0.5)*0.004),
			Close:  p,
			Volume: int64(500_000 + r.Intn(2_000_000)),
		}
		c.High = math.Max(c.Open, c.Close) * (1 + r.Float64()*0.004)
		c.Low = math.Min(c.Open, c.Close) * (1 - r.Float64()*0.004)
		out[i] = c
		t = t.Add(step)
	}
	return out, nil
}

// Options implements OptionsProvider.
func (s *SimProvider) Options(_ context.Context, ticker string, tier domain.Tier) (*domain.OptionsFacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rng(ticker)
	p := s.price(ticker)

	facts := &domain.OptionsFacts{
		CallPremium: 1e6 * (0.5 + r.Float64()),
		PutPremium:  1e6 * (0.5 + r.Float64()),
		SpotGamma:   (r.Float64() - 0.5) * 2e8,
	}
	strikes := make([]domain.StrikeFlow, 0, 12)
	base := math.Round(p/5) * 5
	for i := -6; i < 6; i++ {
		strike := base + float64(i)*5
		strikes = append(strikes, domain.StrikeFlow{
			Strike:     strike,
			Volume:     int64(r.Intn(20_000)),
			CallVolume: int64(r.Intn(12_000)),
			PutVolume:  int64(r.Intn(12_000)),
			NetPremium: (r.Float64() - 0.5) * 2e6,
		})
	}
	facts.FlowPerStrike = strikes
	facts.IntradayPerStrike = strikes

	if tier == domain.TierWarm || tier == domain.TierCold {
		facts.IVRank = r.Float64() * 100
		facts.IVSkew = (r.Float64() - 0.5) * 10
		facts.MaxPain = base
		facts.OIChange = (r.Float64() - 0.5) * 0.2
		facts.NOPE = (r.Float64() - 0.5) * 100
		facts.RealizedVol = 15 + r.Float64()*30
		facts.TermContango = r.Float64() > 0.4
	}
	return facts, nil
}

// DarkPool implements DarkPoolProvider.
func (s *SimProvider) DarkPool(_ context.Context, ticker string) (*domain.DarkPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rng(ticker)
	return &domain.DarkPool{
		TotalVolume:   int64(r.Intn(10_000_000)),
		BlockCount:    r.Intn(40),
		AggressorBias: (r.Float64() - 0.5) * 2,
		LargestPrint:  float64(r.Intn(5_000_000)),
	}, nil
}

// ShortInterest implements ShortInterestProvider.
func (s *SimProvider) ShortInterest(_ context.Context, ticker string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng(ticker).Float64() * 30, nil
}

// Earnings implements EarningsProvider.
func (s *SimProvider) Earnings(_ context.Context, ticker string) (*domain.Earnings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rng(ticker)
	next := time.Now().AddDate(0, 0, 1+r.Intn(60))
	return &domain.Earnings{
		NextDate:     next.Format("2006-01-02"),
		AnnounceTime: []string{"bmo", "amc", "unknown"}[r.Intn(3)],
	}, nil
}

// Market implements MarketProvider.
func (s *SimProvider) Market(_ context.Context, tier domain.Tier) (*domain.MarketFacts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rng("_market")
	facts := &domain.MarketFacts{
		Tide: &domain.MarketTide{
			BullPremium: 1e8 * (0.5 + r.Float64()),
			BearPremium: 1e8 * (0.5 + r.Float64()),
			BullVolume:  int64(r.Intn(2_000_000)),
			BearVolume:  int64(r.Intn(2_000_000)),
			At:          time.Now(),
		},
		VIX: &domain.VIXState{
			Level:     12 + r.Float64()*20,
			ChangePct: (r.Float64() - 0.5) * 10,
		},
		Breadth: 0.3 + r.Float64()*0.4,
	}
	facts.VIX.Spiking = facts.VIX.ChangePct > 8
	return facts, nil
}

// Screen implements ScreenerProvider.
func (s *SimProvider) Screen(_ context.Context, q ScreenQuery) ([]ScreenRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rng("_screen")
	names := []string{"RVNC", "KOSS", "BBIG", "GME", "PHUN", "MULN"}
	var out []ScreenRow
	for _, n := range names {
		row := ScreenRow{
			Ticker:    n,
			Price:     1 + r.Float64()*20,
			ChangePct: r.Float64() * 40,
			Volume:    int64(r.Intn(5_000_000)),
			RelVolume: 1 + r.Float64()*8,
			MarketCap: r.Float64() * 2e8,
		}
		if row.ChangePct >= q.MinChangePct && row.Volume >= q.MinVolume &&
			(q.MaxMarketCap == 0 || row.MarketCap < q.MaxMarketCap) &&
			row.RelVolume >= q.MinRelVolume {
			out = append(out, row)
		}
	}
	return out, nil
}

// ScanCandidates implements ScannerProvider.
func (s *SimProvider) ScanCandidates(_ context.Context) ([]string, error) {
	return []string{"AMD", "PLTR", "SOFI", "COIN", "MARA"}, nil
}
