// Package sources defines the uniform data-provider abstraction and the
// fan-in that merges provider responses into the state snapshot.
//
// Every provider exposes the same call shape: a typed request in, a payload
// and an error out. Providers are polymorphic over capabilities: an adapter
// implements only the capability interfaces it can serve, and the fetcher
// discovers them by type assertion.
package sources

import (
	"context"
	"errors"

	"github.com/pkoukos/argus/internal/domain"
)

// ErrNoProvider means no registered provider serves the requested capability.
var ErrNoProvider = errors.New("sources: no provider for capability")

// Provider is the base capability every adapter implements.
type Provider interface {
	Name() string
}

// QuoteProvider serves the latest quote for a ticker.
type QuoteProvider interface {
	Provider
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
}

// CandleProvider serves candle series.
type CandleProvider interface {
	Provider
	Candles(ctx context.Context, ticker string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}

// OptionsProvider serves the options surface. The tier hints how much of the
// surface to pull: HOT is flow and GEX, WARM adds IV rank, max pain, OI change,
// Greeks and per-strike breakdowns.
type OptionsProvider interface {
	Provider
	Options(ctx context.Context, ticker string, tier domain.Tier) (*domain.OptionsFacts, error)
}

// DarkPoolProvider serves off-exchange print aggregates.
type DarkPoolProvider interface {
	Provider
	DarkPool(ctx context.Context, ticker string) (*domain.DarkPool, error)
}

// ShortInterestProvider serves short interest as a percent of float.
type ShortInterestProvider interface {
	Provider
	ShortInterest(ctx context.Context, ticker string) (float64, error)
}

// EarningsProvider serves the earnings calendar entry plus post-report
// enrichment for a ticker.
type EarningsProvider interface {
	Provider
	Earnings(ctx context.Context, ticker string) (*domain.Earnings, error)
}

// MarketProvider serves market-wide facts. The tier hints depth: HOT is tide
// and VIX, WARM adds sector/ETF tides and top impact, COLD adds calendars,
// insiders, congress, news and holidays.
type MarketProvider interface {
	Provider
	Market(ctx context.Context, tier domain.Tier) (*domain.MarketFacts, error)
}

// ScreenQuery filters a screener scan.
type ScreenQuery struct {
	MinChangePct float64
	MinVolume    int64
	MaxMarketCap float64
	MinRelVolume float64
	LowFloat     bool
}

// ScreenRow is one screener result.
type ScreenRow struct {
	Ticker    string
	Price     float64
	ChangePct float64
	Volume    int64
	RelVolume float64
	MarketCap float64
}

// ScreenerProvider runs filtered scans (volatility runners, low float, gainers).
type ScreenerProvider interface {
	Provider
	Screen(ctx context.Context, q ScreenQuery) ([]ScreenRow, error)
}

// ScannerProvider surfaces raw candidate tickers for the discovery scanner:
// unusual flow, dark pool, top net impact, insiders, news movers.
type ScannerProvider interface {
	Provider
	ScanCandidates(ctx context.Context) ([]string, error)
}
