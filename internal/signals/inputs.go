package signals

import (
	"time"

	"github.com/pkoukos/argus/internal/domain"
)

// Inputs is everything one scoring pass may read. The wall clock never leaks
// in: Session and Now are explicit so scoring is idempotent on equal inputs.
type Inputs struct {
	Ticker string

	Quote      *domain.Quote
	TA         *domain.Technicals // daily
	IntradayTA *domain.Technicals // 5m
	Options    *domain.OptionsFacts
	DarkPool   *domain.DarkPool
	Earnings   *domain.Earnings
	Tick       *domain.TickSummary

	ShortInterest float64
	NewsSentiment float64

	Market domain.MarketFacts

	Session domain.Session
	Regime  domain.Regime
	Horizon domain.Horizon
	Now     time.Time
}

// gapPct returns the open-over-previous-close gap in percent, 0 when unknown.
func (in *Inputs) gapPct() float64 {
	if in.Quote == nil || in.Quote.PrevClose <= 0 || in.Quote.Open <= 0 {
		return 0
	}
	return 100 * (in.Quote.Open - in.Quote.PrevClose) / in.Quote.PrevClose
}

// Price returns the best-known last price, 0 when unknown.
func (in *Inputs) Price() float64 {
	return in.price()
}

func (in *Inputs) price() float64 {
	if in.Tick != nil && in.Tick.LastPrice > 0 {
		return in.Tick.LastPrice
	}
	if in.Quote != nil {
		return in.Quote.Last
	}
	return 0
}
