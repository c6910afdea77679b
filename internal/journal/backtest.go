package journal

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/signals"
	"github.com/pkoukos/argus/internal/ta"
)

const (
	// backtestMinConfidence gates simulated entries, same bar as live.
	backtestMinConfidence = 70

	// backtestMaxHold force-closes a simulated position after this many bars.
	backtestMaxHold = 20
)

// BacktestResult is the outcome of one historical replay.
type BacktestResult struct {
	Ticker  string                  `json:"ticker"`
	Entries int                     `json:"entries"`
	Wins    int                     `json:"wins"`
	Losses  int                     `json:"losses"`
	Samples []domain.TrainingSample `json:"-"`
}

// Backtest replays a candle history through the scoring engine, simulating
// the same entry rules the live loop applies, and emits labeled training
// samples. Only price-derived signals fire (no options surface or tape in
// history), so backtest labels seed the calibrator rather than finish it.
func Backtest(engine *signals.Engine, ticker string, candles []domain.Candle, horizon domain.Horizon, log zerolog.Logger) *BacktestResult {
	res := &BacktestResult{Ticker: ticker}
	blog := log.With().Str("component", "backtest").Str("ticker", ticker).Logger()

	for i := domain.MinCandles; i < len(candles)-1; i++ {
		tech, err := ta.Compute(candles[:i+1])
		if err != nil {
			continue
		}
		bar := candles[i]
		in := &signals.Inputs{
			Ticker: ticker,
			Quote: &domain.Quote{
				Ticker:    ticker,
				Last:      bar.Close,
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				PrevClose: candles[i-1].Close,
				Volume:    bar.Volume,
			},
			TA:      tech,
			Session: domain.SessionAt(bar.Date),
			Regime:  domain.RegimeUnknown,
			Horizon: horizon,
			Now:     bar.Date,
		}
		score := engine.Score(in)
		if score.Confidence < backtestMinConfidence || score.Direction == domain.Neutral {
			continue
		}

		dir := domain.Long
		if score.Direction == domain.Bearish {
			dir = domain.Short
		}
		entry := bar.Close
		t1, _, stop, _ := signals.ProjectTargets(entry, tech.ATR, dir, horizon)
		if t1 <= 0 || stop <= 0 {
			continue
		}

		label, pnlPct, resolvedAt := simulate(candles[i+1:], dir, entry, t1, stop)
		res.Entries++
		if label == 1 {
			res.Wins++
		} else {
			res.Losses++
		}
		at := bar.Date
		if resolvedAt != nil {
			at = *resolvedAt
		}
		res.Samples = append(res.Samples, domain.TrainingSample{
			Features:   score.Features,
			Label:      label,
			Confidence: score.Confidence,
			PnlPct:     pnlPct,
			Horizon:    horizon,
			Ticker:     ticker,
			At:         at,
		})
	}

	blog.Info().Int("entries", res.Entries).Int("wins", res.Wins).Msg("Backtest complete")
	return res
}

// simulate walks bars forward until stop or target resolves. Both-in-one-bar
// resolves to the stop unless the close finished beyond the target, matching
// the live outcome rule.
func simulate(future []domain.Candle, dir domain.TradeDirection, entry, target, stop float64) (label int, pnlPct float64, at *time.Time) {
	long := dir == domain.Long
	hold := backtestMaxHold
	if hold > len(future) {
		hold = len(future)
	}
	for k := 0; k < hold; k++ {
		bar := future[k]
		stopHit := (long && bar.Low <= stop) || (!long && bar.High >= stop)
		targetHit := (long && bar.High >= target) || (!long && bar.Low <= target)
		switch {
		case stopHit && targetHit:
			if (long && bar.Close >= target) || (!long && bar.Close <= target) {
				return 1, pct(entry, target, long), &bar.Date
			}
			return 0, pct(entry, stop, long), &bar.Date
		case stopHit:
			return 0, pct(entry, stop, long), &bar.Date
		case targetHit:
			return 1, pct(entry, target, long), &bar.Date
		}
	}
	if hold == 0 {
		return 0, 0, nil
	}
	exit := future[hold-1].Close
	p := pct(entry, exit, long)
	if p > 0 {
		return 1, p, &future[hold-1].Date
	}
	return 0, p, &future[hold-1].Date
}

func pct(entry, exit float64, long bool) float64 {
	p := 100 * (exit - entry) / entry
	if !long {
		p = -p
	}
	return round2(p)
}
