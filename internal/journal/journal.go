// Package journal owns the paper-trade ledger: opening simulated positions
// from qualified setups, marking them to market, resolving outcomes against
// price action, and feeding closed trades back to the calibrator as labeled
// samples.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
)

const (
	// reentryCooldown blocks a fresh trade in the same ticker and direction
	// after one was opened.
	reentryCooldown = 30 * time.Minute

	// maxConsecutiveLosses trips the per-ticker, per-direction circuit.
	maxConsecutiveLosses = 3

	// riskBudget is the dollar risk allocated to one paper position.
	riskBudget = 2000.0

	// halfKellyCap bounds the Kelly fraction after halving.
	halfKellyCap = 0.5

	// defaultKelly is used before enough closed trades exist to estimate.
	defaultKelly = 0.25

	// minTradesForKelly is the closed-trade floor for a real Kelly estimate.
	minTradesForKelly = 10

	tradesFile = "paper-trades.json"
	setupsFile = "trade-setups.json"
	setupsKeep = 200
)

var (
	ErrDuplicatePending = errors.New("journal: pending trade already open for ticker and direction")
	ErrCooldown         = errors.New("journal: re-entry cooldown active")
	ErrLossStreak       = errors.New("journal: consecutive-loss guard tripped")
	ErrBadSetup         = errors.New("journal: setup missing entry, stop or target")
)

// Bar is the price action slice outcomes are resolved against.
type Bar struct {
	High  float64
	Low   float64
	Close float64
	At    time.Time
}

// Journal is the persistent paper-trade ledger.
type Journal struct {
	mu      sync.Mutex
	dataDir string
	trades  []domain.PaperTrade
	setups  []domain.TradeSetup
	log     zerolog.Logger
}

// Open loads the ledger from dataDir. A damaged trades file is salvaged
// record by record; only a file that is not a JSON array at all gets moved
// aside.
func Open(dataDir string, log zerolog.Logger) *Journal {
	j := &Journal{
		dataDir: dataDir,
		log:     log.With().Str("component", "journal").Logger(),
	}

	j.trades = j.loadTrades(filepath.Join(dataDir, tradesFile))
	if err := persist.ReadJSON(filepath.Join(dataDir, setupsFile), &j.setups); err != nil && !errors.Is(err, os.ErrNotExist) {
		j.setups = nil
	}
	return j
}

// loadTrades reads the ledger, keeping every record that still decodes and
// backfilling fields older rows may lack. One malformed row must not cost
// the whole trade history.
func (j *Journal) loadTrades(path string) []domain.PaperTrade {
	var trades []domain.PaperTrade
	err := persist.ReadJSON(path, &trades)
	switch {
	case err == nil:
		return migrateTrades(trades)
	case errors.Is(err, os.ErrNotExist):
		return nil
	}

	data, rerr := os.ReadFile(path)
	if rerr != nil {
		j.log.Error().Err(rerr).Msg("Paper trades file unreadable")
		return nil
	}
	var raw []json.RawMessage
	if jerr := json.Unmarshal(data, &raw); jerr != nil {
		backup := path + ".corrupt"
		j.log.Error().Err(jerr).Str("backup", backup).Msg("Paper trades file is not a JSON array, moving aside")
		_ = os.Rename(path, backup)
		return nil
	}

	salvaged := make([]domain.PaperTrade, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var t domain.PaperTrade
		if jerr := json.Unmarshal(r, &t); jerr != nil || t.ID == "" || t.Ticker == "" {
			dropped++
			continue
		}
		salvaged = append(salvaged, t)
	}
	j.log.Warn().Int("kept", len(salvaged)).Int("dropped", dropped).Msg("Paper trades file salvaged record by record")
	return migrateTrades(salvaged)
}

// migrateTrades backfills derived fields on closed rows: exit price from the
// recorded outcome, P&L points from the percentage, totals from the share
// count.
func migrateTrades(trades []domain.PaperTrade) []domain.PaperTrade {
	for i := range trades {
		t := &trades[i]
		if !t.Status.Closed() {
			continue
		}
		if t.ExitPrice == 0 {
			switch t.Status {
			case domain.StatusWinT1:
				t.ExitPrice = t.Target1
			case domain.StatusWinT2:
				t.ExitPrice = t.Target2
			case domain.StatusLossStop:
				t.ExitPrice = t.Stop
			default:
				pts := t.EntryPrice * t.PnlPct / 100
				if t.Direction == domain.Short {
					t.ExitPrice = round2(t.EntryPrice - pts)
				} else {
					t.ExitPrice = round2(t.EntryPrice + pts)
				}
			}
		}
		if t.PnlPoints == 0 && t.PnlPct != 0 {
			t.PnlPoints = round2(t.EntryPrice * t.PnlPct / 100)
		}
		if t.PnlTotal == 0 && t.PnlPoints != 0 && t.Shares > 0 {
			t.PnlTotal = round2(t.PnlPoints * float64(t.Shares))
		}
	}
	return trades
}

func (j *Journal) save() error {
	return persist.WriteJSON(filepath.Join(j.dataDir, tradesFile), j.trades)
}

// LogSetup records a generated setup in the rolling setup log, whether or
// not it becomes a trade.
func (j *Journal) LogSetup(s domain.TradeSetup) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setups = append(j.setups, s)
	if len(j.setups) > setupsKeep {
		j.setups = j.setups[len(j.setups)-setupsKeep:]
	}
	if err := persist.WriteJSON(filepath.Join(j.dataDir, setupsFile), j.setups); err != nil {
		j.log.Warn().Err(err).Msg("Setup log write failed")
	}
}

// Setups returns the recent setup log, newest last.
func (j *Journal) Setups() []domain.TradeSetup {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.TradeSetup, len(j.setups))
	copy(out, j.setups)
	return out
}

// OpenTrade opens a paper position from a setup after the entry guards pass:
// no pending duplicate, no active cooldown, no live loss streak.
func (j *Journal) OpenTrade(s *domain.TradeSetup, version string, now time.Time) (*domain.PaperTrade, error) {
	if s.Entry <= 0 || s.Stop <= 0 || s.Target1 <= 0 {
		return nil, ErrBadSetup
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for i := range j.trades {
		t := &j.trades[i]
		if t.Ticker != s.Ticker {
			continue
		}
		if t.Status == domain.StatusPending && t.Direction == s.Direction {
			return nil, ErrDuplicatePending
		}
		if t.Direction == s.Direction && now.Sub(t.EntryTime) < reentryCooldown {
			return nil, ErrCooldown
		}
	}
	if j.consecutiveLossesLocked(s.Ticker, s.Direction) >= maxConsecutiveLosses {
		return nil, ErrLossStreak
	}

	trade := domain.PaperTrade{
		ID:            uuid.NewString(),
		Ticker:        s.Ticker,
		Direction:     s.Direction,
		EntryPrice:    s.Entry,
		EntryTime:     now,
		Stop:          s.Stop,
		Target1:       s.Target1,
		Target2:       s.Target2,
		Horizon:       s.Horizon,
		Confidence:    s.BlendedConfidence,
		Status:        domain.StatusPending,
		SignalVersion: version,
		Shares:        s.KellyShares,
	}
	j.trades = append(j.trades, trade)
	if err := j.save(); err != nil {
		return nil, err
	}
	j.log.Info().
		Str("ticker", trade.Ticker).
		Str("direction", string(trade.Direction)).
		Float64("entry", trade.EntryPrice).
		Float64("stop", trade.Stop).
		Float64("target1", trade.Target1).
		Int("confidence", trade.Confidence).
		Msg("Paper trade opened")
	return &trade, nil
}

// consecutiveLossesLocked counts the trailing run of stopped-out trades for
// a ticker and direction, walking the ledger backwards until the streak
// breaks. Any non-stop close in that ticker and direction ends the run; a
// session boundary does not.
func (j *Journal) consecutiveLossesLocked(ticker string, dir domain.TradeDirection) int {
	run := 0
	for i := len(j.trades) - 1; i >= 0; i-- {
		t := &j.trades[i]
		if t.Ticker != ticker || t.Direction != dir || !t.Status.Closed() {
			continue
		}
		if t.Status == domain.StatusLossStop {
			run++
			continue
		}
		break
	}
	return run
}

// ConsecutiveLosses exposes the loss-streak counter.
func (j *Journal) ConsecutiveLosses(ticker string, dir domain.TradeDirection) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.consecutiveLossesLocked(ticker, dir)
}

// MarkToMarket refreshes unrealized P&L on pending trades for a ticker.
func (j *Journal) MarkToMarket(ticker string, price float64) {
	if price <= 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	dirty := false
	for i := range j.trades {
		t := &j.trades[i]
		if t.Ticker != ticker || t.Status != domain.StatusPending {
			continue
		}
		pts := price - t.EntryPrice
		if t.Direction == domain.Short {
			pts = t.EntryPrice - price
		}
		t.UnrealizedPct = round2(100 * pts / t.EntryPrice)
		t.UnrealizedTot = round2(pts * float64(t.Shares))
		dirty = true
	}
	if dirty {
		if err := j.save(); err != nil {
			j.log.Warn().Err(err).Msg("Mark-to-market persist failed")
		}
	}
}

// CheckOutcomes resolves pending trades for a ticker against one bar of
// price action and returns the trades it closed. When a bar touches both
// stop and target, the stop wins unless the close finished beyond the
// target, which reads as a sweep through the level rather than a fakeout.
func (j *Journal) CheckOutcomes(ticker string, bar Bar) []domain.PaperTrade {
	return j.checkOutcomes(ticker, func(*domain.PaperTrade) (Bar, bool) { return bar, true })
}

// CheckOutcomesPer resolves each pending trade against its own bar. The
// scheduler uses this to confine each trade's bar to price action printed
// after its entry, so a stop below the day's pre-entry low can never fill.
func (j *Journal) CheckOutcomesPer(ticker string, barFor func(*domain.PaperTrade) (Bar, bool)) []domain.PaperTrade {
	return j.checkOutcomes(ticker, barFor)
}

func (j *Journal) checkOutcomes(ticker string, barFor func(*domain.PaperTrade) (Bar, bool)) []domain.PaperTrade {
	j.mu.Lock()
	defer j.mu.Unlock()

	var closed []domain.PaperTrade
	for i := range j.trades {
		t := &j.trades[i]
		if t.Ticker != ticker || t.Status != domain.StatusPending {
			continue
		}
		bar, ok := barFor(t)
		if !ok {
			continue
		}
		if j.resolveLocked(t, bar) {
			closed = append(closed, *t)
		}
	}
	if len(closed) > 0 {
		if err := j.save(); err != nil {
			j.log.Warn().Err(err).Msg("Outcome persist failed")
		}
	}
	return closed
}

// resolveLocked applies one bar to a pending trade and reports whether it
// closed.
func (j *Journal) resolveLocked(t *domain.PaperTrade, bar Bar) bool {
	long := t.Direction == domain.Long
	stopHit := (long && bar.Low <= t.Stop) || (!long && bar.High >= t.Stop)
	t1Hit := (long && bar.High >= t.Target1) || (!long && bar.Low <= t.Target1)
	t2Hit := t.Target2 > 0 && ((long && bar.High >= t.Target2) || (!long && bar.Low <= t.Target2))

	switch {
	case stopHit && t1Hit:
		closedThrough := (long && bar.Close >= t.Target1) || (!long && bar.Close <= t.Target1)
		if closedThrough {
			j.closeLocked(t, t.Target1, domain.StatusWinT1, bar.At)
		} else {
			j.closeLocked(t, t.Stop, domain.StatusLossStop, bar.At)
		}
	case stopHit:
		j.closeLocked(t, t.Stop, domain.StatusLossStop, bar.At)
	case t2Hit:
		j.closeLocked(t, t.Target2, domain.StatusWinT2, bar.At)
	case t1Hit:
		j.closeLocked(t, t.Target1, domain.StatusWinT1, bar.At)
	default:
		return false
	}
	return true
}

// closeLocked finalizes one trade. PnlPoints is signed favorable-positive on
// both sides: a short that falls to target books positive points.
func (j *Journal) closeLocked(t *domain.PaperTrade, exit float64, status domain.TradeStatus, at time.Time) {
	pts := exit - t.EntryPrice
	if t.Direction == domain.Short {
		pts = t.EntryPrice - exit
	}
	exitAt := at
	t.Status = status
	t.ExitPrice = exit
	t.ExitTime = &exitAt
	t.PnlPoints = round2(pts)
	t.PnlPct = round2(100 * pts / t.EntryPrice)
	t.PnlTotal = round2(pts * float64(t.Shares))
	t.UnrealizedPct = 0
	t.UnrealizedTot = 0

	ev := j.log.Info()
	if status == domain.StatusLossStop {
		ev = j.log.Warn()
	}
	ev.Str("ticker", t.Ticker).
		Str("status", string(status)).
		Float64("exit", exit).
		Float64("pnlPct", t.PnlPct).
		Msg("Paper trade closed")
}

// CloseIntraday force-closes pending intraday-horizon trades at the given
// price, stamping them closed-eod. Runs at 15:55 ET so nothing day-scoped
// rides through the close.
func (j *Journal) CloseIntraday(prices map[string]float64, now time.Time) []domain.PaperTrade {
	j.mu.Lock()
	defer j.mu.Unlock()

	var closed []domain.PaperTrade
	for i := range j.trades {
		t := &j.trades[i]
		if t.Status != domain.StatusPending || !t.Horizon.Intraday() {
			continue
		}
		price, ok := prices[t.Ticker]
		if !ok || price <= 0 {
			price = t.EntryPrice
		}
		j.closeLocked(t, price, domain.StatusClosedEOD, now)
		closed = append(closed, *t)
	}
	if len(closed) > 0 {
		if err := j.save(); err != nil {
			j.log.Warn().Err(err).Msg("EOD close persist failed")
		}
	}
	return closed
}

// CloseManual closes one pending trade at the given price.
func (j *Journal) CloseManual(id string, price float64, now time.Time) (*domain.PaperTrade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.trades {
		t := &j.trades[i]
		if t.ID != id {
			continue
		}
		if t.Status != domain.StatusPending {
			return nil, fmt.Errorf("journal: trade %s already closed", id)
		}
		if price <= 0 {
			price = t.EntryPrice
		}
		j.closeLocked(t, price, domain.StatusClosedManual, now)
		if err := j.save(); err != nil {
			return nil, err
		}
		out := *t
		return &out, nil
	}
	return nil, fmt.Errorf("journal: trade %s not found", id)
}

// Trades returns a copy of the full ledger, oldest first.
func (j *Journal) Trades() []domain.PaperTrade {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.PaperTrade, len(j.trades))
	copy(out, j.trades)
	return out
}

// Pending returns the open positions.
func (j *Journal) Pending() []domain.PaperTrade {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.PaperTrade
	for _, t := range j.trades {
		if t.Status == domain.StatusPending {
			out = append(out, t)
		}
	}
	return out
}

// TrainingSample converts a closed trade into a labeled sample. Wins at
// either target label 1; stop-outs label 0; force-closes label by realized
// P&L sign. Returns false for trades with no feature vector attached.
func TrainingSample(t *domain.PaperTrade, features []float64) (domain.TrainingSample, bool) {
	if !t.Status.Closed() || len(features) != domain.FeatureCount {
		return domain.TrainingSample{}, false
	}
	label := 0
	switch t.Status {
	case domain.StatusWinT1, domain.StatusWinT2:
		label = 1
	case domain.StatusClosedEOD, domain.StatusClosedManual:
		if t.PnlPct > 0 {
			label = 1
		}
	}
	at := t.EntryTime
	if t.ExitTime != nil {
		at = *t.ExitTime
	}
	return domain.TrainingSample{
		Features:   features,
		Label:      label,
		Confidence: t.Confidence,
		PnlPct:     t.PnlPct,
		Horizon:    t.Horizon,
		Ticker:     t.Ticker,
		At:         at,
	}, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
