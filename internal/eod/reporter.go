// Package eod writes the end-of-day report: the day's trades, aggregate and
// per-version performance, discoveries, and scheduler budget use. One JSON
// file per trading day under data/eod-reports/.
package eod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/journal"
	"github.com/pkoukos/argus/internal/notify"
	"github.com/pkoukos/argus/internal/persist"
	"github.com/pkoukos/argus/internal/state"
)

const reportsDir = "eod-reports"

// Report is one day's summary.
type Report struct {
	Date          string                   `json:"date"` // YYYY-MM-DD (ET)
	GeneratedAt   time.Time                `json:"generatedAt"`
	TradesOpened  int                      `json:"tradesOpened"`
	TradesClosed  int                      `json:"tradesClosed"`
	DayPnl        float64                  `json:"dayPnl"`
	Stats         journal.Stats            `json:"stats"`
	ByVersion     map[string]journal.Stats `json:"byVersion"`
	ClosedTrades  []domain.PaperTrade      `json:"closedTrades,omitempty"`
	Discoveries   []domain.Discovery       `json:"discoveries,omitempty"`
	CallsUsed     int                      `json:"callsUsed"`
	CallLimit     int                      `json:"callLimit"`
	CyclesRun     int64                    `json:"cyclesRun"`
}

// Reporter assembles and persists the daily report.
type Reporter struct {
	dataDir  string
	store    *state.Store
	journal  *journal.Journal
	notifier *notify.Notifier
	log      zerolog.Logger
}

// New creates the reporter.
func New(dataDir string, store *state.Store, jnl *journal.Journal, notifier *notify.Notifier, log zerolog.Logger) *Reporter {
	return &Reporter{
		dataDir:  dataDir,
		store:    store,
		journal:  jnl,
		notifier: notifier,
		log:      log.With().Str("component", "eod").Logger(),
	}
}

// Generate builds and writes the report for the ET date of now. Returns the
// report for callers that also broadcast it.
func (r *Reporter) Generate(ctx context.Context, now time.Time) (*Report, error) {
	date := domain.ETDate(now)

	rep := &Report{
		Date:        date,
		GeneratedAt: now,
		Stats:       r.journal.Stats(),
		ByVersion:   r.journal.StatsByVersion(),
	}

	for _, t := range r.journal.Trades() {
		if domain.ETDate(t.EntryTime) == date {
			rep.TradesOpened++
		}
		if t.Status.Closed() && t.ExitTime != nil && domain.ETDate(*t.ExitTime) == date {
			rep.TradesClosed++
			rep.DayPnl += t.PnlTotal
			rep.ClosedTrades = append(rep.ClosedTrades, t)
		}
	}

	for _, d := range r.store.Discoveries() {
		if domain.ETDate(d.DiscoveredAt) == date {
			rep.Discoveries = append(rep.Discoveries, *d)
		}
	}

	sched := r.store.SchedulerState()
	rep.CallsUsed = sched.DailyCallCount
	rep.CallLimit = sched.DailyLimit
	rep.CyclesRun = sched.CycleCount

	dir := filepath.Join(r.dataDir, reportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, date+".json")
	if err := persist.WriteJSON(path, rep); err != nil {
		return nil, err
	}
	r.log.Info().
		Str("date", date).
		Int("closed", rep.TradesClosed).
		Float64("dayPnl", rep.DayPnl).
		Msg("EOD report written")

	if r.notifier != nil {
		r.notifier.Send(ctx, notify.Alert{
			Kind:   "eod",
			Ticker: date,
			Title:  fmt.Sprintf("EOD %s: %d closed, $%.2f", date, rep.TradesClosed, rep.DayPnl),
			Body: fmt.Sprintf("Win rate %.0f%% | PF %.2f | Calls %d/%d",
				rep.Stats.WinRate*100, rep.Stats.ProfitFactor, rep.CallsUsed, rep.CallLimit),
		})
	}
	return rep, nil
}

// Load reads a previously written report by ET date.
func (r *Reporter) Load(date string) (*Report, error) {
	var rep Report
	if err := persist.ReadJSON(filepath.Join(r.dataDir, reportsDir, date+".json"), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns available report dates, oldest first.
func (r *Reporter) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.dataDir, reportsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			dates = append(dates, name[:len(name)-len(".json")])
		}
	}
	return dates, nil
}
