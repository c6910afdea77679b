package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
	"github.com/pkoukos/argus/internal/persist"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	return Open(t.TempDir(), zerolog.Nop())
}

func testSetup(ticker string, dir domain.TradeDirection) *domain.TradeSetup {
	s := &domain.TradeSetup{
		Ticker:            ticker,
		Direction:         dir,
		Entry:             100,
		Target1:           103,
		Target2:           105,
		Stop:              98,
		Horizon:           domain.HorizonDay,
		BlendedConfidence: 75,
		KellyShares:       100,
	}
	if dir == domain.Short {
		s.Target1, s.Target2, s.Stop = 97, 95, 102
	}
	return s
}

func etTime(hour, min int) time.Time {
	return time.Date(2025, 3, 5, hour, min, 0, 0, domain.Eastern)
}

func TestOpenTradeGuards(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)

	_, err := j.OpenTrade(&domain.TradeSetup{Ticker: "XYZ"}, "v3", now)
	assert.ErrorIs(t, err, ErrBadSetup)

	trade, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, trade.Status)
	assert.Equal(t, 100, trade.Shares)
	assert.NotEmpty(t, trade.ID)

	_, err = j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrDuplicatePending)

	// Opposite direction in the same ticker is allowed.
	_, err = j.OpenTrade(testSetup("XYZ", domain.Short), "v3", now.Add(time.Minute))
	assert.NoError(t, err)
}

func TestOpenTradeCooldownAfterClose(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)

	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)
	closed := j.CheckOutcomes("XYZ", Bar{High: 100, Low: 97.5, Close: 98, At: now.Add(5 * time.Minute)})
	require.Len(t, closed, 1)

	_, err = j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now.Add(20*time.Minute))
	assert.ErrorIs(t, err, ErrCooldown)

	_, err = j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now.Add(31*time.Minute))
	assert.NoError(t, err)
}

func TestOpenTradeLossStreakGuard(t *testing.T) {
	j := newTestJournal(t)
	base := etTime(9, 30)

	// Three consecutive long stop-outs, spaced past the cooldown.
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 40 * time.Minute)
		_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", at)
		require.NoError(t, err)
		closed := j.CheckOutcomes("XYZ", Bar{High: 100, Low: 97.5, Close: 98, At: at.Add(5 * time.Minute)})
		require.Len(t, closed, 1)
		require.Equal(t, domain.StatusLossStop, closed[0].Status)
	}
	assert.Equal(t, 3, j.ConsecutiveLosses("XYZ", domain.Long))
	assert.Zero(t, j.ConsecutiveLosses("XYZ", domain.Short), "the streak is per direction")

	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", base.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrLossStreak)

	// A day boundary does not reset the streak; only a non-stop close does.
	_, err = j.OpenTrade(testSetup("XYZ", domain.Long), "v3", base.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrLossStreak)

	// The opposite direction in the same ticker is unaffected.
	_, err = j.OpenTrade(testSetup("XYZ", domain.Short), "v3", base.Add(3*time.Hour))
	assert.NoError(t, err)
}

func TestLossStreakBrokenByWin(t *testing.T) {
	j := newTestJournal(t)
	base := etTime(9, 30)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 40 * time.Minute)
		_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", at)
		require.NoError(t, err)
		j.CheckOutcomes("XYZ", Bar{High: 100, Low: 97.5, Close: 98, At: at.Add(5 * time.Minute)})
	}
	// A winning short does not touch the long streak.
	_, err := j.OpenTrade(testSetup("XYZ", domain.Short), "v3", base.Add(3*time.Hour))
	require.NoError(t, err)
	j.CheckOutcomes("XYZ", Bar{High: 100, Low: 96.8, Close: 97, At: base.Add(3*time.Hour + 5*time.Minute)})
	assert.Equal(t, 3, j.ConsecutiveLosses("XYZ", domain.Long))

	// Seed a winning long close on top; the walk stops at it.
	win := closedTrade(domain.StatusWinT1, 3, 300, "v3")
	j.mu.Lock()
	j.trades = append(j.trades, win)
	j.mu.Unlock()
	assert.Zero(t, j.ConsecutiveLosses("XYZ", domain.Long))

	_, err = j.OpenTrade(testSetup("XYZ", domain.Long), "v3", base.Add(5*time.Hour))
	assert.NoError(t, err)
}

func TestCheckOutcomesTargetAndStop(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)

	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)

	// A bar that touches neither level leaves the trade pending.
	assert.Empty(t, j.CheckOutcomes("XYZ", Bar{High: 101, Low: 99, Close: 100, At: now}))
	require.Len(t, j.Pending(), 1)

	closed := j.CheckOutcomes("XYZ", Bar{High: 103.4, Low: 99, Close: 103.2, At: now.Add(time.Minute)})
	require.Len(t, closed, 1)
	tr := closed[0]
	assert.Equal(t, domain.StatusWinT1, tr.Status)
	assert.Equal(t, 103.0, tr.ExitPrice)
	assert.Equal(t, 3.0, tr.PnlPoints)
	assert.Equal(t, 3.0, tr.PnlPct)
	assert.Equal(t, 300.0, tr.PnlTotal)
}

func TestCheckOutcomesSameBarStopWins(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)
	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)

	// Both levels touched, close back inside: the stop takes precedence.
	closed := j.CheckOutcomes("XYZ", Bar{High: 103.5, Low: 97.5, Close: 100, At: now})
	require.Len(t, closed, 1)
	assert.Equal(t, domain.StatusLossStop, closed[0].Status)
	assert.Equal(t, 98.0, closed[0].ExitPrice)
	assert.Equal(t, -2.0, closed[0].PnlPoints)
}

func TestCheckOutcomesSameBarSweepThroughTarget(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)
	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)

	// Both levels touched but the close finished beyond the target.
	closed := j.CheckOutcomes("XYZ", Bar{High: 104, Low: 97.5, Close: 103.5, At: now})
	require.Len(t, closed, 1)
	assert.Equal(t, domain.StatusWinT1, closed[0].Status)
}

func TestCheckOutcomesTargetTwoPrecedence(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)
	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)

	closed := j.CheckOutcomes("XYZ", Bar{High: 105.5, Low: 99.5, Close: 105.2, At: now})
	require.Len(t, closed, 1)
	assert.Equal(t, domain.StatusWinT2, closed[0].Status)
	assert.Equal(t, 105.0, closed[0].ExitPrice)
}

func TestCheckOutcomesShortWinIsPositive(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)
	_, err := j.OpenTrade(testSetup("XYZ", domain.Short), "v3", now)
	require.NoError(t, err)

	closed := j.CheckOutcomes("XYZ", Bar{High: 100.5, Low: 96.8, Close: 97, At: now})
	require.Len(t, closed, 1)
	tr := closed[0]
	assert.Equal(t, domain.StatusWinT1, tr.Status)
	assert.Equal(t, 3.0, tr.PnlPoints, "a short falling to target books positive points")
	assert.Equal(t, 3.0, tr.PnlPct)
}

func TestMarkToMarket(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)
	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)

	j.MarkToMarket("XYZ", 102)
	p := j.Pending()
	require.Len(t, p, 1)
	assert.Equal(t, 2.0, p[0].UnrealizedPct)
	assert.Equal(t, 200.0, p[0].UnrealizedTot)

	j.MarkToMarket("XYZ", 0) // ignored
	assert.Equal(t, 2.0, j.Pending()[0].UnrealizedPct)
}

func TestCloseIntradayLeavesSwingOpen(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)

	_, err := j.OpenTrade(testSetup("DAY", domain.Long), "v3", now)
	require.NoError(t, err)
	swing := testSetup("SWNG", domain.Long)
	swing.Horizon = domain.HorizonSwing
	_, err = j.OpenTrade(swing, "v3", now)
	require.NoError(t, err)

	closed := j.CloseIntraday(map[string]float64{"DAY": 101.5}, etTime(15, 55))
	require.Len(t, closed, 1)
	assert.Equal(t, "DAY", closed[0].Ticker)
	assert.Equal(t, domain.StatusClosedEOD, closed[0].Status)
	assert.Equal(t, 1.5, closed[0].PnlPoints)

	p := j.Pending()
	require.Len(t, p, 1)
	assert.Equal(t, "SWNG", p[0].Ticker)
}

func TestCloseIntradayMissingPriceExitsFlat(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", etTime(10, 0))
	require.NoError(t, err)

	closed := j.CloseIntraday(nil, etTime(15, 55))
	require.Len(t, closed, 1)
	assert.Equal(t, 100.0, closed[0].ExitPrice)
	assert.Zero(t, closed[0].PnlPct)
}

func TestCloseManual(t *testing.T) {
	j := newTestJournal(t)
	now := etTime(10, 0)
	trade, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", now)
	require.NoError(t, err)

	closed, err := j.CloseManual(trade.ID, 101, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosedManual, closed.Status)
	assert.Equal(t, 1.0, closed.PnlPoints)

	_, err = j.CloseManual(trade.ID, 101, now)
	assert.Error(t, err, "double close rejected")
	_, err = j.CloseManual("no-such-id", 101, now)
	assert.Error(t, err)
}

func TestLedgerSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	j := Open(dir, zerolog.Nop())
	_, err := j.OpenTrade(testSetup("XYZ", domain.Long), "v3", etTime(10, 0))
	require.NoError(t, err)

	reopened := Open(dir, zerolog.Nop())
	require.Len(t, reopened.Trades(), 1)
	assert.Equal(t, "XYZ", reopened.Trades()[0].Ticker)
}

func TestOpenSalvagesDamagedLedger(t *testing.T) {
	dir := t.TempDir()
	raw := `[
	  {"id":"keep-1","ticker":"XYZ","direction":"long","entryPrice":100,"status":"win-t1","target1":103,"pnlPct":3,"shares":100},
	  {"id":"bad-1","ticker":"XYZ","entryPrice":"not-a-number"},
	  {"id":"keep-2","ticker":"XYZ","direction":"short","entryPrice":100,"status":"loss-stop","stop":102,"pnlPct":-2}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, tradesFile), []byte(raw), 0o644))

	j := Open(dir, zerolog.Nop())
	trades := j.Trades()
	require.Len(t, trades, 2, "one malformed row never drops the ledger")
	assert.Equal(t, "keep-1", trades[0].ID)
	assert.Equal(t, "keep-2", trades[1].ID)

	// Missing derived fields are backfilled from the recorded outcome.
	assert.Equal(t, 103.0, trades[0].ExitPrice)
	assert.Equal(t, 3.0, trades[0].PnlPoints)
	assert.Equal(t, 300.0, trades[0].PnlTotal)
	assert.Equal(t, 102.0, trades[1].ExitPrice)
	assert.Equal(t, -2.0, trades[1].PnlPoints)
}

func TestOpenMovesNonArrayLedgerAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, tradesFile)
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))

	j := Open(dir, zerolog.Nop())
	assert.Empty(t, j.Trades())
	_, err := os.Stat(path + ".corrupt")
	assert.NoError(t, err)
}

// seedLedger writes a closed-trade fixture straight to the trades file.
func seedLedger(t *testing.T, dir string, trades []domain.PaperTrade) *Journal {
	t.Helper()
	require.NoError(t, persist.WriteJSON(filepath.Join(dir, tradesFile), trades))
	return Open(dir, zerolog.Nop())
}

func closedTrade(status domain.TradeStatus, pnlPct, pnlTotal float64, version string) domain.PaperTrade {
	exit := etTime(11, 0)
	return domain.PaperTrade{
		ID:            "t-" + version,
		Ticker:        "XYZ",
		Direction:     domain.Long,
		EntryPrice:    100,
		Status:        status,
		ExitTime:      &exit,
		PnlPct:        pnlPct,
		PnlTotal:      pnlTotal,
		SignalVersion: version,
	}
}

func TestStatsAndKellyFromHistory(t *testing.T) {
	var trades []domain.PaperTrade
	for i := 0; i < 8; i++ {
		trades = append(trades, closedTrade(domain.StatusWinT1, 4, 400, "v3"))
	}
	for i := 0; i < 2; i++ {
		trades = append(trades, closedTrade(domain.StatusLossStop, -2, -100, "v3"))
	}
	j := seedLedger(t, t.TempDir(), trades)

	s := j.Stats()
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 8, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.Equal(t, 0.8, s.WinRate)
	assert.Equal(t, 4.0, s.AvgWinPct)
	assert.Equal(t, -2.0, s.AvgLossPct)
	assert.Equal(t, 16.0, s.ProfitFactor)
	assert.Equal(t, 3000.0, s.TotalPnl)

	// w=0.8, r=2: half Kelly (0.8 - 0.2/2)/2 = 0.35.
	pct, shares := j.KellySize(100, 98)
	assert.Equal(t, 35.0, pct)
	assert.Equal(t, 350, shares)
}

func TestKellySizeDefaultsUnderSampleFloor(t *testing.T) {
	j := newTestJournal(t)
	pct, shares := j.KellySize(100, 98)
	assert.Equal(t, 25.0, pct)
	assert.Equal(t, 250, shares)

	// Zero stop distance yields no shares.
	_, shares = j.KellySize(100, 100)
	assert.Zero(t, shares)
}

func TestStatsByVersion(t *testing.T) {
	trades := []domain.PaperTrade{
		closedTrade(domain.StatusWinT1, 3, 300, "v3"),
		closedTrade(domain.StatusLossStop, -2, -200, "v3"),
		closedTrade(domain.StatusWinT1, 1, 100, ""),
	}
	j := seedLedger(t, t.TempDir(), trades)

	by := j.StatsByVersion()
	require.Contains(t, by, "v3")
	require.Contains(t, by, "unversioned")
	assert.Equal(t, 2, by["v3"].Total)
	assert.Equal(t, 1, by["unversioned"].Wins)
}

func TestLogSetupRollingWindow(t *testing.T) {
	j := newTestJournal(t)
	for i := 0; i < setupsKeep+5; i++ {
		j.LogSetup(domain.TradeSetup{Ticker: "XYZ", Entry: float64(i)})
	}
	setups := j.Setups()
	require.Len(t, setups, setupsKeep)
	assert.Equal(t, float64(setupsKeep+4), setups[len(setups)-1].Entry, "newest setup survives the trim")
}

func TestTrainingSampleLabels(t *testing.T) {
	features := make([]float64, domain.FeatureCount)
	exit := etTime(12, 0)

	win := domain.PaperTrade{Status: domain.StatusWinT1, PnlPct: 3, ExitTime: &exit, Horizon: domain.HorizonDay}
	s, ok := TrainingSample(&win, features)
	require.True(t, ok)
	assert.Equal(t, 1, s.Label)
	assert.Equal(t, exit, s.At)

	loss := domain.PaperTrade{Status: domain.StatusLossStop, PnlPct: -2, ExitTime: &exit}
	s, ok = TrainingSample(&loss, features)
	require.True(t, ok)
	assert.Equal(t, 0, s.Label)

	// Force-closes label by realized sign.
	eod := domain.PaperTrade{Status: domain.StatusClosedEOD, PnlPct: 0.4, ExitTime: &exit}
	s, ok = TrainingSample(&eod, features)
	require.True(t, ok)
	assert.Equal(t, 1, s.Label)

	pending := domain.PaperTrade{Status: domain.StatusPending}
	_, ok = TrainingSample(&pending, features)
	assert.False(t, ok)

	_, ok = TrainingSample(&win, []float64{1, 2})
	assert.False(t, ok, "malformed feature vector rejected")
}
