package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/sources"
)

type stubScanCandidates struct{ tickers []string }

func (s *stubScanCandidates) Name() string { return "stub" }
func (s *stubScanCandidates) ScanCandidates(context.Context) ([]string, error) {
	return s.tickers, nil
}

type stubScreen struct{ rows []sources.ScreenRow }

func (s *stubScreen) Screen(context.Context, sources.ScreenQuery) ([]sources.ScreenRow, error) {
	return s.rows, nil
}

func TestBlacklistedETF(t *testing.T) {
	assert.True(t, blacklistedETF("SPY"))
	assert.True(t, blacklistedETF("qqq"))
	assert.True(t, blacklistedETF(" XLF "))
	assert.False(t, blacklistedETF("NVDA"))
	assert.False(t, blacklistedETF(""))
}

func TestScannerSkipsBlacklistedETFs(t *testing.T) {
	prov := &stubScanCandidates{tickers: []string{"spy", "QQQ", "abcd"}}
	s := NewScanner(prov, nil, zerolog.Nop())
	s.NotifyCycle(time.Now().Add(-2 * scannerDefer))

	out := s.Scan(context.Background())
	require.Len(t, out, 1)
	assert.Equal(t, "ABCD", out[0].Ticker)
}

func TestVolRunnerSkipsBlacklistedETFs(t *testing.T) {
	scr := &stubScreen{rows: []sources.ScreenRow{
		{Ticker: "IWM", Price: 220, RelVolume: 9},
		{Ticker: "ABCD", Price: 4.2, RelVolume: 5},
		{Ticker: "EFGH", Price: 2.1, RelVolume: 4},
	}}
	v := NewVolRunner(scr, zerolog.Nop())

	// The filtered ETF must not consume one of the two runner slots.
	out := v.Scan(context.Background())
	require.Len(t, out, 2)
	assert.Equal(t, "ABCD", out[0].Ticker)
	assert.Equal(t, "EFGH", out[1].Ticker)
}
