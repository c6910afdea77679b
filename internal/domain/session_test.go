package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// et builds a weekday timestamp at the given ET wall time.
func et(hour, min int) time.Time {
	return time.Date(2025, 3, 5, hour, min, 0, 0, Eastern) // a Wednesday
}

func TestSessionAtBoundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"pre-market start", et(8, 30), SessionPreMarket},
		{"pre-market end", et(8, 59), SessionPreMarket},
		{"open-rush start", et(9, 0), SessionOpenRush},
		{"open-rush end", et(9, 20), SessionOpenRush},
		{"power-open start", et(9, 21), SessionPowerOpen},
		{"power-open end", et(10, 0), SessionPowerOpen},
		{"midday start", et(10, 1), SessionMidday},
		{"midday end", et(15, 0), SessionMidday},
		{"power-hour start", et(15, 1), SessionPowerHour},
		{"power-hour end", et(16, 15), SessionPowerHour},
		{"after-hours start", et(16, 16), SessionAfterHours},
		{"after-hours end", et(17, 0), SessionAfterHours},
		{"overnight late", et(17, 1), SessionOvernight},
		{"overnight early", et(3, 0), SessionOvernight},
		{"just before pre-market", et(8, 29), SessionOvernight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionAt(tt.at))
		})
	}
}

func TestSessionIntervals(t *testing.T) {
	assert.Equal(t, 45*time.Second, SessionPreMarket.Interval())
	assert.Equal(t, 10*time.Second, SessionOpenRush.Interval())
	assert.Equal(t, 15*time.Second, SessionPowerOpen.Interval())
	assert.Equal(t, 30*time.Second, SessionMidday.Interval())
	assert.Equal(t, 15*time.Second, SessionPowerHour.Interval())
	assert.Equal(t, 45*time.Second, SessionAfterHours.Interval())
	assert.Equal(t, 60*time.Second, SessionOvernight.Interval())
}

func TestSessionDefaultHorizon(t *testing.T) {
	assert.Equal(t, HorizonScalp, SessionOpenRush.DefaultHorizon())
	assert.Equal(t, HorizonDayVolatile, SessionPowerOpen.DefaultHorizon())
	assert.Equal(t, HorizonDay, SessionMidday.DefaultHorizon())
	assert.Equal(t, HorizonDay, SessionPowerHour.DefaultHorizon())
	assert.Equal(t, HorizonExtendedHours, SessionPreMarket.DefaultHorizon())
	assert.Equal(t, HorizonSwing, SessionOvernight.DefaultHorizon())
}

func TestMarketOpen(t *testing.T) {
	assert.False(t, MarketOpen(et(9, 29)))
	assert.True(t, MarketOpen(et(9, 30)))
	assert.True(t, MarketOpen(et(15, 59)))
	assert.False(t, MarketOpen(et(16, 0)))

	saturday := time.Date(2025, 3, 8, 12, 0, 0, 0, Eastern)
	assert.False(t, MarketOpen(saturday))
}

func TestHorizonIntraday(t *testing.T) {
	assert.True(t, HorizonScalp.Intraday())
	assert.True(t, HorizonDay.Intraday())
	assert.True(t, HorizonDayVolatile.Intraday())
	assert.True(t, HorizonIntraday.Intraday())
	assert.False(t, HorizonSwing.Intraday())
	assert.False(t, HorizonExtendedHours.Intraday())
}

func TestNormalizeAndValidateTicker(t *testing.T) {
	assert.Equal(t, "NVDA", NormalizeTicker("  nvda "))
	assert.True(t, ValidTicker("SPY"))
	assert.True(t, ValidTicker("GOOGL"))
	assert.False(t, ValidTicker("TOOLONG"))
	assert.False(t, ValidTicker("BRK.B"))
	assert.False(t, ValidTicker(""))
	assert.False(t, ValidTicker("spy"))
}
