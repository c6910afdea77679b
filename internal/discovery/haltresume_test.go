package discovery

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
)

func TestParseHaltTitle(t *testing.T) {
	ticker, reason, isResume := parseHaltTitle("HALT: ABCD - LUDP", "")
	assert.Equal(t, "ABCD", ticker)
	assert.Equal(t, "LUDP", reason)
	assert.False(t, isResume)

	ticker, _, isResume = parseHaltTitle("RESUME: ABCD", "")
	assert.Equal(t, "ABCD", ticker)
	assert.True(t, isResume)

	ticker, _, isResume = parseHaltTitle("RESUMPTION: ABCD", "")
	assert.Equal(t, "ABCD", ticker)
	assert.True(t, isResume)

	// Reason falls back to the description column.
	_, reason, _ = parseHaltTitle("HALT: ABCD", "volatility pause")
	assert.Equal(t, "volatility pause", reason)

	ticker, _, _ = parseHaltTitle("Market update: nothing halted", "")
	assert.Empty(t, ticker)
}

func TestHaltResumeSurfacesTransitionsOnly(t *testing.T) {
	h := NewHaltResume(zerolog.Nop())
	now := time.Now()

	// A halt alone surfaces nothing; the resumption is the tradeable moment.
	assert.Empty(t, h.apply([]haltItem{{Title: "HALT: ABCD - LUDP"}}, now))

	out := h.apply([]haltItem{{Title: "RESUME: ABCD"}}, now.Add(5*time.Minute))
	require.Len(t, out, 1)
	assert.Equal(t, "ABCD", out[0].Ticker)
	assert.Equal(t, domain.DiscoveryHaltResume, out[0].Source)
	assert.Equal(t, "LUDP", out[0].Meta.HaltReason)

	// The same resumption never fires twice.
	assert.Empty(t, h.apply([]haltItem{{Title: "RESUME: ABCD"}}, now.Add(6*time.Minute)))

	// A resume with no tracked halt is ignored.
	assert.Empty(t, h.apply([]haltItem{{Title: "RESUME: ZZZZ"}}, now))
}

func TestHaltResumeCapsAtTopThree(t *testing.T) {
	h := NewHaltResume(zerolog.Nop())
	base := time.Now()
	names := []string{"AAAA", "BBBB", "CCCC", "DDDD"}
	for i, n := range names {
		h.apply([]haltItem{{Title: "HALT: " + n + " - T1"}}, base.Add(time.Duration(i)*time.Minute))
	}

	items := make([]haltItem, 0, len(names))
	for _, n := range names {
		items = append(items, haltItem{Title: "RESUME: " + n})
	}
	out := h.apply(items, base.Add(time.Hour))
	require.Len(t, out, haltTopN)
	// Newest halts first; the oldest one falls off.
	assert.Equal(t, "DDDD", out[0].Ticker)
	for _, d := range out {
		assert.NotEqual(t, "AAAA", d.Ticker)
	}
}

func TestHaltResumeRetentionDropsStaleRecords(t *testing.T) {
	h := NewHaltResume(zerolog.Nop())
	base := time.Now().Add(-5 * time.Hour)
	h.apply([]haltItem{{Title: "HALT: ABCD - T1"}}, base)

	// An empty pass past the retention window evicts the record.
	h.apply(nil, time.Now())
	assert.Empty(t, h.apply([]haltItem{{Title: "RESUME: ABCD"}}, time.Now()))
}
