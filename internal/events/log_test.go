package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentNewestFirst(t *testing.T) {
	l := NewLog()
	assert.Empty(t, l.Recent(0))

	l.Add("cycle", "", "first")
	l.Add("trade", "NVDA", "second")
	l.Add("discovery", "ABCD", "third")

	out := l.Recent(2)
	require.Len(t, out, 2)
	assert.Equal(t, "third", out[0].Text)
	assert.Equal(t, "second", out[1].Text)
	assert.Equal(t, "NVDA", out[1].Ticker)

	// n <= 0 returns everything.
	assert.Len(t, l.Recent(0), 3)
	assert.Len(t, l.Recent(100), 3)
}

func TestRingEvictsOldest(t *testing.T) {
	l := NewLog()
	for i := 0; i < ringSize+25; i++ {
		l.Add("cycle", "", fmt.Sprintf("event-%d", i))
	}
	out := l.Recent(0)
	require.Len(t, out, ringSize)
	assert.Equal(t, fmt.Sprintf("event-%d", ringSize+24), out[0].Text)
	assert.Equal(t, "event-25", out[len(out)-1].Text)
}
