package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/argus/internal/domain"
)

func TestProjectTargetsLongShortSymmetry(t *testing.T) {
	t1, t2, stop, mult := ProjectTargets(100, 2, domain.Long, domain.HorizonDay)
	assert.Equal(t, 103.0, t1)
	assert.Equal(t, 105.0, t2)
	assert.Equal(t, 98.0, stop)
	assert.Equal(t, 1.5, mult)

	t1, t2, stop, _ = ProjectTargets(100, 2, domain.Short, domain.HorizonDay)
	assert.Equal(t, 97.0, t1)
	assert.Equal(t, 95.0, t2)
	assert.Equal(t, 102.0, stop)
}

func TestProjectTargetsHorizonProfiles(t *testing.T) {
	t1, _, stop, _ := ProjectTargets(100, 2, domain.Long, domain.HorizonScalp)
	assert.Equal(t, 102.0, t1)
	assert.Equal(t, 98.5, stop)

	t1, t2, stop, _ := ProjectTargets(100, 2, domain.Long, domain.HorizonSwing)
	assert.Equal(t, 105.0, t1)
	assert.Equal(t, 108.0, t2)
	assert.Equal(t, 97.0, stop)
}

func TestProjectTargetsBadInputs(t *testing.T) {
	t1, t2, stop, _ := ProjectTargets(0, 2, domain.Long, domain.HorizonDay)
	assert.Zero(t, t1)
	assert.Zero(t, t2)
	assert.Zero(t, stop)
}

func TestSnapStructureTargetToFibLevel(t *testing.T) {
	in := &Inputs{
		TA: &domain.Technicals{
			Fib: domain.Fibonacci{
				Levels: map[string]float64{"0.382": 102.8},
			},
		},
	}
	// Raw target 103, distance 3: 102.8 is within the 30% window (0.9).
	snap := SnapStructure(in, domain.Long, 100, 103, 98)
	assert.True(t, snap.Snapped)
	assert.Equal(t, 102.8, snap.Target1)
	assert.Equal(t, "fib-0.382", snap.TargetSource)
	assert.Equal(t, 98.0, snap.Stop, "no protective level, stop passes through")
}

func TestSnapStructureNearestLevelWins(t *testing.T) {
	in := &Inputs{
		TA: &domain.Technicals{
			Fib:    domain.Fibonacci{Levels: map[string]float64{"0.5": 102.5}},
			Pivots: domain.Pivots{R1: 103.2},
		},
	}
	snap := SnapStructure(in, domain.Long, 100, 103, 98)
	assert.True(t, snap.Snapped)
	assert.Equal(t, 103.2, snap.Target1, "R1 is nearer to the raw target than the fib level")
	assert.Equal(t, "pivot-R1", snap.TargetSource)
}

func TestSnapStructureWrongSideLevelIgnored(t *testing.T) {
	in := &Inputs{
		TA: &domain.Technicals{
			// Level below entry cannot capture a long target.
			Fib: domain.Fibonacci{Levels: map[string]float64{"0.618": 99.5}},
		},
	}
	snap := SnapStructure(in, domain.Long, 100, 103, 98)
	assert.Equal(t, 103.0, snap.Target1)
	assert.Equal(t, "", snap.TargetSource)
}

func TestSnapStructureStopSnapsProtectiveSide(t *testing.T) {
	in := &Inputs{
		TA: &domain.Technicals{
			Pivots: domain.Pivots{S1: 97.5},
		},
	}
	// Stop distance 2, 50% window: S1 at 97.5 is 0.5 from the raw stop.
	snap := SnapStructure(in, domain.Long, 100, 103, 98)
	assert.True(t, snap.Snapped)
	assert.Equal(t, 97.5, snap.Stop)
	assert.Equal(t, "pivot-S1", snap.StopSource)
}

func TestSnapStructureShortDirection(t *testing.T) {
	in := &Inputs{
		TA: &domain.Technicals{
			Pivots: domain.Pivots{S1: 97.2, R1: 101.8},
		},
	}
	snap := SnapStructure(in, domain.Short, 100, 97, 102)
	require.True(t, snap.Snapped)
	assert.Equal(t, 97.2, snap.Target1)
	assert.Equal(t, 101.8, snap.Stop)
}

func TestSnapStructureUsesTopVolumeStrikes(t *testing.T) {
	strikes := make([]domain.StrikeFlow, 0, 12)
	// Eleven low-volume strikes near the target plus one heavy one: only the
	// top ten by volume join the level set.
	for i := 0; i < 11; i++ {
		strikes = append(strikes, domain.StrikeFlow{Strike: 150 + float64(i), Volume: int64(10 + i)})
	}
	strikes = append(strikes, domain.StrikeFlow{Strike: 103.1, Volume: 9_000})

	in := &Inputs{Options: &domain.OptionsFacts{FlowPerStrike: strikes}}
	snap := SnapStructure(in, domain.Long, 100, 103, 98)
	assert.True(t, snap.Snapped)
	assert.Equal(t, 103.1, snap.Target1)
	assert.Equal(t, "strike-103.1", snap.TargetSource)
}

func TestSnapStructureMergesIntradayStrikes(t *testing.T) {
	// Thin daily volume at the target strike; the intraday tape carries it
	// into the top ten.
	daily := make([]domain.StrikeFlow, 0, 10)
	for i := 0; i < 10; i++ {
		daily = append(daily, domain.StrikeFlow{Strike: 150 + float64(i), Volume: 5_000})
	}
	daily = append(daily, domain.StrikeFlow{Strike: 103.1, Volume: 100})
	intraday := []domain.StrikeFlow{{Strike: 103.1, Volume: 8_000}}

	in := &Inputs{Options: &domain.OptionsFacts{FlowPerStrike: daily, IntradayPerStrike: intraday}}
	snap := SnapStructure(in, domain.Long, 100, 103, 98)
	assert.True(t, snap.Snapped)
	assert.Equal(t, 103.1, snap.Target1, "daily and intraday volume sum per strike")

	// Intraday flow alone still feeds the level set.
	in = &Inputs{Options: &domain.OptionsFacts{IntradayPerStrike: intraday}}
	snap = SnapStructure(in, domain.Long, 100, 103, 98)
	assert.True(t, snap.Snapped)
	assert.Equal(t, "strike-103.1", snap.TargetSource)
}

func TestSnapStructurePassThroughOnBadInputs(t *testing.T) {
	snap := SnapStructure(&Inputs{}, domain.Long, 0, 103, 98)
	assert.False(t, snap.Snapped)
	assert.Equal(t, 103.0, snap.Target1)
	assert.Equal(t, 98.0, snap.Stop)
}
