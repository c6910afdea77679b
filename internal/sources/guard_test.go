package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastGuardConfig() GuardConfig {
	return GuardConfig{RPS: 1000, Burst: 1000, Timeout: 100 * time.Millisecond, BreakerOpen: time.Minute}
}

func TestGuardPassesCallsThrough(t *testing.T) {
	g := NewGuard("test", fastGuardConfig())
	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "closed", g.State())
}

func TestGuardEnforcesDeadline(t *testing.T) {
	g := NewGuard("test", fastGuardConfig())
	err := g.Do(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	g := NewGuard("test", fastGuardConfig())
	boom := errors.New("provider down")

	for i := 0; i < 5; i++ {
		err := g.Do(context.Background(), func(ctx context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", g.State())

	// With the breaker open the call never runs.
	ran := false
	err := g.Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, ran)
}

func TestGuardRespectsCancelledContext(t *testing.T) {
	g := NewGuard("test", GuardConfig{RPS: 0.001, Burst: 1, Timeout: time.Second, BreakerOpen: time.Minute})
	// Drain the single token, then a cancelled wait should surface.
	require.NoError(t, g.Do(context.Background(), func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Do(ctx, func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRegistryGuards(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Providers())

	p := NewSimProvider()
	r.Register(p, DefaultGuardConfig())
	require.Len(t, r.Providers(), 1)

	g1 := r.Guard(p.Name())
	require.NotNil(t, g1)
	assert.Same(t, g1, r.Guard(p.Name()))

	// Unknown names get a default guard on demand.
	assert.NotNil(t, r.Guard("unknown"))

	states := r.BreakerStates()
	assert.Equal(t, "closed", states[p.Name()])
}
