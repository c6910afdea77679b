package sources

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardConfig tunes the per-provider protections.
type GuardConfig struct {
	RPS         float64       // token bucket refill rate
	Burst       int           // token bucket capacity
	Timeout     time.Duration // per-call deadline
	BreakerOpen time.Duration // how long an open breaker stays open
}

// DefaultGuardConfig is a conservative profile for REST providers.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RPS:         8,
		Burst:       16,
		Timeout:     8 * time.Second,
		BreakerOpen: 30 * time.Second,
	}
}

// Guard wraps every provider call with a token bucket, a circuit breaker and
// a per-call deadline. A tripped breaker or a timed-out call surfaces as a
// transient failure: the caller keeps the previous state entry.
type Guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewGuard builds a guard for one provider.
func NewGuard(name string, cfg GuardConfig) *Guard {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Guard{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
	}
}

// Do runs fn behind the limiter, breaker and deadline.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	_, err := g.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return nil, fn(callCtx)
	})
	return err
}

// State reports the breaker state for diagnostics.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// Registry holds the registered providers and their guards.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	guards    map[string]*Guard
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{guards: make(map[string]*Guard)}
}

// Register adds a provider with its guard config.
func (r *Registry) Register(p Provider, cfg GuardConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.guards[p.Name()] = NewGuard(p.Name(), cfg)
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Provider(nil), r.providers...)
}

// Guard returns the guard for a provider name, or a default guard.
func (r *Registry) Guard(name string) *Guard {
	r.mu.RLock()
	g := r.guards[name]
	r.mu.RUnlock()
	if g == nil {
		g = NewGuard(name, DefaultGuardConfig())
		r.mu.Lock()
		r.guards[name] = g
		r.mu.Unlock()
	}
	return g
}

// BreakerStates returns provider name to breaker state, for the budget endpoint.
func (r *Registry) BreakerStates() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.guards))
	for name, g := range r.guards {
		out[name] = g.State()
	}
	return out
}
