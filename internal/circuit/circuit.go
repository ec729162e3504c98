// Package circuit wraps a trip/reset state machine per provider and exposes
// it through the platform's own health vocabulary (UP/DEGRADED/DOWN/
// INITIALIZING) instead of the generic closed/open/half-open one.
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Health is the provider health state surfaced to the rest of the platform.
type Health int

const (
	// Initializing is reported by a provider that has no breaker registered
	// with the Manager; Breaker.Health itself never returns it.
	Initializing Health = iota
	Up
	Degraded
	Down
)

func (h Health) String() string {
	switch h {
	case Initializing:
		return "INITIALIZING"
	case Up:
		return "UP"
	case Degraded:
		return "DEGRADED"
	case Down:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Config parameterizes a single provider's breaker.
type Config struct {
	Name              string
	DegradedThreshold uint32
	DownThreshold     uint32
	OpenTimeout       time.Duration
	RequestTimeout    time.Duration
}

// Stats mirrors gobreaker.Counts plus the derived health classification.
type Stats struct {
	Health             Health
	Requests           uint32
	TotalSuccesses     uint32
	TotalFailures      uint32
	ConsecutiveFailures uint32
}

// Breaker wraps a gobreaker.CircuitBreaker for one provider, translating its
// three-state machine into the platform's health vocabulary: status is UP
// iff the last event was a success or no events have occurred yet, DEGRADED
// while the current error streak sits in [DegradedThreshold, DownThreshold),
// and DOWN once it reaches DownThreshold. After OpenTimeout the breaker
// admits probe calls and reports DEGRADED until a probe succeeds (UP) or
// fails (DOWN). A provider with no breaker registered at all (rather than
// one that simply hasn't been called) reports INITIALIZING; see
// Manager.GetBreaker.
type Breaker struct {
	mu    sync.RWMutex
	name  string
	cfg   Config
	cb    *gobreaker.CircuitBreaker
	reqTO time.Duration
}

// NewBreaker builds a Breaker from Config, applying the degraded/down
// thresholds to gobreaker's ReadyToTrip hook.
func NewBreaker(cfg Config) *Breaker {
	b := &Breaker{name: cfg.Name, cfg: cfg, reqTO: cfg.RequestTimeout}
	b.cb = newGobreaker(cfg)
	return b
}

func newGobreaker(cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.DegradedThreshold,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.DownThreshold
		},
	})
}

// Call executes fn through the breaker, applying the configured per-request
// timeout. Returns the breaker's own error (e.g. gobreaker.ErrOpenState) when
// the call is rejected without being attempted.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()

	_, err := cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		var cancel context.CancelFunc
		if b.reqTO > 0 {
			callCtx, cancel = context.WithTimeout(ctx, b.reqTO)
			defer cancel()
		}
		return nil, fn(callCtx)
	})
	return err
}

// Health returns the current derived health state. A breaker that has never
// been called reports UP with streak 0, per the circuit breaker monotonicity
// invariant: status is UP iff the last event was a success or no events have
// occurred.
func (b *Breaker) Health() Health {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()

	counts := cb.Counts()
	switch cb.State() {
	case gobreaker.StateOpen:
		return Down
	case gobreaker.StateHalfOpen:
		if counts.ConsecutiveSuccesses > 0 {
			return Up
		}
		return Degraded
	default: // StateClosed
		if counts.ConsecutiveFailures >= b.cfg.DegradedThreshold {
			return Degraded
		}
		return Up
	}
}

// Stats returns a point-in-time snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()
	counts := cb.Counts()
	return Stats{
		Health:              b.Health(),
		Requests:            counts.Requests,
		TotalSuccesses:      counts.TotalSuccesses,
		TotalFailures:       counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

// Reset discards accumulated counters by rebuilding the underlying breaker,
// per the monotonicity invariant: an explicit reset puts status in UP with
// streak 0.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = newGobreaker(b.cfg)
}

// Manager owns one Breaker per provider.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*Breaker)}
}

// AddProvider registers a breaker for the given provider name.
func (m *Manager) AddProvider(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakers[cfg.Name] = NewBreaker(cfg)
}

// GetBreaker returns the named breaker, if registered.
func (m *Manager) GetBreaker(name string) (*Breaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakers[name]
	return b, ok
}

// Call runs fn through the named provider's breaker. Providers without a
// registered breaker fall through and run fn directly.
func (m *Manager) Call(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	b, ok := m.GetBreaker(provider)
	if !ok {
		return fn(ctx)
	}
	return b.Call(ctx, fn)
}

// Stats returns a snapshot of every registered breaker, keyed by provider.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.breakers))
	for name, b := range m.breakers {
		out[name] = b.Stats()
	}
	return out
}

// UnhealthyProviders returns the names of providers currently DOWN.
func (m *Manager) UnhealthyProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var down []string
	for name, b := range m.breakers {
		if b.Health() == Down {
			down = append(down, name)
		}
	}
	return down
}

// Reset clears the named provider's breaker state.
func (m *Manager) Reset(name string) error {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no breaker registered for provider %q", name)
	}
	b.Reset()
	return nil
}
