// Package ratelimit provides a per-venue token bucket scheduler on top of
// golang.org/x/time/rate, used to keep provider calls within each exchange's
// published request budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// VenueLimiter wraps a single token bucket for one venue's requests.
type VenueLimiter struct {
	mu    sync.RWMutex
	venue string
	rps   float64
	burst int
	rl    *rate.Limiter
}

// NewVenueLimiter builds a VenueLimiter allowing rps requests per second with
// the given burst capacity.
func NewVenueLimiter(venue string, rps float64, burst int) *VenueLimiter {
	return &VenueLimiter{
		venue: venue,
		rps:   rps,
		burst: burst,
		rl:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Allow reports whether a request may proceed immediately, consuming a token
// if so.
func (v *VenueLimiter) Allow() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rl.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (v *VenueLimiter) Wait(ctx context.Context) error {
	v.mu.RLock()
	rl := v.rl
	v.mu.RUnlock()
	return rl.Wait(ctx)
}

// Reserve reports the delay before the next token would be available,
// without blocking.
func (v *VenueLimiter) Reserve() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r := v.rl.Reserve()
	if !r.OK() {
		return 0
	}
	delay := r.Delay()
	r.Cancel()
	return delay
}

// SetRPS adjusts the venue's steady-state request rate.
func (v *VenueLimiter) SetRPS(rps float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rps = rps
	v.rl.SetLimit(rate.Limit(rps))
}

// Reset rebuilds the underlying bucket at full burst capacity.
func (v *VenueLimiter) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rl = rate.NewLimiter(rate.Limit(v.rps), v.burst)
}

// Stats is a point-in-time view of a VenueLimiter's configuration and
// current throttling state.
type Stats struct {
	Venue          string
	RPS            float64
	Burst          int
	NextAllowedIn  time.Duration
}

// IsThrottled reports whether a request issued right now would have to wait.
func (s Stats) IsThrottled() bool {
	return s.NextAllowedIn > 0
}

// Stats returns a snapshot of the limiter's current state.
func (v *VenueLimiter) Stats() Stats {
	return Stats{
		Venue:         v.venue,
		RPS:           v.rps,
		Burst:         v.burst,
		NextAllowedIn: v.Reserve(),
	}
}

// Scheduler owns one VenueLimiter per provider and is the component backfill
// and live collection both schedule calls through.
type Scheduler struct {
	mu       sync.RWMutex
	limiters map[string]*VenueLimiter
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{limiters: make(map[string]*VenueLimiter)}
}

// AddProvider registers a limiter for the named provider.
func (s *Scheduler) AddProvider(name string, rps float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiters[name] = NewVenueLimiter(name, rps, burst)
}

// GetLimiter returns the named provider's limiter, if registered.
func (s *Scheduler) GetLimiter(name string) (*VenueLimiter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.limiters[name]
	return l, ok
}

// Allow reports whether the named provider may proceed immediately.
// Providers without a registered limiter are always allowed.
func (s *Scheduler) Allow(name string) bool {
	l, ok := s.GetLimiter(name)
	if !ok {
		return true
	}
	return l.Allow()
}

// Wait blocks until the named provider's bucket has a token or ctx is done.
// Providers without a registered limiter return immediately.
func (s *Scheduler) Wait(ctx context.Context, name string) error {
	l, ok := s.GetLimiter(name)
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// PauseOnThrottle is invoked by the backfill engine after a 429 response: it
// blocks the caller for the given cooldown, or until ctx is done. It leaves
// the bucket itself unchanged. Providers without a registered limiter return
// immediately.
func (s *Scheduler) PauseOnThrottle(ctx context.Context, name string, cooldown time.Duration) error {
	if _, ok := s.GetLimiter(name); !ok {
		return nil
	}
	timer := time.NewTimer(cooldown)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of every registered provider's limiter.
func (s *Scheduler) Stats() map[string]Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Stats, len(s.limiters))
	for name, l := range s.limiters {
		out[name] = l.Stats()
	}
	return out
}

// Reset rebuilds the named provider's bucket at full capacity.
func (s *Scheduler) Reset(name string) error {
	s.mu.RLock()
	l, ok := s.limiters[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no limiter registered for provider %q", name)
	}
	l.Reset()
	return nil
}
