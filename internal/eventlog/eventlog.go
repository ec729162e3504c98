// Package eventlog is the append-only audit trail of model lifecycle
// activity: stage changes and guardrail toggles. Nothing downstream ever
// mutates or deletes an event; readers only ever see a consistent, growing
// history.
package eventlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of auditable lifecycle occurrences.
type EventType string

const (
	Promoted         EventType = "PROMOTED"
	RolledBack       EventType = "ROLLED_BACK"
	ShadowSet        EventType = "SHADOW_SET"
	ShadowCleared     EventType = "SHADOW_CLEARED"
	KillSwitchOn     EventType = "KILL_SWITCH_ON"
	KillSwitchOff    EventType = "KILL_SWITCH_OFF"
	PromotionLockOn  EventType = "PROMOTION_LOCK_ON"
	PromotionLockOff EventType = "PROMOTION_LOCK_OFF"
	DriftChanged     EventType = "DRIFT_CHANGED"
	ConfigUpdated    EventType = "CONFIG_UPDATED"
)

// Global is the horizon value for events that aren't scoped to one horizon
// (kill switch, promotion lock, config updates).
const Global = "GLOBAL"

// Event is one append-only audit record. FromModel/ToModel are uuid.Nil
// when not applicable to the event type.
type Event struct {
	ID         uuid.UUID
	Type       EventType
	Horizon    string
	FromModel  uuid.UUID
	ToModel    uuid.UUID
	Reason     string
	Meta       map[string]string
	Timestamp  time.Time
}

// Log is the append-only event store. Implementations must never reorder or
// drop events once Append has returned.
type Log interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	ByHorizon(ctx context.Context, horizon string, limit int) ([]Event, error)
	ByType(ctx context.Context, t EventType, horizon string, limit int) ([]Event, error)
}

// Memory is an in-process Log, safe for concurrent use. It's the default for
// tests and for deployments without a database configured.
type Memory struct {
	mu     sync.RWMutex
	events []Event // append order; also timestamp-ascending since writes are sequential
}

// NewMemory returns an empty in-memory event log.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, e Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Recent returns up to limit events, most recent first.
func (m *Memory) Recent(ctx context.Context, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversedTail(m.events, limit), nil
}

// ByHorizon returns up to limit events for one horizon (or Global), most
// recent first.
func (m *Memory) ByHorizon(ctx context.Context, horizon string, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filtered := make([]Event, 0)
	for _, e := range m.events {
		if e.Horizon == horizon {
			filtered = append(filtered, e)
		}
	}
	return reversedTail(filtered, limit), nil
}

// ByType returns up to limit events of a given type, optionally scoped to a
// horizon (empty string matches every horizon), most recent first.
func (m *Memory) ByType(ctx context.Context, t EventType, horizon string, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filtered := make([]Event, 0)
	for _, e := range m.events {
		if e.Type != t {
			continue
		}
		if horizon != "" && e.Horizon != horizon {
			continue
		}
		filtered = append(filtered, e)
	}
	return reversedTail(filtered, limit), nil
}

// LastOfType returns the most recent event of type t for a horizon, if any.
func (m *Memory) LastOfType(horizon string, t EventType) (Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Horizon == horizon && m.events[i].Type == t {
			return m.events[i], true
		}
	}
	return Event{}, false
}

// Stats summarizes the log: counts by type, by horizon, and recency windows
// for promotions/rollbacks.
type Stats struct {
	TotalByType       map[EventType]int
	TotalByHorizon    map[string]int
	PromotionsLast7d  int
	RollbacksLast7d   int
}

// ComputeStats aggregates Stats as of now.
func (m *Memory) ComputeStats(now time.Time) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		TotalByType:    make(map[EventType]int),
		TotalByHorizon: make(map[string]int),
	}
	cutoff := now.Add(-7 * 24 * time.Hour)
	for _, e := range m.events {
		s.TotalByType[e.Type]++
		s.TotalByHorizon[e.Horizon]++
		if e.Timestamp.After(cutoff) {
			switch e.Type {
			case Promoted:
				s.PromotionsLast7d++
			case RolledBack:
				s.RollbacksLast7d++
			}
		}
	}
	return s
}

// reversedTail returns up to limit items from the end of events, in reverse
// (most-recent-first) order, without mutating the input slice.
func reversedTail(events []Event, limit int) []Event {
	if limit <= 0 || limit > len(events) {
		limit = len(events)
	}
	out := make([]Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = events[len(events)-1-i]
	}
	// guard against accidental future out-of-order Append calls (not expected
	// in normal operation, but keeps Recent callers honest).
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}
