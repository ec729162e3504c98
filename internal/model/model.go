// Package model implements the per-horizon model registry: which model
// version is ACTIVE, which (if any) is SHADOW or CANDIDATE, and the
// promote/rollback/setShadow transitions between them. Every mutation that
// changes a horizon's pointers is serialized under that horizon's own lock.
// Shadow, promotion and rollback changes are appended to the event log;
// registering a candidate is not.
package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/marketintel/internal/eventlog"
	"github.com/sawpanic/marketintel/internal/trainer"
)

// Status is a model version's lifecycle stage.
type Status string

const (
	StatusTraining Status = "TRAINING"
	StatusReady    Status = "READY"
	StatusActive   Status = "ACTIVE"
	StatusShadow   Status = "SHADOW"
	StatusRetired  Status = "RETIRED"
	StatusFailed   Status = "FAILED"
)

// Algorithm is the closed set of trainable model families. Only
// LogisticRegression is trained today; the others are placeholders the
// artifact tag already supports (§9 design note).
type Algorithm string

const (
	AlgorithmLogisticRegression Algorithm = "LOGISTIC_REGRESSION"
	AlgorithmDecisionTree       Algorithm = "DECISION_TREE"
	AlgorithmRandomForest       Algorithm = "RANDOM_FOREST"
	AlgorithmGradientBoost      Algorithm = "GRADIENT_BOOST"
)

// Thresholds are the decision boundaries applied to a model's predicted
// confidence, distinct from the dataset labeler's realized-return epsilon
// (open question 1 in §9): a prediction at or above WinThreshold is read as
// a WIN call, at or below LossThreshold as a LOSS call.
type Thresholds struct {
	WinThreshold  float64
	LossThreshold float64
}

// Metrics holds the evaluation summary produced by the trainer.
type Metrics struct {
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
	Brier          float64
	AUC            float64
	ConfusionMatrix [2][2]int // [actual][predicted], binary win/not-win
}

// Model is one trained model version for a horizon.
type Model struct {
	ID         uuid.UUID
	Horizon    string
	Version    int
	Algorithm  Algorithm
	Status     Status
	Artifact   trainer.Artifact
	Metrics    Metrics
	Thresholds Thresholds
	FeatureKeys []string
	TrainedAt  time.Time
	PromotedAt time.Time
	RetiredAt  time.Time
}

// RegistryEntry is one horizon's current pointer state.
type RegistryEntry struct {
	Horizon      string
	Active       *Model
	Shadow       *Model
	Candidate    *Model
	PrevActiveID uuid.UUID // set by promote/rollback: the model retired immediately before
	PrevVersion  int

	TotalVersions  int
	TotalPromotions int
	TotalRollbacks int
	LastEventAt    time.Time
	UpdatedAt      time.Time
}

// Registry owns one RegistryEntry per horizon, each independently locked so
// a promotion on one horizon never blocks an operation on another.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntryState
	log     eventlog.Log
}

type registryEntryState struct {
	mu    sync.Mutex
	entry RegistryEntry
}

// NewRegistry returns an empty Registry that appends stage-change events to
// log.
func NewRegistry(log eventlog.Log) *Registry {
	return &Registry{entries: make(map[string]*registryEntryState), log: log}
}

func (r *Registry) entryFor(horizon string) *registryEntryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[horizon]
	if !ok {
		e = &registryEntryState{entry: RegistryEntry{Horizon: horizon}}
		r.entries[horizon] = e
	}
	return e
}

// Get returns a snapshot of a horizon's current pointer state.
func (r *Registry) Get(horizon string) RegistryEntry {
	e := r.entryFor(horizon)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entry
}

// Horizons returns every horizon with a registered entry.
func (r *Registry) Horizons() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	return out
}

// RegisterCandidate installs m (typically fresh from the trainer) as the
// horizon's CANDIDATE, replacing any prior candidate. This is how a newly
// trained model enters the registry; it becomes eligible for Promote only
// after an operator or the auto-promotion pass (via SetShadow + compare)
// decides it's ready.
func (r *Registry) RegisterCandidate(m Model) {
	e := r.entryFor(m.Horizon)
	e.mu.Lock()
	defer e.mu.Unlock()

	m.Status = StatusReady
	e.entry.TotalVersions++
	m.Version = e.entry.TotalVersions
	e.entry.Candidate = &m
	e.entry.UpdatedAt = time.Now().UTC()
}

// SetShadow installs m as the horizon's SHADOW model, replacing any prior
// shadow. The active model is untouched. Emits an event only when the
// shadow pointer actually changes.
func (r *Registry) SetShadow(ctx context.Context, horizon string, m Model) {
	e := r.entryFor(horizon)
	e.mu.Lock()
	changed := e.entry.Shadow == nil || e.entry.Shadow.ID != m.ID
	m.Horizon = horizon
	m.Status = StatusShadow
	e.entry.Shadow = &m
	e.entry.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()

	if changed && r.log != nil {
		_ = r.log.Append(ctx, eventlog.Event{Type: eventlog.ShadowSet, Horizon: horizon, ToModel: m.ID})
	}
}

// ClearShadow removes the horizon's shadow model without affecting active.
// Emits an event only when there was a shadow to clear.
func (r *Registry) ClearShadow(ctx context.Context, horizon string) {
	e := r.entryFor(horizon)
	e.mu.Lock()
	var clearedID uuid.UUID
	changed := e.entry.Shadow != nil
	if changed {
		clearedID = e.entry.Shadow.ID
	}
	e.entry.Shadow = nil
	e.entry.UpdatedAt = time.Now().UTC()
	e.mu.Unlock()

	if changed && r.log != nil {
		_ = r.log.Append(ctx, eventlog.Event{Type: eventlog.ShadowCleared, Horizon: horizon, FromModel: clearedID})
	}
}

// Promote moves the horizon's CANDIDATE (or, if there is no candidate, its
// SHADOW) into the ACTIVE slot, retiring the previous active model into
// PrevActiveID. Exactly one caller wins under concurrent Promote calls for
// the same horizon; the event log records exactly one PROMOTED event per
// successful call (§8 invariant 8).
func (r *Registry) Promote(ctx context.Context, horizon, reason string) (Model, error) {
	e := r.entryFor(horizon)
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.entry.Candidate
	if next == nil {
		next = e.entry.Shadow
	}
	if next == nil {
		return Model{}, fmt.Errorf("model: horizon %q has no candidate or shadow model to promote", horizon)
	}

	var fromID uuid.UUID
	if e.entry.Active != nil {
		retired := *e.entry.Active
		retired.Status = StatusRetired
		retired.RetiredAt = time.Now().UTC()
		e.entry.PrevActiveID = retired.ID
		e.entry.PrevVersion = retired.Version
		fromID = retired.ID
	}

	promoted := *next
	promoted.Status = StatusActive
	promoted.PromotedAt = time.Now().UTC()
	e.entry.Active = &promoted
	e.entry.Candidate = nil
	if e.entry.Shadow != nil && e.entry.Shadow.ID == promoted.ID {
		e.entry.Shadow = nil
	}
	e.entry.TotalPromotions++
	e.entry.LastEventAt = promoted.PromotedAt
	e.entry.UpdatedAt = promoted.PromotedAt

	if r.log != nil {
		_ = r.log.Append(ctx, eventlog.Event{
			Type: eventlog.Promoted, Horizon: horizon,
			FromModel: fromID, ToModel: promoted.ID, Reason: reason,
		})
	}
	return promoted, nil
}

// Rollback restores the model that was active immediately before the last
// promotion (recorded as PrevActiveID), demoting the current active to
// RETIRED. previous supplies the full retired model's record, since the
// registry only retains its id/version; callers load it from persistent
// storage. Per §9 open question 3, PrevActiveID is set before the swap, so
// the model retired by this call is the one that was ACTIVE just prior.
func (r *Registry) Rollback(ctx context.Context, horizon, reason string, previous Model) error {
	e := r.entryFor(horizon)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.entry.PrevActiveID == uuid.Nil {
		return fmt.Errorf("model: horizon %q has no prior active model to roll back to", horizon)
	}
	if previous.ID != e.entry.PrevActiveID {
		return fmt.Errorf("model: supplied model %s does not match recorded previous active %s", previous.ID, e.entry.PrevActiveID)
	}

	var fromID uuid.UUID
	now := time.Now().UTC()
	if e.entry.Active != nil {
		fromID = e.entry.Active.ID
		e.entry.PrevActiveID = e.entry.Active.ID
		e.entry.PrevVersion = e.entry.Active.Version
	} else {
		e.entry.PrevActiveID = uuid.Nil
	}

	restored := previous
	restored.Status = StatusActive
	restored.PromotedAt = now
	e.entry.Active = &restored
	e.entry.TotalRollbacks++
	e.entry.LastEventAt = now
	e.entry.UpdatedAt = now

	if r.log != nil {
		_ = r.log.Append(ctx, eventlog.Event{
			Type: eventlog.RolledBack, Horizon: horizon,
			FromModel: fromID, ToModel: restored.ID, Reason: reason,
		})
	}
	return nil
}
