package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestMemory_AppendAssignsIDAndTimestamp(t *testing.T) {
	m := NewMemory()
	e := Event{Type: Promoted, Horizon: "1d"}
	if err := m.Append(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recent, err := m.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 event, got %d", len(recent))
	}
	if recent[0].Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be stamped")
	}
}

func TestMemory_RecentIsMostRecentFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()
	_ = m.Append(ctx, Event{Type: Promoted, Horizon: "1d", Timestamp: base})
	_ = m.Append(ctx, Event{Type: RolledBack, Horizon: "1d", Timestamp: base.Add(time.Minute)})

	recent, _ := m.Recent(ctx, 10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Type != RolledBack {
		t.Fatalf("expected most recent event first, got %s", recent[0].Type)
	}
}

func TestMemory_ByHorizonFiltersOtherHorizons(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Append(ctx, Event{Type: Promoted, Horizon: "1d"})
	_ = m.Append(ctx, Event{Type: Promoted, Horizon: "7d"})

	byHorizon, _ := m.ByHorizon(ctx, "1d", 10)
	if len(byHorizon) != 1 {
		t.Fatalf("expected 1 event for horizon 1d, got %d", len(byHorizon))
	}
}

func TestMemory_ByTypeFiltersOtherTypes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Append(ctx, Event{Type: Promoted, Horizon: "1d"})
	_ = m.Append(ctx, Event{Type: RolledBack, Horizon: "1d"})

	promotions, _ := m.ByType(ctx, Promoted, "", 10)
	if len(promotions) != 1 {
		t.Fatalf("expected 1 PROMOTED event, got %d", len(promotions))
	}
}

func TestMemory_ComputeStats(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()
	_ = m.Append(ctx, Event{Type: Promoted, Horizon: "1d", Timestamp: now})
	_ = m.Append(ctx, Event{Type: RolledBack, Horizon: "7d", Timestamp: now.Add(-10 * 24 * time.Hour)})

	stats := m.ComputeStats(now)
	if stats.TotalByType[Promoted] != 1 {
		t.Fatalf("expected 1 PROMOTED in totals, got %d", stats.TotalByType[Promoted])
	}
	if stats.PromotionsLast7d != 1 {
		t.Fatalf("expected 1 promotion in the last 7 days, got %d", stats.PromotionsLast7d)
	}
	if stats.RollbacksLast7d != 0 {
		t.Fatalf("expected rollback from 10 days ago to be excluded, got %d", stats.RollbacksLast7d)
	}
}
