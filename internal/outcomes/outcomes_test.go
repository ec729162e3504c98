package outcomes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/marketintel/internal/dataset"
	"github.com/sawpanic/marketintel/internal/model"
)

func TestRecordFromDataset_AttributesHorizonAndShadow(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	modelID := uuid.New()

	rows := []dataset.Row{
		{Symbol: "BTC-USD", ObservedAt: time.Now(), RealizedReturn: 0.01, Label: dataset.LabelWin},
		{Symbol: "BTC-USD", ObservedAt: time.Now(), RealizedReturn: -0.01, Label: dataset.LabelLoss},
		{Symbol: "BTC-USD", ObservedAt: time.Now(), RealizedReturn: 0.0, Label: dataset.LabelNeutral},
	}

	n, err := RecordFromDataset(ctx, s, rows, "1d", modelID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 recorded outcomes, got %d", n)
	}

	got, err := s.Outcomes(ctx, "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 outcomes for horizon 1d, got %d", len(got))
	}
	for _, o := range got {
		if !o.IsShadow {
			t.Fatalf("expected every outcome to be tagged shadow")
		}
		if o.ModelID != modelID.String() {
			t.Fatalf("expected model id %s, got %s", modelID, o.ModelID)
		}
	}
}

func TestRecordFromDataset_RejectsEmptyHorizon(t *testing.T) {
	s := NewStore()
	if _, err := RecordFromDataset(context.Background(), s, nil, "", uuid.New(), false); err == nil {
		t.Fatalf("expected error for empty horizon")
	}
}

func TestGetModel_ReturnsIndexedModel(t *testing.T) {
	s := NewStore()
	m := model.Model{ID: uuid.New(), Horizon: "1d"}
	s.IndexModel(m)

	got, ok, err := s.GetModel(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected model to be found")
	}
	if got.ID != m.ID {
		t.Fatalf("expected matching model id")
	}

	if _, ok, _ := s.GetModel(context.Background(), uuid.New()); ok {
		t.Fatalf("expected lookup of unindexed id to miss")
	}
}
