package trainer

import (
	"math"
	"testing"
	"time"

	"github.com/sawpanic/marketintel/internal/dataset"
)

func syntheticRows(n int) []dataset.Row {
	rows := make([]dataset.Row, n)
	base := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := 0; i < n; i++ {
		rsi := 30.0
		label := dataset.LabelLoss
		if i%2 == 0 {
			rsi = 70.0
			label = dataset.LabelWin
		}
		rows[i] = dataset.Row{
			Symbol:     "BTC-USD",
			ObservedAt: base.Add(time.Duration(i) * time.Hour),
			Features:   map[string]float64{"rsi_14": rsi, "atr_14": 1.5},
			Label:      label,
		}
	}
	return rows
}

func defaultConfig() Config {
	return Config{
		TrainSplit:        0.7,
		ValSplit:          0.15,
		LearningRate:      0.1,
		L2Penalty:         0.001,
		MaxEpochs:         50,
		EarlyStopPatience: 5,
		MinSamples:        20,
		Seed:              42,
	}
}

func TestSplitRows_RejectsBelowMinSamples(t *testing.T) {
	rows := syntheticRows(5)
	if _, _, err := SplitRows(rows, defaultConfig()); err == nil {
		t.Fatalf("expected error for too few rows")
	}
}

func TestRun_LearnsSeparableSignal(t *testing.T) {
	rows := syntheticRows(200)
	result := Run(rows, defaultConfig())
	if result.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (err=%v)", result.Status, result.Err)
	}
	if result.TestAccuracy < 0.8 {
		t.Fatalf("expected high accuracy on a cleanly separable signal, got %f", result.TestAccuracy)
	}
	if result.Artifact.Kind != ArtifactLogisticRegression {
		t.Fatalf("expected logistic regression artifact, got %s", result.Artifact.Kind)
	}
}

func TestLogisticRegression_SerializeRoundTrip(t *testing.T) {
	model := NewLogisticRegression(2)
	model.Weights = []float64{0.5, -0.3}
	model.Bias = 0.1

	artifact, err := model.Serialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := NewLogisticRegression(0)
	if err := restored.Deserialize(artifact); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Bias != model.Bias || len(restored.Weights) != len(model.Weights) {
		t.Fatalf("expected round-tripped model to match original")
	}
}

func TestFitStandardizer_ZeroMeanUnitVariance(t *testing.T) {
	x := [][]float64{{1, 10}, {2, 20}, {3, 30}}
	s := FitStandardizer(x)
	transformed := s.Transform(x)
	if len(transformed) != 3 {
		t.Fatalf("expected 3 transformed rows")
	}
	for j := 0; j < 2; j++ {
		var sum, sumSq float64
		for _, row := range transformed {
			sum += row[j]
			sumSq += row[j] * row[j]
		}
		if mean := sum / 3; math.Abs(mean) > 1e-9 {
			t.Fatalf("expected zero mean in column %d, got %f", j, mean)
		}
		// FitStandardizer uses the sample (n-1) standard deviation.
		if variance := sumSq / 2; math.Abs(variance-1) > 1e-9 {
			t.Fatalf("expected unit variance in column %d, got %f", j, variance)
		}
	}
}
