// Package trainer fits and serializes predictive models over dataset rows.
// LogisticRegression is the only implementation of Algorithm; Run and the
// package-level Fit train a LogisticRegression directly rather than through
// the Algorithm interface.
package trainer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/marketintel/internal/dataset"
)

// RunStatus is the trainer's lifecycle state.
type RunStatus string

const (
	StatusQueued    RunStatus = "QUEUED"
	StatusRunning   RunStatus = "RUNNING"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
	StatusCancelled RunStatus = "CANCELLED"
)

// ArtifactKind tags the encoded payload inside an Artifact so deserialization
// dispatches to the right algorithm without guessing from shape.
type ArtifactKind string

const (
	ArtifactLogisticRegression ArtifactKind = "logistic_regression"
)

// Artifact is a trained model's serialized weights, tagged with the
// algorithm that produced them.
type Artifact struct {
	Kind    ArtifactKind
	Payload []byte
}

// Algorithm is the contract a trainable model satisfies: fitting, prediction
// and artifact (de)serialization. Run does not drive models through it.
type Algorithm interface {
	Fit(features [][]float64, labels []float64) error
	Predict(features []float64) float64
	Serialize() (Artifact, error)
	Deserialize(Artifact) error
}

// Config parameterizes a training run.
type Config struct {
	TrainSplit        float64
	ValSplit          float64
	LearningRate      float64
	L2Penalty         float64
	MaxEpochs         int
	EarlyStopPatience int
	MinSamples        int
	Seed              int64
}

// Result is a completed run's outcome.
type Result struct {
	Status       RunStatus
	Epochs       int
	TrainLoss    float64
	ValLoss      float64
	TestAccuracy float64
	Artifact     Artifact
	Err          error
}

// Split is a temporal train/val/test partition of a feature matrix: the
// earliest rows always train, never the other way around, so the model
// never sees future data during fitting.
type Split struct {
	TrainX, ValX, TestX [][]float64
	TrainY, ValY, TestY []float64
}

// featureKeys returns a stable, sorted list of feature names found across
// rows, so every feature vector has the same column order.
func featureKeys(rows []dataset.Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Features {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelToFloat(l dataset.Label) float64 {
	if l == dataset.LabelWin {
		return 1.0
	}
	return 0.0 // LOSS and NEUTRAL are both non-win for a binary win classifier
}

// SplitRows partitions rows temporally (rows must already be in ascending
// ObservedAt order) into train/val/test according to cfg's split fractions.
func SplitRows(rows []dataset.Row, cfg Config) (Split, []string, error) {
	if len(rows) < cfg.MinSamples {
		return Split{}, nil, fmt.Errorf("trainer: %d rows below minimum sample count %d", len(rows), cfg.MinSamples)
	}

	keys := featureKeys(rows)
	n := len(rows)
	trainEnd := int(float64(n) * cfg.TrainSplit)
	valEnd := trainEnd + int(float64(n)*cfg.ValSplit)
	if valEnd >= n {
		valEnd = n - 1
	}

	toMatrix := func(slice []dataset.Row) ([][]float64, []float64) {
		x := make([][]float64, len(slice))
		y := make([]float64, len(slice))
		for i, r := range slice {
			row := make([]float64, len(keys))
			for j, k := range keys {
				row[j] = r.Features[k]
			}
			x[i] = row
			y[i] = labelToFloat(r.Label)
		}
		return x, y
	}

	trainX, trainY := toMatrix(rows[:trainEnd])
	valX, valY := toMatrix(rows[trainEnd:valEnd])
	testX, testY := toMatrix(rows[valEnd:])

	return Split{TrainX: trainX, ValX: valX, TestX: testX, TrainY: trainY, ValY: valY, TestY: testY}, keys, nil
}

// LogisticRegression is a binary classifier fit with stochastic gradient
// descent, L2-regularized, with early stopping on validation loss.
type LogisticRegression struct {
	Weights []float64
	Bias    float64
}

// NewLogisticRegression returns an untrained model with nFeatures weights.
func NewLogisticRegression(nFeatures int) *LogisticRegression {
	return &LogisticRegression{Weights: make([]float64, nFeatures)}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func (m *LogisticRegression) score(x []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		if i < len(x) {
			z += w * x[i]
		}
	}
	return sigmoid(z)
}

func (m *LogisticRegression) Predict(x []float64) float64 {
	return m.score(x)
}

func logLoss(y, p float64) float64 {
	const eps = 1e-12
	p = math.Max(eps, math.Min(1-eps, p))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func meanLoss(m *LogisticRegression, x [][]float64, y []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	losses := make([]float64, len(x))
	for i := range x {
		losses[i] = logLoss(y[i], m.score(x[i]))
	}
	return stat.Mean(losses, nil)
}

// Fit trains via SGD with L2 regularization and early stopping against a
// held-out validation slice, using a fixed seed for reproducibility.
func Fit(split Split, cfg Config) (*LogisticRegression, int, float64, float64, error) {
	if len(split.TrainX) == 0 {
		return nil, 0, 0, 0, fmt.Errorf("trainer: empty training split")
	}
	nFeatures := len(split.TrainX[0])
	model := NewLogisticRegression(nFeatures)
	rng := rand.New(rand.NewSource(cfg.Seed))

	bestValLoss := math.Inf(1)
	bestWeights := make([]float64, nFeatures)
	bestBias := 0.0
	patience := 0
	epoch := 0

	for ; epoch < cfg.MaxEpochs; epoch++ {
		order := rng.Perm(len(split.TrainX))
		for _, idx := range order {
			x := split.TrainX[idx]
			y := split.TrainY[idx]
			pred := model.score(x)
			errTerm := pred - y
			for j := range model.Weights {
				grad := errTerm*x[j] + cfg.L2Penalty*model.Weights[j]
				model.Weights[j] -= cfg.LearningRate * grad
			}
			model.Bias -= cfg.LearningRate * errTerm
		}

		valLoss := meanLoss(model, split.ValX, split.ValY)
		if valLoss < bestValLoss {
			bestValLoss = valLoss
			copy(bestWeights, model.Weights)
			bestBias = model.Bias
			patience = 0
		} else {
			patience++
			if patience >= cfg.EarlyStopPatience {
				epoch++
				break
			}
		}
	}

	model.Weights = bestWeights
	model.Bias = bestBias
	trainLoss := meanLoss(model, split.TrainX, split.TrainY)
	return model, epoch, trainLoss, bestValLoss, nil
}

// logisticPayload is the msgpack-encoded shape of a LogisticRegression
// artifact.
type logisticPayload struct {
	Weights []float64 `msgpack:"weights"`
	Bias    float64   `msgpack:"bias"`
}

func (m *LogisticRegression) Serialize() (Artifact, error) {
	payload, err := msgpack.Marshal(logisticPayload{Weights: m.Weights, Bias: m.Bias})
	if err != nil {
		return Artifact{}, fmt.Errorf("trainer: serialize logistic model: %w", err)
	}
	return Artifact{Kind: ArtifactLogisticRegression, Payload: payload}, nil
}

func (m *LogisticRegression) Deserialize(a Artifact) error {
	if a.Kind != ArtifactLogisticRegression {
		return fmt.Errorf("trainer: artifact kind %q is not a logistic regression", a.Kind)
	}
	var payload logisticPayload
	if err := msgpack.Unmarshal(a.Payload, &payload); err != nil {
		return fmt.Errorf("trainer: deserialize logistic model: %w", err)
	}
	m.Weights = payload.Weights
	m.Bias = payload.Bias
	return nil
}

var _ Algorithm = (*LogisticRegression)(nil)

func (m *LogisticRegression) Fit(features [][]float64, labels []float64) error {
	return fmt.Errorf("trainer: use the package-level Fit to train with early stopping on a validation split")
}

// Accuracy reports the fraction of testX rows classified correctly at a 0.5
// decision threshold.
func Accuracy(model *LogisticRegression, testX [][]float64, testY []float64) float64 {
	if len(testX) == 0 {
		return 0
	}
	correct := 0
	for i, x := range testX {
		pred := model.score(x)
		predicted := 0.0
		if pred >= 0.5 {
			predicted = 1.0
		}
		if predicted == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX))
}

// Run drives a full training pass: split, fit, evaluate, serialize.
func Run(rows []dataset.Row, cfg Config) Result {
	split, _, err := SplitRows(rows, cfg)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	standardizer := FitStandardizer(split.TrainX)
	split.TrainX = standardizer.Transform(split.TrainX)
	split.ValX = standardizer.Transform(split.ValX)
	split.TestX = standardizer.Transform(split.TestX)

	model, epochs, trainLoss, valLoss, err := Fit(split, cfg)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	artifact, err := model.Serialize()
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	return Result{
		Status:       StatusCompleted,
		Epochs:       epochs,
		TrainLoss:    trainLoss,
		ValLoss:      valLoss,
		TestAccuracy: Accuracy(model, split.TestX, split.TestY),
		Artifact:     artifact,
	}
}

// Standardizer holds per-feature mean/stddev computed from a training split,
// used to z-score every feature matrix before SGD so no single feature's
// scale dominates the gradient.
type Standardizer struct {
	Mean   []float64
	StdDev []float64
}

// FitStandardizer computes column-wise mean/stddev from a dense
// representation of x.
func FitStandardizer(x [][]float64) Standardizer {
	if len(x) == 0 {
		return Standardizer{}
	}
	nFeatures := len(x[0])
	dense := mat.NewDense(len(x), nFeatures, nil)
	for i, row := range x {
		dense.SetRow(i, row)
	}

	means := make([]float64, nFeatures)
	stddevs := make([]float64, nFeatures)
	col := make([]float64, len(x))
	for j := 0; j < nFeatures; j++ {
		mat.Col(col, j, dense)
		means[j] = stat.Mean(col, nil)
		stddevs[j] = stat.StdDev(col, nil)
		if stddevs[j] == 0 {
			stddevs[j] = 1 // avoid divide-by-zero for constant features
		}
	}
	return Standardizer{Mean: means, StdDev: stddevs}
}

// Transform returns a z-scored copy of x using the standardizer's stored
// moments; x itself is not modified.
func (s Standardizer) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		transformed := make([]float64, len(row))
		for j, v := range row {
			if j < len(s.Mean) {
				transformed[j] = (v - s.Mean[j]) / s.StdDev[j]
			} else {
				transformed[j] = v
			}
		}
		out[i] = transformed
	}
	return out
}
