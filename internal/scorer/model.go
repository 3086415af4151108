package scorer

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Classifier is the trained fraud model. Implementations must be
// side-effect-free and safe for concurrent use; the model is immutable
// for the lifetime of a server process.
type Classifier interface {
	// Predict returns the binary fraud label and the probability of the
	// positive (fraud) class for an already-scaled feature vector.
	Predict(scaled []float64) (label bool, probability float64)

	// Version identifies the trained model.
	Version() string
}

// LogisticModel is a logistic-regression classifier over scaled features.
type LogisticModel struct {
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold"`
	ModelVersion string    `json:"model_version"`
}

// DefaultModel returns the built-in v1 model.
func DefaultModel() *LogisticModel {
	return &LogisticModel{
		Weights:      []float64{1.20, 0.80, 0.90, 1.10},
		Intercept:    -0.50,
		Threshold:    0.5,
		ModelVersion: "1.0.0",
	}
}

// LoadModel reads a model and scaler from a JSON file.
func LoadModel(path string) (*LogisticModel, *Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read model file: %w", err)
	}

	var file struct {
		Model  LogisticModel `json:"model"`
		Scaler Scaler        `json:"scaler"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse model file: %w", err)
	}

	m, s := file.Model, file.Scaler
	if len(m.Weights) == 0 || len(m.Weights) != len(s.Mean) || len(s.Mean) != len(s.Std) {
		return nil, nil, fmt.Errorf("model file %s: weights/mean/std length mismatch", path)
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}
	if m.ModelVersion == "" {
		m.ModelVersion = "unversioned"
	}
	return &m, &s, nil
}

// Predict computes sigmoid(w·x + b) and thresholds it into a label.
func (m *LogisticModel) Predict(scaled []float64) (bool, float64) {
	z := m.Intercept
	for i, w := range m.Weights {
		z += w * scaled[i]
	}
	p := 1.0 / (1.0 + math.Exp(-z))
	return p >= m.Threshold, p
}

// Version identifies the trained model.
func (m *LogisticModel) Version() string {
	return m.ModelVersion
}
