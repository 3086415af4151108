package scorer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// stubClassifier returns a fixed prediction.
type stubClassifier struct {
	label bool
	prob  float64
}

func (s stubClassifier) Predict([]float64) (bool, float64) { return s.label, s.prob }
func (s stubClassifier) Version() string                   { return "stub" }

// identityScaler leaves vectors untouched so tests control the scaled values.
func identityScaler() *Scaler {
	return &Scaler{Mean: []float64{0, 0, 0, 0}, Std: []float64{1, 1, 1, 1}}
}

func feats(amount, merchantRisk, userRisk, ratio float64, history int) fraud.Features {
	return fraud.Features{
		Vector:       []float64{amount, merchantRisk, userRisk, ratio},
		HistoryCount: history,
	}
}

func TestScore_OverrideForcesFraudOnNewUsers(t *testing.T) {
	a := NewAdapter(stubClassifier{label: false, prob: 0.3}, identityScaler(), HighAmountLowHistoryPolicy{})

	result, err := a.Score(feats(900, 0.2, 0.2, 1.0, 3))
	require.NoError(t, err)

	assert.True(t, result.IsFraud)
	assert.Equal(t, 0.9, result.FraudScore, "override floors the score")
}

func TestScore_OverrideKeepsHigherModelScore(t *testing.T) {
	a := NewAdapter(stubClassifier{label: true, prob: 0.95}, identityScaler(), HighAmountLowHistoryPolicy{})

	result, err := a.Score(feats(900, 0.2, 0.2, 1.0, 3))
	require.NoError(t, err)

	assert.True(t, result.IsFraud)
	assert.Equal(t, 0.95, result.FraudScore)
}

func TestScore_NoOverrideForEstablishedUsers(t *testing.T) {
	a := NewAdapter(stubClassifier{label: false, prob: 0.3}, identityScaler(), HighAmountLowHistoryPolicy{})

	result, err := a.Score(feats(900, 0.2, 0.2, 1.0, 10))
	require.NoError(t, err)

	assert.False(t, result.IsFraud)
	assert.Equal(t, 0.3, result.FraudScore)
}

func TestScore_NoOverrideBelowAmountThreshold(t *testing.T) {
	a := NewAdapter(stubClassifier{label: false, prob: 0.1}, identityScaler(), HighAmountLowHistoryPolicy{})

	result, err := a.Score(feats(800, 0.2, 0.2, 1.0, 0))
	require.NoError(t, err)

	assert.False(t, result.IsFraud, "threshold is strict: 800 is not over 800")
}

func TestScore_InvalidVectors(t *testing.T) {
	a := NewAdapter(stubClassifier{}, identityScaler(), NoOverride{})

	tests := []struct {
		name   string
		vector []float64
	}{
		{"too short", []float64{1, 2, 3}},
		{"too long", []float64{1, 2, 3, 4, 5}},
		{"nil", nil},
		{"nan", []float64{100, 0.5, nan(), 1.0}},
		{"negative ratio", []float64{100, 0.5, 0.5, -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Score(fraud.Features{Vector: tt.vector})
			require.Error(t, err)
			var invalid *fraud.InvalidFeatureError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestRiskFactors_AllFlagsInStableOrder(t *testing.T) {
	a := NewAdapter(stubClassifier{label: true, prob: 0.9}, identityScaler(), NoOverride{})

	result, err := a.Score(feats(6000, 0.9, 0.8, 6.0, 20))
	require.NoError(t, err)

	assert.Equal(t, []string{
		FactorHighAmount,
		FactorHighMerchantRisk,
		FactorHighUserRisk,
		FactorUnusualPattern,
	}, result.RiskFactors)
}

func TestRiskFactors_EmptyIsNotNil(t *testing.T) {
	a := NewAdapter(stubClassifier{label: false, prob: 0.1}, identityScaler(), NoOverride{})

	result, err := a.Score(feats(100, 0.1, 0.1, 1.0, 20))
	require.NoError(t, err)

	assert.NotNil(t, result.RiskFactors)
	assert.Empty(t, result.RiskFactors)
}

func TestRiskFactors_ThresholdsAreStrict(t *testing.T) {
	a := NewAdapter(stubClassifier{}, identityScaler(), NoOverride{})

	// Exactly at threshold does not flag.
	result, err := a.Score(feats(5000, 0.8, 0.7, 5.0, 20))
	require.NoError(t, err)
	assert.Empty(t, result.RiskFactors)
}

func TestConfidence_UniformVectorIsBase(t *testing.T) {
	a := NewAdapter(stubClassifier{}, identityScaler(), NoOverride{})

	// All components equal: zero dispersion, confidence stays at the base.
	result, err := a.Score(feats(0.5, 0.5, 0.5, 0.5, 20))
	require.NoError(t, err)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestConfidence_ClampedAtFloor(t *testing.T) {
	a := NewAdapter(stubClassifier{}, identityScaler(), NoOverride{})

	// stddev of [10,10,0,0] is 5, so the raw value 0.8-0.5 clamps to 0.5.
	result, err := a.Score(feats(10, 10, 0, 0, 20))
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestDefaultModel_EndToEnd(t *testing.T) {
	a := NewAdapter(DefaultModel(), DefaultScaler(), HighAmountLowHistoryPolicy{})

	t.Run("low risk transaction is legit", func(t *testing.T) {
		result, err := a.Score(feats(50, 0.1, 0.1, 1.0, 0))
		require.NoError(t, err)
		assert.False(t, result.IsFraud)
		assert.Less(t, result.FraudScore, 0.05)
		assert.Equal(t, "1.0.0", result.ModelVersion)
	})

	t.Run("high risk transaction is fraud", func(t *testing.T) {
		result, err := a.Score(feats(6000, 0.9, 0.9, 8.0, 20))
		require.NoError(t, err)
		assert.True(t, result.IsFraud)
		assert.Greater(t, result.FraudScore, 0.9)
		assert.Len(t, result.RiskFactors, 4)
	})

	t.Run("confidence stays in bounds", func(t *testing.T) {
		result, err := a.Score(feats(9999, 0.99, 0.99, 9.9, 20))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Confidence, 0.5)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	})
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "model.json")
		payload := map[string]interface{}{
			"model": map[string]interface{}{
				"weights":       []float64{1, 1, 1, 1},
				"intercept":     -1.0,
				"threshold":     0.6,
				"model_version": "2.0.0",
			},
			"scaler": map[string]interface{}{
				"mean": []float64{0, 0, 0, 0},
				"std":  []float64{1, 1, 1, 1},
			},
		}
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		model, scaler, err := LoadModel(path)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", model.Version())
		assert.Equal(t, 0.6, model.Threshold)
		assert.Len(t, scaler.Mean, 4)
	})

	t.Run("length mismatch rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(
			`{"model":{"weights":[1,2]},"scaler":{"mean":[0],"std":[1]}}`), 0o600))

		_, _, err := LoadModel(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadModel(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}

func TestScaler_ZeroStdGuard(t *testing.T) {
	s := &Scaler{Mean: []float64{5, 0, 0, 0}, Std: []float64{0, 1, 1, 1}}
	scaled := s.Transform([]float64{7, 1, 2, 3})
	assert.Equal(t, []float64{2, 1, 2, 3}, scaled)
}
