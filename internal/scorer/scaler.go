package scorer

// Scaler applies a fitted standardization transform: (x - mean) / std.
// The parameters come from the model training run and must match the
// feature vector layout.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// DefaultScaler returns the transform fitted on the v1 training
// distribution: amount ~ U(1, 10000), merchant_risk ~ U(0, 1),
// user_risk_score ~ U(0, 1), amount_to_history_ratio ~ U(0.1, 10).
func DefaultScaler() *Scaler {
	return &Scaler{
		Mean: []float64{5000.5, 0.5, 0.5, 5.05},
		Std:  []float64{2886.75, 0.2887, 0.2887, 2.8578},
	}
}

// Transform standardizes a raw vector. The input is not modified.
// A zero std leaves the component centered but unscaled.
func (s *Scaler) Transform(v []float64) []float64 {
	scaled := make([]float64, len(v))
	for i := range v {
		scaled[i] = v[i] - s.Mean[i]
		if s.Std[i] != 0 {
			scaled[i] /= s.Std[i]
		}
	}
	return scaled
}
