// Package scorer wraps the trained classifier: it scales feature vectors,
// obtains a prediction, applies the business override policy, and derives
// risk factors and a confidence value.
package scorer

import (
	"fmt"
	"math"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
)

// Risk factor names, in presentation order.
const (
	FactorHighAmount       = "high_amount"
	FactorHighMerchantRisk = "high_merchant_risk"
	FactorHighUserRisk     = "high_user_risk"
	FactorUnusualPattern   = "unusual_amount_pattern"
)

// Risk factor thresholds over the raw (unscaled) vector.
const (
	highAmountThreshold       = 5000.0
	highMerchantRiskThreshold = 0.8
	highUserRiskThreshold     = 0.7
	unusualPatternThreshold   = 5.0
)

// Confidence heuristic bounds. The confidence is a dispersion penalty on
// the scaled vector, not a statistical confidence interval.
const (
	baseConfidence    = 0.8
	dispersionPenalty = 0.1
	minConfidence     = 0.5
	maxConfidence     = 1.0
)

// Adapter scores assembled feature vectors. Safe for concurrent use:
// all fields are immutable after construction.
type Adapter struct {
	classifier Classifier
	scaler     *Scaler
	override   OverridePolicy
}

// NewAdapter creates a scorer adapter.
func NewAdapter(classifier Classifier, scaler *Scaler, override OverridePolicy) *Adapter {
	if override == nil {
		override = NoOverride{}
	}
	return &Adapter{classifier: classifier, scaler: scaler, override: override}
}

// Version reports the underlying model version.
func (a *Adapter) Version() string {
	return a.classifier.Version()
}

// Score evaluates an assembled feature vector. The returned result has no
// transaction ID or processing time; the gateway fills those in.
func (a *Adapter) Score(f fraud.Features) (fraud.ScoringResult, error) {
	if err := validateVector(f.Vector); err != nil {
		return fraud.ScoringResult{}, err
	}

	scaled := a.scaler.Transform(f.Vector)
	label, probability := a.classifier.Predict(scaled)

	isFraud, score, overridden := a.override.Apply(
		f.Vector[fraud.FeatureAmount], f.HistoryCount, label, probability)
	if overridden {
		metrics.OverridesAppliedTotal.Inc()
	}

	return fraud.ScoringResult{
		IsFraud:      isFraud,
		FraudScore:   score,
		Confidence:   confidence(scaled),
		RiskFactors:  riskFactors(f.Vector),
		ModelVersion: a.classifier.Version(),
	}, nil
}

func validateVector(v []float64) error {
	if len(v) != fraud.FeatureCount {
		return &fraud.InvalidFeatureError{
			Reason: fmt.Sprintf("expected %d features, got %d", fraud.FeatureCount, len(v)),
		}
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &fraud.InvalidFeatureError{
				Reason: fmt.Sprintf("feature %d is not finite", i),
			}
		}
	}
	if v[fraud.FeatureAmountRatio] < 0 {
		return &fraud.InvalidFeatureError{
			Reason: "amount_to_history_ratio must be non-negative",
		}
	}
	return nil
}

// riskFactors derives the heuristic flags from the raw vector.
// Order is stable for presentation.
func riskFactors(v []float64) []string {
	factors := []string{}
	if v[fraud.FeatureAmount] > highAmountThreshold {
		factors = append(factors, FactorHighAmount)
	}
	if v[fraud.FeatureMerchantRisk] > highMerchantRiskThreshold {
		factors = append(factors, FactorHighMerchantRisk)
	}
	if v[fraud.FeatureUserRiskScore] > highUserRiskThreshold {
		factors = append(factors, FactorHighUserRisk)
	}
	if v[fraud.FeatureAmountRatio] > unusualPatternThreshold {
		factors = append(factors, FactorUnusualPattern)
	}
	return factors
}

// confidence applies the dispersion penalty: base 0.8 minus 0.1 per unit
// of standard deviation across the scaled vector, clamped to [0.5, 1.0].
func confidence(scaled []float64) float64 {
	c := baseConfidence - dispersionPenalty*stddev(scaled)
	if c < minConfidence {
		c = minConfidence
	}
	if c > maxConfidence {
		c = maxConfidence
	}
	return c
}

func stddev(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var variance float64
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(v))
	return math.Sqrt(variance)
}
