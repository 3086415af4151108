package scorer

// OverridePolicy can force a verdict after the base prediction. It exists
// so business rules that bypass the model stay isolated and independently
// testable, rather than being baked into the adapter.
type OverridePolicy interface {
	// Apply inspects the raw amount, the user's history count, and the base
	// prediction, and returns the possibly-adjusted verdict. applied reports
	// whether the policy changed the outcome.
	Apply(amount float64, historyCount int, label bool, probability float64) (isFraud bool, score float64, applied bool)
}

// Thresholds for the legacy high-amount/low-history rule.
const (
	overrideAmountThreshold  = 800.0
	overrideHistoryThreshold = 5
	overrideMinScore         = 0.9
)

// HighAmountLowHistoryPolicy preserves the legacy rule: a transaction over
// 800 from a user with fewer than 5 recorded transactions is fraudulent
// regardless of the model, with the score floored at 0.9.
type HighAmountLowHistoryPolicy struct{}

func (HighAmountLowHistoryPolicy) Apply(amount float64, historyCount int, label bool, probability float64) (bool, float64, bool) {
	if amount > overrideAmountThreshold && historyCount < overrideHistoryThreshold {
		score := probability
		if score < overrideMinScore {
			score = overrideMinScore
		}
		return true, score, true
	}
	return label, probability, false
}

// NoOverride disables business overrides; the model verdict stands.
type NoOverride struct{}

func (NoOverride) Apply(_ float64, _ int, label bool, probability float64) (bool, float64, bool) {
	return label, probability, false
}
