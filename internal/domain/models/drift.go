package models

import "time"

// DriftMetrics is one model-monitoring snapshot.
type DriftMetrics struct {
	Accuracy        float64   `json:"accuracy"`
	PredictionError float64   `json:"prediction_error"`
	ConfidenceDrift float64   `json:"confidence_drift"`
	ModelDrift      float64   `json:"model_drift"`
	LastCheck       time.Time `json:"last_check"`
}

// RetrainPriority orders retrain urgency.
type RetrainPriority string

const (
	PriorityLow      RetrainPriority = "low"
	PriorityMedium   RetrainPriority = "medium"
	PriorityHigh     RetrainPriority = "high"
	PriorityCritical RetrainPriority = "critical"
)

// Rank returns the ordinal of p (low=0 ... critical=3).
func (p RetrainPriority) Rank() int {
	switch p {
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 0
	}
}

// RetrainRecommendation is the outcome of a drift check.
type RetrainRecommendation struct {
	ShouldRetrain        bool            `json:"should_retrain"`
	Priority             RetrainPriority `json:"priority"`
	Reason               string          `json:"reason"`
	SuggestedActions     []string        `json:"suggested_actions"`
	EstimatedImprovement float64         `json:"estimated_improvement"`
}

// DriftTrend summarizes the retained drift history.
type DriftTrend struct {
	Samples         int     `json:"samples"`
	MeanAccuracy    float64 `json:"mean_accuracy"`
	AccuracyStdDev  float64 `json:"accuracy_stddev"`
	MeanModelDrift  float64 `json:"mean_model_drift"`
	AccuracyDecline float64 `json:"accuracy_decline"`
}
