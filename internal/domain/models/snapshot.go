package models

import "time"

// EngineSnapshot is a point-in-time view of every stateful component, published for dashboards.
type EngineSnapshot struct {
	TakenAt     time.Time       `json:"taken_at"`
	Weights     EnsembleWeights `json:"weights"`
	Learner     LearnerStats    `json:"learner"`
	LatestDrift *DriftMetrics   `json:"latest_drift,omitempty"`
	DriftTrend  DriftTrend      `json:"drift_trend"`
	Ledger      AuditSummary    `json:"ledger"`
}
