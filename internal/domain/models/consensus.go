package models

// HorizonSignal is one predictor's view for a single horizon.
type HorizonSignal struct {
	Horizon    Horizon `json:"horizon"`
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
}

// ConsensusResult is the fused decision over a set of horizon signals.
type ConsensusResult struct {
	ConsensusSignal    Signal             `json:"consensus_signal"`
	ConsistencyScore   float64            `json:"consistency_score"`
	MajorityCount      int                `json:"majority_count"`
	TotalCount         int                `json:"total_count"`
	ConflictingSignals []HorizonSignal    `json:"conflicting_signals"`
	WeightedConfidence float64            `json:"weighted_confidence"`
	Votes              map[Signal]float64 `json:"votes,omitempty"`
}
