package fusion

import "FinFuse/internal/domain/models"

// conflictConfidence is the minimum confidence for a dissenting signal to count as a conflict.
const conflictConfidence = 0.7

// DefaultHorizonWeight applies to horizons missing from the table.
const DefaultHorizonWeight = 0.5

var defaultHorizonWeights = map[models.Horizon]float64{
	models.Horizon5m:  0.5,
	models.Horizon15m: 0.6,
	models.Horizon30m: 0.7,
	models.Horizon1h:  0.8,
	models.Horizon4h:  0.9,
	models.Horizon1d:  1.0,
	models.Horizon7d:  1.0,
	models.Horizon30d: 0.9,
}

// ConsensusAggregator fuses per-horizon signals by weighted vote. It keeps no state between calls.
type ConsensusAggregator struct {
	weights map[models.Horizon]float64
}

// NewConsensusAggregator creates an aggregator. Overrides replace entries of the default horizon table.
func NewConsensusAggregator(overrides map[string]float64) *ConsensusAggregator {
	w := make(map[models.Horizon]float64, len(defaultHorizonWeights))
	for h, v := range defaultHorizonWeights {
		w[h] = v
	}
	for h, v := range overrides {
		if v > 0 {
			w[models.Horizon(h)] = v
		}
	}
	return &ConsensusAggregator{weights: w}
}

// HorizonWeight returns the vote weight of h.
func (a *ConsensusAggregator) HorizonWeight(h models.Horizon) float64 {
	if w, ok := a.weights[h]; ok {
		return w
	}
	return DefaultHorizonWeight
}

// CalculateConsensus returns the weighted-majority direction. Equal votes resolve
// by models.DirectionPriority (BUY, then SELL, then HOLD).
func (a *ConsensusAggregator) CalculateConsensus(signals []models.HorizonSignal) models.ConsensusResult {
	if len(signals) == 0 {
		return models.ConsensusResult{
			ConsensusSignal:    models.SignalHold,
			ConflictingSignals: []models.HorizonSignal{},
		}
	}

	votes := map[models.Signal]float64{models.SignalBuy: 0, models.SignalSell: 0, models.SignalHold: 0}
	var totalWeight, weightedConfidence, confidenceSum float64
	for _, s := range signals {
		w := a.HorizonWeight(s.Horizon)
		votes[s.Signal] += w
		totalWeight += w
		weightedConfidence += s.Confidence * w
		confidenceSum += s.Confidence
	}

	consensus := models.SignalHold
	maxVote := -1.0
	for _, dir := range models.DirectionPriority {
		if votes[dir] > maxVote {
			maxVote = votes[dir]
			consensus = dir
		}
	}

	res := models.ConsensusResult{
		ConsensusSignal:    consensus,
		TotalCount:         len(signals),
		ConflictingSignals: []models.HorizonSignal{},
		Votes:              votes,
	}
	if totalWeight > 0 {
		res.ConsistencyScore = maxVote / totalWeight
		res.WeightedConfidence = weightedConfidence / totalWeight
	}

	avgConfidence := confidenceSum / float64(len(signals))
	for _, s := range signals {
		if s.Signal == consensus {
			res.MajorityCount++
			continue
		}
		if s.Confidence > avgConfidence && s.Confidence > conflictConfidence {
			res.ConflictingSignals = append(res.ConflictingSignals, s)
		}
	}
	return res
}
