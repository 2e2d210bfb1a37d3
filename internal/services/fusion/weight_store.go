package fusion

import "FinFuse/internal/domain/models"

const (
	// MaxFactorWeight caps any single factor's share of the ensemble.
	MaxFactorWeight = 0.5
	factorCount     = 5
)

// WeightStore owns the ensemble weight vector.
// The only mutation path is NormalizeAndApply, so every observable vector sums to 1
// and keeps each component within [0, MaxFactorWeight].
type WeightStore struct {
	weights models.EnsembleWeights
}

// NewWeightStore creates a store holding the default weights.
func NewWeightStore() *WeightStore {
	return &WeightStore{weights: models.DefaultEnsembleWeights()}
}

// Weights returns a copy of the current vector.
func (s *WeightStore) Weights() models.EnsembleWeights {
	return s.weights
}

// NormalizeAndApply clamps the candidate to [0, MaxFactorWeight], rescales it to sum to 1
// and stores the result. A candidate whose clamped sum is zero becomes the uniform vector.
func (s *WeightStore) NormalizeAndApply(candidate models.EnsembleWeights) models.EnsembleWeights {
	s.weights = models.WeightsFromVector(normalize(candidate.Vector()))
	return s.weights
}

// Reset restores the default weights.
func (s *WeightStore) Reset() {
	s.weights = models.DefaultEnsembleWeights()
}

func normalize(v [factorCount]float64) [factorCount]float64 {
	var sum float64
	for i := range v {
		v[i] = clamp(v[i], 0, MaxFactorWeight)
		sum += v[i]
	}
	if sum == 0 {
		return uniform()
	}
	for i := range v {
		v[i] /= sum
	}
	return capExcess(v)
}

// capExcess pins components that rescaling pushed above the cap and spreads the
// surplus over the others in proportion to their weight. Terminates in at most
// factorCount rounds because every round pins at least one more component.
func capExcess(v [factorCount]float64) [factorCount]float64 {
	var pinned [factorCount]bool
	for round := 0; round < factorCount; round++ {
		over := false
		for i := range v {
			if !pinned[i] && v[i] > MaxFactorWeight {
				over = true
				break
			}
		}
		if !over {
			return v
		}

		free := 1.0
		var freeSum float64
		freeCount := 0
		for i := range v {
			if pinned[i] || v[i] > MaxFactorWeight {
				pinned[i] = true
				v[i] = MaxFactorWeight
				free -= MaxFactorWeight
				continue
			}
			freeSum += v[i]
			freeCount++
		}
		for i := range v {
			if pinned[i] {
				continue
			}
			if freeSum == 0 {
				v[i] = free / float64(freeCount)
			} else {
				v[i] = v[i] / freeSum * free
			}
		}
	}
	return v
}

func uniform() [factorCount]float64 {
	var v [factorCount]float64
	for i := range v {
		v[i] = 1.0 / factorCount
	}
	return v
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
