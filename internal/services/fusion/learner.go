package fusion

import (
	"FinFuse/internal/domain/models"
	"FinFuse/pkg/ring"
)

const (
	DefaultLearningRate    = 0.05
	DefaultSlippage        = 0.0015 // 15 bps, market order slippage
	DefaultHistoryCapacity = 10000
)

// factorShares scales each factor's update by its nominal share of the ensemble.
var factorShares = [factorCount]float64{0.30, 0.25, 0.20, 0.15, 0.10}

// LearnerOption configures Learner.
type LearnerOption func(*Learner)

// WithLearningRate sets the reward step size.
func WithLearningRate(rate float64) LearnerOption {
	return func(l *Learner) {
		if rate > 0 {
			l.learningRate = rate
		}
	}
}

// WithDefaultSlippage sets the slippage charged when an outcome carries none.
func WithDefaultSlippage(slippage float64) LearnerOption {
	return func(l *Learner) {
		if slippage >= 0 {
			l.defaultSlippage = slippage
		}
	}
}

// WithHistoryCapacity bounds the retained outcome history.
func WithHistoryCapacity(n int) LearnerOption {
	return func(l *Learner) {
		if n > 0 {
			l.historyCap = n
		}
	}
}

// Learner adjusts ensemble weights from realized trade outcomes.
// Inputs must be finite numbers; NaN and Inf are rejected upstream.
type Learner struct {
	store           *WeightStore
	learningRate    float64
	defaultSlippage float64
	historyCap      int
	history         *ring.Buffer[models.TradeOutcome]

	totalReward   float64
	totalTrades   int
	correctTrades int
}

// NewLearner creates a learner that mutates store.
func NewLearner(store *WeightStore, opts ...LearnerOption) *Learner {
	l := &Learner{
		store:           store,
		learningRate:    DefaultLearningRate,
		defaultSlippage: DefaultSlippage,
		historyCap:      DefaultHistoryCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.history = ring.New[models.TradeOutcome](l.historyCap)
	return l
}

// LearnFromTrade derives the outcome's return, reward and correctness, records it and,
// when a reward can be computed, moves the weights toward factors that paid off.
// The completed outcome is returned alongside the resulting weights.
func (l *Learner) LearnFromTrade(outcome models.TradeOutcome) (models.TradeOutcome, models.EnsembleWeights) {
	if outcome.ExitPrice != nil {
		actual := realizedReturn(outcome.Signal, outcome.EntryPrice, *outcome.ExitPrice)
		outcome.ActualReturn = &actual
	}

	slippage := l.defaultSlippage
	if outcome.Slippage != nil {
		slippage = *outcome.Slippage
	}

	outcome.Reward = nil
	outcome.WasCorrect = nil
	if outcome.ActualReturn != nil {
		reward := *outcome.ActualReturn - outcome.PredictedReturn - slippage
		outcome.Reward = &reward
		correct := wasCorrect(outcome.Signal, *outcome.ActualReturn)
		outcome.WasCorrect = &correct
	} else if outcome.Signal == models.SignalHold {
		correct := true
		outcome.WasCorrect = &correct
	}

	l.history.Push(outcome)

	if outcome.Reward == nil {
		return outcome, l.store.Weights()
	}

	weights := l.applyReward(*outcome.Reward, outcome.PredictedConfidence)

	l.totalReward += *outcome.Reward
	l.totalTrades++
	if outcome.WasCorrect != nil && *outcome.WasCorrect {
		l.correctTrades++
	}
	return outcome, weights
}

func (l *Learner) applyReward(reward, confidence float64) models.EnsembleWeights {
	adjustment := l.learningRate * reward
	v := l.store.Weights().Vector()
	for i := range v {
		v[i] += adjustment * confidence * factorShares[i]
	}
	return l.store.NormalizeAndApply(models.WeightsFromVector(v))
}

// Weights returns the current ensemble weights.
func (l *Learner) Weights() models.EnsembleWeights {
	return l.store.Weights()
}

// Stats returns the running totals.
func (l *Learner) Stats() models.LearnerStats {
	st := models.LearnerStats{
		TotalTrades:   l.totalTrades,
		TotalReward:   l.totalReward,
		CorrectTrades: l.correctTrades,
		HistorySize:   l.history.Len(),
		Weights:       l.store.Weights(),
	}
	if l.totalTrades > 0 {
		st.AverageReward = l.totalReward / float64(l.totalTrades)
		st.Accuracy = float64(l.correctTrades) / float64(l.totalTrades)
	}
	return st
}

// History returns up to limit most recent outcomes, oldest first. limit <= 0 returns all.
func (l *Learner) History(limit int) []models.TradeOutcome {
	if limit <= 0 {
		return l.history.Items()
	}
	return l.history.Last(limit)
}

// Reset restores default weights and clears history and totals.
func (l *Learner) Reset() {
	l.store.Reset()
	l.history.Reset()
	l.totalReward = 0
	l.totalTrades = 0
	l.correctTrades = 0
}

func realizedReturn(signal models.Signal, entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	priceReturn := (exit - entry) / entry
	direction := -1.0
	if signal == models.SignalBuy {
		direction = 1.0
	}
	return priceReturn * direction
}

func wasCorrect(signal models.Signal, actual float64) bool {
	switch signal {
	case models.SignalBuy:
		return actual > 0
	case models.SignalSell:
		return actual < 0
	case models.SignalHold:
		return true
	default:
		return false
	}
}
