package usecase

import (
	"context"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/services/fusion"
	"FinFuse/pkg/logger"
)

// LearningUsecase serializes access to the online learner and its weight store.
type LearningUsecase struct {
	mu      sync.Mutex
	learner *fusion.Learner
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewLearningUsecase(learner *fusion.Learner, metrics domrepo.Metrics, log *logger.Logger) *LearningUsecase {
	u := &LearningUsecase{learner: learner, metrics: metrics, log: log}
	metrics.RecordWeights(learner.Weights())
	return u
}

// Learn feeds one completed trade outcome to the learner.
func (u *LearningUsecase) Learn(_ context.Context, outcome models.TradeOutcome) (models.TradeOutcome, models.EnsembleWeights, error) {
	if err := validateOutcome(outcome); err != nil {
		u.metrics.RecordError("learn_invalid")
		return outcome, u.Weights(), err
	}
	if outcome.EntryTime.IsZero() {
		outcome.EntryTime = time.Now().UTC()
	}

	start := time.Now()
	u.mu.Lock()
	done, weights := u.learner.LearnFromTrade(outcome)
	u.mu.Unlock()
	u.metrics.RecordLatency("learn", since(start))

	if done.Reward != nil {
		u.metrics.RecordTradeLearned(done.Signal, done.WasCorrect != nil && *done.WasCorrect, *done.Reward)
		u.metrics.RecordWeights(weights)
		u.log.Debug("learned from trade",
			logger.String("symbol", done.Symbol),
			logger.String("signal", string(done.Signal)),
			logger.Float64("reward", *done.Reward),
			logger.Any("weights", weights),
		)
	}
	return done, weights, nil
}

// Weights returns the current ensemble weights.
func (u *LearningUsecase) Weights() models.EnsembleWeights {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.learner.Weights()
}

// Stats returns the learner's running totals.
func (u *LearningUsecase) Stats() models.LearnerStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.learner.Stats()
}

// History returns up to limit recent outcomes, oldest first.
func (u *LearningUsecase) History(limit int) []models.TradeOutcome {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.learner.History(limit)
}

// Reset restores the default weights.
func (u *LearningUsecase) Reset() {
	u.mu.Lock()
	u.learner.Reset()
	w := u.learner.Weights()
	u.mu.Unlock()
	u.metrics.RecordWeights(w)
	u.log.Info("learner reset")
}
