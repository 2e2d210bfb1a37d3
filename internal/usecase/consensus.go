package usecase

import (
	"context"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/services/fusion"
	"FinFuse/pkg/logger"
)

// EventConsensus is the stream event type carrying a models.ConsensusResult.
const EventConsensus = "consensus"

// ConsensusUsecase validates horizon signals and fuses them. The aggregator is stateless,
// so no lock is needed.
type ConsensusUsecase struct {
	aggregator *fusion.ConsensusAggregator
	stream     domrepo.EventStream // optional
	metrics    domrepo.Metrics
	log        *logger.Logger
}

func NewConsensusUsecase(aggregator *fusion.ConsensusAggregator, stream domrepo.EventStream, metrics domrepo.Metrics, log *logger.Logger) *ConsensusUsecase {
	return &ConsensusUsecase{aggregator: aggregator, stream: stream, metrics: metrics, log: log}
}

// Calculate returns the weighted consensus of signals.
func (u *ConsensusUsecase) Calculate(_ context.Context, signals []models.HorizonSignal) (models.ConsensusResult, error) {
	if err := validateSignals(signals); err != nil {
		u.metrics.RecordError("consensus_invalid")
		return models.ConsensusResult{}, err
	}

	start := time.Now()
	res := u.aggregator.CalculateConsensus(signals)
	u.metrics.RecordLatency("consensus", since(start))
	u.metrics.RecordConsensus(res.ConsensusSignal, res.ConsistencyScore)

	if len(res.ConflictingSignals) > 0 {
		u.log.Debug("consensus has high-confidence dissent",
			logger.String("signal", string(res.ConsensusSignal)),
			logger.Int("conflicts", len(res.ConflictingSignals)),
		)
	}
	if u.stream != nil {
		if err := u.stream.Broadcast(EventConsensus, res); err != nil {
			u.log.Warn("consensus not streamed", logger.Error(err))
		}
	}
	return res, nil
}

// HorizonWeight returns the vote weight used for h.
func (u *ConsensusUsecase) HorizonWeight(h models.Horizon) float64 {
	return u.aggregator.HorizonWeight(h)
}
