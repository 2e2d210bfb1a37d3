package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	pkgkafka "FinFuse/pkg/kafka"
)

// TradeOutcomeHandler feeds trade outcomes from Kafka into the learner.
type TradeOutcomeHandler struct {
	topic    string
	learning *LearningUsecase
	metrics  domrepo.Metrics
}

func NewTradeOutcomeHandler(topic string, learning *LearningUsecase, metrics domrepo.Metrics) *TradeOutcomeHandler {
	return &TradeOutcomeHandler{topic: topic, learning: learning, metrics: metrics}
}

func (h *TradeOutcomeHandler) Topic() string { return h.topic }

// Handle expects a JSON-encoded models.TradeOutcome.
func (h *TradeOutcomeHandler) Handle(ctx context.Context, b []byte) error {
	var o models.TradeOutcome
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode trade outcome: %w", err))
	}
	if _, _, err := h.learning.Learn(ctx, o); err != nil {
		return permanentIfInvalid(fmt.Errorf("learn from %s: %w", o.Symbol, err))
	}
	return nil
}

// DriftMetricsHandler feeds drift snapshots from Kafka into the drift monitor.
type DriftMetricsHandler struct {
	topic   string
	drift   *DriftUsecase
	metrics domrepo.Metrics
}

func NewDriftMetricsHandler(topic string, drift *DriftUsecase, metrics domrepo.Metrics) *DriftMetricsHandler {
	return &DriftMetricsHandler{topic: topic, drift: drift, metrics: metrics}
}

func (h *DriftMetricsHandler) Topic() string { return h.topic }

// Handle expects a JSON-encoded models.DriftMetrics.
func (h *DriftMetricsHandler) Handle(ctx context.Context, b []byte) error {
	var m models.DriftMetrics
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode drift metrics: %w", err))
	}
	if _, err := h.drift.Check(ctx, m); err != nil {
		return permanentIfInvalid(fmt.Errorf("check drift: %w", err))
	}
	return nil
}

// permanentIfInvalid stops the consumer from retrying input it will never accept.
func permanentIfInvalid(err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return pkgkafka.Permanent(err)
	}
	return err
}

var (
	_ pkgkafka.MessageHandler = (*TradeOutcomeHandler)(nil)
	_ pkgkafka.MessageHandler = (*DriftMetricsHandler)(nil)
)
