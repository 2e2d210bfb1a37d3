package repository

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/repository"
)

// Publisher is the subset of pkg/kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

// RecommendationEvent is the message written for every retrain recommendation.
type RecommendationEvent struct {
	Recommendation models.RetrainRecommendation `json:"recommendation"`
	Metrics        models.DriftMetrics          `json:"metrics"`
	EmittedAt      time.Time                    `json:"emitted_at"`
}

// KafkaRecommendationNotifier implements RecommendationNotifier for Kafka.
// Messages are keyed by priority so each priority stays ordered within its partition.
type KafkaRecommendationNotifier struct {
	producer Publisher
	topic    string
	now      func() time.Time
}

// NewKafkaRecommendationNotifier creates a notifier publishing to topic.
func NewKafkaRecommendationNotifier(producer Publisher, topic string) *KafkaRecommendationNotifier {
	return &KafkaRecommendationNotifier{producer: producer, topic: topic, now: time.Now}
}

func (n *KafkaRecommendationNotifier) Notify(ctx context.Context, rec models.RetrainRecommendation, m models.DriftMetrics) error {
	ev := RecommendationEvent{Recommendation: rec, Metrics: m, EmittedAt: n.now().UTC()}
	if err := n.producer.Publish(ctx, n.topic, []byte(rec.Priority), ev); err != nil {
		return fmt.Errorf("publish recommendation: %w", err)
	}
	return nil
}

func (n *KafkaRecommendationNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}

var _ repository.RecommendationNotifier = (*KafkaRecommendationNotifier)(nil)
