package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/repository"
)

// EventRetrainRecommendation is the stream event type carrying a RecommendationEvent.
const EventRetrainRecommendation = "retrain_recommendation"

// StreamRecommendationNotifier pushes recommendations to live stream subscribers.
type StreamRecommendationNotifier struct {
	stream repository.EventStream
	now    func() time.Time
}

func NewStreamRecommendationNotifier(stream repository.EventStream) *StreamRecommendationNotifier {
	return &StreamRecommendationNotifier{stream: stream, now: time.Now}
}

func (n *StreamRecommendationNotifier) Notify(_ context.Context, rec models.RetrainRecommendation, m models.DriftMetrics) error {
	ev := RecommendationEvent{Recommendation: rec, Metrics: m, EmittedAt: n.now().UTC()}
	if err := n.stream.Broadcast(EventRetrainRecommendation, ev); err != nil {
		return fmt.Errorf("stream recommendation: %w", err)
	}
	return nil
}

// Close is a no-op: the stream hub is owned by the server.
func (n *StreamRecommendationNotifier) Close() error { return nil }

// FanoutNotifier delivers every recommendation to each notifier in turn. One
// failing channel does not stop delivery to the rest.
type FanoutNotifier struct {
	notifiers []repository.RecommendationNotifier
}

func NewFanoutNotifier(notifiers ...repository.RecommendationNotifier) *FanoutNotifier {
	return &FanoutNotifier{notifiers: notifiers}
}

func (f *FanoutNotifier) Notify(ctx context.Context, rec models.RetrainRecommendation, m models.DriftMetrics) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, rec, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutNotifier) Close() error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ repository.RecommendationNotifier = (*StreamRecommendationNotifier)(nil)
	_ repository.RecommendationNotifier = (*FanoutNotifier)(nil)
)
