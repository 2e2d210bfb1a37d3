package usecase

import (
	"context"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/services/monitor"
	"FinFuse/pkg/logger"
)

const defaultNotifyTimeout = 5 * time.Second

// DriftUsecase serializes access to the drift monitor and forwards retrain
// recommendations to the notifier without waiting for delivery.
type DriftUsecase struct {
	mu       sync.Mutex
	monitor  *monitor.DriftMonitor
	notifier domrepo.RecommendationNotifier // nil disables dispatch
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
	timeout  time.Duration
	inflight sync.WaitGroup
}

func NewDriftUsecase(m *monitor.DriftMonitor, notifier domrepo.RecommendationNotifier, metrics domrepo.Metrics, log *logger.Logger) *DriftUsecase {
	return &DriftUsecase{
		monitor:  m,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		timeout:  defaultNotifyTimeout,
	}
}

// Check records a drift snapshot and returns the resulting recommendation.
func (u *DriftUsecase) Check(_ context.Context, m models.DriftMetrics) (models.RetrainRecommendation, error) {
	if err := validateDriftMetrics(m); err != nil {
		u.metrics.RecordError("drift_invalid")
		return models.RetrainRecommendation{}, err
	}
	if m.LastCheck.IsZero() {
		m.LastCheck = u.now().UTC()
	}

	start := time.Now()
	u.mu.Lock()
	rec := u.monitor.CheckDrift(m)
	u.mu.Unlock()
	u.metrics.RecordLatency("drift_check", since(start))
	u.metrics.RecordDrift(m)
	u.metrics.RecordRecommendation(rec)

	if rec.ShouldRetrain {
		u.log.Warn("retrain recommended",
			logger.String("priority", string(rec.Priority)),
			logger.String("reason", rec.Reason),
			logger.Float64("accuracy", m.Accuracy),
			logger.Float64("model_drift", m.ModelDrift),
		)
		u.dispatch(rec, m)
	}
	return rec, nil
}

// dispatch hands rec to the notifier in the background. The request context is not
// reused so that delivery outlives the caller.
func (u *DriftUsecase) dispatch(rec models.RetrainRecommendation, m models.DriftMetrics) {
	if u.notifier == nil {
		return
	}
	u.inflight.Add(1)
	go func() {
		defer u.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()
		if err := u.notifier.Notify(ctx, rec, m); err != nil {
			u.metrics.RecordError("notify")
			u.log.Error("retrain notification failed", logger.String("priority", string(rec.Priority)), logger.Error(err))
		}
	}()
}

// Wait blocks until background notifications finish or ctx expires.
func (u *DriftUsecase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		u.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History returns the retained snapshots, oldest first.
func (u *DriftUsecase) History() []models.DriftMetrics {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.History()
}

// Latest returns the newest snapshot.
func (u *DriftUsecase) Latest() (models.DriftMetrics, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.Latest()
}

// Trend summarizes the retained snapshots.
func (u *DriftUsecase) Trend() models.DriftTrend {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.monitor.Trend()
}
