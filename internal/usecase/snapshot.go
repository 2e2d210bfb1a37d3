package usecase

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/pkg/logger"
)

// Snapshotter assembles engine snapshots and publishes them to the snapshot store.
type Snapshotter struct {
	learning *LearningUsecase
	drift    *DriftUsecase
	audit    *TradeAuditUsecase
	store    domrepo.SnapshotStore // nil disables publishing
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewSnapshotter(learning *LearningUsecase, drift *DriftUsecase, audit *TradeAuditUsecase, store domrepo.SnapshotStore, metrics domrepo.Metrics, log *logger.Logger) *Snapshotter {
	return &Snapshotter{
		learning: learning,
		drift:    drift,
		audit:    audit,
		store:    store,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Snapshot reads every component. Each read takes its own lock, so the parts may be
// a few operations apart.
func (s *Snapshotter) Snapshot() models.EngineSnapshot {
	stats := s.learning.Stats()
	snap := models.EngineSnapshot{
		TakenAt:    s.now().UTC(),
		Weights:    stats.Weights,
		Learner:    stats,
		DriftTrend: s.drift.Trend(),
		Ledger:     s.audit.Summary(),
	}
	if m, ok := s.drift.Latest(); ok {
		snap.LatestDrift = &m
	}
	return snap
}

// Publish writes the current snapshot to the store.
func (s *Snapshotter) Publish(ctx context.Context) error {
	if s.store == nil {
		return ErrSnapshotsDisabled
	}
	start := time.Now()
	if err := s.store.Save(ctx, s.Snapshot()); err != nil {
		s.metrics.RecordError("snapshot_save")
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.metrics.RecordLatency("snapshot_save", since(start))
	return nil
}

// Latest returns the most recently published snapshot.
func (s *Snapshotter) Latest(ctx context.Context) (*models.EngineSnapshot, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}
	snap, err := s.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// Run publishes every interval until ctx is done, plus once more on the way out.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	if s.store == nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.Publish(final); err != nil {
				s.log.Error("final snapshot failed", logger.Error(err))
			}
			cancel()
			return
		case <-t.C:
			if err := s.Publish(ctx); err != nil {
				s.log.Error("publish snapshot failed", logger.Error(err))
			}
		}
	}
}
