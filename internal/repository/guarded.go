package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/repository"
	"FinFuse/pkg/logger"
)

// BreakerSettings configures the circuit breakers wrapping external adapters.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Interval            time.Duration
	Timeout             time.Duration
}

// NewBreaker creates a breaker that opens after the configured run of failures and
// logs every state change.
func NewBreaker(name string, s BreakerSettings, log *logger.Logger) *gobreaker.CircuitBreaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 3
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
}

// run executes fn through cb. Context cancellation is the caller's doing and does not
// count against the backend.
func run(ctx context.Context, cb *gobreaker.CircuitBreaker, fn func() error) error {
	var callerErr error
	_, err := cb.Execute(func() (interface{}, error) {
		err := fn()
		if err != nil && ctx.Err() != nil {
			callerErr = err
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	return callerErr
}

// GuardedArchive fails fast while the archive backend is unhealthy.
type GuardedArchive struct {
	next repository.LedgerArchive
	cb   *gobreaker.CircuitBreaker
}

func NewGuardedArchive(next repository.LedgerArchive, cb *gobreaker.CircuitBreaker) *GuardedArchive {
	return &GuardedArchive{next: next, cb: cb}
}

func (g *GuardedArchive) Init(ctx context.Context) error { return g.next.Init(ctx) }

func (g *GuardedArchive) Archive(ctx context.Context, t models.TradeLog) error {
	return run(ctx, g.cb, func() error { return g.next.Archive(ctx, t) })
}

func (g *GuardedArchive) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeLog, error) {
	var out []models.TradeLog
	err := run(ctx, g.cb, func() error {
		var err error
		out, err = g.next.Query(ctx, symbol, from, to, limit)
		return err
	})
	return out, err
}

func (g *GuardedArchive) Health(ctx context.Context) error { return g.next.Health(ctx) }
func (g *GuardedArchive) Close() error                     { return g.next.Close() }

// GuardedSnapshotStore fails fast while the snapshot backend is unhealthy.
// A missing snapshot is a normal answer and never trips the breaker.
type GuardedSnapshotStore struct {
	next repository.SnapshotStore
	cb   *gobreaker.CircuitBreaker
}

func NewGuardedSnapshotStore(next repository.SnapshotStore, cb *gobreaker.CircuitBreaker) *GuardedSnapshotStore {
	return &GuardedSnapshotStore{next: next, cb: cb}
}

func (g *GuardedSnapshotStore) Save(ctx context.Context, s models.EngineSnapshot) error {
	return run(ctx, g.cb, func() error { return g.next.Save(ctx, s) })
}

func (g *GuardedSnapshotStore) Latest(ctx context.Context) (*models.EngineSnapshot, error) {
	var (
		out      *models.EngineSnapshot
		notFound error
	)
	err := run(ctx, g.cb, func() error {
		var err error
		out, err = g.next.Latest(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			notFound = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}
	return out, nil
}

func (g *GuardedSnapshotStore) Health(ctx context.Context) error { return g.next.Health(ctx) }
func (g *GuardedSnapshotStore) Close() error                     { return g.next.Close() }

// GuardedNotifier drops recommendations while the broker is unreachable instead of
// letting every drift check wait for a timeout.
type GuardedNotifier struct {
	next repository.RecommendationNotifier
	cb   *gobreaker.CircuitBreaker
}

func NewGuardedNotifier(next repository.RecommendationNotifier, cb *gobreaker.CircuitBreaker) *GuardedNotifier {
	return &GuardedNotifier{next: next, cb: cb}
}

func (g *GuardedNotifier) Notify(ctx context.Context, rec models.RetrainRecommendation, m models.DriftMetrics) error {
	return run(ctx, g.cb, func() error { return g.next.Notify(ctx, rec, m) })
}

func (g *GuardedNotifier) Close() error { return g.next.Close() }

var (
	_ repository.LedgerArchive          = (*GuardedArchive)(nil)
	_ repository.SnapshotStore          = (*GuardedSnapshotStore)(nil)
	_ repository.RecommendationNotifier = (*GuardedNotifier)(nil)
)
