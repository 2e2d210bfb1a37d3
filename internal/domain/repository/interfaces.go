package repository

import (
	"context"
	"errors"
	"time"

	"FinFuse/internal/domain/models"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// RecommendationNotifier forwards retrain recommendations to an operational channel.
// Delivery is fire-and-forget: callers do not wait for an acknowledgement.
type RecommendationNotifier interface {
	Notify(ctx context.Context, rec models.RetrainRecommendation, metrics models.DriftMetrics) error
	Close() error
}

// EventStream pushes engine events to live subscribers. Broadcast never blocks on a
// slow subscriber.
type EventStream interface {
	Broadcast(kind string, v any) error
}

// SnapshotStore keeps the latest engine snapshot for dashboards.
type SnapshotStore interface {
	Save(ctx context.Context, s models.EngineSnapshot) error
	Latest(ctx context.Context) (*models.EngineSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// LedgerArchive stores finalized trades beyond the in-memory ledger's capacity.
type LedgerArchive interface {
	Init(ctx context.Context) error // ensure tables
	Archive(ctx context.Context, t models.TradeLog) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeLog, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records engine activity.
type Metrics interface {
	RecordTradeLearned(signal models.Signal, correct bool, reward float64)
	RecordWeights(w models.EnsembleWeights)
	RecordConsensus(signal models.Signal, consistency float64)
	RecordDrift(m models.DriftMetrics)
	RecordRecommendation(rec models.RetrainRecommendation)
	RecordLedgerTransition(status models.TradeStatus)
	RecordCost(orderType models.OrderType, side models.Side, totalCost float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
