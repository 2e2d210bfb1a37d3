package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
)

type fakeMetrics struct {
	mu          sync.Mutex
	errors      map[string]int
	learned     int
	weights     []models.EnsembleWeights
	consensus   []models.Signal
	recs        []models.RetrainRecommendation
	transitions []models.TradeStatus
	costTotal   float64
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (f *fakeMetrics) RecordTradeLearned(models.Signal, bool, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learned++
}

func (f *fakeMetrics) RecordWeights(w models.EnsembleWeights) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weights = append(f.weights, w)
}

func (f *fakeMetrics) RecordConsensus(s models.Signal, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consensus = append(f.consensus, s)
}

func (f *fakeMetrics) RecordDrift(models.DriftMetrics) {}

func (f *fakeMetrics) RecordRecommendation(r models.RetrainRecommendation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, r)
}

func (f *fakeMetrics) RecordLedgerTransition(s models.TradeStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, s)
}

func (f *fakeMetrics) RecordCost(_ models.OrderType, _ models.Side, total float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.costTotal += total
}

func (f *fakeMetrics) RecordError(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[kind]++
}

func (f *fakeMetrics) RecordLatency(string, float64) {}

func (f *fakeMetrics) errorCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[kind]
}

type fakeNotifier struct {
	sent chan models.RetrainRecommendation
	err  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan models.RetrainRecommendation, 8)}
}

func (n *fakeNotifier) Notify(_ context.Context, rec models.RetrainRecommendation, _ models.DriftMetrics) error {
	n.sent <- rec
	return n.err
}

func (n *fakeNotifier) Close() error { return nil }

type fakeArchive struct {
	mu     sync.Mutex
	trades []models.TradeLog
	err    error
}

func (a *fakeArchive) Init(context.Context) error { return nil }

func (a *fakeArchive) Archive(_ context.Context, t models.TradeLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.trades = append(a.trades, t)
	return nil
}

func (a *fakeArchive) Query(_ context.Context, symbol string, _, _ time.Time, _ int) ([]models.TradeLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.TradeLog
	for _, t := range a.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

func (a *fakeArchive) Health(context.Context) error { return nil }
func (a *fakeArchive) Close() error                 { return nil }

type fakeSnapshotStore struct {
	mu    sync.Mutex
	saved []models.EngineSnapshot
}

func (s *fakeSnapshotStore) Save(_ context.Context, snap models.EngineSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snap)
	return nil
}

func (s *fakeSnapshotStore) Latest(context.Context) (*models.EngineSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil, errors.New("no snapshot")
	}
	snap := s.saved[len(s.saved)-1]
	return &snap, nil
}

func (s *fakeSnapshotStore) Health(context.Context) error { return nil }
func (s *fakeSnapshotStore) Close() error                 { return nil }

func (s *fakeSnapshotStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func f64(v float64) *float64 { return &v }
