package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/services/fusion"
	"FinFuse/pkg/logger"
)

func TestConsensusCalculate(t *testing.T) {
	m := newFakeMetrics()
	u := NewConsensusUsecase(fusion.NewConsensusAggregator(nil), nil, m, logger.Nop())

	res, err := u.Calculate(context.Background(), []models.HorizonSignal{
		{Horizon: models.Horizon1h, Signal: models.SignalBuy, Confidence: 0.8},
		{Horizon: models.Horizon4h, Signal: models.SignalBuy, Confidence: 0.7},
		{Horizon: models.Horizon1d, Signal: models.SignalSell, Confidence: 0.6},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, res.ConsensusSignal)
	assert.InDelta(t, 1.7/2.7, res.ConsistencyScore, 1e-9)
	assert.Equal(t, []models.Signal{models.SignalBuy}, m.consensus)
}

func TestConsensusRejectsInvalidSignals(t *testing.T) {
	m := newFakeMetrics()
	u := NewConsensusUsecase(fusion.NewConsensusAggregator(nil), nil, m, logger.Nop())

	_, err := u.Calculate(context.Background(), []models.HorizonSignal{{Horizon: models.Horizon1h, Signal: models.SignalBuy, Confidence: 2}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = u.Calculate(context.Background(), []models.HorizonSignal{{Horizon: models.Horizon1h, Signal: "UP", Confidence: 0.5}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, m.consensus)
}

func TestConsensusEmptyIsHold(t *testing.T) {
	u := NewConsensusUsecase(fusion.NewConsensusAggregator(nil), nil, newFakeMetrics(), logger.Nop())
	res, err := u.Calculate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, res.ConsensusSignal)
	assert.Equal(t, 1.0, u.HorizonWeight(models.Horizon1d))
}

type fakeStream struct {
	kinds  []string
	values []any
}

func (s *fakeStream) Broadcast(kind string, v any) error {
	s.kinds = append(s.kinds, kind)
	s.values = append(s.values, v)
	return nil
}

func TestConsensusStreamsResults(t *testing.T) {
	stream := &fakeStream{}
	u := NewConsensusUsecase(fusion.NewConsensusAggregator(nil), stream, newFakeMetrics(), logger.Nop())

	res, err := u.Calculate(context.Background(), []models.HorizonSignal{
		{Horizon: models.Horizon1h, Signal: models.SignalSell, Confidence: 0.9},
	})
	require.NoError(t, err)
	require.Equal(t, []string{EventConsensus}, stream.kinds)
	assert.Equal(t, res, stream.values[0])

	_, err = u.Calculate(context.Background(), []models.HorizonSignal{{Horizon: models.Horizon1h, Signal: "UP", Confidence: 0.5}})
	require.Error(t, err)
	assert.Len(t, stream.kinds, 1)
}
