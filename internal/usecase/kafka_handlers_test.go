package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
	pkgkafka "FinFuse/pkg/kafka"
)

func TestTradeOutcomeHandler(t *testing.T) {
	m := newFakeMetrics()
	learning := newLearning(m)
	h := NewTradeOutcomeHandler("fusion.outcomes", learning, m)
	assert.Equal(t, "fusion.outcomes", h.Topic())

	b, err := json.Marshal(winningOutcome())
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	assert.Equal(t, 1, learning.Stats().TotalTrades)

	err = h.Handle(context.Background(), []byte("{"))
	require.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, m.errorCount("consumer_unmarshal"))

	err = h.Handle(context.Background(), []byte(`{"symbol":"X","signal":"UP","entry_price":1}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, pkgkafka.IsPermanent(err))
	assert.Equal(t, 1, m.errorCount("learn_invalid"))
	assert.Equal(t, 1, learning.Stats().TotalTrades)
}

func TestDriftMetricsHandler(t *testing.T) {
	m := newFakeMetrics()
	drift := newDrift(nil, m)
	h := NewDriftMetricsHandler("fusion.metrics", drift, m)

	b, err := json.Marshal(models.DriftMetrics{Accuracy: 0.6, ModelDrift: 0.2})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))

	latest, ok := drift.Latest()
	require.True(t, ok)
	assert.Equal(t, 0.2, latest.ModelDrift)
	assert.Equal(t, models.PriorityCritical, m.recs[0].Priority)

	err = h.Handle(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.True(t, pkgkafka.IsPermanent(err))
}

func TestHandlerStoreFailuresStayRetryable(t *testing.T) {
	assert.False(t, pkgkafka.IsPermanent(permanentIfInvalid(errors.New("redis down"))))
	assert.True(t, pkgkafka.IsPermanent(permanentIfInvalid(fmt.Errorf("learn: %w", ErrInvalidInput))))
}
