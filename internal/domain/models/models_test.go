package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditSummaryJSONInfiniteProfitFactor(t *testing.T) {
	s := AuditSummary{ClosedTrades: 1, WinningTrades: 1, WinRate: 1, ProfitFactor: math.Inf(1)}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"profit_factor":null`)
	assert.Contains(t, string(b), `"profit_factor_infinite":true`)

	var back AuditSummary
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, math.IsInf(back.ProfitFactor, 1))
	assert.Equal(t, 1, back.WinningTrades)
}

func TestAuditSummaryJSONFiniteProfitFactor(t *testing.T) {
	b, err := json.Marshal(AuditSummary{ProfitFactor: 2.5})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"profit_factor":2.5`)

	var back AuditSummary
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 2.5, back.ProfitFactor)
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestSignalIsValid(t *testing.T) {
	assert.True(t, SignalHold.IsValid())
	assert.False(t, Signal("SHORT").IsValid())
}

func TestWeightsVectorRoundTrip(t *testing.T) {
	w := DefaultEnsembleWeights()
	assert.Equal(t, w, WeightsFromVector(w.Vector()))
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
}
