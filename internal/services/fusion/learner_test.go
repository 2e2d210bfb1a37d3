package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
)

func f64(v float64) *float64 { return &v }

func TestLearnFromTradeWeightUpdate(t *testing.T) {
	store := NewWeightStore()
	l := NewLearner(store)

	outcome, w := l.LearnFromTrade(models.TradeOutcome{
		Symbol:              "THYAO",
		Signal:              models.SignalBuy,
		PredictedReturn:     0.02,
		PredictedConfidence: 0.8,
		EntryPrice:          100,
		EntryTime:           time.Now(),
		ActualReturn:        f64(0.05),
		Slippage:            f64(0.0015),
	})

	require.NotNil(t, outcome.Reward)
	assert.InDelta(t, 0.0285, *outcome.Reward, 1e-12)
	require.NotNil(t, outcome.WasCorrect)
	assert.True(t, *outcome.WasCorrect)

	raw := [5]float64{0.300342, 0.250285, 0.200228, 0.150171, 0.100114}
	for i, v := range w.Vector() {
		assert.InDelta(t, raw[i]/1.00114, v, 1e-9, models.FactorNames[i])
	}
	requireValidWeights(t, w)
	assert.Equal(t, w, store.Weights())
}

func TestLearnFromTradeDerivesReturnFromExitPrice(t *testing.T) {
	l := NewLearner(NewWeightStore())

	outcome, _ := l.LearnFromTrade(models.TradeOutcome{
		Signal:              models.SignalSell,
		PredictedReturn:     0.01,
		PredictedConfidence: 0.6,
		EntryPrice:          50,
		ExitPrice:           f64(48),
	})

	require.NotNil(t, outcome.ActualReturn)
	assert.InDelta(t, 0.04, *outcome.ActualReturn, 1e-12)
	assert.InDelta(t, 0.04-0.01-DefaultSlippage, *outcome.Reward, 1e-12)
	// SELL is judged on the direction-adjusted return being negative.
	assert.False(t, *outcome.WasCorrect)
}

func TestLearnFromTradeSellCorrectness(t *testing.T) {
	l := NewLearner(NewWeightStore())

	losing, _ := l.LearnFromTrade(models.TradeOutcome{
		Signal:              models.SignalSell,
		PredictedConfidence: 0.6,
		EntryPrice:          50,
		ExitPrice:           f64(52),
	})
	require.NotNil(t, losing.ActualReturn)
	assert.InDelta(t, -0.04, *losing.ActualReturn, 1e-12)
	assert.True(t, *losing.WasCorrect)

	flat, _ := l.LearnFromTrade(models.TradeOutcome{
		Signal:     models.SignalSell,
		EntryPrice: 50,
		ExitPrice:  f64(50),
	})
	assert.False(t, *flat.WasCorrect)
	assert.Equal(t, 1, l.Stats().CorrectTrades)
}

func TestLearnFromTradeRewardFormulaIsExact(t *testing.T) {
	l := NewLearner(NewWeightStore(), WithDefaultSlippage(0.003))
	cases := []struct {
		signal    models.Signal
		entry     float64
		exit      float64
		predicted float64
		slippage  *float64
	}{
		{models.SignalBuy, 10, 11, 0.05, nil},
		{models.SignalBuy, 10, 9, 0.02, f64(0.0001)},
		{models.SignalSell, 20, 25, -0.01, f64(0)},
		{models.SignalHold, 30, 30.3, 0, nil},
	}
	for _, tc := range cases {
		out, _ := l.LearnFromTrade(models.TradeOutcome{
			Signal: tc.signal, EntryPrice: tc.entry, ExitPrice: f64(tc.exit),
			PredictedReturn: tc.predicted, PredictedConfidence: 0.5, Slippage: tc.slippage,
		})
		slip := 0.003
		if tc.slippage != nil {
			slip = *tc.slippage
		}
		assert.Equal(t, *out.ActualReturn-tc.predicted-slip, *out.Reward)
		requireValidWeights(t, l.Weights())
	}
}

func TestLearnFromTradeWithoutReturnLeavesWeights(t *testing.T) {
	l := NewLearner(NewWeightStore())
	before := l.Weights()

	out, w := l.LearnFromTrade(models.TradeOutcome{Signal: models.SignalBuy, EntryPrice: 10, PredictedConfidence: 0.9})

	assert.Nil(t, out.Reward)
	assert.Nil(t, out.WasCorrect)
	assert.Equal(t, before, w)
	st := l.Stats()
	assert.Equal(t, 0, st.TotalTrades)
	assert.Equal(t, 1, st.HistorySize)
}

func TestLearnerStats(t *testing.T) {
	l := NewLearner(NewWeightStore())
	l.LearnFromTrade(models.TradeOutcome{Signal: models.SignalBuy, PredictedConfidence: 1, ActualReturn: f64(0.03), Slippage: f64(0)})
	l.LearnFromTrade(models.TradeOutcome{Signal: models.SignalBuy, PredictedConfidence: 1, ActualReturn: f64(-0.01), Slippage: f64(0)})

	st := l.Stats()
	assert.Equal(t, 2, st.TotalTrades)
	assert.InDelta(t, 0.02, st.TotalReward, 1e-12)
	assert.InDelta(t, 0.01, st.AverageReward, 1e-12)
	assert.Equal(t, 1, st.CorrectTrades)
	assert.InDelta(t, 0.5, st.Accuracy, 1e-12)
}

func TestLearnerHistoryIsBounded(t *testing.T) {
	l := NewLearner(NewWeightStore(), WithHistoryCapacity(3))
	for i := 0; i < 5; i++ {
		l.LearnFromTrade(models.TradeOutcome{Symbol: string(rune('A' + i)), Signal: models.SignalHold, ActualReturn: f64(0)})
	}
	h := l.History(0)
	require.Len(t, h, 3)
	assert.Equal(t, "C", h[0].Symbol)
	assert.Equal(t, "E", h[2].Symbol)
	assert.Len(t, l.History(2), 2)
}

func TestLearnerWeightsStayValidUnderLargeRewards(t *testing.T) {
	l := NewLearner(NewWeightStore(), WithLearningRate(5))
	for i := 0; i < 200; i++ {
		r := 0.4
		if i%3 == 0 {
			r = -0.9
		}
		_, w := l.LearnFromTrade(models.TradeOutcome{Signal: models.SignalBuy, PredictedConfidence: 1, ActualReturn: f64(r)})
		requireValidWeights(t, w)
	}
}

func TestLearnerReset(t *testing.T) {
	l := NewLearner(NewWeightStore())
	l.LearnFromTrade(models.TradeOutcome{Signal: models.SignalBuy, PredictedConfidence: 1, ActualReturn: f64(0.2)})
	l.Reset()
	assert.Equal(t, models.DefaultEnsembleWeights(), l.Weights())
	assert.Equal(t, 0, l.Stats().TotalTrades)
	assert.Empty(t, l.History(0))
}
