package ledger

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
)

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	cur := c.t
	c.t = c.t.Add(c.step)
	return cur
}

func newTestLedger(opts ...Option) *AuditLedger {
	clk := &stepClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), step: 2 * time.Hour}
	return NewAuditLedger(append([]Option{WithClock(clk.now)}, opts...)...)
}

func buy(symbol string, qty, price float64) models.TradeEntry {
	return models.TradeEntry{Symbol: symbol, Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: qty, EntryPrice: price}
}

func mustEntry(t *testing.T, l *AuditLedger, e models.TradeEntry) string {
	t.Helper()
	id, err := l.LogEntry(e)
	require.NoError(t, err)
	return id
}

func TestLogEntryOpensTrade(t *testing.T) {
	l := newTestLedger()
	id := mustEntry(t, l, models.TradeEntry{
		Symbol: "THYAO", Side: models.SideBuy, OrderType: models.OrderLimit,
		Quantity: 10, EntryPrice: 250, Commission: 1.25, Slippage: 0.5, Tax: 0.25,
	})

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	tr, ok := l.Trade(id)
	require.True(t, ok)
	assert.Equal(t, models.TradeOpen, tr.Status)
	assert.InDelta(t, 2.0, tr.Costs.TotalCost, 1e-12)
	assert.Nil(t, tr.ExitPrice)
	assert.Nil(t, tr.ExitTime)
	assert.Zero(t, tr.NetPnL)
}

func TestLogExitComputesPnL(t *testing.T) {
	l := newTestLedger()
	id := mustEntry(t, l, models.TradeEntry{Symbol: "AKBNK", Side: models.SideBuy, Quantity: 100, EntryPrice: 50, Commission: 2})

	require.True(t, l.LogExit(id, models.TradeExit{ExitPrice: 55, Commission: 3, Tax: 1}))

	tr, _ := l.Trade(id)
	assert.Equal(t, models.TradeClosed, tr.Status)
	require.NotNil(t, tr.ExitPrice)
	assert.Equal(t, 55.0, *tr.ExitPrice)
	assert.InDelta(t, 500, tr.GrossPnL, 1e-9)
	assert.InDelta(t, 494, tr.NetPnL, 1e-9)
	assert.InDelta(t, 9.88, tr.ReturnPercent, 1e-9)
	assert.InDelta(t, 2, tr.HoldingPeriodHours, 1e-9)
	assert.InDelta(t, 6, tr.Costs.TotalCost, 1e-9)
}

func TestLogExitShortSide(t *testing.T) {
	l := newTestLedger()
	id := mustEntry(t, l, models.TradeEntry{Symbol: "X", Side: models.SideSell, Quantity: 10, EntryPrice: 100})
	require.True(t, l.LogExit(id, models.TradeExit{ExitPrice: 90}))

	tr, _ := l.Trade(id)
	assert.InDelta(t, 100, tr.GrossPnL, 1e-9)
	assert.InDelta(t, 10, tr.ReturnPercent, 1e-9)
}

func TestZeroNotionalReturn(t *testing.T) {
	l := newTestLedger()
	id := mustEntry(t, l, buy("X", 0, 100))
	require.True(t, l.LogExit(id, models.TradeExit{ExitPrice: 120, Commission: 1}))
	tr, _ := l.Trade(id)
	assert.Zero(t, tr.ReturnPercent)
	assert.InDelta(t, -1, tr.NetPnL, 1e-12)
}

func TestTransitionsAreTerminal(t *testing.T) {
	l := newTestLedger()

	closed := mustEntry(t, l, buy("A", 1, 10))
	require.True(t, l.LogExit(closed, models.TradeExit{ExitPrice: 11}))
	before, _ := l.Trade(closed)

	assert.False(t, l.LogExit(closed, models.TradeExit{ExitPrice: 99}))
	assert.False(t, l.CancelTrade(closed))
	after, _ := l.Trade(closed)
	assert.Equal(t, before, after)

	cancelled := mustEntry(t, l, buy("B", 1, 10))
	require.True(t, l.CancelTrade(cancelled))
	assert.False(t, l.CancelTrade(cancelled))
	assert.False(t, l.LogExit(cancelled, models.TradeExit{ExitPrice: 12}))
	tr, _ := l.Trade(cancelled)
	assert.Equal(t, models.TradeCancelled, tr.Status)
	assert.Nil(t, tr.ExitPrice)

	assert.False(t, l.LogExit("missing", models.TradeExit{ExitPrice: 1}))
	assert.False(t, l.CancelTrade("missing"))
}

func TestSummaryWinRateAndProfitFactor(t *testing.T) {
	l := newTestLedger()
	win := mustEntry(t, l, buy("A", 10, 100))
	loss := mustEntry(t, l, buy("B", 10, 100))
	mustEntry(t, l, buy("C", 10, 100))
	cancelled := mustEntry(t, l, buy("D", 10, 100))

	require.True(t, l.LogExit(win, models.TradeExit{ExitPrice: 105}))
	require.True(t, l.LogExit(loss, models.TradeExit{ExitPrice: 98}))
	require.True(t, l.CancelTrade(cancelled))

	s := l.Summary()
	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.ClosedTrades)
	assert.Equal(t, 1, s.OpenTrades)
	assert.Equal(t, 1, s.CancelledTrades)
	assert.InDelta(t, 0.5, s.WinRate, 1e-12)
	assert.InDelta(t, 2.5, s.ProfitFactor, 1e-12)
	assert.InDelta(t, 30, s.TotalNetPnL, 1e-9)
	assert.InDelta(t, 1.5, s.AverageReturn, 1e-9)
	// returns are +5 and -2: population std 3.5
	assert.InDelta(t, 1.5/3.5, s.SharpeRatio, 1e-9)
	require.NotNil(t, s.BestTrade)
	require.NotNil(t, s.WorstTrade)
	assert.Equal(t, win, s.BestTrade.ID)
	assert.Equal(t, loss, s.WorstTrade.ID)
}

func TestSummaryProfitFactorEdges(t *testing.T) {
	l := newTestLedger()
	assert.Equal(t, models.AuditSummary{}, l.Summary())

	id := mustEntry(t, l, buy("A", 1, 100))
	require.True(t, l.LogExit(id, models.TradeExit{ExitPrice: 110}))
	s := l.Summary()
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
	assert.Zero(t, s.SharpeRatio)

	l2 := newTestLedger()
	id = mustEntry(t, l2, buy("A", 1, 100))
	require.True(t, l2.LogExit(id, models.TradeExit{ExitPrice: 90}))
	assert.Zero(t, l2.Summary().ProfitFactor)
	assert.Zero(t, l2.Summary().WinRate)
}

func TestHistoryMostRecentFirst(t *testing.T) {
	l := newTestLedger()
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, mustEntry(t, l, buy(fmt.Sprintf("S%d", i), 1, 10)))
	}

	h := l.History(3)
	require.Len(t, h, 3)
	assert.Equal(t, ids[4], h[0].ID)
	assert.Equal(t, ids[2], h[2].ID)
	assert.Len(t, l.History(0), 5)
}

func TestCapacityEvictsOldest(t *testing.T) {
	l := newTestLedger(WithCapacity(3))
	first := mustEntry(t, l, buy("A", 1, 10))
	for i := 0; i < 3; i++ {
		mustEntry(t, l, buy("B", 1, 10))
	}

	assert.Equal(t, 3, l.Len())
	_, ok := l.Trade(first)
	assert.False(t, ok)
	assert.False(t, l.LogExit(first, models.TradeExit{ExitPrice: 11}))
	assert.Len(t, l.OpenTrades(), 3)
}

func TestTradeReturnsCopy(t *testing.T) {
	l := newTestLedger()
	id := mustEntry(t, l, buy("A", 1, 10))
	require.True(t, l.LogExit(id, models.TradeExit{ExitPrice: 12}))

	tr, _ := l.Trade(id)
	*tr.ExitPrice = 999
	again, _ := l.Trade(id)
	assert.Equal(t, 12.0, *again.ExitPrice)
}

func TestReset(t *testing.T) {
	l := newTestLedger()
	mustEntry(t, l, buy("A", 1, 10))
	l.Reset()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.History(0))
}

func TestLogEntryRejectsDuplicateID(t *testing.T) {
	l := newTestLedger(WithIDGenerator(func() string { return "same" }))
	id := mustEntry(t, l, buy("A", 1, 10))
	require.True(t, l.LogExit(id, models.TradeExit{ExitPrice: 12}))

	_, err := l.LogEntry(buy("B", 5, 20))
	require.ErrorIs(t, err, ErrDuplicateID)

	assert.Equal(t, 1, l.Len())
	tr, ok := l.Trade("same")
	require.True(t, ok)
	assert.Equal(t, "A", tr.Symbol)
	assert.Equal(t, models.TradeClosed, tr.Status)
	assert.Len(t, l.History(0), 1)
}
