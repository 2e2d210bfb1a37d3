package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/services/costs"
	"FinFuse/internal/services/ledger"
	"FinFuse/pkg/logger"
)

func newAudit(archive *fakeArchive, m *fakeMetrics) *TradeAuditUsecase {
	u := NewTradeAuditUsecase(ledger.NewAuditLedger(), costs.NewModel(costs.DefaultTable()), nil, m, logger.Nop())
	if archive != nil {
		u.archive = archive
	}
	return u
}

func TestOpenAndClosePosition(t *testing.T) {
	archive := &fakeArchive{}
	m := newFakeMetrics()
	u := newAudit(archive, m)
	ctx := context.Background()

	opened, entryCost, err := u.OpenPosition(ctx, PositionOrder{
		Symbol: "THYAO", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 100, MarketPrice: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TradeOpen, opened.Status)
	assert.Equal(t, 100.0, opened.EntryPrice)
	assert.InDelta(t, 5, opened.Costs.EntryCommission, 1e-9)
	assert.InDelta(t, 15, opened.Costs.EntrySlippage, 1e-9)
	assert.InDelta(t, 2, opened.Costs.EntryTax, 1e-9)
	assert.InDelta(t, 100.15, entryCost.ExecutionPrice, 1e-9)

	closed, exitCost, err := u.ClosePosition(ctx, opened.ID, 110)
	require.NoError(t, err)
	assert.Equal(t, models.SideSell, exitCost.Side)
	assert.Equal(t, models.TradeClosed, closed.Status)
	assert.InDelta(t, 5.5, closed.Costs.ExitCommission, 1e-9)
	assert.InDelta(t, 16.5, closed.Costs.ExitSlippage, 1e-9)
	assert.InDelta(t, 7.7, closed.Costs.ExitTax, 1e-9)
	assert.InDelta(t, 1000, closed.GrossPnL, 1e-9)
	assert.InDelta(t, 948.3, closed.NetPnL, 1e-9)

	require.Len(t, archive.trades, 1)
	assert.Equal(t, opened.ID, archive.trades[0].ID)
	assert.Equal(t, []models.TradeStatus{models.TradeOpen, models.TradeClosed}, m.transitions)
	assert.Empty(t, u.OpenTrades())
}

func TestClosePositionErrors(t *testing.T) {
	u := newAudit(nil, newFakeMetrics())
	ctx := context.Background()

	_, _, err := u.ClosePosition(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	opened, err := u.LogEntry(ctx, models.TradeEntry{
		Symbol: "AKBNK", Side: models.SideSell, OrderType: models.OrderLimit, Quantity: 10, EntryPrice: 50,
	})
	require.NoError(t, err)
	_, err = u.Cancel(ctx, opened.ID)
	require.NoError(t, err)

	_, _, err = u.ClosePosition(ctx, opened.ID, 45)
	assert.ErrorIs(t, err, ErrTradeNotOpen)
	_, err = u.Cancel(ctx, opened.ID)
	assert.ErrorIs(t, err, ErrTradeNotOpen)

	got, err := u.Trade(opened.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeCancelled, got.Status)
}

func TestLogEntryValidation(t *testing.T) {
	u := newAudit(nil, newFakeMetrics())
	ctx := context.Background()

	cases := []models.TradeEntry{
		{Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 1, EntryPrice: 1},
		{Symbol: "X", Side: "LONG", OrderType: models.OrderMarket, Quantity: 1, EntryPrice: 1},
		{Symbol: "X", Side: models.SideBuy, OrderType: "FOK", Quantity: 1, EntryPrice: 1},
		{Symbol: "X", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 0, EntryPrice: 1},
		{Symbol: "X", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 1, EntryPrice: 1, Commission: -1},
	}
	for _, e := range cases {
		_, err := u.LogEntry(ctx, e)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, u.History(0))
}

func TestArchiveFailureKeepsLedger(t *testing.T) {
	archive := &fakeArchive{err: errors.New("clickhouse unavailable")}
	m := newFakeMetrics()
	u := newAudit(archive, m)
	ctx := context.Background()

	opened, err := u.LogEntry(ctx, models.TradeEntry{
		Symbol: "SISE", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 1, EntryPrice: 10,
	})
	require.NoError(t, err)
	closed, err := u.LogExit(ctx, opened.ID, models.TradeExit{ExitPrice: 12})
	require.NoError(t, err)
	assert.Equal(t, models.TradeClosed, closed.Status)
	assert.Equal(t, 1, m.errorCount("archive"))
	assert.Equal(t, 1, u.Summary().ClosedTrades)
}

func TestArchivedTrades(t *testing.T) {
	u := newAudit(nil, newFakeMetrics())
	_, err := u.ArchivedTrades(context.Background(), "X", time.Time{}, time.Now(), 10)
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	archive := &fakeArchive{}
	u = newAudit(archive, newFakeMetrics())
	opened, err := u.LogEntry(context.Background(), models.TradeEntry{
		Symbol: "EREGL", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 1, EntryPrice: 10,
	})
	require.NoError(t, err)
	_, err = u.Cancel(context.Background(), opened.ID)
	require.NoError(t, err)

	got, err := u.ArchivedTrades(context.Background(), "EREGL", time.Time{}, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TradeCancelled, got[0].Status)
}

func TestRoundTripRejectsBadExit(t *testing.T) {
	u := newAudit(nil, newFakeMetrics())
	_, err := u.RoundTrip("X", models.OrderMarket, models.SideBuy, 1, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	rt, err := u.RoundTrip("X", models.OrderMarket, models.SideBuy, 100, 100, 100)
	require.NoError(t, err)
	assert.Greater(t, rt.BreakEvenBps, 0.0)
	assert.InDelta(t, 0.0015, u.SlippageFraction(models.OrderMarket), 1e-12)
}

func TestLogEntryDuplicateIDLeavesLedgerIntact(t *testing.T) {
	m := newFakeMetrics()
	l := ledger.NewAuditLedger(ledger.WithIDGenerator(func() string { return "fixed" }))
	u := NewTradeAuditUsecase(l, costs.NewModel(costs.DefaultTable()), nil, m, logger.Nop())
	ctx := context.Background()

	first, err := u.LogEntry(ctx, models.TradeEntry{Symbol: "A", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 1, EntryPrice: 10})
	require.NoError(t, err)

	_, err = u.LogEntry(ctx, models.TradeEntry{Symbol: "B", Side: models.SideBuy, OrderType: models.OrderMarket, Quantity: 2, EntryPrice: 20})
	require.ErrorIs(t, err, ledger.ErrDuplicateID)
	assert.ErrorIs(t, err, ErrTradeIDConflict)
	assert.Equal(t, 1, m.errorCount("ledger_entry"))

	open := u.OpenTrades()
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, "A", open[0].Symbol)
}
