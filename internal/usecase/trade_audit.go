package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	"FinFuse/internal/services/costs"
	"FinFuse/internal/services/ledger"
	"FinFuse/pkg/logger"
)

// PositionOrder opens a position at the prevailing market price.
type PositionOrder struct {
	Symbol      string
	Side        models.Side
	OrderType   models.OrderType
	Quantity    float64
	MarketPrice float64
}

// TradeAuditUsecase owns the audit ledger and prices orders through the cost model.
// Finalized trades are copied to the archive when one is configured.
type TradeAuditUsecase struct {
	mu      sync.Mutex
	ledger  *ledger.AuditLedger
	costs   *costs.Model
	archive domrepo.LedgerArchive // nil disables archiving
	metrics domrepo.Metrics
	log     *logger.Logger
	timeout time.Duration
}

func NewTradeAuditUsecase(l *ledger.AuditLedger, model *costs.Model, archive domrepo.LedgerArchive, metrics domrepo.Metrics, log *logger.Logger) *TradeAuditUsecase {
	return &TradeAuditUsecase{
		ledger:  l,
		costs:   model,
		archive: archive,
		metrics: metrics,
		log:     log,
		timeout: 5 * time.Second,
	}
}

// Cost prices a single order without touching the ledger.
func (u *TradeAuditUsecase) Cost(symbol string, orderType models.OrderType, side models.Side, quantity, price float64) (models.TransactionCost, error) {
	if err := validateOrder(symbol, side, orderType, quantity, price); err != nil {
		return models.TransactionCost{}, err
	}
	return u.costs.CalculateCost(symbol, orderType, side, quantity, price), nil
}

// RoundTrip prices opening at entryPrice and closing at exitPrice.
func (u *TradeAuditUsecase) RoundTrip(symbol string, orderType models.OrderType, side models.Side, quantity, entryPrice, exitPrice float64) (models.RoundTripCost, error) {
	if err := validateOrder(symbol, side, orderType, quantity, entryPrice); err != nil {
		return models.RoundTripCost{}, err
	}
	if !finite(exitPrice) || exitPrice <= 0 {
		return models.RoundTripCost{}, invalid("exit price must be a positive finite number")
	}
	return u.costs.RoundTrip(symbol, orderType, side, quantity, entryPrice, exitPrice), nil
}

// SlippageFraction exposes the cost model's slippage for orderType.
func (u *TradeAuditUsecase) SlippageFraction(orderType models.OrderType) float64 {
	return u.costs.SlippageFraction(orderType)
}

// LogEntry records a trade opened elsewhere with caller-supplied costs.
func (u *TradeAuditUsecase) LogEntry(_ context.Context, e models.TradeEntry) (models.TradeLog, error) {
	if err := validateOrder(e.Symbol, e.Side, e.OrderType, e.Quantity, e.EntryPrice); err != nil {
		return models.TradeLog{}, err
	}
	if !finite(e.Commission, e.Slippage, e.Tax) || e.Commission < 0 || e.Slippage < 0 || e.Tax < 0 {
		return models.TradeLog{}, invalid("costs must be non-negative finite numbers")
	}

	u.mu.Lock()
	id, err := u.ledger.LogEntry(e)
	if err != nil {
		u.mu.Unlock()
		u.metrics.RecordError("ledger_entry")
		return models.TradeLog{}, fmt.Errorf("open trade: %w: %w", ErrTradeIDConflict, err)
	}
	t, _ := u.ledger.Trade(id)
	u.mu.Unlock()

	u.metrics.RecordLedgerTransition(models.TradeOpen)
	u.log.Info("trade opened",
		logger.String("id", id),
		logger.String("symbol", e.Symbol),
		logger.String("side", string(e.Side)),
		logger.Float64("quantity", e.Quantity),
		logger.Float64("entry_price", e.EntryPrice),
	)
	return t, nil
}

// LogExit closes an OPEN trade with caller-supplied exit costs.
func (u *TradeAuditUsecase) LogExit(ctx context.Context, id string, x models.TradeExit) (models.TradeLog, error) {
	if !finite(x.ExitPrice, x.Commission, x.Slippage, x.Tax) || x.ExitPrice < 0 || x.Commission < 0 || x.Slippage < 0 || x.Tax < 0 {
		return models.TradeLog{}, invalid("exit price and costs must be non-negative finite numbers")
	}

	u.mu.Lock()
	if err := u.requireOpen(id); err != nil {
		u.mu.Unlock()
		return models.TradeLog{}, err
	}
	u.ledger.LogExit(id, x)
	t, _ := u.ledger.Trade(id)
	u.mu.Unlock()

	u.finalized(ctx, t)
	return t, nil
}

// Cancel moves an OPEN trade to CANCELLED.
func (u *TradeAuditUsecase) Cancel(ctx context.Context, id string) (models.TradeLog, error) {
	u.mu.Lock()
	if err := u.requireOpen(id); err != nil {
		u.mu.Unlock()
		return models.TradeLog{}, err
	}
	u.ledger.CancelTrade(id)
	t, _ := u.ledger.Trade(id)
	u.mu.Unlock()

	u.finalized(ctx, t)
	return t, nil
}

// OpenPosition prices an order through the cost model and logs the resulting entry.
// The ledger books the market price; slippage and charges are carried as costs.
func (u *TradeAuditUsecase) OpenPosition(ctx context.Context, o PositionOrder) (models.TradeLog, models.TransactionCost, error) {
	cost, err := u.Cost(o.Symbol, o.OrderType, o.Side, o.Quantity, o.MarketPrice)
	if err != nil {
		return models.TradeLog{}, cost, err
	}
	u.metrics.RecordCost(o.OrderType, o.Side, cost.TotalCostTRY+cost.SlippageCost)

	t, err := u.LogEntry(ctx, models.TradeEntry{
		Symbol:     o.Symbol,
		Side:       o.Side,
		OrderType:  o.OrderType,
		Quantity:   o.Quantity,
		EntryPrice: o.MarketPrice,
		Commission: cost.CommissionCost,
		Slippage:   cost.SlippageCost,
		Tax:        cost.TaxCost + cost.StampTaxCost,
	})
	return t, cost, err
}

// ClosePosition prices the closing order (opposite side) and logs the exit.
func (u *TradeAuditUsecase) ClosePosition(ctx context.Context, id string, marketPrice float64) (models.TradeLog, models.TransactionCost, error) {
	u.mu.Lock()
	t, ok := u.ledger.Trade(id)
	u.mu.Unlock()
	if !ok {
		return models.TradeLog{}, models.TransactionCost{}, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}

	cost, err := u.Cost(t.Symbol, t.OrderType, t.Side.Opposite(), t.Quantity, marketPrice)
	if err != nil {
		return models.TradeLog{}, cost, err
	}

	closed, err := u.LogExit(ctx, id, models.TradeExit{
		ExitPrice:  marketPrice,
		Commission: cost.CommissionCost,
		Slippage:   cost.SlippageCost,
		Tax:        cost.TaxCost + cost.StampTaxCost,
	})
	if err == nil {
		u.metrics.RecordCost(cost.OrderType, cost.Side, cost.TotalCostTRY+cost.SlippageCost)
	}
	return closed, cost, err
}

// Trade returns the trade with the given id.
func (u *TradeAuditUsecase) Trade(id string) (models.TradeLog, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.ledger.Trade(id)
	if !ok {
		return models.TradeLog{}, fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	return t, nil
}

// OpenTrades returns every OPEN trade in entry order.
func (u *TradeAuditUsecase) OpenTrades() []models.TradeLog {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.OpenTrades()
}

// History returns up to limit trades, most recent first.
func (u *TradeAuditUsecase) History(limit int) []models.TradeLog {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.History(limit)
}

// Summary aggregates closed trades.
func (u *TradeAuditUsecase) Summary() models.AuditSummary {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ledger.Summary()
}

// ArchivedTrades queries finalized trades from the archive.
func (u *TradeAuditUsecase) ArchivedTrades(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeLog, error) {
	if u.archive == nil {
		return nil, ErrArchiveDisabled
	}
	trades, err := u.archive.Query(ctx, symbol, from, to, limit)
	if err != nil {
		u.metrics.RecordError("archive_query")
		return nil, fmt.Errorf("query archive: %w", err)
	}
	return trades, nil
}

// requireOpen must be called with mu held.
func (u *TradeAuditUsecase) requireOpen(id string) error {
	t, ok := u.ledger.Trade(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTradeNotFound, id)
	}
	if t.Status != models.TradeOpen {
		return fmt.Errorf("%w: %s is %s", ErrTradeNotOpen, id, t.Status)
	}
	return nil
}

// finalized records a terminal transition and archives the trade. Archive failures are
// logged; the in-memory ledger stays authoritative.
func (u *TradeAuditUsecase) finalized(ctx context.Context, t models.TradeLog) {
	u.metrics.RecordLedgerTransition(t.Status)
	u.log.Info("trade finalized",
		logger.String("id", t.ID),
		logger.String("symbol", t.Symbol),
		logger.String("status", string(t.Status)),
		logger.Float64("net_pnl", t.NetPnL),
	)
	if u.archive == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.timeout)
	defer cancel()
	start := time.Now()
	if err := u.archive.Archive(ctx, t); err != nil {
		u.metrics.RecordError("archive")
		u.log.Error("archive trade failed", logger.String("id", t.ID), logger.Error(err))
		return
	}
	u.metrics.RecordLatency("archive", since(start))
}
