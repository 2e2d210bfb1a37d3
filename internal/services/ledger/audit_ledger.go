package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"

	"FinFuse/internal/domain/models"
	"FinFuse/pkg/ring"
)

// ErrDuplicateID is returned when the id generator yields an id that is still retained.
var ErrDuplicateID = errors.New("trade id already in ledger")

// DefaultCapacity is the number of trades retained before the oldest is evicted.
const DefaultCapacity = 10000

// Option configures an AuditLedger.
type Option func(*AuditLedger)

// WithCapacity sets how many trades the ledger retains.
func WithCapacity(n int) Option {
	return func(l *AuditLedger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithClock overrides the time source used for entry and exit timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *AuditLedger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator overrides trade identifier generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *AuditLedger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// AuditLedger records trade lifecycles. Transitions are OPEN -> CLOSED and OPEN -> CANCELLED only.
// It is not safe for concurrent use.
type AuditLedger struct {
	trades   map[string]*models.TradeLog
	order    *ring.Buffer[string]
	capacity int
	now      func() time.Time
	newID    func() string
}

// NewAuditLedger creates an empty ledger.
func NewAuditLedger(opts ...Option) *AuditLedger {
	l := &AuditLedger{
		capacity: DefaultCapacity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.trades = make(map[string]*models.TradeLog)
	l.order = ring.New[string](l.capacity)
	return l
}

// LogEntry opens a trade and returns its id. The ledger is unchanged when the
// generated id collides with a retained trade.
func (l *AuditLedger) LogEntry(e models.TradeEntry) (string, error) {
	id := l.newID()
	if _, ok := l.trades[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	costs := models.TradeCosts{
		EntryCommission: e.Commission,
		EntrySlippage:   e.Slippage,
		EntryTax:        e.Tax,
	}
	costs.TotalCost = costs.EntryTotal()

	l.trades[id] = &models.TradeLog{
		ID:         id,
		Symbol:     e.Symbol,
		Side:       e.Side,
		OrderType:  e.OrderType,
		Quantity:   e.Quantity,
		EntryPrice: e.EntryPrice,
		EntryTime:  l.now(),
		Costs:      costs,
		Status:     models.TradeOpen,
	}
	if evicted, ok := l.order.Push(id); ok {
		delete(l.trades, evicted)
	}
	return id, nil
}

// LogExit closes an OPEN trade and computes its PnL. It returns false without
// touching the ledger when the id is unknown or the trade is not OPEN.
func (l *AuditLedger) LogExit(id string, x models.TradeExit) bool {
	t, ok := l.trades[id]
	if !ok || t.Status != models.TradeOpen {
		return false
	}

	exitTime := l.now()
	exitPrice := x.ExitPrice
	t.ExitPrice = &exitPrice
	t.ExitTime = &exitTime
	t.Status = models.TradeClosed

	t.Costs.ExitCommission = x.Commission
	t.Costs.ExitSlippage = x.Slippage
	t.Costs.ExitTax = x.Tax
	t.Costs.TotalCost = t.Costs.EntryTotal() + t.Costs.ExitTotal()

	grossValue := (x.ExitPrice - t.EntryPrice) * t.Quantity
	if t.Side == models.SideBuy {
		t.GrossPnL = grossValue
	} else {
		t.GrossPnL = -grossValue
	}
	t.NetPnL = t.GrossPnL - t.Costs.EntryTotal() - t.Costs.ExitTotal()

	notional := t.EntryPrice * t.Quantity
	if notional != 0 {
		t.ReturnPercent = t.NetPnL / notional * 100
	}
	t.HoldingPeriodHours = exitTime.Sub(t.EntryTime).Hours()
	return true
}

// CancelTrade moves an OPEN trade to CANCELLED.
func (l *AuditLedger) CancelTrade(id string) bool {
	t, ok := l.trades[id]
	if !ok || t.Status != models.TradeOpen {
		return false
	}
	t.Status = models.TradeCancelled
	return true
}

// Trade returns a copy of the trade with the given id.
func (l *AuditLedger) Trade(id string) (models.TradeLog, bool) {
	t, ok := l.trades[id]
	if !ok {
		return models.TradeLog{}, false
	}
	return clone(t), true
}

// OpenTrades returns the OPEN trades in entry order.
func (l *AuditLedger) OpenTrades() []models.TradeLog {
	out := make([]models.TradeLog, 0)
	for _, id := range l.order.Items() {
		if t := l.trades[id]; t.Status == models.TradeOpen {
			out = append(out, clone(t))
		}
	}
	return out
}

// History returns up to limit trades, most recent first. limit <= 0 returns all.
func (l *AuditLedger) History(limit int) []models.TradeLog {
	n := l.order.Len()
	if limit <= 0 || limit > n {
		limit = n
	}
	ids := l.order.Last(limit)
	out := make([]models.TradeLog, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, clone(l.trades[ids[i]]))
	}
	return out
}

// Len returns the number of retained trades.
func (l *AuditLedger) Len() int { return l.order.Len() }

// Summary aggregates CLOSED trades. Status counts cover every retained trade.
func (l *AuditLedger) Summary() models.AuditSummary {
	var s models.AuditSummary
	var returns, holding stats.Float64Data
	var wins, losses float64
	var best, worst *models.TradeLog

	for _, id := range l.order.Items() {
		t := l.trades[id]
		s.TotalTrades++
		switch t.Status {
		case models.TradeOpen:
			s.OpenTrades++
			continue
		case models.TradeCancelled:
			s.CancelledTrades++
			continue
		}

		s.ClosedTrades++
		s.TotalGrossPnL += t.GrossPnL
		s.TotalNetPnL += t.NetPnL
		s.TotalCosts += t.Costs.TotalCost
		returns = append(returns, t.ReturnPercent)
		holding = append(holding, t.HoldingPeriodHours)

		switch {
		case t.NetPnL > 0:
			s.WinningTrades++
			wins += t.NetPnL
		case t.NetPnL < 0:
			s.LosingTrades++
			losses += t.NetPnL
		}
		if best == nil || t.NetPnL > best.NetPnL {
			best = t
		}
		if worst == nil || t.NetPnL < worst.NetPnL {
			worst = t
		}
	}

	if s.ClosedTrades == 0 {
		return s
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.ClosedTrades)
	switch {
	case wins == 0:
		s.ProfitFactor = 0
	case losses == 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = wins / math.Abs(losses)
	}

	s.AverageReturn, _ = returns.Mean()
	s.AverageHoldingPeriod, _ = holding.Mean()
	if std, err := returns.StandardDeviationPopulation(); err == nil && std != 0 {
		s.SharpeRatio = s.AverageReturn / std
	}

	b, w := clone(best), clone(worst)
	s.BestTrade, s.WorstTrade = &b, &w
	return s
}

// Reset drops every trade.
func (l *AuditLedger) Reset() {
	l.trades = make(map[string]*models.TradeLog)
	l.order.Reset()
}

func clone(t *models.TradeLog) models.TradeLog {
	c := *t
	if t.ExitPrice != nil {
		p := *t.ExitPrice
		c.ExitPrice = &p
	}
	if t.ExitTime != nil {
		ts := *t.ExitTime
		c.ExitTime = &ts
	}
	return c
}
