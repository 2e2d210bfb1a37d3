package models

import (
	"encoding/json"
	"math"
	"time"
)

// TradeStatus is the lifecycle state of a ledger entry.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "OPEN"
	TradeClosed    TradeStatus = "CLOSED"
	TradeCancelled TradeStatus = "CANCELLED"
)

// TradeCosts itemizes the costs charged on each leg.
type TradeCosts struct {
	EntryCommission float64 `json:"entry_commission"`
	EntrySlippage   float64 `json:"entry_slippage"`
	EntryTax        float64 `json:"entry_tax"`
	ExitCommission  float64 `json:"exit_commission"`
	ExitSlippage    float64 `json:"exit_slippage"`
	ExitTax         float64 `json:"exit_tax"`
	TotalCost       float64 `json:"total_cost"`
}

// EntryTotal is the cost charged when the trade was opened.
func (c TradeCosts) EntryTotal() float64 {
	return c.EntryCommission + c.EntrySlippage + c.EntryTax
}

// ExitTotal is the cost charged when the trade was closed.
func (c TradeCosts) ExitTotal() float64 {
	return c.ExitCommission + c.ExitSlippage + c.ExitTax
}

// TradeLog is one audited trade.
type TradeLog struct {
	ID                 string      `json:"id"`
	Symbol             string      `json:"symbol"`
	Side               Side        `json:"side"`
	OrderType          OrderType   `json:"order_type"`
	Quantity           float64     `json:"quantity"`
	EntryPrice         float64     `json:"entry_price"`
	ExitPrice          *float64    `json:"exit_price,omitempty"`
	EntryTime          time.Time   `json:"entry_time"`
	ExitTime           *time.Time  `json:"exit_time,omitempty"`
	Costs              TradeCosts  `json:"costs"`
	GrossPnL           float64     `json:"gross_pnl"`
	NetPnL             float64     `json:"net_pnl"`
	ReturnPercent      float64     `json:"return_percent"`
	HoldingPeriodHours float64     `json:"holding_period_hours"`
	Status             TradeStatus `json:"status"`
}

// TradeEntry are the parameters of a new ledger entry.
type TradeEntry struct {
	Symbol     string
	Side       Side
	OrderType  OrderType
	Quantity   float64
	EntryPrice float64
	Commission float64
	Slippage   float64
	Tax        float64
}

// TradeExit are the parameters that close a ledger entry.
type TradeExit struct {
	ExitPrice  float64
	Commission float64
	Slippage   float64
	Tax        float64
}

// AuditSummary aggregates closed trades. It is recomputed on every call.
type AuditSummary struct {
	TotalTrades          int       `json:"total_trades"`
	OpenTrades           int       `json:"open_trades"`
	ClosedTrades         int       `json:"closed_trades"`
	CancelledTrades      int       `json:"cancelled_trades"`
	WinningTrades        int       `json:"winning_trades"`
	LosingTrades         int       `json:"losing_trades"`
	WinRate              float64   `json:"win_rate"`
	TotalGrossPnL        float64   `json:"total_gross_pnl"`
	TotalNetPnL          float64   `json:"total_net_pnl"`
	TotalCosts           float64   `json:"total_costs"`
	AverageReturn        float64   `json:"average_return"`
	ProfitFactor         float64   `json:"profit_factor"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	BestTrade            *TradeLog `json:"best_trade,omitempty"`
	WorstTrade           *TradeLog `json:"worst_trade,omitempty"`
	AverageHoldingPeriod float64   `json:"average_holding_period_hours"`
}

type auditSummaryJSON AuditSummary

// MarshalJSON writes an infinite profit factor as null with profit_factor_infinite set,
// since JSON has no encoding for Inf.
func (s AuditSummary) MarshalJSON() ([]byte, error) {
	out := struct {
		auditSummaryJSON
		ProfitFactor         *float64 `json:"profit_factor"`
		ProfitFactorInfinite bool     `json:"profit_factor_infinite"`
	}{auditSummaryJSON: auditSummaryJSON(s)}
	if math.IsInf(s.ProfitFactor, 1) {
		out.ProfitFactorInfinite = true
	} else {
		pf := s.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an infinite profit factor written by MarshalJSON.
func (s *AuditSummary) UnmarshalJSON(b []byte) error {
	var in struct {
		auditSummaryJSON
		ProfitFactor         *float64 `json:"profit_factor"`
		ProfitFactorInfinite bool     `json:"profit_factor_infinite"`
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = AuditSummary(in.auditSummaryJSON)
	switch {
	case in.ProfitFactorInfinite:
		s.ProfitFactor = math.Inf(1)
	case in.ProfitFactor != nil:
		s.ProfitFactor = *in.ProfitFactor
	}
	return nil
}
