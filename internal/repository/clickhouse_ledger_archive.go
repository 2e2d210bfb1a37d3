package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/repository"
)

const ledgerColumns = "id, symbol, side, order_type, quantity, entry_price, exit_price, entry_time, exit_time, " +
	"entry_commission, entry_slippage, entry_tax, exit_commission, exit_slippage, exit_tax, total_cost, " +
	"gross_pnl, net_pnl, return_percent, holding_period_hours, status"

// ClickHouseLedgerArchive implements LedgerArchive for ClickHouse.
// ReplacingMergeTree collapses re-archived ids to the newest row.
type ClickHouseLedgerArchive struct {
	db    *sql.DB
	table string
}

// NewClickHouseLedgerArchive creates the archive over an open pool. The pool is owned by the caller.
func NewClickHouseLedgerArchive(db *sql.DB, table string) *ClickHouseLedgerArchive {
	return &ClickHouseLedgerArchive{db: db, table: table}
}

// Schema returns the DDL for the archive table.
func (a *ClickHouseLedgerArchive) Schema() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id String,
	symbol LowCardinality(String),
	side LowCardinality(String),
	order_type LowCardinality(String),
	quantity Float64,
	entry_price Float64,
	exit_price Nullable(Float64),
	entry_time DateTime64(3, 'UTC'),
	exit_time Nullable(DateTime64(3, 'UTC')),
	entry_commission Float64,
	entry_slippage Float64,
	entry_tax Float64,
	exit_commission Float64,
	exit_slippage Float64,
	exit_tax Float64,
	total_cost Float64,
	gross_pnl Float64,
	net_pnl Float64,
	return_percent Float64,
	holding_period_hours Float64,
	status LowCardinality(String),
	archived_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(archived_at)
PARTITION BY toYYYYMM(entry_time)
ORDER BY (symbol, entry_time, id)`, a.table)}
}

func (a *ClickHouseLedgerArchive) Init(ctx context.Context) error {
	for _, stmt := range a.Schema() {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", a.table, err)
		}
	}
	return nil
}

func (a *ClickHouseLedgerArchive) Archive(ctx context.Context, t models.TradeLog) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", a.table, ledgerColumns)
	_, err := a.db.ExecContext(ctx, q,
		t.ID,
		t.Symbol,
		string(t.Side),
		string(t.OrderType),
		t.Quantity,
		t.EntryPrice,
		nullableFloat(t.ExitPrice),
		t.EntryTime.UTC(),
		nullableTime(t.ExitTime),
		t.Costs.EntryCommission,
		t.Costs.EntrySlippage,
		t.Costs.EntryTax,
		t.Costs.ExitCommission,
		t.Costs.ExitSlippage,
		t.Costs.ExitTax,
		t.Costs.TotalCost,
		t.GrossPnL,
		t.NetPnL,
		t.ReturnPercent,
		t.HoldingPeriodHours,
		string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

// Query returns archived trades for symbol entered within [from, to], newest first.
func (a *ClickHouseLedgerArchive) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.TradeLog, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE symbol = ? AND entry_time >= ? AND entry_time <= ? ORDER BY entry_time DESC LIMIT ?", ledgerColumns, a.table)
	rows, err := a.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", a.table, err)
	}
	defer rows.Close()

	trades := make([]models.TradeLog, 0)
	for rows.Next() {
		var (
			t                       models.TradeLog
			side, orderType, status string
			exitPrice               sql.NullFloat64
			exitTime                sql.NullTime
		)
		if err := rows.Scan(
			&t.ID, &t.Symbol, &side, &orderType, &t.Quantity, &t.EntryPrice, &exitPrice, &t.EntryTime, &exitTime,
			&t.Costs.EntryCommission, &t.Costs.EntrySlippage, &t.Costs.EntryTax,
			&t.Costs.ExitCommission, &t.Costs.ExitSlippage, &t.Costs.ExitTax, &t.Costs.TotalCost,
			&t.GrossPnL, &t.NetPnL, &t.ReturnPercent, &t.HoldingPeriodHours, &status,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", a.table, err)
		}
		t.Side = models.Side(side)
		t.OrderType = models.OrderType(orderType)
		t.Status = models.TradeStatus(status)
		if exitPrice.Valid {
			p := exitPrice.Float64
			t.ExitPrice = &p
		}
		if exitTime.Valid {
			ts := exitTime.Time
			t.ExitTime = &ts
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (a *ClickHouseLedgerArchive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *ClickHouseLedgerArchive) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

var _ repository.LedgerArchive = (*ClickHouseLedgerArchive)(nil)
