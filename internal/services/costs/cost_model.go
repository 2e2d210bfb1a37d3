package costs

import (
	"github.com/shopspring/decimal"

	"FinFuse/internal/domain/models"
)

var bpsDivisor = decimal.NewFromInt(10000)

// Table holds the basis-point charges applied to an order.
type Table struct {
	Slippage    map[models.OrderType]float64
	Commission  float64
	SellTax     float64
	StampTax    float64
	DefaultSlip float64 // used for order types missing from Slippage
}

// DefaultTable returns the standard BIST-style cost schedule.
func DefaultTable() Table {
	return Table{
		Slippage: map[models.OrderType]float64{
			models.OrderMarket: 15,
			models.OrderLimit:  5,
			models.OrderStop:   25,
		},
		Commission:  5,
		SellTax:     5,
		StampTax:    2,
		DefaultSlip: 15,
	}
}

// Model prices orders against a cost table. It has no mutable state.
type Model struct {
	table Table
}

// NewModel creates a cost model.
func NewModel(table Table) *Model {
	if table.Slippage == nil {
		table.Slippage = DefaultTable().Slippage
	}
	return &Model{table: table}
}

// SlippageBps returns the slippage charged for orderType.
func (m *Model) SlippageBps(orderType models.OrderType) float64 {
	if bps, ok := m.table.Slippage[orderType]; ok {
		return bps
	}
	return m.table.DefaultSlip
}

// SlippageFraction returns SlippageBps as a fraction of price.
func (m *Model) SlippageFraction(orderType models.OrderType) float64 {
	return decimal.NewFromFloat(m.SlippageBps(orderType)).Div(bpsDivisor).InexactFloat64()
}

// CalculateCost prices a single order. Slippage moves the execution price against the
// trader; commission and taxes are charged on the market notional and adjust the proceeds.
func (m *Model) CalculateCost(symbol string, orderType models.OrderType, side models.Side, quantity, marketPrice float64) models.TransactionCost {
	slippageBps := m.SlippageBps(orderType)
	commissionBps := m.table.Commission
	stampBps := m.table.StampTax
	taxBps := 0.0
	if side == models.SideSell {
		taxBps = m.table.SellTax
	}

	price := decimal.NewFromFloat(marketPrice)
	qty := decimal.NewFromFloat(quantity)
	notional := price.Mul(qty)

	slip := decimal.NewFromFloat(slippageBps).Div(bpsDivisor)
	if side == models.SideSell {
		slip = slip.Neg()
	}
	execution := price.Mul(decimal.NewFromInt(1).Add(slip))

	charge := func(bps float64) decimal.Decimal {
		return notional.Mul(decimal.NewFromFloat(bps)).Div(bpsDivisor)
	}
	commission := charge(commissionBps)
	tax := charge(taxBps)
	stamp := charge(stampBps)
	total := commission.Add(tax).Add(stamp)

	gross := execution.Mul(qty)
	net := gross.Sub(total)
	if side == models.SideBuy {
		net = gross.Add(total)
	}

	return models.TransactionCost{
		Symbol:         symbol,
		OrderType:      orderType,
		Side:           side,
		Quantity:       quantity,
		MarketPrice:    marketPrice,
		SlippageBps:    slippageBps,
		CommissionBps:  commissionBps,
		TaxBps:         taxBps,
		StampTaxBps:    stampBps,
		TotalCostBps:   slippageBps + commissionBps + taxBps + stampBps,
		CommissionCost: commission.InexactFloat64(),
		TaxCost:        tax.InexactFloat64(),
		StampTaxCost:   stamp.InexactFloat64(),
		SlippageCost:   execution.Sub(price).Abs().Mul(qty).InexactFloat64(),
		TotalCostTRY:   total.InexactFloat64(),
		ExecutionPrice: execution.InexactFloat64(),
		GrossProceeds:  gross.InexactFloat64(),
		NetProceeds:    net.InexactFloat64(),
	}
}

// RoundTrip prices opening a position on side at entryPrice and closing it at exitPrice.
// NetPnL is the cash result after both legs' slippage and charges.
func (m *Model) RoundTrip(symbol string, orderType models.OrderType, side models.Side, quantity, entryPrice, exitPrice float64) models.RoundTripCost {
	entry := m.CalculateCost(symbol, orderType, side, quantity, entryPrice)
	exit := m.CalculateCost(symbol, orderType, side.Opposite(), quantity, exitPrice)

	rt := models.RoundTripCost{
		Entry:        entry,
		Exit:         exit,
		TotalCostBps: entry.TotalCostBps + exit.TotalCostBps,
		BreakEvenBps: entry.TotalCostBps + exit.TotalCostBps,
	}
	rt.TotalCostTRY = decimal.NewFromFloat(entry.TotalCostTRY).
		Add(decimal.NewFromFloat(exit.TotalCostTRY)).
		Add(decimal.NewFromFloat(entry.SlippageCost)).
		Add(decimal.NewFromFloat(exit.SlippageCost)).
		InexactFloat64()

	in := decimal.NewFromFloat(entry.NetProceeds)
	out := decimal.NewFromFloat(exit.NetProceeds)
	if side == models.SideBuy {
		rt.NetPnL = out.Sub(in).InexactFloat64()
	} else {
		rt.NetPnL = in.Sub(out).InexactFloat64()
	}
	return rt
}
