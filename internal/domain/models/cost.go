package models

// TransactionCost is the cost breakdown of a single order. Money amounts are in TRY.
type TransactionCost struct {
	Symbol         string    `json:"symbol"`
	OrderType      OrderType `json:"order_type"`
	Side           Side      `json:"side"`
	Quantity       float64   `json:"quantity"`
	MarketPrice    float64   `json:"market_price"`
	SlippageBps    float64   `json:"slippage_bps"`
	CommissionBps  float64   `json:"commission_bps"`
	TaxBps         float64   `json:"tax_bps"`
	StampTaxBps    float64   `json:"stamp_tax_bps"`
	TotalCostBps   float64   `json:"total_cost_bps"`
	CommissionCost float64   `json:"commission_cost"`
	TaxCost        float64   `json:"tax_cost"`
	StampTaxCost   float64   `json:"stamp_tax_cost"`
	SlippageCost   float64   `json:"slippage_cost"`
	TotalCostTRY   float64   `json:"total_cost_try"`
	ExecutionPrice float64   `json:"execution_price"`
	GrossProceeds  float64   `json:"gross_proceeds"`
	NetProceeds    float64   `json:"net_proceeds"`
}

// RoundTripCost pairs the entry and exit legs of a position.
type RoundTripCost struct {
	Entry        TransactionCost `json:"entry"`
	Exit         TransactionCost `json:"exit"`
	TotalCostTRY float64         `json:"total_cost_try"`
	TotalCostBps float64         `json:"total_cost_bps"`
	BreakEvenBps float64         `json:"break_even_bps"`
	NetPnL       float64         `json:"net_pnl"`
}
