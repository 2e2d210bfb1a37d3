package models

// Signal is a directional trading decision.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// DirectionPriority is the fixed tie-break order used wherever directions compete.
var DirectionPriority = [...]Signal{SignalBuy, SignalSell, SignalHold}

// IsValid reports whether s is one of BUY, SELL or HOLD.
func (s Signal) IsValid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold:
		return true
	default:
		return false
	}
}

// Side is the order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderStop   OrderType = "STOP"
)

// Horizon is the forward-looking window a signal pertains to.
type Horizon string

const (
	Horizon5m  Horizon = "5m"
	Horizon15m Horizon = "15m"
	Horizon30m Horizon = "30m"
	Horizon1h  Horizon = "1h"
	Horizon4h  Horizon = "4h"
	Horizon1d  Horizon = "1d"
	Horizon7d  Horizon = "7d"
	Horizon30d Horizon = "30d"
)
