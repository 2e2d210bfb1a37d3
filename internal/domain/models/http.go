package models

import "time"

// Request and response bodies for the engine HTTP endpoints.

type LearnRequest struct {
	Symbol              string     `json:"symbol" validate:"required"`
	Signal              Signal     `json:"signal" validate:"required,oneof=BUY SELL HOLD"`
	PredictedReturn     float64    `json:"predicted_return" validate:"finite"`
	PredictedConfidence float64    `json:"predicted_confidence" validate:"gte=0,lte=1,finite"`
	EntryPrice          float64    `json:"entry_price" validate:"gt=0,finite"`
	ExitPrice           *float64   `json:"exit_price" validate:"omitempty,gte=0,finite"`
	EntryTime           *time.Time `json:"entry_time"`
	ExitTime            *time.Time `json:"exit_time"`
	Slippage            *float64   `json:"slippage" validate:"omitempty,gte=0,finite"`
}

// Outcome converts the request into a TradeOutcome for the learner.
func (r LearnRequest) Outcome() TradeOutcome {
	o := TradeOutcome{
		Symbol:              r.Symbol,
		Signal:              r.Signal,
		PredictedReturn:     r.PredictedReturn,
		PredictedConfidence: r.PredictedConfidence,
		EntryPrice:          r.EntryPrice,
		ExitPrice:           r.ExitPrice,
		ExitTime:            r.ExitTime,
		Slippage:            r.Slippage,
	}
	if r.EntryTime != nil {
		o.EntryTime = *r.EntryTime
	}
	return o
}

type LearnResponse struct {
	Outcome TradeOutcome    `json:"outcome"`
	Weights EnsembleWeights `json:"weights"`
}

type HorizonSignalRequest struct {
	Horizon    Horizon `json:"horizon" validate:"required"`
	Signal     Signal  `json:"signal" validate:"required,oneof=BUY SELL HOLD"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1,finite"`
}

type ConsensusRequest struct {
	Signals []HorizonSignalRequest `json:"signals" validate:"max=64,dive"`
}

// HorizonSignals converts the request into the aggregator's input.
func (r ConsensusRequest) HorizonSignals() []HorizonSignal {
	out := make([]HorizonSignal, len(r.Signals))
	for i, s := range r.Signals {
		out[i] = HorizonSignal{Horizon: s.Horizon, Signal: s.Signal, Confidence: s.Confidence}
	}
	return out
}

type DriftRequest struct {
	Accuracy        float64 `json:"accuracy" validate:"gte=0,lte=1,finite"`
	PredictionError float64 `json:"prediction_error" validate:"finite"`
	ConfidenceDrift float64 `json:"confidence_drift" validate:"finite"`
	ModelDrift      float64 `json:"model_drift" validate:"finite"`
}

func (r DriftRequest) Metrics() DriftMetrics {
	return DriftMetrics{
		Accuracy:        r.Accuracy,
		PredictionError: r.PredictionError,
		ConfidenceDrift: r.ConfidenceDrift,
		ModelDrift:      r.ModelDrift,
	}
}

type DriftHistoryResponse struct {
	Latest  *DriftMetrics  `json:"latest,omitempty"`
	Trend   DriftTrend     `json:"trend"`
	History []DriftMetrics `json:"history"`
}

// CostRequest prices one order, or a round trip when exit_price is set.
type CostRequest struct {
	Symbol    string    `json:"symbol" validate:"required"`
	OrderType OrderType `json:"order_type" default:"MARKET" validate:"oneof=MARKET LIMIT STOP"`
	Side      Side      `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity  float64   `json:"quantity" validate:"gt=0,finite"`
	Price     float64   `json:"price" validate:"gt=0,finite"`
	ExitPrice *float64  `json:"exit_price" validate:"omitempty,gt=0,finite"`
}

type TradeEntryRequest struct {
	Symbol     string    `json:"symbol" validate:"required"`
	Side       Side      `json:"side" validate:"required,oneof=BUY SELL"`
	OrderType  OrderType `json:"order_type" default:"MARKET" validate:"oneof=MARKET LIMIT STOP"`
	Quantity   float64   `json:"quantity" validate:"gt=0,finite"`
	EntryPrice float64   `json:"entry_price" validate:"gt=0,finite"`
	Commission float64   `json:"commission" validate:"gte=0,finite"`
	Slippage   float64   `json:"slippage" validate:"gte=0,finite"`
	Tax        float64   `json:"tax" validate:"gte=0,finite"`
}

func (r TradeEntryRequest) Entry() TradeEntry {
	return TradeEntry{
		Symbol:     r.Symbol,
		Side:       r.Side,
		OrderType:  r.OrderType,
		Quantity:   r.Quantity,
		EntryPrice: r.EntryPrice,
		Commission: r.Commission,
		Slippage:   r.Slippage,
		Tax:        r.Tax,
	}
}

type TradeExitRequest struct {
	ExitPrice  float64 `json:"exit_price" validate:"gt=0,finite"`
	Commission float64 `json:"commission" validate:"gte=0,finite"`
	Slippage   float64 `json:"slippage" validate:"gte=0,finite"`
	Tax        float64 `json:"tax" validate:"gte=0,finite"`
}

func (r TradeExitRequest) Exit() TradeExit {
	return TradeExit{ExitPrice: r.ExitPrice, Commission: r.Commission, Slippage: r.Slippage, Tax: r.Tax}
}

type PositionRequest struct {
	Symbol      string    `json:"symbol" validate:"required"`
	Side        Side      `json:"side" validate:"required,oneof=BUY SELL"`
	OrderType   OrderType `json:"order_type" default:"MARKET" validate:"oneof=MARKET LIMIT STOP"`
	Quantity    float64   `json:"quantity" validate:"gt=0,finite"`
	MarketPrice float64   `json:"market_price" validate:"gt=0,finite"`
}

type ClosePositionRequest struct {
	MarketPrice float64 `json:"market_price" validate:"gt=0,finite"`
}

type PositionResponse struct {
	Trade TradeLog        `json:"trade"`
	Cost  TransactionCost `json:"cost"`
}
