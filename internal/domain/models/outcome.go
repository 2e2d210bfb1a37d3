package models

import "time"

// TradeOutcome is a prediction paired with its realized result.
// Optional fields are nil until known; the learner fills ActualReturn, Reward and WasCorrect.
type TradeOutcome struct {
	Symbol              string     `json:"symbol"`
	Signal              Signal     `json:"signal"`
	PredictedReturn     float64    `json:"predicted_return"`
	PredictedConfidence float64    `json:"predicted_confidence"`
	EntryPrice          float64    `json:"entry_price"`
	ExitPrice           *float64   `json:"exit_price,omitempty"`
	EntryTime           time.Time  `json:"entry_time"`
	ExitTime            *time.Time `json:"exit_time,omitempty"`
	Slippage            *float64   `json:"slippage,omitempty"`
	ActualReturn        *float64   `json:"actual_return,omitempty"`
	Reward              *float64   `json:"reward,omitempty"`
	WasCorrect          *bool      `json:"was_correct,omitempty"`
}

// LearnerStats are the learner's running totals.
type LearnerStats struct {
	TotalTrades   int             `json:"total_trades"`
	TotalReward   float64         `json:"total_reward"`
	AverageReward float64         `json:"average_reward"`
	CorrectTrades int             `json:"correct_trades"`
	Accuracy      float64         `json:"accuracy"`
	HistorySize   int             `json:"history_size"`
	Weights       EnsembleWeights `json:"weights"`
}
