package usecase

import (
	"errors"
	"fmt"
	"math"
	"time"

	"FinFuse/internal/domain/models"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrTradeNotFound     = errors.New("trade not found")
	ErrTradeNotOpen      = errors.New("trade is not open")
	ErrTradeIDConflict   = errors.New("trade id conflict")
	ErrArchiveDisabled   = errors.New("ledger archive is not configured")
	ErrSnapshotsDisabled = errors.New("snapshot store is not configured")
)

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, a...))
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func optFinite(ptrs ...*float64) bool {
	for _, p := range ptrs {
		if p != nil && !finite(*p) {
			return false
		}
	}
	return true
}

// The core components assume well-formed input. Kafka payloads bypass the HTTP validator,
// so every entry point re-checks here.

func validateOutcome(o models.TradeOutcome) error {
	if o.Symbol == "" {
		return invalid("symbol is required")
	}
	if !o.Signal.IsValid() {
		return invalid("unknown signal %q", o.Signal)
	}
	if !finite(o.PredictedReturn, o.PredictedConfidence, o.EntryPrice) || !optFinite(o.ExitPrice, o.Slippage, o.ActualReturn) {
		return invalid("numeric fields must be finite")
	}
	if o.PredictedConfidence < 0 || o.PredictedConfidence > 1 {
		return invalid("predicted_confidence must be in [0, 1]")
	}
	if o.EntryPrice <= 0 {
		return invalid("entry_price must be positive")
	}
	if o.ExitPrice != nil && *o.ExitPrice < 0 {
		return invalid("exit_price cannot be negative")
	}
	return nil
}

func validateSignals(signals []models.HorizonSignal) error {
	for i, s := range signals {
		if !s.Signal.IsValid() {
			return invalid("signals[%d]: unknown signal %q", i, s.Signal)
		}
		if s.Horizon == "" {
			return invalid("signals[%d]: horizon is required", i)
		}
		if !finite(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
			return invalid("signals[%d]: confidence must be in [0, 1]", i)
		}
	}
	return nil
}

func validateDriftMetrics(m models.DriftMetrics) error {
	if !finite(m.Accuracy, m.PredictionError, m.ConfidenceDrift, m.ModelDrift) {
		return invalid("drift metrics must be finite")
	}
	if m.Accuracy < 0 || m.Accuracy > 1 {
		return invalid("accuracy must be in [0, 1]")
	}
	return nil
}

func validateOrder(symbol string, side models.Side, orderType models.OrderType, quantity, price float64) error {
	if symbol == "" {
		return invalid("symbol is required")
	}
	if side != models.SideBuy && side != models.SideSell {
		return invalid("unknown side %q", side)
	}
	switch orderType {
	case models.OrderMarket, models.OrderLimit, models.OrderStop:
	default:
		return invalid("unknown order type %q", orderType)
	}
	if !finite(quantity, price) || quantity <= 0 || price <= 0 {
		return invalid("quantity and price must be positive finite numbers")
	}
	return nil
}

func since(start time.Time) float64 { return time.Since(start).Seconds() }
