package models

// EnsembleWeights is the relative contribution of each signal factor.
// Once applied through the weight store it sums to 1 and every component lies in [0, 0.5].
type EnsembleWeights struct {
	Sentiment float64 `json:"sentiment"`
	Momentum  float64 `json:"momentum"`
	Volume    float64 `json:"volume"`
	RSI       float64 `json:"rsi"`
	MACD      float64 `json:"macd"`
}

// DefaultEnsembleWeights returns the initial factor weights.
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Sentiment: 0.30, Momentum: 0.25, Volume: 0.20, RSI: 0.15, MACD: 0.10}
}

// Sum returns the total of all components.
func (w EnsembleWeights) Sum() float64 {
	return w.Sentiment + w.Momentum + w.Volume + w.RSI + w.MACD
}

// Vector returns the components in declaration order.
func (w EnsembleWeights) Vector() [5]float64 {
	return [5]float64{w.Sentiment, w.Momentum, w.Volume, w.RSI, w.MACD}
}

// WeightsFromVector is the inverse of Vector.
func WeightsFromVector(v [5]float64) EnsembleWeights {
	return EnsembleWeights{Sentiment: v[0], Momentum: v[1], Volume: v[2], RSI: v[3], MACD: v[4]}
}

// FactorNames lists the factor labels in Vector order.
var FactorNames = [5]string{"sentiment", "momentum", "volume", "rsi", "macd"}
