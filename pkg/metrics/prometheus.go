package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FinFuse/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tradesLearned   *prometheus.CounterVec
	reward          prometheus.Histogram
	weights         *prometheus.GaugeVec
	consensus       *prometheus.CounterVec
	consistency     prometheus.Histogram
	drift           *prometheus.GaugeVec
	recommendations *prometheus.CounterVec
	ledger          *prometheus.CounterVec
	costs           *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tradesLearned: f.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_trades_learned_total", Help: "Trade outcomes consumed by the learner"},
			[]string{"signal", "correct"},
		),
		reward: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fusion_trade_reward",
			Help:    "Reward of learned trades",
			Buckets: []float64{-0.1, -0.05, -0.02, -0.01, -0.005, 0, 0.005, 0.01, 0.02, 0.05, 0.1},
		}),
		weights: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "fusion_ensemble_weight", Help: "Current ensemble weight per factor"},
			[]string{"factor"},
		),
		consensus: f.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_consensus_total", Help: "Consensus decisions by signal"},
			[]string{"signal"},
		),
		consistency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fusion_consensus_consistency",
			Help:    "Consistency score of consensus decisions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		drift: f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "fusion_drift_metric", Help: "Latest drift snapshot values"},
			[]string{"metric"},
		),
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_retrain_recommendations_total", Help: "Drift checks by priority and outcome"},
			[]string{"priority", "retrain"},
		),
		ledger: f.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_ledger_transitions_total", Help: "Ledger transitions by resulting status"},
			[]string{"status"},
		),
		costs: f.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_transaction_cost_try_total", Help: "Transaction costs charged"},
			[]string{"order_type", "side"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{Name: "fusion_errors_total", Help: "Errors by kind"},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusion_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTradeLearned(signal models.Signal, correct bool, reward float64) {
	r.tradesLearned.WithLabelValues(string(signal), strconv.FormatBool(correct)).Inc()
	r.reward.Observe(reward)
}

func (r *Recorder) RecordWeights(w models.EnsembleWeights) {
	for i, v := range w.Vector() {
		r.weights.WithLabelValues(models.FactorNames[i]).Set(v)
	}
}

func (r *Recorder) RecordConsensus(signal models.Signal, consistency float64) {
	r.consensus.WithLabelValues(string(signal)).Inc()
	r.consistency.Observe(consistency)
}

func (r *Recorder) RecordDrift(m models.DriftMetrics) {
	r.drift.WithLabelValues("accuracy").Set(m.Accuracy)
	r.drift.WithLabelValues("prediction_error").Set(m.PredictionError)
	r.drift.WithLabelValues("confidence_drift").Set(m.ConfidenceDrift)
	r.drift.WithLabelValues("model_drift").Set(m.ModelDrift)
}

func (r *Recorder) RecordRecommendation(rec models.RetrainRecommendation) {
	r.recommendations.WithLabelValues(string(rec.Priority), strconv.FormatBool(rec.ShouldRetrain)).Inc()
}

func (r *Recorder) RecordLedgerTransition(status models.TradeStatus) {
	r.ledger.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) RecordCost(orderType models.OrderType, side models.Side, totalCost float64) {
	r.costs.WithLabelValues(string(orderType), string(side)).Add(totalCost)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
