package monitor

import (
	"fmt"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"FinFuse/internal/domain/models"
	"FinFuse/pkg/ring"
)

const (
	DefaultHistoryCapacity = 100
	// declineWindow is how many snapshots back the accuracy baseline is taken from.
	declineWindow  = 10
	maxImprovement = 0.15
)

// Thresholds configure when the monitor recommends retraining.
type Thresholds struct {
	ModelDriftMedium   float64
	ModelDriftHigh     float64
	ModelDriftCritical float64
	AccuracyDecline    float64
	MinAccuracy        float64
	ConfidenceDrift    float64
}

// DefaultThresholds returns the standard trigger levels.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ModelDriftMedium:   0.05,
		ModelDriftHigh:     0.10,
		ModelDriftCritical: 0.15,
		AccuracyDecline:    0.05,
		MinAccuracy:        0.70,
		ConfidenceDrift:    0.10,
	}
}

// DriftMonitor keeps a bounded history of drift snapshots and turns each new one into
// a retrain recommendation.
type DriftMonitor struct {
	thresholds Thresholds
	history    *ring.Buffer[models.DriftMetrics]
}

// NewDriftMonitor creates a monitor retaining at most capacity snapshots.
func NewDriftMonitor(th Thresholds, capacity int) *DriftMonitor {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &DriftMonitor{thresholds: th, history: ring.New[models.DriftMetrics](capacity)}
}

type trigger struct {
	priority models.RetrainPriority
	reason   string
	action   string
}

// CheckDrift records m and evaluates every trigger against it. The resulting priority is
// the highest of all triggered levels.
func (d *DriftMonitor) CheckDrift(m models.DriftMetrics) models.RetrainRecommendation {
	d.history.Push(m)
	th := d.thresholds

	var triggers []trigger
	if m.ModelDrift > th.ModelDriftMedium {
		p := models.PriorityMedium
		switch {
		case m.ModelDrift > th.ModelDriftCritical:
			p = models.PriorityCritical
		case m.ModelDrift > th.ModelDriftHigh:
			p = models.PriorityHigh
		}
		triggers = append(triggers, trigger{
			priority: p,
			reason:   fmt.Sprintf("model drift %.4f exceeds %.2f", m.ModelDrift, th.ModelDriftMedium),
			action:   "retrain ensemble on recent market data",
		})
	}
	if decline := d.accuracyDecline(); decline > th.AccuracyDecline {
		triggers = append(triggers, trigger{
			priority: models.PriorityMedium,
			reason:   fmt.Sprintf("accuracy declined by %.4f over recent checks", decline),
			action:   "review feature pipeline for stale or shifted inputs",
		})
	}
	if m.Accuracy < th.MinAccuracy {
		triggers = append(triggers, trigger{
			priority: models.PriorityHigh,
			reason:   fmt.Sprintf("accuracy below threshold (%.4f < %.2f)", m.Accuracy, th.MinAccuracy),
			action:   "reduce position sizing until accuracy recovers",
		})
	}
	if math.Abs(m.ConfidenceDrift) > th.ConfidenceDrift {
		triggers = append(triggers, trigger{
			priority: models.PriorityMedium,
			reason:   fmt.Sprintf("confidence drift %.4f exceeds %.2f", m.ConfidenceDrift, th.ConfidenceDrift),
			action:   "recalibrate confidence scores",
		})
	}

	if len(triggers) == 0 {
		return models.RetrainRecommendation{
			Priority:         models.PriorityLow,
			Reason:           "model performance within tolerance",
			SuggestedActions: []string{},
		}
	}

	rec := models.RetrainRecommendation{
		ShouldRetrain:    true,
		Priority:         models.PriorityLow,
		SuggestedActions: make([]string, 0, len(triggers)),
	}
	reasons := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t.priority.Rank() > rec.Priority.Rank() {
			rec.Priority = t.priority
		}
		reasons = append(reasons, t.reason)
		rec.SuggestedActions = append(rec.SuggestedActions, t.action)
	}
	rec.Reason = strings.Join(reasons, "; ")
	rec.EstimatedImprovement = math.Max(0, math.Min(maxImprovement, m.ModelDrift*0.5))
	return rec
}

// accuracyDecline compares the oldest of the last declineWindow snapshots with the newest.
func (d *DriftMonitor) accuracyDecline() float64 {
	n := d.history.Len()
	if n < 2 {
		return 0
	}
	start := n - declineWindow
	if start < 0 {
		start = 0
	}
	first, _ := d.history.At(start)
	last, _ := d.history.At(n - 1)
	return first.Accuracy - last.Accuracy
}

// History returns the retained snapshots, oldest first.
func (d *DriftMonitor) History() []models.DriftMetrics {
	return d.history.Items()
}

// Latest returns the newest snapshot, if any.
func (d *DriftMonitor) Latest() (models.DriftMetrics, bool) {
	return d.history.At(-1)
}

// Trend summarizes the retained history.
func (d *DriftMonitor) Trend() models.DriftTrend {
	items := d.history.Items()
	tr := models.DriftTrend{Samples: len(items), AccuracyDecline: d.accuracyDecline()}
	if len(items) == 0 {
		return tr
	}
	acc := make(stats.Float64Data, len(items))
	drift := make(stats.Float64Data, len(items))
	for i, m := range items {
		acc[i] = m.Accuracy
		drift[i] = m.ModelDrift
	}
	tr.MeanAccuracy, _ = acc.Mean()
	tr.MeanModelDrift, _ = drift.Mean()
	tr.AccuracyStdDev, _ = acc.StandardDeviationPopulation()
	return tr
}

// Reset clears the history.
func (d *DriftMonitor) Reset() {
	d.history.Reset()
}
