package metrics

import (
	"time"

	"github.com/Kaibek/SplineCC/internal/congestion"
)

// CCIntegration pushes a running SendController's Flow Controller state into
// Prometheus on a timer.
type CCIntegration struct {
	metrics *PrometheusMetrics
	sc      *congestion.SendController
}

// NewCCIntegration wires a SendController to a PrometheusMetrics sink.
func NewCCIntegration(metrics *PrometheusMetrics, sc *congestion.SendController) *CCIntegration {
	return &CCIntegration{
		metrics: metrics,
		sc:      sc,
	}
}

// UpdateMetrics takes one snapshot of the Flow Controller and records it.
func (cci *CCIntegration) UpdateMetrics() {
	snap := cci.sc.GetMetrics()
	cci.metrics.UpdateCCMetrics(
		snap.CWNDSegments,
		snap.PacingRateBps,
		snap.BandwidthBps,
		snap.FairnessRatio,
		snap.Epoch,
		snap.Mode,
	)
	cci.metrics.RTTMeanMs.Set(float64(snap.RTTAvgUs) / 1000.0)
	cci.metrics.RTTMinMs.Set(float64(snap.MinRTTUs) / 1000.0)
}

// StartMetricsCollection runs UpdateMetrics on a ticker until the process
// exits; the host transport owns the lifetime of sc.
func (cci *CCIntegration) StartMetricsCollection(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			cci.UpdateMetrics()
		}
	}()
}
