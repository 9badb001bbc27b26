package internal

import (
	"fmt"
	"sync"
	"time"

	"github.com/Kaibek/SplineCC/internal/congestion"
)

// GlobalMetricsCollector collects metrics globally across all connections
type GlobalMetricsCollector struct {
	mu sync.RWMutex

	// Active send controller, set by whichever connection is currently
	// being driven, for cross-cutting flow-controller metrics export
	sendController *congestion.SendController

	// Multiple flow tracking for fairness
	flowThroughputs []float64
	flowMutex       sync.Mutex
}

var globalMetricsCollector *GlobalMetricsCollector
var globalMetricsCollectorOnce sync.Once

// GetGlobalMetricsCollector returns the global metrics collector
func GetGlobalMetricsCollector() *GlobalMetricsCollector {
	globalMetricsCollectorOnce.Do(func() {
		globalMetricsCollector = &GlobalMetricsCollector{
			flowThroughputs: make([]float64, 0),
		}
	})
	return globalMetricsCollector
}

// SetSendController registers the SendController whose Flow Controller
// state should be exported through GetSplineMetrics.
func (gmc *GlobalMetricsCollector) SetSendController(sc *congestion.SendController) {
	gmc.mu.Lock()
	defer gmc.mu.Unlock()
	gmc.sendController = sc
}

// GetSplineMetrics retrieves the registered SendController's flow controller
// snapshot, as a plain map for report/export consumers.
func (gmc *GlobalMetricsCollector) GetSplineMetrics() map[string]interface{} {
	gmc.mu.RLock()
	defer gmc.mu.RUnlock()

	if gmc.sendController == nil {
		return nil
	}

	snap := gmc.sendController.GetMetrics()
	bufferbloat := congestion.CalculateBufferbloatFactor(
		time.Duration(snap.RTTAvgUs)*time.Microsecond,
		time.Duration(snap.MinRTTUs)*time.Microsecond,
	)
	return map[string]interface{}{
		"mode":               snap.Mode,
		"cwnd_segments":      float64(snap.CWNDSegments),
		"bandwidth_bps":      float64(snap.BandwidthBps),
		"pacing_rate_bps":    float64(snap.PacingRateBps),
		"fairness_ratio":     float64(snap.FairnessRatio),
		"rtt_avg_us":         float64(snap.RTTAvgUs),
		"min_rtt_us":         float64(snap.MinRTTUs),
		"epoch":              float64(snap.Epoch),
		"bufferbloat_factor": bufferbloat,
	}
}

// RecordFlowThroughput records throughput for a flow (for fairness calculation)
func (gmc *GlobalMetricsCollector) RecordFlowThroughput(throughput float64) {
	gmc.flowMutex.Lock()
	defer gmc.flowMutex.Unlock()

	// Keep only last 100 flows for fairness calculation
	if len(gmc.flowThroughputs) >= 100 {
		gmc.flowThroughputs = gmc.flowThroughputs[1:]
	}
	gmc.flowThroughputs = append(gmc.flowThroughputs, throughput)
}

// GetFairnessIndex calculates Jain's Fairness Index from recorded flows
func (gmc *GlobalMetricsCollector) GetFairnessIndex() float64 {
	gmc.flowMutex.Lock()
	defer gmc.flowMutex.Unlock()

	return congestion.JainFairnessIndex(gmc.flowThroughputs)
}

var (
	lastDebugTime time.Time
	lastWarnTime  time.Time
	debugMutex    sync.Mutex
)

// EnhanceMetricsMap adds flow-controller and fairness metrics to a report's
// metrics map.
func EnhanceMetricsMap(metricsMap map[string]interface{}) map[string]interface{} {
	gmc := GetGlobalMetricsCollector()
	splineMetrics := gmc.GetSplineMetrics()
	if splineMetrics != nil {
		metricsMap["SplineMetrics"] = splineMetrics

		// Promote the Flow Controller fields SLA/scenario validation looks
		// up by name into the top-level report map alongside the nested
		// SplineMetrics snapshot used by the Prometheus exporter.
		if v, ok := splineMetrics["cwnd_segments"].(float64); ok {
			metricsMap["CWNDSegments"] = v
		}
		if v, ok := splineMetrics["fairness_ratio"].(float64); ok {
			metricsMap["FairnessRatio"] = v
		}

		if mode, ok := splineMetrics["mode"].(string); ok && mode != "" {
			debugMutex.Lock()
			now := time.Now()
			if now.Sub(lastDebugTime) > 5*time.Second {
				bw := 0.0
				if bwBps, ok := splineMetrics["bandwidth_bps"].(float64); ok {
					bw = bwBps / 1_000_000.0
				}
				fmt.Printf("[DEBUG] EnhanceMetricsMap: Spline Mode=%s, BW=%.2f Mbps\n", mode, bw)
				lastDebugTime = now
			}
			debugMutex.Unlock()
		}
	} else {
		gmc.mu.RLock()
		hasController := gmc.sendController != nil
		gmc.mu.RUnlock()
		if !hasController {
			debugMutex.Lock()
			now := time.Now()
			if now.Sub(lastWarnTime) > 10*time.Second {
				fmt.Printf("[DEBUG] EnhanceMetricsMap: sendController is nil\n")
				lastWarnTime = now
			}
			debugMutex.Unlock()
		}
	}

	// Add fairness index once at least one flow has been recorded
	fairnessIndex := gmc.GetFairnessIndex()
	if fairnessIndex > 0 {
		metricsMap["FairnessIndex"] = fairnessIndex
	}

	return metricsMap
}
