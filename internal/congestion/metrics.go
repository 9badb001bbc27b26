package congestion

import (
	"math"
	"time"
)

// SplineMetrics is a point-in-time snapshot of a FlowController's internal
// state, exported for dashboards and reports. It is a plain value copy —
// taking one never mutates the controller.
type SplineMetrics struct {
	Mode          string `json:"mode"`
	CWNDSegments  uint32 `json:"cwnd_segments"`
	LastMaxCWND   uint32 `json:"last_max_cwnd_segments"`
	PriorCWND     uint32 `json:"prior_cwnd_segments"`
	PacingRateBps uint64 `json:"pacing_rate_bps"`
	BandwidthBps  uint64 `json:"bandwidth_bps"`
	FairnessRatio uint32 `json:"fairness_ratio"`
	CurrRTTUs     uint32 `json:"curr_rtt_us"`
	MinRTTUs      uint32 `json:"min_rtt_us"`
	RTTAvgUs      uint32 `json:"rtt_avg_us"`
	Epsilon       uint32 `json:"epsilon"`
	Gamma         uint32 `json:"gamma"`
	Epoch         uint32 `json:"epoch"`
}

// CalculateBufferbloatFactor calculates bufferbloat: (avg_rtt / min_rtt) - 1.
// avgRTT and minRTT are the host's own latency measurements, independent of
// the core's internal rtt_avg/last_min_rtt fixed-point fields.
func CalculateBufferbloatFactor(avgRTT, minRTT time.Duration) float64 {
	if minRTT <= 0 || avgRTT <= 0 {
		return 0.0
	}
	if avgRTT < minRTT {
		return 0.0
	}
	return (float64(avgRTT) / float64(minRTT)) - 1.0
}

// CalculateStabilityIndex calculates stability: |Δ throughput / Δ rtt|. Lower
// is more stable.
func CalculateStabilityIndex(throughputDelta, rttDelta float64) float64 {
	if rttDelta == 0 {
		return 0.0
	}
	return math.Abs(throughputDelta / rttDelta)
}

// JainFairnessIndex calculates Jain's Fairness Index for concurrently-run
// flows: (Σx)² / (n·Σx²). The core itself only ever reasons about a single
// flow's fairness_rat; this is a host-side check across multiple flows.
func JainFairnessIndex(throughputs []float64) float64 {
	if len(throughputs) == 0 {
		return 0.0
	}
	if len(throughputs) == 1 {
		return 1.0
	}

	sum := 0.0
	sumSquares := 0.0

	for _, t := range throughputs {
		if t < 0 {
			t = 0
		}
		sum += t
		sumSquares += t * t
	}

	if sum == 0 || sumSquares == 0 {
		return 0.0
	}

	n := float64(len(throughputs))
	return (sum * sum) / (n * sumSquares)
}

// CalculateRTTPercentiles calculates p50, p95, p99 from RTT samples.
func CalculateRTTPercentiles(rttSamples []time.Duration) (p50, p95, p99 time.Duration) {
	if len(rttSamples) == 0 {
		return 0, 0, 0
	}

	samples := make([]float64, len(rttSamples))
	for i, rtt := range rttSamples {
		samples[i] = float64(rtt.Nanoseconds()) / 1e6
	}

	for i := 0; i < len(samples)-1; i++ {
		for j := i + 1; j < len(samples); j++ {
			if samples[i] > samples[j] {
				samples[i], samples[j] = samples[j], samples[i]
			}
		}
	}

	n := len(samples)
	p50Idx := int(float64(n) * 0.50)
	p95Idx := int(float64(n) * 0.95)
	p99Idx := int(float64(n) * 0.99)

	if p50Idx >= n {
		p50Idx = n - 1
	}
	if p95Idx >= n {
		p95Idx = n - 1
	}
	if p99Idx >= n {
		p99Idx = n - 1
	}

	p50 = time.Duration(samples[p50Idx] * 1e6)
	p95 = time.Duration(samples[p95Idx] * 1e6)
	p99 = time.Duration(samples[p99Idx] * 1e6)

	return
}

// CalculateJitter calculates standard deviation of RTT samples.
func CalculateJitter(rttSamples []time.Duration) time.Duration {
	if len(rttSamples) == 0 {
		return 0
	}

	samples := make([]float64, len(rttSamples))
	for i, rtt := range rttSamples {
		samples[i] = float64(rtt.Nanoseconds()) / 1e6
	}

	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	variance := 0.0
	for _, s := range samples {
		diff := s - mean
		variance += diff * diff
	}
	variance /= float64(len(samples))

	stdDev := math.Sqrt(variance)

	return time.Duration(stdDev * 1e6)
}

// CalculateGoodput calculates goodput: (bytes_acked - retransmitted_bytes) / time.
func CalculateGoodput(bytesAcked, retransmittedBytes int64, duration time.Duration) float64 {
	if duration <= 0 {
		return 0.0
	}
	goodputBytes := bytesAcked - retransmittedBytes
	if goodputBytes < 0 {
		goodputBytes = 0
	}
	return float64(goodputBytes) / duration.Seconds()
}

// CalculateRetransmissionRate calculates retransmission rate: retransmitted / sent.
func CalculateRetransmissionRate(retransmittedPackets, sentPackets int64) float64 {
	if sentPackets == 0 {
		return 0.0
	}
	return float64(retransmittedPackets) / float64(sentPackets)
}

// CalculateRecoveryTime estimates recovery time from loss events, measured
// externally by tracking time from loss to full recovery.
func CalculateRecoveryTime(lossEventTime, recoveryTime time.Time) time.Duration {
	if recoveryTime.Before(lossEventTime) {
		return 0
	}
	return recoveryTime.Sub(lossEventTime)
}

// CalculateLossRecoveryEfficiency calculates: recovered_packets / lost_packets.
func CalculateLossRecoveryEfficiency(recoveredPackets, lostPackets int64) float64 {
	if lostPackets == 0 {
		return 1.0
	}
	efficiency := float64(recoveredPackets) / float64(lostPackets)
	if efficiency > 1.0 {
		efficiency = 1.0
	}
	return efficiency
}
