package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics holds every gauge/counter/histogram this harness
// exports: connection/stream bookkeeping, transfer counters, latency
// distributions, and the Spline Flow Controller's own state (cwnd, pacing
// rate, bandwidth, fairness, mode).
type PrometheusMetrics struct {
	ConnectionsTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
	StreamsTotal       prometheus.Counter
	StreamsActive      prometheus.Gauge
	BytesSent          prometheus.Counter
	BytesReceived      prometheus.Counter
	PacketsSent        prometheus.Counter
	PacketsLost        prometheus.Counter
	Retransmits        prometheus.Counter
	Errors             prometheus.Counter
	Handshakes         prometheus.Counter
	ZeroRTT            prometheus.Counter
	OneRTT             prometheus.Counter
	SessionResumptions prometheus.Counter

	ThroughputBps        prometheus.Gauge
	PacketLossRate       prometheus.Gauge
	ConnectionDurationMs prometheus.Gauge

	RTTMeanMs prometheus.Gauge
	RTTMinMs  prometheus.Gauge
	RTTMaxMs  prometheus.Gauge

	LatencyHistogram   prometheus.Histogram
	JitterHistogram    prometheus.Histogram
	HandshakeHistogram prometheus.Histogram
	RTTHistogram       prometheus.Histogram

	ScenarioEvents   *prometheus.CounterVec
	ErrorEvents      *prometheus.CounterVec
	ProtocolEvents   *prometheus.CounterVec
	NetworkLatency   *prometheus.HistogramVec
	ScenarioDuration prometheus.Histogram

	// Flow Controller state, updated from congestion.SplineMetrics.
	CCCwndSegments  prometheus.Gauge
	CCPacingRateBps prometheus.Gauge
	CCBandwidthBps  prometheus.Gauge
	CCFairnessRatio prometheus.Gauge
	CCEpoch         prometheus.Gauge
	CCMode          *prometheus.GaugeVec
}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// NewPrometheusMetrics creates metrics registered against the default
// Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry creates metrics registered against a
// caller-supplied registry, letting tests use an isolated one.
func NewPrometheusMetricsWithRegistry(registry prometheus.Registerer) *PrometheusMetrics {
	reg := func(c prometheus.Collector) {
		if registry != nil {
			registry.MustRegister(c)
		}
	}

	m := &PrometheusMetrics{
		ConnectionsTotal:   prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_connections_total", Help: "Total QUIC connections established"}),
		ConnectionsActive:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_connections_active", Help: "Currently active QUIC connections"}),
		StreamsTotal:       prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_streams_total", Help: "Total QUIC streams opened"}),
		StreamsActive:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_streams_active", Help: "Currently active QUIC streams"}),
		BytesSent:          prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_bytes_sent_total", Help: "Total bytes sent"}),
		BytesReceived:      prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_bytes_received_total", Help: "Total bytes received"}),
		PacketsSent:        prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_packets_sent_total", Help: "Total packets sent"}),
		PacketsLost:        prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_packets_lost_total", Help: "Total packets lost"}),
		Retransmits:        prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_retransmits_total", Help: "Total retransmitted packets"}),
		Errors:             prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_errors_total", Help: "Total errors encountered"}),
		Handshakes:         prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_handshakes_total", Help: "Total completed handshakes"}),
		ZeroRTT:            prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_zero_rtt_total", Help: "Total 0-RTT handshakes"}),
		OneRTT:             prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_one_rtt_total", Help: "Total 1-RTT handshakes"}),
		SessionResumptions: prometheus.NewCounter(prometheus.CounterOpts{Name: "quic_session_resumptions_total", Help: "Total resumed sessions"}),

		ThroughputBps:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_throughput_bps", Help: "Current throughput in bytes/sec"}),
		PacketLossRate:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_packet_loss_rate", Help: "Current packet loss rate"}),
		ConnectionDurationMs: prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_connection_duration_ms", Help: "Last recorded connection duration"}),

		RTTMeanMs: prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_rtt_mean_ms", Help: "Mean RTT in milliseconds"}),
		RTTMinMs:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_rtt_min_ms", Help: "Minimum observed RTT in milliseconds"}),
		RTTMaxMs:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "quic_rtt_max_ms", Help: "Maximum observed RTT in milliseconds"}),

		LatencyHistogram:   prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quic_latency_seconds", Help: "Latency distribution", Buckets: latencyBuckets}),
		JitterHistogram:    prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quic_jitter_seconds", Help: "Jitter distribution", Buckets: latencyBuckets}),
		HandshakeHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quic_handshake_seconds", Help: "Handshake duration distribution", Buckets: latencyBuckets}),
		RTTHistogram:       prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quic_rtt_seconds", Help: "RTT distribution", Buckets: latencyBuckets}),

		ScenarioEvents: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quic_scenario_events_total", Help: "Scenario events by name"}, []string{"scenario"}),
		ErrorEvents:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quic_error_events_total", Help: "Error events by type"}, []string{"error_type"}),
		ProtocolEvents: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "quic_protocol_events_total", Help: "Protocol-level events"}, []string{"event"}),
		NetworkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "quic_network_latency_seconds", Help: "Injected network latency by profile", Buckets: latencyBuckets}, []string{"profile"}),
		ScenarioDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "quic_scenario_duration_seconds", Help: "Scenario execution duration", Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300}}),

		CCCwndSegments:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "spline_cwnd_segments", Help: "Flow Controller congestion window, in segments"}),
		CCPacingRateBps: prometheus.NewGauge(prometheus.GaugeOpts{Name: "spline_pacing_rate_bps", Help: "Flow Controller pacing rate, bytes/sec"}),
		CCBandwidthBps:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "spline_bandwidth_bps", Help: "Flow Controller bandwidth estimate, bytes/sec"}),
		CCFairnessRatio: prometheus.NewGauge(prometheus.GaugeOpts{Name: "spline_fairness_ratio", Help: "Flow Controller fairness coefficient"}),
		CCEpoch:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "spline_epoch", Help: "Flow Controller epoch tick counter"}),
		CCMode:          prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "spline_mode", Help: "Flow Controller probe mode, 1 for the active mode"}, []string{"mode"}),
	}

	reg(m.ConnectionsTotal)
	reg(m.ConnectionsActive)
	reg(m.StreamsTotal)
	reg(m.StreamsActive)
	reg(m.BytesSent)
	reg(m.BytesReceived)
	reg(m.PacketsSent)
	reg(m.PacketsLost)
	reg(m.Retransmits)
	reg(m.Errors)
	reg(m.Handshakes)
	reg(m.ZeroRTT)
	reg(m.OneRTT)
	reg(m.SessionResumptions)
	reg(m.ThroughputBps)
	reg(m.PacketLossRate)
	reg(m.ConnectionDurationMs)
	reg(m.RTTMeanMs)
	reg(m.RTTMinMs)
	reg(m.RTTMaxMs)
	reg(m.LatencyHistogram)
	reg(m.JitterHistogram)
	reg(m.HandshakeHistogram)
	reg(m.RTTHistogram)
	reg(m.ScenarioEvents)
	reg(m.ErrorEvents)
	reg(m.ProtocolEvents)
	reg(m.NetworkLatency)
	reg(m.ScenarioDuration)
	reg(m.CCCwndSegments)
	reg(m.CCPacingRateBps)
	reg(m.CCBandwidthBps)
	reg(m.CCFairnessRatio)
	reg(m.CCEpoch)
	reg(m.CCMode)

	return m
}

func (m *PrometheusMetrics) IncrementConnections() { m.ConnectionsTotal.Inc(); m.ConnectionsActive.Inc() }
func (m *PrometheusMetrics) DecrementConnections() { m.ConnectionsActive.Dec() }
func (m *PrometheusMetrics) IncrementStreams()     { m.StreamsTotal.Inc(); m.StreamsActive.Inc() }
func (m *PrometheusMetrics) DecrementStreams()     { m.StreamsActive.Dec() }

func (m *PrometheusMetrics) AddBytesSent(n int64)     { m.BytesSent.Add(float64(n)) }
func (m *PrometheusMetrics) AddBytesReceived(n int64) { m.BytesReceived.Add(float64(n)) }

func (m *PrometheusMetrics) IncrementErrors()             { m.Errors.Inc() }
func (m *PrometheusMetrics) IncrementRetransmits()        { m.Retransmits.Inc() }
func (m *PrometheusMetrics) IncrementHandshakes()         { m.Handshakes.Inc() }
func (m *PrometheusMetrics) IncrementZeroRTT()            { m.ZeroRTT.Inc() }
func (m *PrometheusMetrics) IncrementOneRTT()             { m.OneRTT.Inc() }
func (m *PrometheusMetrics) IncrementSessionResumptions() { m.SessionResumptions.Inc() }

// UpdateConnectionMetrics sets the active connection/stream gauges and
// counts one more of each against the lifetime totals.
func (m *PrometheusMetrics) UpdateConnectionMetrics(activeConnections, activeStreams int) {
	m.ConnectionsTotal.Inc()
	m.StreamsTotal.Inc()
	m.ConnectionsActive.Set(float64(activeConnections))
	m.StreamsActive.Set(float64(activeStreams))
}

// UpdatePerformanceMetrics records one round of throughput/loss/duration
// observations.
func (m *PrometheusMetrics) UpdatePerformanceMetrics(bytesSent int64, throughputBps, lossRate float64, duration time.Duration) {
	m.BytesSent.Add(float64(bytesSent))
	m.ThroughputBps.Set(throughputBps)
	m.PacketLossRate.Set(lossRate)
	m.ConnectionDurationMs.Set(float64(duration.Milliseconds()))
}

func (m *PrometheusMetrics) SetCurrentThroughput(bps float64)  { m.ThroughputBps.Set(bps) }
func (m *PrometheusMetrics) SetPacketLossRate(rate float64)    { m.PacketLossRate.Set(rate) }
func (m *PrometheusMetrics) SetCurrentLatency(d time.Duration) { m.RTTMeanMs.Set(msOf(d)) }
func (m *PrometheusMetrics) SetConnectionDuration(d time.Duration) {
	m.ConnectionDurationMs.Set(float64(d.Milliseconds()))
}

func (m *PrometheusMetrics) RecordLatency(d time.Duration)   { m.LatencyHistogram.Observe(d.Seconds()); m.RTTMeanMs.Set(msOf(d)) }
func (m *PrometheusMetrics) RecordJitter(d time.Duration)    { m.JitterHistogram.Observe(d.Seconds()); m.RTTMaxMs.Set(msOf(d)) }
func (m *PrometheusMetrics) RecordThroughput(bps float64)    { m.ThroughputBps.Set(bps) }
func (m *PrometheusMetrics) RecordHandshakeTime(d time.Duration) {
	m.HandshakeHistogram.Observe(d.Seconds())
	m.RTTMinMs.Set(msOf(d))
}
func (m *PrometheusMetrics) RecordRTT(d time.Duration) { m.RTTHistogram.Observe(d.Seconds()) }

func (m *PrometheusMetrics) RecordScenarioEvent(scenario string)    { m.ScenarioEvents.WithLabelValues(scenario).Inc() }
func (m *PrometheusMetrics) RecordErrorEvent(errorType string)      { m.ErrorEvents.WithLabelValues(errorType).Inc() }
func (m *PrometheusMetrics) RecordProtocolEvent(event string)       { m.ProtocolEvents.WithLabelValues(event).Inc() }
func (m *PrometheusMetrics) RecordNetworkLatency(profile string, d time.Duration) {
	m.NetworkLatency.WithLabelValues(profile).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordScenarioDuration(d time.Duration) {
	m.ScenarioDuration.Observe(d.Seconds())
}

// UpdateCCMetrics pushes a Flow Controller snapshot into the gauges above.
// mode is reset to 0 for every known mode, then set to 1 for the active one.
func (m *PrometheusMetrics) UpdateCCMetrics(cwndSegments uint32, pacingRateBps, bandwidthBps uint64, fairnessRatio, epoch uint32, mode string) {
	m.CCCwndSegments.Set(float64(cwndSegments))
	m.CCPacingRateBps.Set(float64(pacingRateBps))
	m.CCBandwidthBps.Set(float64(bandwidthBps))
	m.CCFairnessRatio.Set(float64(fairnessRatio))
	m.CCEpoch.Set(float64(epoch))

	for _, known := range []string{"START_PROBE", "PROBE_BW", "PROBE_RTT", "DRAIN_PROBE"} {
		if known == mode {
			m.CCMode.WithLabelValues(known).Set(1)
		} else {
			m.CCMode.WithLabelValues(known).Set(0)
		}
	}
}

func msOf(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
