package internal

import (
	"fmt"
	"os"
	"time"
)

// ExportPrometheusMetrics экспортирует метрики в Prometheus text exposition format
func ExportPrometheusMetrics(cfg TestConfig, metrics map[string]interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create prometheus file: %w", err)
	}
	defer file.Close()

	// Заголовок с HELP и TYPE
	file.WriteString("# HELP quic_test_duration_seconds Test duration in seconds\n")
	file.WriteString("# TYPE quic_test_duration_seconds gauge\n")
	
	file.WriteString("# HELP quic_test_connections_total Number of connections\n")
	file.WriteString("# TYPE quic_test_connections_total gauge\n")
	
	file.WriteString("# HELP quic_test_bytes_sent_total Total bytes sent\n")
	file.WriteString("# TYPE quic_test_bytes_sent_total counter\n")
	
	file.WriteString("# HELP quic_test_packets_sent_total Total packets sent\n")
	file.WriteString("# TYPE quic_test_packets_sent_total counter\n")
	
	file.WriteString("# HELP quic_test_errors_total Total errors\n")
	file.WriteString("# TYPE quic_test_errors_total counter\n")
	
	file.WriteString("# HELP quic_test_latency_p50_ms Latency p50 in milliseconds\n")
	file.WriteString("# TYPE quic_test_latency_p50_ms gauge\n")
	
	file.WriteString("# HELP quic_test_latency_p95_ms Latency p95 in milliseconds\n")
	file.WriteString("# TYPE quic_test_latency_p95_ms gauge\n")
	
	file.WriteString("# HELP quic_test_latency_p99_ms Latency p99 in milliseconds\n")
	file.WriteString("# TYPE quic_test_latency_p99_ms gauge\n")
	
	file.WriteString("# HELP quic_test_jitter_ms Jitter in milliseconds\n")
	file.WriteString("# TYPE quic_test_jitter_ms gauge\n")
	
	file.WriteString("# HELP quic_test_throughput_mbps Throughput in Mbps\n")
	file.WriteString("# TYPE quic_test_throughput_mbps gauge\n")
	
	file.WriteString("# HELP quic_test_packet_loss_percent Packet loss percentage\n")
	file.WriteString("# TYPE quic_test_packet_loss_percent gauge\n")
	
	file.WriteString("# HELP quic_test_retransmission_rate_percent Retransmission rate percentage\n")
	file.WriteString("# TYPE quic_test_retransmission_rate_percent gauge\n")

	// Базовые метрики (используем функции из schema.go)
	bytesSent := getInt64(metrics, "BytesSent")
	success := getInt(metrics, "Success")
	errors := getInt(metrics, "Errors")
	
	durationSec := float64(cfg.Duration.Seconds())
	if durationSec == 0 {
		durationSec = 60.0 // default
	}
	
	rttP50 := getFloat64FromMap(metrics, "RTTP50Ms")
	rttP95 := getFloat64FromMap(metrics, "RTTP95Ms")
	rttP99 := getFloat64FromMap(metrics, "RTTP99Ms")
	jitter := getFloat64FromMap(metrics, "JitterMs")
	throughputMbps := getFloat64FromMap(metrics, "ThroughputMbps")
	packetLoss := getFloat64FromMap(metrics, "PacketLoss") * 100
	retransmissionRate := getFloat64FromMap(metrics, "RetransmissionRate") * 100

	// Записываем метрики
	file.WriteString(fmt.Sprintf("quic_test_duration_seconds{cc=\"%s\"} %.2f\n", cfg.CongestionControl, durationSec))
	file.WriteString(fmt.Sprintf("quic_test_connections_total{cc=\"%s\"} %d\n", cfg.CongestionControl, cfg.Connections))
	file.WriteString(fmt.Sprintf("quic_test_bytes_sent_total{cc=\"%s\"} %d\n", cfg.CongestionControl, bytesSent))
	file.WriteString(fmt.Sprintf("quic_test_packets_sent_total{cc=\"%s\"} %d\n", cfg.CongestionControl, success))
	file.WriteString(fmt.Sprintf("quic_test_errors_total{cc=\"%s\"} %d\n", cfg.CongestionControl, errors))
	file.WriteString(fmt.Sprintf("quic_test_latency_p50_ms{cc=\"%s\"} %.3f\n", cfg.CongestionControl, rttP50))
	file.WriteString(fmt.Sprintf("quic_test_latency_p95_ms{cc=\"%s\"} %.3f\n", cfg.CongestionControl, rttP95))
	file.WriteString(fmt.Sprintf("quic_test_latency_p99_ms{cc=\"%s\"} %.3f\n", cfg.CongestionControl, rttP99))
	file.WriteString(fmt.Sprintf("quic_test_jitter_ms{cc=\"%s\"} %.3f\n", cfg.CongestionControl, jitter))
	file.WriteString(fmt.Sprintf("quic_test_throughput_mbps{cc=\"%s\"} %.3f\n", cfg.CongestionControl, throughputMbps))
	file.WriteString(fmt.Sprintf("quic_test_packet_loss_percent{cc=\"%s\"} %.3f\n", cfg.CongestionControl, packetLoss))
	file.WriteString(fmt.Sprintf("quic_test_retransmission_rate_percent{cc=\"%s\"} %.3f\n", cfg.CongestionControl, retransmissionRate))

	// Метрики Flow Controller (Spline)
	if splineMetrics, ok := metrics["SplineMetrics"].(map[string]interface{}); ok {
		file.WriteString("\n# Spline flow controller metrics\n")
		file.WriteString("# HELP quic_spline_mode_current Current probe mode\n")
		file.WriteString("# TYPE quic_spline_mode_current gauge\n")
		file.WriteString("# HELP quic_spline_cwnd_segments Congestion window in segments\n")
		file.WriteString("# TYPE quic_spline_cwnd_segments gauge\n")
		file.WriteString("# HELP quic_spline_bandwidth_bps Bandwidth estimate\n")
		file.WriteString("# TYPE quic_spline_bandwidth_bps gauge\n")
		file.WriteString("# HELP quic_spline_pacing_rate_bps Pacing rate\n")
		file.WriteString("# TYPE quic_spline_pacing_rate_bps gauge\n")
		file.WriteString("# HELP quic_spline_fairness_ratio Fairness coefficient\n")
		file.WriteString("# TYPE quic_spline_fairness_ratio gauge\n")

		mode := getString(splineMetrics, "mode")
		modeValue := 0.0
		switch mode {
		case "START_PROBE":
			modeValue = 1.0
		case "PROBE_BW":
			modeValue = 2.0
		case "PROBE_RTT":
			modeValue = 3.0
		case "DRAIN_PROBE":
			modeValue = 4.0
		}

		cwndSegments := getFloat64FromMap(splineMetrics, "cwnd_segments")
		bandwidthBps := getFloat64FromMap(splineMetrics, "bandwidth_bps")
		pacingRateBps := getFloat64FromMap(splineMetrics, "pacing_rate_bps")
		fairnessRatio := getFloat64FromMap(splineMetrics, "fairness_ratio")

		file.WriteString(fmt.Sprintf("quic_spline_mode_current{cc=\"%s\"} %.0f\n", cfg.CongestionControl, modeValue))
		file.WriteString(fmt.Sprintf("quic_spline_cwnd_segments{cc=\"%s\"} %.0f\n", cfg.CongestionControl, cwndSegments))
		file.WriteString(fmt.Sprintf("quic_spline_bandwidth_bps{cc=\"%s\"} %.0f\n", cfg.CongestionControl, bandwidthBps))
		file.WriteString(fmt.Sprintf("quic_spline_pacing_rate_bps{cc=\"%s\"} %.0f\n", cfg.CongestionControl, pacingRateBps))
		file.WriteString(fmt.Sprintf("quic_spline_fairness_ratio{cc=\"%s\"} %.0f\n", cfg.CongestionControl, fairnessRatio))
	}

	file.WriteString(fmt.Sprintf("\n# Timestamp: %s\n", time.Now().Format(time.RFC3339)))
	
	return nil
}

