package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.NewRegistry())
}

func TestPrometheusMetricsCounters(t *testing.T) {
	m := newTestMetrics()

	m.UpdateConnectionMetrics(1, 1)
	m.AddBytesSent(1024)
	m.AddBytesReceived(2048)
	m.IncrementErrors()
	m.IncrementRetransmits()
	m.IncrementHandshakes()
	m.IncrementZeroRTT()
	m.IncrementOneRTT()
	m.IncrementSessionResumptions()

	if got := testutil.ToFloat64(m.ConnectionsTotal); got != 1 {
		t.Errorf("ConnectionsTotal = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamsTotal); got != 1 {
		t.Errorf("StreamsTotal = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesSent); got != 1024 {
		t.Errorf("BytesSent = %f, want 1024", got)
	}
	if got := testutil.ToFloat64(m.BytesReceived); got != 2048 {
		t.Errorf("BytesReceived = %f, want 2048", got)
	}
	if got := testutil.ToFloat64(m.Errors); got != 1 {
		t.Errorf("Errors = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.Retransmits); got != 1 {
		t.Errorf("Retransmits = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.Handshakes); got != 1 {
		t.Errorf("Handshakes = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.ZeroRTT); got != 1 {
		t.Errorf("ZeroRTT = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.OneRTT); got != 1 {
		t.Errorf("OneRTT = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionResumptions); got != 1 {
		t.Errorf("SessionResumptions = %f, want 1", got)
	}
}

func TestPrometheusMetricsGauges(t *testing.T) {
	m := newTestMetrics()

	m.SetCurrentThroughput(1000)
	m.SetPacketLossRate(0.01)
	m.SetConnectionDuration(30 * time.Second)

	if got := testutil.ToFloat64(m.ThroughputBps); got != 1000 {
		t.Errorf("ThroughputBps = %f, want 1000", got)
	}
	if got := testutil.ToFloat64(m.PacketLossRate); got != 0.01 {
		t.Errorf("PacketLossRate = %f, want 0.01", got)
	}
	if got := testutil.ToFloat64(m.ConnectionDurationMs); got != 30000 {
		t.Errorf("ConnectionDurationMs = %f, want 30000", got)
	}
}

func TestPrometheusMetricsHistograms(t *testing.T) {
	m := newTestMetrics()

	m.RecordLatency(100 * time.Millisecond)
	m.RecordJitter(5 * time.Millisecond)
	m.RecordThroughput(1000)
	m.RecordHandshakeTime(200 * time.Millisecond)
	m.RecordRTT(50 * time.Millisecond)

	if got := testutil.ToFloat64(m.RTTMeanMs); got != 100 {
		t.Errorf("RTTMeanMs = %f, want 100", got)
	}
	if got := testutil.ToFloat64(m.RTTMaxMs); got != 5 {
		t.Errorf("RTTMaxMs = %f, want 5", got)
	}
	if got := testutil.ToFloat64(m.ThroughputBps); got != 1000 {
		t.Errorf("ThroughputBps = %f, want 1000", got)
	}
	if got := testutil.ToFloat64(m.RTTMinMs); got != 200 {
		t.Errorf("RTTMinMs = %f, want 200", got)
	}
}

func TestPrometheusMetricsEvents(t *testing.T) {
	m := newTestMetrics()

	m.RecordScenarioEvent("wifi")
	m.RecordErrorEvent("timeout")
	m.RecordProtocolEvent("handshake")
	m.RecordNetworkLatency("satellite", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.ScenarioEvents.WithLabelValues("wifi")); got != 1 {
		t.Errorf("ScenarioEvents[wifi] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.ErrorEvents.WithLabelValues("timeout")); got != 1 {
		t.Errorf("ErrorEvents[timeout] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProtocolEvents.WithLabelValues("handshake")); got != 1 {
		t.Errorf("ProtocolEvents[handshake] = %f, want 1", got)
	}
}

func TestPrometheusMetricsActiveGaugesRoundTrip(t *testing.T) {
	m := newTestMetrics()

	m.IncrementConnections()
	m.IncrementStreams()

	if got := testutil.ToFloat64(m.ConnectionsActive); got != 1 {
		t.Errorf("ConnectionsActive = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.StreamsActive); got != 1 {
		t.Errorf("StreamsActive = %f, want 1", got)
	}

	m.DecrementConnections()
	m.DecrementStreams()

	if got := testutil.ToFloat64(m.ConnectionsActive); got != 0 {
		t.Errorf("ConnectionsActive = %f, want 0", got)
	}
	if got := testutil.ToFloat64(m.StreamsActive); got != 0 {
		t.Errorf("StreamsActive = %f, want 0", got)
	}
}

func TestPrometheusMetricsCCGauges(t *testing.T) {
	m := newTestMetrics()

	m.UpdateCCMetrics(128, 2_000_000, 1_800_000, 3, 7, "PROBE_BW")

	if got := testutil.ToFloat64(m.CCCwndSegments); got != 128 {
		t.Errorf("CCCwndSegments = %f, want 128", got)
	}
	if got := testutil.ToFloat64(m.CCPacingRateBps); got != 2_000_000 {
		t.Errorf("CCPacingRateBps = %f, want 2000000", got)
	}
	if got := testutil.ToFloat64(m.CCMode.WithLabelValues("PROBE_BW")); got != 1 {
		t.Errorf("CCMode[PROBE_BW] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.CCMode.WithLabelValues("DRAIN_PROBE")); got != 0 {
		t.Errorf("CCMode[DRAIN_PROBE] = %f, want 0", got)
	}
}
