package server

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// newTestExporter builds an exporter on a fresh registry so repeated
// construction across tests does not collide in the default registry.
func newTestExporter() *AdvancedPrometheusExporter {
	return NewAdvancedPrometheusExporterWithRegistry(":9000", prometheus.NewRegistry())
}

func TestNewAdvancedPrometheusExporter(t *testing.T) {
	exporter := newTestExporter()

	if exporter == nil {
		t.Fatal("NewAdvancedPrometheusExporterWithRegistry returned nil")
	}
	if exporter.metrics == nil {
		t.Error("metrics is nil")
	}
	if exporter.serverMetrics == nil {
		t.Error("serverMetrics is nil")
	}
	if exporter.serverMetrics.ServerAddr != ":9000" {
		t.Errorf("expected server addr :9000, got %s", exporter.serverMetrics.ServerAddr)
	}
}

func TestUpdateServerInfo(t *testing.T) {
	exporter := newTestExporter()

	exporter.UpdateServerInfo(100)

	sm := exporter.GetServerMetrics()
	if sm.MaxConnections != 100 {
		t.Errorf("expected MaxConnections 100, got %d", sm.MaxConnections)
	}
	if sm.Uptime < 0 {
		t.Errorf("expected non-negative uptime, got %v", sm.Uptime)
	}
}

func TestRecordRequestProcessing(t *testing.T) {
	exporter := newTestExporter()

	// Не должно паниковать
	exporter.RecordRequestProcessing("echo", "conn1", 10*time.Millisecond, "success")
}

func TestRecordConnectionAndStreamInfo(t *testing.T) {
	exporter := newTestExporter()

	// Не должно паниковать
	exporter.RecordConnectionInfo("conn1", "127.0.0.1:5000", "TLS1.3", "AES256-GCM", "active")
	exporter.RecordStreamInfo("stream1", "conn1", "bidirectional", "active", "inbound")
	exporter.RecordDataProcessing("read", "conn1", "stream1", "payload", 4096)
}

func TestServerCountersAndGauges(t *testing.T) {
	exporter := newTestExporter()

	// Не должно паниковать
	exporter.IncrementConnections()
	exporter.DecrementConnections()
	exporter.IncrementStreams()
	exporter.DecrementStreams()
	exporter.AddBytesSent(1024)
	exporter.AddBytesReceived(2048)
	exporter.IncrementErrors()
	exporter.IncrementRetransmits()
	exporter.SetCurrentThroughput(2048.0)
	exporter.SetCurrentLatency(20 * time.Millisecond)
	exporter.SetPacketLossRate(0.02)
	exporter.RecordNetworkLatency("satellite", "conn1", "eu-west", 500*time.Millisecond)
}
