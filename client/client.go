package client

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/Kaibek/SplineCC/internal"
	"github.com/Kaibek/SplineCC/internal/congestion"
	"github.com/Kaibek/SplineCC/internal/metrics"
	ccmetrics "github.com/Kaibek/SplineCC/internal/metrics"
	"github.com/Kaibek/SplineCC/internal/profiling"
	"github.com/Kaibek/SplineCC/internal/telemetry"

	"crypto/tls"
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quic-go/quic-go"
)

type TimePoint struct {
	Time  float64 `json:"Time"` // seconds since start
	Value float64 `json:"Value"`
}

// Metrics хранит метрики теста
type Metrics struct {
	mu         sync.Mutex
	Success    int
	Errors     int
	BytesSent  int
	Latencies  []float64
	Timestamps []time.Time
	Throughput []float64
	// Time series for latency and throughput
	TimeSeriesLatency    []TimePoint
	TimeSeriesThroughput []TimePoint

	// --- Advanced QUIC/TLS metrics ---
	PacketLoss             float64 // %
	Retransmits            int
	HandshakeTimes         []float64 // ms
	TLSVersion             string
	CipherSuite            string
	SessionResumptionCount int
	ZeroRTTCount           int
	OneRTTCount            int
	OutOfOrderCount        int
	FlowControlEvents      int
	KeyUpdateEvents        int
	ErrorTypeCounts        map[string]int // error type -> count
	// Time series for new metrics
	TimeSeriesPacketLoss    []TimePoint
	TimeSeriesRetransmits   []TimePoint
	TimeSeriesHandshakeTime []TimePoint

	// HDR Histograms for precise metrics
	HDRMetrics *metrics.HDRMetrics
}

// ToMap конвертирует метрики в map для совместимости с SLA проверками
func (m *Metrics) ToMap() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Вычисляем средние значения
	var avgLatency float64
	if len(m.Latencies) > 0 {
		sum := 0.0
		for _, l := range m.Latencies {
			sum += l
		}
		avgLatency = sum / float64(len(m.Latencies))
	}

	var avgThroughput float64
	if len(m.Throughput) > 0 {
		sum := 0.0
		for _, t := range m.Throughput {
			sum += t
		}
		avgThroughput = sum / float64(len(m.Throughput))
	}

	// Вычисляем RTT процентили из Latencies (в миллисекундах)
	var rttP50, rttP95, rttP99 float64
	if len(m.Latencies) > 0 {
		rttP50, rttP95, rttP99 = calcPercentiles(m.Latencies)
	}

	// Вычисляем jitter (стандартное отклонение)
	jitter := calcJitter(m.Latencies)

	// Вычисляем throughput в Mbps (корректная формула: bytes * 8 / duration_seconds / 1e6)
	var throughputMbps float64
	var minRTT float64
	if len(m.Timestamps) > 0 {
		duration := time.Since(m.Timestamps[0]).Seconds()
		if duration > 0 {
			throughputMbps = (float64(m.BytesSent) * 8) / (duration * 1_000_000) // Bytes to Mbps
		}
		// Находим min RTT из latencies
		if len(m.Latencies) > 0 {
			minRTT = m.Latencies[0]
			for _, l := range m.Latencies {
				if l > 0 && l < minRTT {
					minRTT = l
				}
			}
		}
	}

	// Вычисляем goodput (исключая ретрансмиты)
	var goodputMbps float64
	if len(m.Timestamps) > 0 {
		duration := time.Since(m.Timestamps[0]).Seconds()
		if duration > 0 {
			// Приблизительно: вычитаем ретрансмиты из отправленных байт
			estimatedRetransBytes := int64(m.Retransmits) * 1200 // Примерный размер пакета
			goodputBytes := int64(m.BytesSent) - estimatedRetransBytes
			if goodputBytes < 0 {
				goodputBytes = 0
			}
			goodputMbps = (float64(goodputBytes) * 8) / (duration * 1_000_000)
		}
	}

	// Вычисляем bufferbloat factor: (avg_rtt / min_rtt) - 1
	var bufferbloatFactor float64
	if minRTT > 0 && avgLatency > 0 {
		bufferbloatFactor = (avgLatency / minRTT) - 1.0
		if bufferbloatFactor < 0 {
			bufferbloatFactor = 0
		}
	}

	// Вычисляем Fairness Index (Jain's index) для всех соединений
	// Приблизительно: используем вариацию throughput по времени как proxy для fairness
	var fairnessIndex float64
	if len(m.TimeSeriesThroughput) > 0 {
		var sum, sumSq float64
		for _, tp := range m.TimeSeriesThroughput {
			if tp.Value > 0 {
				sum += tp.Value
				sumSq += tp.Value * tp.Value
			}
		}
		if sum > 0 && sumSq > 0 {
			fairnessIndex = (sum * sum) / (float64(len(m.TimeSeriesThroughput)) * sumSq)
		}
	} else {
		// Если нет time series, используем вариацию latencies как proxy
		if len(m.Latencies) > 0 {
			var sum, sumSq float64
			for _, l := range m.Latencies {
				if l > 0 {
					sum += l
					sumSq += l * l
				}
			}
			if sum > 0 && sumSq > 0 {
				fairnessIndex = (sum * sum) / (float64(len(m.Latencies)) * sumSq)
			}
		}
	}

	// Вычисляем retransmission rate
	var retransmissionRate float64
	if m.Success > 0 {
		retransmissionRate = float64(m.Retransmits) / float64(m.Success)
	}

	result := map[string]interface{}{
		"Success":                 m.Success,
		"Errors":                  m.Errors,
		"BytesSent":               m.BytesSent,
		"Latencies":               m.Latencies,
		"ThroughputAverage":       avgThroughput,
		"ThroughputMbps":          throughputMbps,
		"GoodputMbps":             goodputMbps,
		"RetransmissionRate":      retransmissionRate,
		"RTTP50Ms":                rttP50,
		"RTTP95Ms":                rttP95,
		"RTTP99Ms":                rttP99,
		"RTTMinMs":                minRTT,
		"RTTAvgMs":                avgLatency,
		"JitterMs":                jitter,
		"PacketLoss":              m.PacketLoss,
		"Retransmits":             m.Retransmits,
		"BufferbloatFactor":       bufferbloatFactor,
		"FairnessIndex":           fairnessIndex,
		"TLSVersion":              m.TLSVersion,
		"CipherSuite":             m.CipherSuite,
		"SessionResumptionCount":  m.SessionResumptionCount,
		"ZeroRTTCount":            m.ZeroRTTCount,
		"OneRTTCount":             m.OneRTTCount,
		"HandshakeTime":           avgLatency,
		"KeyUpdateEvents":         m.KeyUpdateEvents,
		"FlowControlEvents":       m.FlowControlEvents,
		"ErrorTypeCounts":         m.ErrorTypeCounts,
		"TimeSeriesLatency":       m.TimeSeriesLatency,
		"TimeSeriesThroughput":    m.TimeSeriesThroughput,
		"TimeSeriesPacketLoss":    m.TimeSeriesPacketLoss,
		"TimeSeriesRetransmits":   m.TimeSeriesRetransmits,
		"TimeSeriesHandshakeTime": m.TimeSeriesHandshakeTime,
	}

	// Добавляем HDR-метрики если доступны
	if m.HDRMetrics != nil {
		result["HDRLatencyStats"] = m.HDRMetrics.GetLatencyStats()
		result["HDRJitterStats"] = m.HDRMetrics.GetJitterStats()
		result["HDRHandshakeStats"] = m.HDRMetrics.GetHandshakeStats()
		result["HDRThroughputStats"] = m.HDRMetrics.GetThroughputStats()
		result["HDRNetworkStats"] = m.HDRMetrics.GetNetworkStats()
	}

	return result
}

// Run запускает клиентский тест
func Run(cfg internal.TestConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nПолучен сигнал завершения, формируем отчет...")
		cancel()
	}()

	testMetrics := &Metrics{
		HDRMetrics: metrics.NewHDRMetrics(),
	}
	var wg sync.WaitGroup

	if cfg.Prometheus {
		go startPrometheusExporter(testMetrics)
	}

	if cfg.PprofAddr != "" {
		profiler := profiling.NewProfiler(profiling.ProfilerConfig{Addr: cfg.PprofAddr, Enabled: true})
		if err := profiler.Start(ctx, profiling.ProfilerConfig{Addr: cfg.PprofAddr, Enabled: true}); err != nil {
			fmt.Printf("Не удалось запустить pprof: %v\n", err)
		}
	}

	startTime := time.Now()
	// Time series collector
	go func() {
		var lastCount int
		var lastBytes int
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(1 * time.Second):
				testMetrics.mu.Lock()
				now := time.Since(startTime).Seconds()
				lat := 0.0
				if len(testMetrics.Latencies) > lastCount {
					sum := 0.0
					for _, l := range testMetrics.Latencies[lastCount:] {
						sum += l
					}
					lat = sum / float64(len(testMetrics.Latencies[lastCount:]))
				}
				testMetrics.TimeSeriesLatency = append(testMetrics.TimeSeriesLatency, TimePoint{Time: now, Value: lat})
				bytesNow := testMetrics.BytesSent
				throughput := float64(bytesNow-lastBytes) / 1024.0
				testMetrics.TimeSeriesThroughput = append(testMetrics.TimeSeriesThroughput, TimePoint{Time: now, Value: throughput})
				lastCount = len(testMetrics.Latencies)
				lastBytes = bytesNow
				testMetrics.mu.Unlock()
			}
		}
	}()

	// --- Ramp-up/ramp-down сценарий ---
	var rate int64 = int64(cfg.Rate)
	cfgPtr := &cfg // чтобы менять Rate по указателю
	go func() {
		minRate := int64(1)
		maxRate := int64(cfg.Rate)
		if maxRate < 10 {
			maxRate = 100 // по умолчанию ramp-up до 100 pps
		}
		step := (maxRate - minRate) / 10
		if step < 1 {
			step = 1
		}
		for {
			// Ramp-up
			for r := minRate; r <= maxRate; r += step {
				atomic.StoreInt64(&rate, r)
				time.Sleep(1 * time.Second)
			}
			// Ramp-down
			for r := maxRate; r >= minRate; r -= step {
				atomic.StoreInt64(&rate, r)
				time.Sleep(1 * time.Second)
			}
		}
	}()

	for c := 0; c < cfg.Connections; c++ {
		wg.Add(1)
		go func(connID int) {
			defer wg.Done()
			clientConnection(ctx, *cfgPtr, testMetrics, connID, &rate)
		}(c)
	}

	if cfg.Duration > 0 {
		timer := time.NewTimer(cfg.Duration)
		go func() {
			<-timer.C
			fmt.Println("\nТест завершен по таймеру, формируем отчет...")
			cancel()
		}()
	}

	// Добавляем таймаут для wg.Wait чтобы избежать зависаний
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Ждем завершения или таймаут (дополнительные 10 секунд после duration)
	timeout := cfg.Duration + 10*time.Second
	if cfg.Duration == 0 {
		timeout = 120 * time.Second // default timeout
	}

	select {
	case <-done:
		// Все горутины завершились
	case <-time.After(timeout):
		fmt.Printf("\n⚠️  Таймаут ожидания завершения (%v). Завершаем принудительно...\n", timeout)
		cancel() // Отменяем контекст
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			fmt.Println("⚠️  Некоторые горутины не завершились, продолжаем...")
		}
	}

	fmt.Printf("\nТест завершен. Обработка результатов...\n")

	metricsMap := testMetrics.ToMap()
	metricsMap = internal.EnhanceMetricsMap(metricsMap)

	if splineMetrics, ok := metricsMap["SplineMetrics"].(map[string]interface{}); ok {
		bw := 0.0
		if bwBps, ok := splineMetrics["bandwidth_bps"].(float64); ok {
			bw = bwBps / 1_000_000
		}
		fmt.Printf("Flow Controller Mode: %v, BW: %.2f Mbps\n", splineMetrics["mode"], bw)
	}

	err := internal.SaveReport(cfg, metricsMap)
	if err != nil {
		fmt.Printf("Ошибка сохранения отчета: %v\n", err)
	}

	// Экспорт в Prometheus format
	if cfg.ReportPath != "" {
		// Создаем имя файла для Prometheus (заменяем расширение на .prom)
		promFile := cfg.ReportPath
		if len(promFile) > 4 && promFile[len(promFile)-5:] == ".json" {
			promFile = promFile[:len(promFile)-5] + ".prom"
		} else {
			promFile = promFile + ".prom"
		}

		if err := internal.ExportPrometheusMetrics(cfg, metricsMap, promFile); err != nil {
			fmt.Printf("Ошибка экспорта Prometheus метрик: %v\n", err)
		} else {
			fmt.Printf("Prometheus метрики сохранены: %s\n", promFile)
		}
	}

	// Проверяем SLA если настроено
	if cfg.SlaRttP95 > 0 || cfg.SlaLoss > 0 || cfg.SlaThroughput > 0 || cfg.SlaErrors > 0 || cfg.SlaMinCwnd > 0 || cfg.SlaMinFairness > 0 {
		internal.ExitWithSLA(cfg, metricsMap)
	}
}

func clientConnection(ctx context.Context, cfg internal.TestConfig, metrics *Metrics, connID int, ratePtr *int64) {
	var tlsConf *tls.Config
	if cfg.CertPath != "" && cfg.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			metrics.mu.Lock()
			metrics.Errors++
			if metrics.ErrorTypeCounts == nil {
				metrics.ErrorTypeCounts = map[string]int{}
			}
			metrics.ErrorTypeCounts["tls_load_cert"]++
			metrics.mu.Unlock()
			fmt.Println("Ошибка загрузки сертификата:", err)
			return
		}
		tlsConf = &tls.Config{
			Certificates:       []tls.Certificate{cert},
			InsecureSkipVerify: true,
			NextProtos:         []string{"splinecc"},
		}
	} else {
		// Используем единую функцию для генерации TLS конфигурации
		tlsConf = internal.GenerateTLSConfig(cfg.NoTLS)
	}

	// Создаем отдельный UDP connection для каждого QUIC connection
	// Это необходимо для поддержки большого количества одновременных connections
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		metrics.mu.Lock()
		metrics.Errors++
		if metrics.ErrorTypeCounts == nil {
			metrics.ErrorTypeCounts = map[string]int{}
		}
		metrics.ErrorTypeCounts["udp_socket"]++
		metrics.mu.Unlock()
		fmt.Printf("Ошибка создания UDP socket для connection %d: %v\n", connID, err)
		return
	}
	defer udpConn.Close()

	// Создаем отдельный Transport для каждого connection
	transport := &quic.Transport{
		Conn: udpConn,
	}
	defer transport.Close()

	// Flow controller, отдельный на соединение
	ccCfg := congestion.DefaultFlowConfig()
	if cfg.EpochCap > 0 {
		ccCfg.EpochCap = cfg.EpochCap
	}
	sc := congestion.NewSendController(cfg.PacketSize, 10, ccCfg)
	internal.GetGlobalMetricsCollector().SetSendController(sc)

	if cfg.Prometheus {
		cci := ccmetrics.NewCCIntegration(splinePrometheusMetrics(), sc)
		cci.StartMetricsCollection(time.Second)
	}

	if qm := splineTelemetry(ctx); qm != nil {
		defer func() {
			snap := sc.GetMetrics()
			qm.RecordSplineSnapshot(ctx, snap.CWNDSegments, float64(snap.BandwidthBps), float64(snap.PacingRateBps), snap.Epoch)
		}()
	}

	handshakeStart := time.Now()

	session, err := transport.Dial(ctx, parseAddr(cfg.Addr), tlsConf, nil)
	handshakeTime := time.Since(handshakeStart).Seconds() * 1000 // ms

	metrics.mu.Lock()
	metrics.HandshakeTimes = append(metrics.HandshakeTimes, handshakeTime)
	metrics.TimeSeriesHandshakeTime = append(metrics.TimeSeriesHandshakeTime, TimePoint{Time: time.Since(handshakeStart).Seconds(), Value: handshakeTime})
	// Записываем handshake время в HDR-гистограммы
	if metrics.HDRMetrics != nil {
		metrics.HDRMetrics.RecordHandshakeTime(time.Duration(handshakeTime) * time.Millisecond)
	}
	if err != nil {
		metrics.Errors++
		if metrics.ErrorTypeCounts == nil {
			metrics.ErrorTypeCounts = map[string]int{}
		}
		metrics.ErrorTypeCounts["quic_handshake"]++
		metrics.mu.Unlock()
		fmt.Println("Ошибка соединения:", err)
		return
	}
	// TLS negotiated params
	state := session.ConnectionState()
	metrics.TLSVersion = tlsVersionString(state.TLS.Version)
	metrics.CipherSuite = cipherSuiteString(state.TLS.CipherSuite)
	if state.TLS.DidResume {
		metrics.SessionResumptionCount++
	}
	if state.Used0RTT {
		metrics.ZeroRTTCount++
	} else {
		metrics.OneRTTCount++
	}
	metrics.mu.Unlock()
	defer func() {
		if err := session.CloseWithError(0, "client done"); err != nil {
			fmt.Printf("Warning: failed to close session: %v\n", err)
		}
	}()

	var wg sync.WaitGroup
	for s := 0; s < cfg.Streams; s++ {
		wg.Add(1)
		go func(streamID int) {
			defer wg.Done()
			clientStream(ctx, session, cfg, metrics, connID, streamID, ratePtr, sc)
		}(s)
	}

	// Добавляем таймаут для wg.Wait на уровне соединения
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	streamTimeout := cfg.Duration + 10*time.Second
	if cfg.Duration == 0 {
		streamTimeout = 70 * time.Second
	}

	select {
	case <-done:
		// Все стримы завершились
	case <-ctx.Done():
		// Контекст отменен - принудительно завершаем
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			fmt.Printf("[WARNING] Connection %d: Some streams didn't finish after context cancel\n", connID)
		}
	case <-time.After(streamTimeout):
		// Таймаут - принудительно завершаем
		fmt.Printf("[WARNING] Connection %d streams timeout after %v, canceling context\n", connID, streamTimeout)
		select {
		case <-done:
		case <-time.After(1 * time.Second):
		}
	}
}

// clientStream реализует передачу данных по QUIC-стриму и сбор метрик
func clientStream(ctx context.Context, session quic.Connection, cfg internal.TestConfig, metrics *Metrics, connID, streamID int, ratePtr *int64, sc *congestion.SendController) {
	stream, err := session.OpenStreamSync(ctx)
	if err != nil {
		metrics.mu.Lock()
		metrics.Errors++
		if metrics.ErrorTypeCounts == nil {
			metrics.ErrorTypeCounts = map[string]int{}
		}
		metrics.ErrorTypeCounts["open_stream"]++
		metrics.mu.Unlock()
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			fmt.Printf("Warning: failed to close stream: %v\n", err)
		}
	}()

	// Инициализация map для ошибок
	metrics.mu.Lock()
	if metrics.ErrorTypeCounts == nil {
		metrics.ErrorTypeCounts = map[string]int{}
	}
	metrics.mu.Unlock()

	packetSize := cfg.PacketSize
	pattern := cfg.Pattern
	sentPackets := 0
	ackedPackets := 0
	retransmits := 0
	outOfOrder := 0
	var lastSeq int64 = -1
	var seq int64
	start := time.Now()

	// Таймаут для цикла отправки
	sendTimeout := cfg.Duration
	if sendTimeout == 0 {
		sendTimeout = 60 * time.Second // default
	}
	sendDeadline := time.Now().Add(sendTimeout)

	for {
		// Проверяем контекст и таймаут перед каждой итерацией
		if time.Now().After(sendDeadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Эмуляция задержки (с проверкой контекста и deadline)
		if cfg.EmulateLatency > 0 {
			if time.Now().After(sendDeadline) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.EmulateLatency):
				if time.Now().After(sendDeadline) {
					return
				}
			}
		}
		// Эмуляция потери пакета
		if cfg.EmulateLoss > 0 && secureFloat64() < cfg.EmulateLoss {
			metrics.mu.Lock()
			metrics.ErrorTypeCounts["emulated_loss"]++
			metrics.mu.Unlock()
			sc.OnLoss()
			continue // пропускаем отправку
		}
		// Формируем пакет с seq
		buf := makePacket(packetSize, pattern)
		seq++
		if len(buf) >= 8 {
			for i := 0; i < 8; i++ {
				buf[i] = byte(seq >> (8 * i))
			}
		}

		// Дублирование пакета
		dupCount := 1
		if cfg.EmulateDup > 0 && secureFloat64() < cfg.EmulateDup {
			dupCount = 2
			metrics.mu.Lock()
			metrics.ErrorTypeCounts["emulated_dup"]++
			metrics.mu.Unlock()
		}
		for d := 0; d < dupCount; d++ {
			if time.Now().After(sendDeadline) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}

			now := time.Now()
			if !sc.CanSend(now, len(buf)) {
				// уважаем пейсинг/окно контроллера перегрузки
				time.Sleep(time.Millisecond)
			}
			sc.OnPacketSent(now, len(buf), false)

			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			writeDone := make(chan error, 1)
			var n int
			var err error

			go func() {
				n, err = stream.Write(buf)
				writeDone <- err
			}()

			select {
			case <-writeCtx.Done():
				writeCancel()
				metrics.mu.Lock()
				metrics.Errors++
				if metrics.ErrorTypeCounts == nil {
					metrics.ErrorTypeCounts = map[string]int{}
				}
				metrics.ErrorTypeCounts["stream_write_timeout"]++
				metrics.mu.Unlock()
				continue
			case err = <-writeDone:
				writeCancel()
			}

			var realRTT time.Duration
			if cfg.EmulateLatency > 0 {
				realRTT = cfg.EmulateLatency
				jitter := time.Duration(float64(cfg.EmulateLatency) * 0.05 * secureFloat64())
				realRTT += jitter
			} else {
				realRTT = 10 * time.Millisecond
			}

			latencyForMetrics := float64(realRTT.Nanoseconds()) / 1e6

			metrics.mu.Lock()
			metrics.BytesSent += n
			metrics.Success++
			metrics.Latencies = append(metrics.Latencies, latencyForMetrics)
			metrics.Timestamps = append(metrics.Timestamps, time.Now())
			if metrics.HDRMetrics != nil {
				metrics.HDRMetrics.RecordLatency(realRTT)
				metrics.HDRMetrics.AddBytesSent(int64(n))
				metrics.HDRMetrics.IncrementPacketsSent()
			}
			metrics.mu.Unlock()
			sentPackets++
			ackedPackets++

			if err == nil {
				sc.OnAck(time.Now(), n, realRTT, int(sc.GetCWND()), congestion.CAOpen)
			}

			if err != nil {
				metrics.mu.Lock()
				metrics.Errors++
				if metrics.ErrorTypeCounts == nil {
					metrics.ErrorTypeCounts = map[string]int{}
				}
				metrics.ErrorTypeCounts["stream_write"]++
				retransmits++
				metrics.Retransmits++
				var se *quic.StreamError
				var te *quic.TransportError
				if errors.As(err, &se) {
					if uint64(se.ErrorCode) == flowControlErrorCode {
						metrics.FlowControlEvents++
						metrics.ErrorTypeCounts["flow_control"]++
					}
				}
				if errors.As(err, &te) {
					if uint64(te.ErrorCode) == keyUpdateErrorCode {
						metrics.KeyUpdateEvents++
						metrics.ErrorTypeCounts["key_update"]++
					}
				}
				metrics.mu.Unlock()
				sc.OnLoss()
				continue
			}
			if lastSeq != -1 && seq != lastSeq+1 {
				outOfOrder++
				metrics.mu.Lock()
				metrics.OutOfOrderCount++
				metrics.mu.Unlock()
			}

			lastSeq = seq
			metrics.mu.Lock()
			metrics.TimeSeriesRetransmits = append(metrics.TimeSeriesRetransmits, TimePoint{Time: time.Since(start).Seconds(), Value: float64(retransmits)})
			metrics.TimeSeriesPacketLoss = append(metrics.TimeSeriesPacketLoss, TimePoint{Time: time.Since(start).Seconds(), Value: 100 * float64(sentPackets-ackedPackets) / (float64(sentPackets) + 1e-9)})
			metrics.mu.Unlock()
		}
		// Пауза между пакетами (с проверкой контекста и deadline)
		if time.Now().After(sendDeadline) {
			return
		}

		rate := atomic.LoadInt64(ratePtr)
		if rate > 0 {
			sleepDuration := time.Second / time.Duration(rate)
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleepDuration):
				if time.Now().After(sendDeadline) {
					return
				}
			}
		}
	}
}

func makePacket(size int, pattern string) []byte {
	buf := make([]byte, size)
	switch pattern {
	case "zeroes":
		// already zeroed
	case "increment":
		for i := range buf {
			buf[i] = byte(i % 256)
		}
	default:
		_, _ = rand.Read(buf)
	}
	return buf
}

// calcPercentiles вычисляет p50, p95, p99 для латенси
func calcPercentiles(latencies []float64) (p50, p95, p99 float64) {
	if len(latencies) == 0 {
		return 0, 0, 0
	}
	copyLat := make([]float64, len(latencies))
	copy(copyLat, latencies)
	sort.Float64s(copyLat)
	idx := func(p float64) int {
		return int(p*float64(len(copyLat)-1) + 0.5)
	}
	p50 = copyLat[idx(0.50)]
	p95 = copyLat[idx(0.95)]
	p99 = copyLat[idx(0.99)]
	return
}

// calcJitter вычисляет стандартное отклонение латенси (jitter)
func calcJitter(latencies []float64) float64 {
	if len(latencies) == 0 {
		return 0
	}
	mean := 0.0
	for _, l := range latencies {
		mean += l
	}
	mean /= float64(len(latencies))
	var sum float64
	for _, l := range latencies {
		d := l - mean
		sum += d * d
	}
	variance := sum / float64(len(latencies))
	jitter := math.Sqrt(variance)
	return jitter
}

var (
	splinePromMetrics     *ccmetrics.PrometheusMetrics
	splinePromMetricsOnce sync.Once
)

// splinePrometheusMetrics returns the process-wide Prometheus sink for Flow
// Controller metrics, shared across every connection's CCIntegration so
// repeated registration of the same gauge/counter set is avoided.
func splinePrometheusMetrics() *ccmetrics.PrometheusMetrics {
	splinePromMetricsOnce.Do(func() {
		splinePromMetrics = ccmetrics.NewPrometheusMetrics()
	})
	return splinePromMetrics
}

var (
	splineQUICMetrics     *telemetry.QUICMetrics
	splineTelemetryOnce   sync.Once
)

// splineTelemetry lazily builds a process-wide, purely local OpenTelemetry
// manager (no OTLP endpoint configured) so every simulated connection can
// emit spans and Flow Controller gauges without repeated provider setup.
func splineTelemetry(ctx context.Context) *telemetry.QUICMetrics {
	splineTelemetryOnce.Do(func() {
		version, verErr := internal.GetVersion()
		if verErr != nil {
			version = "dev"
		}
		tm, err := telemetry.NewTelemetryManager(ctx, telemetry.TelemetryConfig{
			ServiceName:    "splinecc-client",
			ServiceVersion: version,
			Environment:    "load-test",
			SampleRate:     1.0,
		})
		if err != nil {
			log.Printf("telemetry init skipped: %v", err)
			return
		}
		qm, err := telemetry.NewQUICMetrics(tm)
		if err != nil {
			log.Printf("telemetry metrics init skipped: %v", err)
			return
		}
		splineQUICMetrics = qm
	})
	return splineQUICMetrics
}

func startPrometheusExporter(metrics *Metrics) {
	success := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quic_client_success_total",
		Help: "Total successful packets sent",
	}, func() float64 {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return float64(metrics.Success)
	})
	errors := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quic_client_errors_total",
		Help: "Total errors",
	}, func() float64 {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return float64(metrics.Errors)
	})
	bytesSent := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quic_client_bytes_sent",
		Help: "Total bytes sent",
	}, func() float64 {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return float64(metrics.BytesSent)
	})
	avgLatency := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quic_client_avg_latency_ms",
		Help: "Average latency in ms",
	}, func() float64 {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		if len(metrics.Latencies) == 0 {
			return 0
		}
		sum := 0.0
		for _, l := range metrics.Latencies {
			sum += l
		}
		return sum / float64(len(metrics.Latencies))
	})
	throughput := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quic_client_throughput_kbps",
		Help: "Current throughput in KB/s",
	}, func() float64 {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		uptime := 0.0
		if len(metrics.Timestamps) > 0 {
			uptime = time.Since(metrics.Timestamps[0]).Seconds()
		}
		if uptime > 0 {
			return float64(metrics.BytesSent) / 1024.0 / uptime
		}
		return 0
	})

	prometheus.MustRegister(success, errors, bytesSent, avgLatency, throughput)
	http.Handle("/metrics", promhttp.Handler())
	fmt.Println("Prometheus endpoint доступен на :2112/metrics")
	if err := http.ListenAndServe(":2112", nil); err != nil {
		log.Printf("Failed to start Prometheus server: %v", err)
	}
}

// Вспомогательные функции для TLSVersion/CipherSuite
func tlsVersionString(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return "TLS 1.3"
	case tls.VersionTLS12:
		return "TLS 1.2"
	default:
		return fmt.Sprintf("0x%x", v)
	}
}
func cipherSuiteString(cs uint16) string {
	switch cs {
	case tls.TLS_AES_128_GCM_SHA256:
		return "TLS_AES_128_GCM_SHA256"
	case tls.TLS_AES_256_GCM_SHA384:
		return "TLS_AES_256_GCM_SHA384"
	case tls.TLS_CHACHA20_POLY1305_SHA256:
		return "TLS_CHACHA20_POLY1305_SHA256"
	default:
		return fmt.Sprintf("0x%x", cs)
	}
}

// secureFloat64 генерирует криптографически стойкое случайное число от 0 до 1
func secureFloat64() float64 {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to time-based seed if crypto/rand fails
		return float64(time.Now().UnixNano()%1000) / 1000.0
	}
	return float64(binary.BigEndian.Uint64(b)) / float64(^uint64(0))
}

// Коды ошибок из RFC 9000/QUIC:
const (
	flowControlErrorCode = 0x3 // FlowControlError
	keyUpdateErrorCode   = 0xE // KeyUpdateError
)

// parseAddr парсит адрес в формате "host:port" и возвращает *net.UDPAddr
func parseAddr(addr string) *net.UDPAddr {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		// Fallback на простой парсинг
		host, port := "127.0.0.1", "9000"
		if len(addr) > 0 {
			parts := splitHostPort(addr)
			if len(parts) == 2 {
				host, port = parts[0], parts[1]
				if host == "" {
					host = "127.0.0.1"
				}
			} else if len(parts) == 1 {
				if parts[0] != "" {
					port = parts[0]
				}
			}
		}
		udpAddr = &net.UDPAddr{
			IP:   net.ParseIP(host),
			Port: parseInt(port),
		}
	} else {
		if udpAddr.IP == nil || udpAddr.IP.IsUnspecified() {
			udpAddr.IP = net.ParseIP("127.0.0.1")
		}
	}
	return udpAddr
}

// splitHostPort разделяет "host:port"
func splitHostPort(addr string) []string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return []string{addr[:i], addr[i+1:]}
		}
	}
	return []string{addr}
}

// parseInt парсит строку в int
func parseInt(s string) int {
	val := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			val = val*10 + int(s[i]-'0')
		}
	}
	return val
}
