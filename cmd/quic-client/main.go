package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Kaibek/SplineCC/client"
	"github.com/Kaibek/SplineCC/internal"
)

func main() {
	fmt.Println("\033[1;36m============================\033[0m")
	fmt.Println("\033[1;36m  SplineCC QUIC Client\033[0m")
	fmt.Println("\033[1;36m============================\033[0m")

	// Парсинг флагов
	addr := flag.String("addr", "127.0.0.1:9000", "Адрес сервера для подключения")
	streams := flag.Int("streams", 1, "Количество потоков на соединение")
	connections := flag.Int("connections", 1, "Количество QUIC-соединений")
	duration := flag.Duration("duration", 0, "Длительность теста (0 — до ручного завершения)")
	packetSize := flag.Int("packet-size", 1200, "Размер пакета (байт)")
	rate := flag.Int("rate", 100, "Частота отправки пакетов (в секунду)")
	reportPath := flag.String("report", "", "Путь к файлу для отчета (опционально)")
	reportFormat := flag.String("report-format", "md", "Формат отчета: csv | md | json")
	certPath := flag.String("cert", "", "Путь к TLS-сертификату (опционально)")
	keyPath := flag.String("key", "", "Путь к TLS-ключу (опционально)")
	pattern := flag.String("pattern", "random", "Шаблон данных: random | zeroes | increment")
	noTLS := flag.Bool("no-tls", false, "Отключить TLS (для тестов)")
	prometheus := flag.Bool("prometheus", false, "Экспортировать метрики Prometheus на /metrics")
	emulateLoss := flag.Float64("emulate-loss", 0, "Вероятность потери пакета (0..1)")
	emulateLatency := flag.Duration("emulate-latency", 0, "Дополнительная задержка перед отправкой пакета")
	emulateDup := flag.Float64("emulate-dup", 0, "Вероятность дублирования пакета (0..1)")
	pprofAddr := flag.String("pprof-addr", "", "Адрес для pprof (например, :6060)")
	epochCap := flag.Uint("epoch-cap", 10, "Порог ротации эпох Flow Controller (4 или 10)")
	slaRttP95 := flag.Duration("sla-rtt-p95", 0, "SLA: максимальный RTT p95 (например, 100ms)")
	slaLoss := flag.Float64("sla-loss", 0, "SLA: максимальная потеря пакетов (например, 0.01)")
	slaMinCwnd := flag.Uint("sla-min-cwnd", 0, "SLA: минимальный допустимый cwnd Flow Controller (сегментов)")
	slaMinFairness := flag.Uint("sla-min-fairness", 0, "SLA: минимальный допустимый fairness_rat Flow Controller")
	flag.Parse()

	// Валидация флагов
	if err := validateFlags(*rate, *emulateLoss, *emulateDup, *slaLoss, *epochCap); err != nil {
		fmt.Printf("Ошибка валидации: %v\n", err)
		os.Exit(1)
	}

	cfg := internal.TestConfig{
		Mode:              "client",
		Addr:              *addr,
		Streams:           *streams,
		Connections:       *connections,
		Duration:          *duration,
		PacketSize:        *packetSize,
		Rate:              *rate,
		ReportPath:        *reportPath,
		ReportFormat:      *reportFormat,
		CertPath:          *certPath,
		KeyPath:           *keyPath,
		Pattern:           *pattern,
		NoTLS:             *noTLS,
		Prometheus:        *prometheus,
		EmulateLoss:       *emulateLoss,
		EmulateLatency:    *emulateLatency,
		EmulateDup:        *emulateDup,
		PprofAddr:         *pprofAddr,
		CongestionControl: "spline",
		EpochCap:          uint32(*epochCap),
		SlaRttP95:         *slaRttP95,
		SlaLoss:           *slaLoss,
		SlaMinCwnd:        uint32(*slaMinCwnd),
		SlaMinFairness:    uint32(*slaMinFairness),
	}

	fmt.Printf("Подключение к %s с %d соединениями, %d потоков на соединение (epoch-cap=%d)\n",
		cfg.Addr, cfg.Connections, cfg.Streams, cfg.EpochCap)
	internal.PrintSLAConfig(cfg)

	// Запуск клиента; client.Run сам обрабатывает SIGINT/SIGTERM и
	// формирует отчет перед выходом
	client.Run(cfg)
}

// validateFlags проверяет корректность комбинаций флагов
func validateFlags(rate int, emulateLoss, emulateDup, slaLoss float64, epochCap uint) error {
	if rate <= 0 {
		return fmt.Errorf("rate должен быть положительным")
	}
	if emulateLoss < 0 || emulateLoss > 1 {
		return fmt.Errorf("emulate-loss должен быть в диапазоне [0, 1]")
	}
	if emulateDup < 0 || emulateDup > 1 {
		return fmt.Errorf("emulate-dup должен быть в диапазоне [0, 1]")
	}
	if slaLoss < 0 || slaLoss > 1 {
		return fmt.Errorf("sla-loss должен быть в диапазоне [0, 1]")
	}
	if epochCap < 1 {
		return fmt.Errorf("epoch-cap должен быть >= 1")
	}
	return nil
}
