package internal

import (
	"fmt"
	"time"
)

// TestConfig описывает параметры теста для клиента и сервера.
type TestConfig struct {
	Mode         string        // Режим работы: server | client | test
	Addr         string        // Адрес для подключения или прослушивания
	Streams      int           // Количество потоков на соединение
	Connections  int           // Количество соединений
	Duration     time.Duration // Длительность теста
	PacketSize   int           // Размер пакета (байт)
	Rate         int           // Частота отправки пакетов (в секунду)
	ReportPath   string        // Путь к файлу для отчёта
	ReportFormat string        // Формат отчёта: csv | md | json
	CertPath     string        // Путь к TLS-сертификату
	KeyPath      string        // Путь к TLS-ключу
	Pattern      string        // Шаблон данных: random | zeroes | increment
	NoTLS        bool          // Отключить TLS
	Prometheus   bool          // Экспортировать метрики Prometheus

	// --- Эмуляция плохих сетей ---
	EmulateLoss    float64       // вероятность потери пакета (0..1)
	EmulateLatency time.Duration // дополнительная задержка
	EmulateDup     float64       // вероятность дублирования пакета (0..1)

	// --- Профилирование и мониторинг ---
	PprofAddr string // Адрес для pprof (например, :6060)

	// --- SLA проверки ---
	SlaRttP95      time.Duration // SLA: максимальный RTT p95
	SlaLoss        float64       // SLA: максимальная потеря пакетов
	SlaThroughput  float64       // SLA: минимальная пропускная способность (KB/s)
	SlaErrors      int64         // SLA: максимальное количество ошибок
	SlaMinCwnd     uint32        // SLA: минимальный допустимый cwnd (сегментов)
	SlaMinFairness uint32        // SLA: минимальный допустимый fairness_rat

	// --- QUIC тюнинг ---
	CongestionControl     string        // Алгоритм управления перегрузкой (всегда "spline")
	EpochCap              uint32        // Порог ротации эпох Flow Controller (4 или 10)
	MaxIdleTimeout        time.Duration // Максимальное время простоя соединения
	HandshakeTimeout      time.Duration // Таймаут handshake
	KeepAlive             time.Duration // Интервал keep-alive
	MaxStreams            int64         // Максимальное количество потоков
	MaxStreamData         int64         // Максимальный размер данных потока
	Enable0RTT            bool          // Включить 0-RTT
	EnableKeyUpdate       bool          // Включить key update
	EnableDatagrams       bool          // Включить datagrams
	MaxIncomingStreams    int64         // Максимальное количество входящих потоков
	MaxIncomingUniStreams int64         // Максимальное количество входящих unidirectional потоков
}

// Validate проверяет, что конфигурация пригодна для запуска теста.
func (c TestConfig) Validate() error {
	if c.Mode != "server" && c.Mode != "client" && c.Mode != "test" {
		return fmt.Errorf("неизвестный режим %q", c.Mode)
	}
	if c.Addr == "" {
		return fmt.Errorf("адрес не задан")
	}
	if c.Connections < 1 {
		return fmt.Errorf("connections должен быть >= 1, получено %d", c.Connections)
	}
	if c.Streams < 1 {
		return fmt.Errorf("streams должен быть >= 1, получено %d", c.Streams)
	}
	if c.PacketSize < 1 {
		return fmt.Errorf("packet-size должен быть >= 1, получено %d", c.PacketSize)
	}
	if c.Rate < 1 {
		return fmt.Errorf("rate должен быть >= 1, получено %d", c.Rate)
	}
	if c.EmulateLoss < 0 || c.EmulateLoss > 1 {
		return fmt.Errorf("emulate-loss должен быть в диапазоне [0, 1]")
	}
	if c.EmulateDup < 0 || c.EmulateDup > 1 {
		return fmt.Errorf("emulate-dup должен быть в диапазоне [0, 1]")
	}
	if c.CongestionControl != "" && c.CongestionControl != "spline" {
		return fmt.Errorf("неизвестный алгоритм управления перегрузкой %q", c.CongestionControl)
	}
	if c.MaxIdleTimeout < 0 || c.HandshakeTimeout < 0 || c.KeepAlive < 0 {
		return fmt.Errorf("таймауты QUIC не могут быть отрицательными")
	}
	if c.MaxStreams < 0 || c.MaxStreamData < 0 || c.MaxIncomingStreams < 0 || c.MaxIncomingUniStreams < 0 {
		return fmt.Errorf("лимиты потоков QUIC не могут быть отрицательными")
	}
	return nil
}
