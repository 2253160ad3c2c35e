package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics экспортирует метрики сетевой подсистемы в Prometheus.
// Регистрирует метрики в глобальном регистре при создании, поэтому
// создаётся один раз на процесс. Нулевой указатель безопасен: все
// методы превращаются в no-op, чем пользуются тесты.
type GatewayMetrics struct {
	connections      prometheus.Gauge
	connectionsTotal prometheus.Counter
	messagesIn       *prometheus.CounterVec
	parseErrors      prometheus.Counter
	sendOverflows    prometheus.Counter
	shotsThrottled   prometheus.Counter
	broadcastBytes   prometheus.Counter
}

// NewGatewayMetrics создаёт и регистрирует метрики шлюза
func NewGatewayMetrics() *GatewayMetrics {
	m := &GatewayMetrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "network",
			Name:      "connections",
			Help:      "Число открытых WebSocket-соединений.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "network",
			Name:      "connections_total",
			Help:      "Принятых подключений с момента старта.",
		}),
		messagesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "network",
			Name:      "messages_in_total",
			Help:      "Входящих сообщений по типам.",
		}, []string{"type"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "network",
			Name:      "parse_errors_total",
			Help:      "Сообщений, отброшенных из-за битого JSON.",
		}),
		sendOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "network",
			Name:      "send_overflows_total",
			Help:      "Клиентов, отключённых из-за переполнения буфера отправки.",
		}),
		shotsThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "network",
			Name:      "shots_throttled_total",
			Help:      "Выстрелов, отброшенных ограничителем частоты.",
		}),
		broadcastBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "network",
			Name:      "broadcast_bytes_total",
			Help:      "Байт снапшотов, поставленных в очереди клиентов.",
		}),
	}

	prometheus.MustRegister(
		m.connections, m.connectionsTotal, m.messagesIn,
		m.parseErrors, m.sendOverflows, m.shotsThrottled, m.broadcastBytes,
	)
	return m
}

// ConnectionOpened учитывает новое подключение
func (m *GatewayMetrics) ConnectionOpened(active int) {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connections.Set(float64(active))
}

// ConnectionClosed обновляет число активных подключений
func (m *GatewayMetrics) ConnectionClosed(active int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(active))
}

// MessageIn учитывает входящее сообщение. Метка берётся из
// фиксированного набора веток обработчика, не из клиентского поля —
// кардинальность ограничена.
func (m *GatewayMetrics) MessageIn(msgType string) {
	if m == nil {
		return
	}
	m.messagesIn.WithLabelValues(msgType).Inc()
}

// ParseError учитывает отброшенное из-за битого JSON сообщение
func (m *GatewayMetrics) ParseError() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

// ShotThrottled учитывает выстрел, отброшенный ограничителем частоты
func (m *GatewayMetrics) ShotThrottled() {
	if m == nil {
		return
	}
	m.shotsThrottled.Inc()
}

// SendOverflow учитывает клиента, отключённого из-за переполнения буфера
func (m *GatewayMetrics) SendOverflow() {
	if m == nil {
		return
	}
	m.sendOverflows.Inc()
}

// BroadcastBytes учитывает байты, поставленные в очереди клиентов
func (m *GatewayMetrics) BroadcastBytes(n int) {
	if m == nil {
		return
	}
	m.broadcastBytes.Add(float64(n))
}
