// Package metrics содержит метрики Prometheus сервиса Wonderland.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Результаты push-доставки.
const (
	PushResultSent   = "sent"
	PushResultGone   = "gone"
	PushResultFailed = "failed"
)

// Metrics объединяет счётчики доменных событий и HTTP-запросов.
type Metrics struct {
	registry *prometheus.Registry

	ordersCreated      prometheus.Counter
	statusTransitions  *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	pointsTransactions *prometheus.CounterVec
	pushDeliveries     *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New создаёт метрики и регистрирует их в собственном реестре.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wonderland",
			Name:      "orders_created_total",
			Help:      "Number of orders created.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wonderland",
			Name:      "order_status_transitions_total",
			Help:      "Number of order status changes by target status.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wonderland",
			Name:      "notifications_created_total",
			Help:      "Number of in-app notifications created by type.",
		}, []string{"type"}),
		pointsTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wonderland",
			Name:      "points_transactions_total",
			Help:      "Number of loyalty ledger transactions by kind.",
		}, []string{"kind"}),
		pushDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wonderland",
			Name:      "push_deliveries_total",
			Help:      "Web push delivery attempts by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wonderland",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	m.registry.MustRegister(
		m.ordersCreated,
		m.statusTransitions,
		m.notifications,
		m.pointsTransactions,
		m.pushDeliveries,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}

// OrderCreated учитывает созданный заказ.
func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// StatusChanged учитывает переход заказа в статус.
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// NotificationCreated учитывает созданное уведомление.
func (m *Metrics) NotificationCreated(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// PointsTransaction учитывает операцию по счёту баллов.
func (m *Metrics) PointsTransaction(kind string) {
	if m == nil {
		return
	}
	m.pointsTransactions.WithLabelValues(kind).Inc()
}

// PushDelivery учитывает результат отправки push-уведомления.
func (m *Metrics) PushDelivery(result string) {
	if m == nil {
		return
	}
	m.pushDeliveries.WithLabelValues(result).Inc()
}

// ObserveRequest учитывает длительность HTTP-запроса.
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
