// Package metrics собирает метрики Prometheus сервиса отчётов.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты приёма отчёта для метки result.
const (
	ResultSuccess          = "success"
	ResultInvalidInput     = "invalid_input"
	ResultUnauthorized     = "unauthorized"
	ResultClassifierError  = "classifier_error"
	ResultPersistenceError = "persistence_error"
)

// Metrics набор коллекторов сервиса.
type Metrics struct {
	registry *prometheus.Registry

	submissionsTotal   *prometheus.CounterVec
	classifierDuration prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	realtimeEventsTotal *prometheus.CounterVec
	wsSubscribers       prometheus.Gauge
}

// New создаёт метрики и регистрирует их в registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewNoop метрики без реестра для тестов и CLI.
func NewNoop() *Metrics {
	m := &Metrics{}
	m.initMetrics()
	return m
}

func (m *Metrics) initMetrics() {
	m.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_ingestion_submissions_total",
			Help: "Количество обращений к /api/analyze по результату",
		},
		[]string{"result"},
	)

	m.classifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scout_classifier_duration_seconds",
			Help: "Длительность вызова модели классификации",
			// от 250ms до ~2 минут
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_http_requests_total",
			Help: "Количество HTTP запросов",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_http_request_duration_seconds",
			Help:    "Длительность обработки HTTP запроса",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.realtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_realtime_events_total",
			Help: "События изменения отчётов из канала report_changes",
		},
		[]string{"type"},
	)

	m.wsSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_ws_subscribers",
			Help: "Текущее число подписчиков websocket",
		},
	)
}

// Describe реализует prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.submissionsTotal.Describe(ch)
	m.classifierDuration.Describe(ch)
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.realtimeEventsTotal.Describe(ch)
	m.wsSubscribers.Describe(ch)
}

// Collect реализует prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.submissionsTotal.Collect(ch)
	m.classifierDuration.Collect(ch)
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.realtimeEventsTotal.Collect(ch)
	m.wsSubscribers.Collect(ch)
}

// RecordSubmission учитывает исход приёма отчёта.
func (m *Metrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(result).Inc()
}

// ObserveClassifier фиксирует длительность вызова модели.
func (m *Metrics) ObserveClassifier(d time.Duration) {
	if m == nil {
		return
	}
	m.classifierDuration.Observe(d.Seconds())
}

// RecordHTTPRequest учитывает обработанный запрос.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordRealtimeEvent учитывает событие из канала изменений.
func (m *Metrics) RecordRealtimeEvent(eventType string) {
	if m == nil {
		return
	}
	m.realtimeEventsTotal.WithLabelValues(eventType).Inc()
}

// SubscriberConnected и SubscriberDisconnected ведут счётчик подписчиков.
func (m *Metrics) SubscriberConnected() {
	if m == nil {
		return
	}
	m.wsSubscribers.Inc()
}

func (m *Metrics) SubscriberDisconnected() {
	if m == nil {
		return
	}
	m.wsSubscribers.Dec()
}

// Registry возвращает реестр, в котором зарегистрированы метрики.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
