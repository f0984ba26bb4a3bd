// Package metrics счетчики консоли и навигации в формате Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы навигации
const (
	OutcomeAllowed  = "allowed"
	OutcomeRedirect = "redirect"
	OutcomeNotFound = "not_found"
)

// Metrics набор коллекторов на собственном реестре
type Metrics struct {
	Registry *prometheus.Registry

	navigations     *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loginThrottled  prometheus.Counter
}

// New создает и регистрирует коллекторы
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		navigations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventhub",
				Subsystem: "router",
				Name:      "navigations_total",
				Help:      "Navigation attempts by route and guard outcome.",
			},
			[]string{"route", "outcome"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventhub",
				Subsystem: "console",
				Name:      "requests_total",
				Help:      "Console HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "eventhub",
				Subsystem: "console",
				Name:      "request_duration_seconds",
				Help:      "Duration of console HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		loginThrottled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "eventhub",
				Subsystem: "console",
				Name:      "login_throttled_total",
				Help:      "Login attempts rejected by the rate limiter.",
			},
		),
	}

	m.Registry.MustRegister(
		m.navigations,
		m.requests,
		m.requestDuration,
		m.loginThrottled,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler отдает метрики реестра
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveNavigation учитывает решение охранников для маршрута.
// Методы безопасно вызывать на nil.
func (m *Metrics) ObserveNavigation(route, outcome string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(route, outcome).Inc()
}

// ObserveRequest учитывает обработанный запрос консоли
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLoginThrottled учитывает отклоненную попытку входа
func (m *Metrics) ObserveLoginThrottled() {
	if m == nil {
		return
	}
	m.loginThrottled.Inc()
}
