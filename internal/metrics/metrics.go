// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "habibdukan"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	salesCommitted  *prometheus.CounterVec
	saleFailures    *prometheus.CounterVec
	saleItems       prometheus.Counter
	salesRevenue    prometheus.Counter
	expensesCreated prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		salesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_committed_total",
			Help:      "Committed sales by payment method.",
		}, []string{"payment_method"}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_failures_total",
			Help:      "Rejected sale commits by reason.",
		}, []string{"reason"}),
		saleItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_units_total",
			Help:      "Units sold across all committed sales.",
		}),
		salesRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_subtotal_total",
			Help:      "Sum of committed sale subtotals.",
		}),
		expensesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_created_total",
			Help:      "Recorded expenses.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.salesCommitted,
		m.saleFailures,
		m.saleItems,
		m.salesRevenue,
		m.expensesCreated,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SaleCommitted(paymentMethod string, units int, subtotal float64) {
	if m == nil {
		return
	}
	m.salesCommitted.WithLabelValues(paymentMethod).Inc()
	m.saleItems.Add(float64(units))
	m.salesRevenue.Add(subtotal)
}

func (m *Metrics) SaleFailed(reason string) {
	if m == nil {
		return
	}
	m.saleFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ExpenseCreated() {
	if m == nil {
		return
	}
	m.expensesCreated.Inc()
}

func (m *Metrics) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
