// Package metrics exposes Prometheus collectors for the monitoring service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Crawl result label values.
const (
	ResultBaseline  = "baseline"
	ResultUnchanged = "unchanged"
	ResultChanged   = "changed"
	ResultRetried   = "retried"
	ResultFailed    = "failed"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	crawlsTotal        *prometheus.CounterVec
	changesTotal       prometheus.Counter
	crawlDuration      prometheus.Histogram
	jobsInflight       prometheus.Gauge
	backupBytesWritten prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	dispatchThrottled  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		crawlsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguardian_crawls_total",
			Help: "Crawl attempts, labeled by result.",
		}, []string{"result"}),
		changesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "siteguardian_changes_total",
			Help: "Crawls that detected a content change.",
		}),
		crawlDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "siteguardian_crawl_duration_seconds",
			Help:    "Duration of single crawl attempts.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		jobsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "siteguardian_jobs_inflight",
			Help: "Crawl jobs currently running.",
		}),
		backupBytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "siteguardian_backup_bytes_written_total",
			Help: "Bytes newly written to the backup store.",
		}),
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguardian_notifications_total",
			Help: "Notifications sent, labeled by kind and outcome.",
		}, []string{"kind", "outcome"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguardian_http_requests_total",
			Help: "Operator API requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "siteguardian_http_request_duration_seconds",
			Help:    "Operator API latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		dispatchThrottled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "siteguardian_dispatch_throttled_total",
			Help: "Dispatch rounds skipped under memory pressure, labeled by reason.",
		}, []string{"reason"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCrawl records one crawl attempt.
func (m *Metrics) ObserveCrawl(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.crawlsTotal.WithLabelValues(result).Inc()
	m.crawlDuration.Observe(duration.Seconds())
	if result == ResultChanged {
		m.changesTotal.Inc()
	}
}

// AddBackupBytes records bytes written for a new backup object.
func (m *Metrics) AddBackupBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.backupBytesWritten.Add(float64(n))
}

// IncInflight marks a job as running.
func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.jobsInflight.Inc()
}

// DecInflight marks a running job as finished.
func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.jobsInflight.Dec()
}

// ObserveNotification records a notification delivery.
func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.notificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveHTTPRequest records an operator API request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncThrottled records a dispatch round refused by the resource guard.
func (m *Metrics) IncThrottled(reason string) {
	if m == nil {
		return
	}
	m.dispatchThrottled.WithLabelValues(reason).Inc()
}

// DispatchThrottled exposes the throttle counter for reason, mostly for tests.
func (m *Metrics) DispatchThrottled(reason string) prometheus.Counter {
	return m.dispatchThrottled.WithLabelValues(reason)
}
