package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements session.Metrics using Prometheus.
type Metrics struct {
	refreshTotal        *prometheus.CounterVec
	refreshDuration     *prometheus.HistogramVec
	refreshSharedTotal  prometheus.Counter
	tokenServedTotal    *prometheus.CounterVec
	usageFetchTotal     *prometheus.CounterVec
	usageFetchDuration  *prometheus.HistogramVec
	admissionTotal      *prometheus.CounterVec
	trackedRequestTotal *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Total number of token refresh exchanges by outcome.",
		}, []string{"outcome"}),

		refreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_refresh_duration_seconds",
			Help:      "Latency of token refresh exchanges.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),

		refreshSharedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_shared_total",
			Help:      "Total number of callers that joined an in-flight refresh.",
		}),

		tokenServedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_served_total",
			Help:      "Total number of valid tokens served by credential type.",
		}, []string{"type"}),

		usageFetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_fetch_total",
			Help:      "Total number of usage snapshot fetches by outcome.",
		}, []string{"outcome"}),

		usageFetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usage_fetch_duration_seconds",
			Help:      "Latency of usage snapshot fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),

		admissionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Total number of admission decisions.",
		}, []string{"allowed"}),

		trackedRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_requests_total",
			Help:      "Total number of post-flight usage tracking calls.",
		}, []string{"endpoint", "success"}),
	}
}

// RecordRefresh implements session.Metrics.
func (m *Metrics) RecordRefresh(outcome string, duration time.Duration) {
	m.refreshTotal.WithLabelValues(outcome).Inc()
	m.refreshDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRefreshShared implements session.Metrics.
func (m *Metrics) RecordRefreshShared() {
	m.refreshSharedTotal.Inc()
}

// RecordTokenServed implements session.Metrics.
func (m *Metrics) RecordTokenServed(tokenType string) {
	m.tokenServedTotal.WithLabelValues(tokenType).Inc()
}

// RecordUsageFetch implements session.Metrics.
func (m *Metrics) RecordUsageFetch(outcome string, duration time.Duration) {
	m.usageFetchTotal.WithLabelValues(outcome).Inc()
	m.usageFetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordAdmission implements session.Metrics.
func (m *Metrics) RecordAdmission(allowed bool) {
	m.admissionTotal.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

// RecordTrackedRequest implements session.Metrics.
func (m *Metrics) RecordTrackedRequest(endpoint string, success bool) {
	m.trackedRequestTotal.WithLabelValues(endpoint, strconv.FormatBool(success)).Inc()
}
