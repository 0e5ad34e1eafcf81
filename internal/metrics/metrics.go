// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardtrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wardtrack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Scan pipeline metrics
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardtrack_scans_total",
			Help: "Total number of ward scans by tag type and outcome",
		},
		[]string{"tag_type", "outcome"},
	)

	inconsistenciesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wardtrack_location_inconsistencies_total",
			Help: "Total number of location inconsistencies detected",
		},
	)

	labResultsResolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wardtrack_lab_results_resolved_total",
			Help: "Total number of positive lab results resolved on isolation entry",
		},
	)

	failOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardtrack_fail_open_total",
			Help: "Total number of store failures tolerated by a fail-open check",
		},
		[]string{"component"},
	)

	// Notification and event metrics
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardtrack_notifications_total",
			Help: "Total number of notifications by type and delivery status",
		},
		[]string{"type", "status"},
	)

	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardtrack_events_total",
			Help: "Total number of row-change events by bus and status",
		},
		[]string{"bus", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		scansTotal,
		inconsistenciesTotal,
		labResultsResolvedTotal,
		failOpenTotal,
		notificationsTotal,
		eventsTotal,
	)
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordScan counts a scan. Outcome is one of authoritative, advisory, failed or cooldown.
func RecordScan(tagType, outcome string) {
	scansTotal.WithLabelValues(tagType, outcome).Inc()
}

// RecordInconsistency counts a persisted location inconsistency.
func RecordInconsistency() {
	inconsistenciesTotal.Inc()
}

// RecordLabResultsResolved adds n resolved lab results.
func RecordLabResultsResolved(n int) {
	labResultsResolvedTotal.Add(float64(n))
}

// RecordFailOpen counts a tolerated store failure.
func RecordFailOpen(component string) {
	failOpenTotal.WithLabelValues(component).Inc()
}

// RecordNotification records a notification emission.
func RecordNotification(notificationType string, delivered bool) {
	notificationsTotal.WithLabelValues(notificationType, deliveryStatus(delivered)).Inc()
}

// RecordEvent records an event publish or consume on the given bus.
func RecordEvent(bus string, delivered bool) {
	eventsTotal.WithLabelValues(bus, deliveryStatus(delivered)).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func deliveryStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
