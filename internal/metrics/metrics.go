package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tripdesk/apiserver/types"
)

// Metrics provides observability for the trip request lifecycle and the HTTP
// surface. A nil *Metrics records nothing.
type Metrics struct {
	TripRequestsCreated   prometheus.Counter
	StatusTransitions     *prometheus.CounterVec
	TransitionConflicts   prometheus.Counter
	NotificationsCreated  prometheus.Counter
	NotificationsFailed   prometheus.Counter
	GuardRejections       *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	LifecycleOpDuration   *prometheus.HistogramVec
	TokenRevocationsTotal prometheus.Counter
}

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TripRequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tripdesk_trip_requests_created_total",
			Help: "Total number of trip requests created",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tripdesk_trip_request_status_transitions_total",
			Help: "Admin status transitions applied, by source and target status",
		}, []string{"from", "to"}),
		TransitionConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "tripdesk_trip_request_status_conflicts_total",
			Help: "Conditional status writes that lost a race and were retried or rejected",
		}),
		NotificationsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "tripdesk_notifications_created_total",
			Help: "User notifications created by the dispatcher",
		}),
		NotificationsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "tripdesk_notifications_failed_total",
			Help: "Notification deliveries that failed and were dropped",
		}),
		GuardRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tripdesk_integrity_guard_rejections_total",
			Help: "Deletes or deactivations blocked by dependent trip requests",
		}, []string{"entity"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripdesk_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern and status code",
			Buckets: durationBuckets,
		}, []string{"method", "route", "status"}),
		LifecycleOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripdesk_trip_request_operation_duration_seconds",
			Help:    "Duration of trip request lifecycle operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		TokenRevocationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tripdesk_token_revocations_total",
			Help: "Access tokens revoked by logout or refresh",
		}),
	}
}

func (m *Metrics) IncrementTripRequestsCreated() {
	if m == nil {
		return
	}
	m.TripRequestsCreated.Inc()
}

func (m *Metrics) IncrementStatusTransition(from, to types.TripStatus) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) IncrementTransitionConflict() {
	if m == nil {
		return
	}
	m.TransitionConflicts.Inc()
}

func (m *Metrics) IncrementNotificationsCreated() {
	if m == nil {
		return
	}
	m.NotificationsCreated.Inc()
}

func (m *Metrics) IncrementNotificationsFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

func (m *Metrics) IncrementGuardRejection(entity string) {
	if m == nil {
		return
	}
	m.GuardRejections.WithLabelValues(entity).Inc()
}

func (m *Metrics) IncrementTokenRevocations() {
	if m == nil {
		return
	}
	m.TokenRevocationsTotal.Inc()
}

// ObserveHTTPRequest records the duration of a request that started at start.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}

// ObserveLifecycleOp records the duration of a lifecycle operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveLifecycleOp(op string, start time.Time) {
	if m == nil {
		return
	}
	m.LifecycleOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
