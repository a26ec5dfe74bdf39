package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tripdesk/apiserver/types"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementStatusTransition(types.TripStatusRequested, types.TripStatusApproved)
	m.IncrementStatusTransition(types.TripStatusRequested, types.TripStatusApproved)
	m.IncrementGuardRejection("destination")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("requested", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardRejections.WithLabelValues("destination")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementTripRequestsCreated()
		m.IncrementNotificationsFailed()
	})
}
