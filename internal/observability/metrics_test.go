package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-portal/internal/config"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("portal_test")

	m.RecordRequest("/api/v1/tickets", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/api/v1/tickets", "GET", 200, 5*time.Millisecond)
	m.RecordError("/api/v1/tickets/:id", "DELETE", "NOT_FOUND")
	m.ObserveMutation("delete", "ok")
	m.ObserveMutation("delete", "not_found")
	m.ObserveMutation("delete", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/v1/tickets", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/api/v1/tickets/:id", "DELETE", "NOT_FOUND")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("delete", "ok")))

	count, err := testutil.GatherAndCount(m.Registry(), "portal_test_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.ObserveMutation("status", "ok")
}

func TestNewLoggerFallsBackOnBadLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "verbose", Name: "test"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
}
