package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordQuery("list_organizations", StatusOK, 0.01)
	m.RecordQuery("list_organizations", StatusTimeout, 5)
	m.RecordListFailure("grant", "timeout")
	m.RecordSearch("all", 12)
	m.RecordReview("confirmed")
	m.RecordEvent("events.duplicate.reviewed", StatusOK)
	m.RecordHTTPRequest("GET", "/api/search", "200", 0.02)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("list_organizations", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("list_organizations", StatusTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListFailures.WithLabelValues("grant", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/search", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordQuery("x", StatusOK, 1)
		m.RecordListFailure("organization", "store_error")
		m.RecordSearch("all", 0)
		m.RecordReview("rejected")
		m.RecordEvent("c", StatusError)
		m.RecordHTTPRequest("GET", "/", "200", 0)
	})
}

func TestTracer_NoopProvider(t *testing.T) {
	tr := NewTracer()
	ctx, span := tr.StartQuerySpan(context.Background(), "count_grants")
	defer span.End()

	h := NewSpanHelper(span)
	h.SetRows(3)
	h.SetError(errors.New("boom"), "store_error")
	h.SetSuccess()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTraceID(context.Background()))

	_, reqSpan := tr.StartRequestSpan(ctx, "GET", "/api/grants")
	reqSpan.End()
}
