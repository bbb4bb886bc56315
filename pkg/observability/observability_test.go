package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		c.ObserveStore("get", time.Millisecond, nil)
		c.CheckpointOperation("create")
		c.RetrievalFinished("completed")
		c.SetRealtime(1, 1)
		c.Delivered(3)
		c.Dropped(1)
	})
	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectorRecords(t *testing.T) {
	c := NewCollector("test")

	c.ObserveHTTP("GET", "/api/v1/projects", 200, time.Millisecond)
	c.ObserveHTTP("GET", "/api/v1/projects", 200, time.Millisecond)
	c.ObserveStore("save", time.Millisecond, errors.New("throttled"))
	c.CheckpointOperation("restore")
	c.SetRealtime(4, 2)
	c.Delivered(5)
	c.Dropped(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/v1/projects", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Checkpoints.WithLabelValues("restore")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.ActiveSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ActiveRooms))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.BroadcastsDelivered))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.BroadcastsDropped))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "test_realtime_sessions 4")
}

func TestDisabledTracingIsNoop(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("ignored"))
	assert.NoError(t, tp.Shutdown(context.Background()))

	var nilTP *TracerProvider
	assert.NotNil(t, nilTP.Tracer())
	assert.NoError(t, nilTP.Shutdown(context.Background()))
}
