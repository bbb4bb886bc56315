package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	apperrors "qdesign-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler, failures uint32) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:          srv.URL + "/",
		RequestTimeout:   time.Second,
		BreakerFailures:  failures,
		BreakerOpenDelay: time.Minute,
	}, srv.Client(), zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestSubmitAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var q ports.RetrievalQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "spike ace2", q.Query)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"jobId":"job-9"}`))
	})
	mux.HandleFunc("/jobs/job-9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"completed","progress":1,"results":[{"title":"Cryo-EM","kind":"pdf"}]}`))
	})
	c := newTestClient(t, mux, 5)

	jobID, err := c.Submit(context.Background(), ports.RetrievalQuery{Query: "spike ace2"})
	require.NoError(t, err)
	assert.Equal(t, "job-9", jobID)

	status, err := c.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "job-9", status.JobID)
	assert.Equal(t, ports.JobCompleted, status.State)
	require.Len(t, status.Results, 1)
	assert.Equal(t, "Cryo-EM", status.Results[0].Title)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{name: "missing job", status: http.StatusNotFound, body: `{}`, check: apperrors.IsNotFound},
		{name: "bad request", status: http.StatusBadRequest, body: `bad query`, check: apperrors.IsValidation},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: ``, check: apperrors.IsUpstreamTimeout},
		{name: "server error", status: http.StatusInternalServerError, body: `boom`, check: apperrors.IsInternal},
		{name: "unknown state", status: http.StatusOK, body: `{"state":"exploded"}`, check: apperrors.IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), 5)

			_, err := c.Status(context.Background(), "job-1")
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 2)

	for i := 0; i < 2; i++ {
		_, err := c.Status(context.Background(), "job-1")
		assert.True(t, apperrors.IsInternal(err))
	}

	_, err := c.Status(context.Background(), "job-1")
	assert.True(t, apperrors.IsUpstreamTimeout(err), "got %v", err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}), 1)

	for i := 0; i < 3; i++ {
		_, err := c.Status(context.Background(), "job-1")
		assert.True(t, apperrors.IsNotFound(err))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
