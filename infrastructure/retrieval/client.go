// Package retrieval talks to the external retrieval and analysis service.
// Jobs are submitted with POST /jobs and polled with GET /jobs/{id}.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	apperrors "qdesign-backend/pkg/errors"
)

// Config configures the client
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// consecutive failures before the breaker opens
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

// Client implements ports.RetrievalClient over HTTP behind a circuit breaker
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// upstreamError is a non-2xx response
type upstreamError struct {
	status int
	body   string
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("retrieval service returned %d: %s", e.status, e.body)
}

// NewClient creates a retrieval client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("retrieval base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid retrieval base URL: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenDelay <= 0 {
		cfg.BreakerOpenDelay = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	logger = logger.With(zap.String("component", "retrieval_client"))
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "retrieval",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// client errors say nothing about upstream health
		IsSuccessful: func(err error) bool {
			var ue *upstreamError
			if errors.As(err, &ue) {
				return ue.status < 500
			}
			return err == nil
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
	}, nil
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

// Submit starts a retrieval job and returns its upstream id
func (c *Client) Submit(ctx context.Context, q ports.RetrievalQuery) (string, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return "", apperrors.NewInternal("failed to encode retrieval query", err)
	}

	var out submitResponse
	if err := c.do(ctx, http.MethodPost, "/jobs", body, &out); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", apperrors.NewInternal("retrieval service returned no job id", nil)
	}
	c.logger.Debug("Retrieval job submitted", zap.String("jobID", out.JobID))
	return out.JobID, nil
}

// Status fetches the job's current state
func (c *Client) Status(ctx context.Context, jobID string) (ports.RetrievalStatus, error) {
	var out ports.RetrievalStatus
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return ports.RetrievalStatus{}, err
	}
	switch out.State {
	case ports.JobPending, ports.JobRunning, ports.JobCompleted, ports.JobFailed:
	default:
		return ports.RetrievalStatus{}, apperrors.NewInternal(fmt.Sprintf("unknown retrieval job state %q", out.State), nil)
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &upstreamError{status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode retrieval response: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return c.classify(err, method, path)
	}
	return nil
}

func (c *Client) classify(err error, method, path string) error {
	c.logger.Warn("Retrieval request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(err))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewUpstreamTimeout("retrieval service unavailable", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUpstreamTimeout("retrieval service did not respond in time", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewUpstreamTimeout("retrieval service did not respond in time", err)
	}

	var ue *upstreamError
	if errors.As(err, &ue) {
		switch {
		case ue.status == http.StatusNotFound:
			return apperrors.NewNotFound("retrieval job not found")
		case ue.status == http.StatusGatewayTimeout || ue.status == http.StatusServiceUnavailable:
			return apperrors.NewUpstreamTimeout("retrieval service unavailable", err)
		case ue.status < 500:
			return apperrors.NewValidation("retrieval service rejected the request: " + ue.body)
		}
	}
	return apperrors.NewInternal("retrieval request failed", err)
}
