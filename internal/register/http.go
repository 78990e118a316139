package register

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRejected is returned when the Risk Register answers with a non-2xx status.
var ErrRejected = errors.New("risk register rejected request")

// StatusError carries the status and body of a rejected request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRejected, e.StatusCode, e.Body)
}

// Unwrap lets callers match ErrRejected with errors.Is.
func (e *StatusError) Unwrap() error { return ErrRejected }

const maxErrorBody = 1 << 10

// HTTPClient creates risks through the Risk Register REST API.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// WithRateLimit bounds outgoing requests to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *HTTPClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient returns a client for the register at baseURL. timeout bounds each request.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse risk register url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("risk register url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &HTTPClient{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createRiskResponse struct {
	ID   string `json:"id"`
	Risk struct {
		ID string `json:"id"`
	} `json:"risk"`
}

// CreateRisk posts p to /api/v1/organizations/{organizationID}/risks and returns the new id.
func (c *HTTPClient) CreateRisk(ctx context.Context, organizationID, userID string, p Payload) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal risk: %w", err)
	}
	endpoint := c.baseURL.JoinPath("api", "v1", "organizations", organizationID, "risks")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", userID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create risk: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("risk register request",
		zap.String("url", endpoint.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out createRiskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create risk response: %w", err)
	}
	id := out.ID
	if id == "" {
		id = out.Risk.ID
	}
	if id == "" {
		return "", errors.New("create risk response has no id")
	}
	return id, nil
}
