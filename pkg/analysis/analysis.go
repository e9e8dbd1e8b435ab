// Package analysis is the client for the remote analysis endpoints:
// threat analysis, PII redaction, report generation and drill simulation.
// All computation happens server-side; this client adds bounded timeouts
// and uniform response decoding.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

// ErrTimeout is returned when an analysis call exceeds its bounded
// timeout. The drill endpoint in particular is known to hang server-side.
var ErrTimeout = errors.New("analysis request timed out")

// Gateway issues authenticated requests. *session.Manager satisfies it.
type Gateway interface {
	Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error)
}

// ThreatLevel grades an analysis result.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

// Request is the body sent to the analysis endpoints.
type Request struct {
	Content string `json:"content"`
	Mode    string `json:"mode,omitempty"`
}

// Response is an analysis result.
type Response struct {
	Result          string      `json:"result"`
	ThreatLevel     ThreatLevel `json:"threatLevel,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// errorBody is the failure shape the analysis endpoints return.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Config holds analysis client configuration.
type Config struct {
	// BaseURL is the analysis API base.
	BaseURL string

	// Gateway issues the authenticated calls. Required.
	Gateway Gateway

	// Timeout bounds each call (default: 60s). No retry is attempted.
	Timeout time.Duration

	// DrillTimeout bounds drill simulations, which run longer than the
	// other endpoints (default: 120s).
	DrillTimeout time.Duration

	// Logger is used for structured logging (default: NoopLogger).
	Logger session.Logger
}

// Client calls the analysis endpoints.
type Client struct {
	baseURL      string
	gateway      Gateway
	timeout      time.Duration
	drillTimeout time.Duration
	logger       session.Logger
}

// New creates an analysis client.
func New(cfg Config) (*Client, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DrillTimeout == 0 {
		cfg.DrillTimeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = &session.NoopLogger{}
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		gateway:      cfg.Gateway,
		timeout:      cfg.Timeout,
		drillTimeout: cfg.DrillTimeout,
		logger:       cfg.Logger,
	}, nil
}

// Analyze submits content for threat analysis.
func (c *Client) Analyze(ctx context.Context, content string) (*Response, error) {
	return c.post(ctx, "/analyze", Request{Content: content, Mode: "analyze"}, c.timeout)
}

// Redact submits content for PII redaction.
func (c *Client) Redact(ctx context.Context, content string) (*Response, error) {
	return c.post(ctx, "/redact", Request{Content: content, Mode: "redact"}, c.timeout)
}

// GenerateReport submits an analysis request for report generation.
func (c *Client) GenerateReport(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, "/generate-report", req, c.timeout)
}

// SimulateDrill runs a drill simulation for the given scenario.
func (c *Client) SimulateDrill(ctx context.Context, scenario string) (*Response, error) {
	return c.post(ctx, "/simulate-drill", Request{Content: scenario, Mode: "drill"}, c.drillTimeout)
}

func (c *Client) post(ctx context.Context, path string, req Request, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	resp, err := c.gateway.Do(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body), nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("analysis request timed out",
				session.Field{Key: "path", Value: path},
				session.Field{Key: "timeout", Value: timeout},
			)
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure errorBody
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil {
			if failure.Error != "" {
				return nil, fmt.Errorf("analysis request failed: %s", failure.Error)
			}
			if failure.Message != "" {
				return nil, fmt.Errorf("analysis request failed: %s", failure.Message)
			}
		}
		return nil, fmt.Errorf("analysis request failed: status %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &result, nil
}
