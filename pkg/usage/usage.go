// Package usage implements the client-side usage tracker: it fetches and
// caches remaining-quota snapshots, answers pre-flight admission checks,
// and records consumption after successful requests.
//
// Errors never propagate past this package as failures. By default every
// failure degrades to the free-tier snapshot and admission fails open;
// deployments that prefer strict enforcement set Config.FailClosed.
package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

// Gateway issues authenticated requests. *session.Manager satisfies it.
type Gateway interface {
	Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error)
}

// Config holds usage tracker configuration.
type Config struct {
	// BaseURL is the auth-side API base serving /usage and /usage/track.
	BaseURL string

	// Gateway issues the authenticated calls. Required.
	Gateway Gateway

	// CacheTTL is how long a fetched snapshot is reused (default: 10s).
	// Snapshots are not linearizable with tracking from other sessions;
	// staleness up to the TTL is acceptable.
	CacheTTL time.Duration

	// FailClosed disables the fail-open policy: admission checks deny and
	// GetUsage returns errors when usage state cannot be determined.
	// The default favors availability over strict enforcement.
	FailClosed bool

	// Logger is used for structured logging (default: NoopLogger).
	Logger session.Logger

	// Metrics is used for tracking fetch outcomes (default: NoopMetrics).
	Metrics session.Metrics
}

// Service is the usage tracker.
type Service struct {
	baseURL    string
	gateway    Gateway
	cacheTTL   time.Duration
	failClosed bool
	logger     session.Logger
	metrics    session.Metrics
	now        func() time.Time

	mu       sync.Mutex
	cached   *Snapshot
	cachedAt time.Time
}

// usageResponse is the body of GET /usage.
type usageResponse struct {
	Success bool      `json:"success"`
	Usage   *Snapshot `json:"usage"`
	Error   string    `json:"error"`
}

// trackRequest is the body of POST /usage/track.
type trackRequest struct {
	Endpoint string `json:"endpoint"`
}

// New creates a usage tracker with the given configuration.
func New(cfg Config) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = &session.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &session.NoopMetrics{}
	}

	return &Service{
		baseURL:    cfg.BaseURL,
		gateway:    cfg.Gateway,
		cacheTTL:   cfg.CacheTTL,
		failClosed: cfg.FailClosed,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}, nil
}

// GetUsage returns the current usage snapshot, serving a cached one within
// the TTL. HTTP 404 and 401 mean the user is not provisioned for metering
// and yield the default free snapshot. Any other failure also degrades to
// the default snapshot unless FailClosed is set.
func (s *Service) GetUsage(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.fromCache(); ok {
		return snap, nil
	}

	start := s.now()
	snap, err := s.fetch(ctx)
	if err != nil {
		s.metrics.RecordUsageFetch("degraded", s.now().Sub(start))
		if s.failClosed {
			return Snapshot{}, err
		}
		s.logger.Warn("usage fetch degraded to default snapshot", session.Field{Key: "error", Value: err})
		return DefaultSnapshot(), nil
	}

	s.metrics.RecordUsageFetch("success", s.now().Sub(start))
	s.store(snap)
	return snap, nil
}

func (s *Service) fetch(ctx context.Context) (Snapshot, error) {
	resp, err := s.gateway.Do(ctx, http.MethodGet, s.baseURL+"/usage", nil, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch usage: %w", err)
	}
	defer resp.Body.Close()

	// Not provisioned for metering: the default free plan applies.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
		s.logger.Debug("usage endpoint not available, using default plan",
			session.Field{Key: "status", Value: resp.StatusCode},
		)
		return DefaultSnapshot(), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Snapshot{}, fmt.Errorf("fetch usage: status %d", resp.StatusCode)
	}

	var parsed usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Snapshot{}, fmt.Errorf("decode usage response: %w", err)
	}
	if !parsed.Success || parsed.Usage == nil {
		if parsed.Error != "" {
			return Snapshot{}, fmt.Errorf("usage endpoint error: %s", parsed.Error)
		}
		return Snapshot{}, fmt.Errorf("usage response missing snapshot")
	}
	return *parsed.Usage, nil
}

// CanMakeRequest performs the pre-flight admission check. An unlimited
// plan always admits; otherwise the action is admitted while numeric
// remaining quota is positive. On denial the message names the numeric
// limit. Internal errors fail open unless FailClosed is set.
func (s *Service) CanMakeRequest(ctx context.Context) Decision {
	snap, err := s.GetUsage(ctx)
	if err != nil {
		if s.failClosed {
			return Decision{
				Allowed: false,
				Message: "Usage could not be verified. Please try again.",
			}
		}
		// Unreachable with fail-open GetUsage, kept for the policy flip.
		return Decision{Allowed: true}
	}

	if snap.Limit.Unlimited || snap.Remaining.Unlimited {
		return Decision{Allowed: true, Usage: &snap}
	}
	if snap.Remaining.Value > 0 {
		return Decision{Allowed: true, Usage: &snap}
	}

	return Decision{
		Allowed: false,
		Usage:   &snap,
		Message: fmt.Sprintf("You've reached your monthly limit of %d requests. Please upgrade your plan.", snap.Limit.Value),
	}
}

// TrackUsage records one consumption event for the named logical endpoint.
// Returns whether the call succeeded; never returns an error. A failed
// track is logged and otherwise ignored, since an undercount is preferable
// to blocking an action that already happened.
func (s *Service) TrackUsage(ctx context.Context, endpoint string) bool {
	body, err := json.Marshal(trackRequest{Endpoint: endpoint})
	if err != nil {
		s.logger.Error("encode track request", session.Field{Key: "error", Value: err})
		return false
	}

	resp, err := s.gateway.Do(ctx, http.MethodPost, s.baseURL+"/usage/track", bytes.NewReader(body), nil)
	if err != nil {
		s.metrics.RecordTrackedRequest(endpoint, false)
		s.logger.Warn("usage tracking failed", session.Field{Key: "endpoint", Value: endpoint}, session.Field{Key: "error", Value: err})
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	s.metrics.RecordTrackedRequest(endpoint, ok)
	if !ok {
		s.logger.Warn("usage tracking rejected",
			session.Field{Key: "endpoint", Value: endpoint},
			session.Field{Key: "status", Value: resp.StatusCode},
		)
		return false
	}

	// The snapshot is now stale; force a refetch on the next read.
	s.invalidate()
	return true
}

// Invalidate drops the cached snapshot so the next GetUsage refetches.
func (s *Service) Invalidate() {
	s.invalidate()
}

func (s *Service) fromCache() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil || s.now().Sub(s.cachedAt) > s.cacheTTL {
		return Snapshot{}, false
	}
	return *s.cached, true
}

func (s *Service) store(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = &snap
	s.cachedAt = s.now()
}

func (s *Service) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
}
