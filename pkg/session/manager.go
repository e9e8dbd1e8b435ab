package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshKey is the singleflight key for the shared refresh operation.
// One session manager holds at most one in-flight refresh at a time.
const refreshKey = "refresh"

// Config holds session manager configuration.
type Config struct {
	// Store persists the credential bundle. Required.
	Store Store

	// RefreshEndpoint is the identity provider's token endpoint.
	RefreshEndpoint string

	// HTTPClient issues all outbound requests (default: http.DefaultClient).
	HTTPClient *http.Client

	// Skew is the expiry safety margin (default: DefaultSkew).
	Skew time.Duration

	// APIKey, when set, is attached to every request as x-api-key.
	APIKey string

	// Logger is used for structured logging (default: NoopLogger).
	Logger Logger

	// Metrics is used for tracking session operations (default: NoopMetrics).
	Metrics Metrics
}

// Manager owns the token lifecycle for one session: it selects a valid
// credential for outbound requests, refreshing through the identity
// provider when needed, and guarantees at most one refresh is in flight
// at any time. Construct one per session at the application root and pass
// it to any component needing authenticated requests.
type Manager struct {
	store     Store
	refresher *Refresher
	client    *http.Client
	skew      time.Duration
	apiKey    string
	logger    Logger
	metrics   Metrics

	group singleflight.Group
	now   func() time.Time
}

// NewManager creates a session manager with the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, ErrStoreUnavailable
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Skew == 0 {
		cfg.Skew = DefaultSkew
	}
	if cfg.Logger == nil {
		cfg.Logger = &NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoopMetrics{}
	}

	refresher, err := NewRefresher(cfg.RefreshEndpoint, cfg.Store, cfg.HTTPClient, cfg.Logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:     cfg.Store,
		refresher: refresher,
		client:    cfg.HTTPClient,
		skew:      cfg.Skew,
		apiKey:    cfg.APIKey,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}, nil
}

// GetValidToken returns a credential usable for authorization, preferring
// the ID token, then the access token. When neither is valid it performs
// (or joins) a single shared refresh and re-evaluates the refreshed bundle.
// Fails with ErrSessionExpired when no refresh token exists, or
// ErrRefreshFailed when the refresh did not yield a usable token.
func (m *Manager) GetValidToken(ctx context.Context) (Token, error) {
	bundle, err := m.store.Read(ctx)
	if err != nil {
		m.logger.Warn("credential store read failed", Field{Key: "error", Value: err})
		bundle = Bundle{}
	}

	if tok, ok := m.pick(bundle); ok {
		m.metrics.RecordTokenServed(string(tok.Type))
		return tok, nil
	}

	if !bundle.Recoverable() {
		return Token{}, ErrSessionExpired
	}

	v, err, shared := m.group.Do(refreshKey, func() (interface{}, error) {
		return m.refresher.RefreshOnce(ctx, bundle.RefreshToken)
	})
	if shared {
		m.metrics.RecordRefreshShared()
	}
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	refreshed := v.(Bundle)
	if tok, ok := m.pick(refreshed); ok {
		m.metrics.RecordTokenServed(string(tok.Type))
		return tok, nil
	}
	return Token{}, ErrRefreshFailed
}

// pick selects the first currently-valid credential from the bundle,
// ID token first.
func (m *Manager) pick(b Bundle) (Token, bool) {
	now := m.now()
	if b.IDToken != "" && !IsExpiredAt(b.IDToken, m.skew, now) {
		return Token{Value: b.IDToken, Type: TokenTypeID}, true
	}
	if b.AccessToken != "" && !IsExpiredAt(b.AccessToken, m.skew, now) {
		return Token{Value: b.AccessToken, Type: TokenTypeAccess}, true
	}
	return Token{}, false
}

// Do issues an authenticated request. It obtains a valid token, merges the
// Authorization bearer header and a JSON content type into the caller's
// headers, and returns the raw response untouched. Caller headers take
// precedence on conflict for any key other than Authorization; callers are
// responsible for status-code interpretation and for closing the body.
func (m *Manager) Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error) {
	tok, err := m.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("x-api-key", m.apiKey)
	}
	for key, values := range headers {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	return m.client.Do(req)
}
