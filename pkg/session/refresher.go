package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// refreshRequest is the body of a refresh exchange.
type refreshRequest struct {
	Action       string `json:"action"`
	RefreshToken string `json:"refresh_token"`
}

// refreshResponse is the success body of a refresh exchange. The provider
// may omit fields; omitted fields must not overwrite stored values.
type refreshResponse struct {
	Tokens struct {
		AccessToken  string `json:"access_token"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"tokens"`
}

// Refresher exchanges a refresh token for fresh credentials at the identity
// provider and persists the merged result. It performs a single exchange per
// call; deduplication of concurrent exchanges is the Manager's concern.
type Refresher struct {
	endpoint string
	client   *http.Client
	store    Store
	logger   Logger
	metrics  Metrics
	now      func() time.Time
}

// NewRefresher creates a refresher against the given identity endpoint.
func NewRefresher(endpoint string, store Store, client *http.Client, logger Logger, metrics Metrics) (*Refresher, error) {
	if store == nil {
		return nil, ErrStoreUnavailable
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = &NoopLogger{}
	}
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &Refresher{
		endpoint: endpoint,
		client:   client,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// RefreshOnce performs one refresh exchange. On success the provider's new
// token values are merged into the most recently stored bundle, preserving
// any field the provider omitted, and the merged bundle is written back in
// full before being returned.
func (r *Refresher) RefreshOnce(ctx context.Context, refreshToken string) (Bundle, error) {
	if refreshToken == "" {
		return Bundle{}, ErrNoRefreshToken
	}

	start := r.now()
	body, err := json.Marshal(refreshRequest{Action: "refresh", RefreshToken: refreshToken})
	if err != nil {
		return Bundle{}, fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Bundle{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.metrics.RecordRefresh("transport", r.now().Sub(start))
		r.logger.Error("token refresh transport failure", Field{Key: "error", Value: err})
		return Bundle{}, &RefreshTransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.metrics.RecordRefresh("rejected", r.now().Sub(start))
		r.logger.Warn("token refresh rejected",
			Field{Key: "status", Value: resp.StatusCode},
		)
		return Bundle{}, &RefreshRejectedError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		r.metrics.RecordRefresh("rejected", r.now().Sub(start))
		return Bundle{}, &RefreshRejectedError{StatusCode: resp.StatusCode, Body: "unparseable refresh response"}
	}

	merged, err := r.store.Read(ctx)
	if err != nil {
		r.logger.Warn("credential store read failed during refresh", Field{Key: "error", Value: err})
		merged = Bundle{RefreshToken: refreshToken}
	}
	if parsed.Tokens.AccessToken != "" {
		merged.AccessToken = parsed.Tokens.AccessToken
	}
	if parsed.Tokens.IDToken != "" {
		merged.IDToken = parsed.Tokens.IDToken
	}
	if parsed.Tokens.RefreshToken != "" {
		merged.RefreshToken = parsed.Tokens.RefreshToken
	}

	if err := r.store.Write(ctx, merged); err != nil {
		return Bundle{}, fmt.Errorf("persist refreshed credentials: %w", err)
	}
	if err := r.store.WriteRefreshTime(ctx, r.now()); err != nil {
		r.logger.Warn("failed to record refresh time", Field{Key: "error", Value: err})
	}

	r.metrics.RecordRefresh("success", r.now().Sub(start))
	r.logger.Debug("credentials refreshed")
	return merged, nil
}
