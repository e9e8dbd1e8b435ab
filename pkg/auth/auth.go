// Package auth handles interactive authentication against the identity
// endpoint: login, signup and logout. It is, besides the refresher, the
// only writer of credential bundles into the session store.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

// User is the account profile returned on login.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Subscription *struct {
		Plan   string `json:"plan"`
		Status string `json:"status"`
	} `json:"subscription,omitempty"`
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	User   User
	Bundle session.Bundle
}

// Config holds auth service configuration.
type Config struct {
	// Endpoint is the identity provider's auth endpoint.
	Endpoint string

	// Store receives the credential bundle on login. Required.
	Store session.Store

	// HTTPClient issues the requests (default: http.DefaultClient).
	HTTPClient *http.Client

	// Logger is used for structured logging (default: NoopLogger).
	Logger session.Logger
}

// Service performs interactive authentication.
type Service struct {
	endpoint string
	store    session.Store
	client   *http.Client
	logger   session.Logger
	now      func() time.Time
}

type authRequest struct {
	Action       string `json:"action"`
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	Name         string `json:"name,omitempty"`
	AutoConfirm  bool   `json:"auto_confirm,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type authResponse struct {
	User   User           `json:"user"`
	Tokens session.Bundle `json:"tokens"`
	Error  string         `json:"error"`
}

// New creates an auth service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, session.ErrStoreUnavailable
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = &session.NoopLogger{}
	}

	return &Service{
		endpoint: cfg.Endpoint,
		store:    cfg.Store,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
		now:      time.Now,
	}, nil
}

// Login authenticates with email and password, stores the issued bundle
// and returns the user profile alongside it.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	parsed, err := s.post(ctx, authRequest{Action: "login", Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if parsed.Tokens.Empty() {
		return nil, fmt.Errorf("login response carried no tokens")
	}

	if err := s.store.Write(ctx, parsed.Tokens); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	if err := s.store.WriteRefreshTime(ctx, s.now()); err != nil {
		s.logger.Warn("failed to record login time", session.Field{Key: "error", Value: err})
	}

	s.logger.Info("logged in", session.Field{Key: "email", Value: email})
	return &LoginResult{User: parsed.User, Bundle: parsed.Tokens}, nil
}

// Signup registers a new account and logs it in.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*LoginResult, error) {
	if _, err := s.post(ctx, authRequest{
		Action:      "signup",
		Email:       email,
		Password:    password,
		Name:        name,
		AutoConfirm: true,
	}); err != nil {
		return nil, err
	}
	return s.Login(ctx, email, password)
}

// Logout revokes the refresh token best-effort and clears stored
// credentials. Revocation failure does not block the local logout.
func (s *Service) Logout(ctx context.Context) error {
	bundle, err := s.store.Read(ctx)
	if err == nil && bundle.RefreshToken != "" {
		if _, err := s.post(ctx, authRequest{Action: "logout", RefreshToken: bundle.RefreshToken}); err != nil {
			s.logger.Warn("logout revocation failed", session.Field{Key: "error", Value: err})
		}
	}
	return s.store.Clear(ctx)
}

func (s *Service) post(ctx context.Context, reqBody authRequest) (*authResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read auth response: %w", err)
	}

	var parsed authResponse
	if err := json.Unmarshal(data, &parsed); err != nil && resp.StatusCode < 300 {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != "" {
			return nil, fmt.Errorf("%s failed: %s", reqBody.Action, parsed.Error)
		}
		return nil, fmt.Errorf("%s failed: status %d", reqBody.Action, resp.StatusCode)
	}
	return &parsed, nil
}
