package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/threatalytics/threatalytics-go/credstore/memory"
	"github.com/threatalytics/threatalytics-go/pkg/auth"
	"github.com/threatalytics/threatalytics-go/pkg/session"
)

func newTestService(t *testing.T, endpoint string, store session.Store) *auth.Service {
	t.Helper()

	s, err := auth.New(auth.Config{Endpoint: endpoint, Store: store})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := auth.New(auth.Config{}); err == nil {
		t.Error("expected error for missing store")
	}
}

func TestLogin_StoresBundle(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["action"] != "login" || req["email"] != "a@b.test" {
			t.Errorf("unexpected login request %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user": map[string]string{"id": "u1", "email": "a@b.test"},
			"tokens": map[string]string{
				"access_token":  "access",
				"id_token":      "id",
				"refresh_token": "refresh",
			},
		})
	}))
	defer provider.Close()

	store := memory.New()
	s := newTestService(t, provider.URL, store)

	result, err := s.Login(context.Background(), "a@b.test", "hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.User.ID != "u1" {
		t.Errorf("unexpected user %+v", result.User)
	}

	stored, _ := store.Read(context.Background())
	if stored.RefreshToken != "refresh" || stored.AccessToken != "access" {
		t.Errorf("bundle should be stored, got %+v", stored)
	}
	ts, _ := store.ReadRefreshTime(context.Background())
	if ts.IsZero() {
		t.Error("login should stamp the refresh time")
	}
}

func TestLogin_ErrorPropagates(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	defer provider.Close()

	store := memory.New()
	s := newTestService(t, provider.URL, store)

	if _, err := s.Login(context.Background(), "a@b.test", "wrong"); err == nil {
		t.Fatal("expected login failure")
	}
	stored, _ := store.Read(context.Background())
	if !stored.Empty() {
		t.Errorf("failed login must not store credentials, got %+v", stored)
	}
}

func TestLogin_NoTokens(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"u1"}}`))
	}))
	defer provider.Close()

	s := newTestService(t, provider.URL, memory.New())
	if _, err := s.Login(context.Background(), "a@b.test", "hunter2"); err == nil {
		t.Error("expected error when response carries no tokens")
	}
}

func TestSignup_AutoLogin(t *testing.T) {
	var actions []string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		action, _ := req["action"].(string)
		actions = append(actions, action)

		switch action {
		case "signup":
			if req["auto_confirm"] != true {
				t.Error("signup should auto-confirm")
			}
			w.Write([]byte(`{}`))
		case "login":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"user":   map[string]string{"id": "u1"},
				"tokens": map[string]string{"access_token": "access", "refresh_token": "refresh"},
			})
		}
	}))
	defer provider.Close()

	s := newTestService(t, provider.URL, memory.New())
	if _, err := s.Signup(context.Background(), "a@b.test", "hunter2", "Alice"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if len(actions) != 2 || actions[0] != "signup" || actions[1] != "login" {
		t.Errorf("expected signup then login, got %v", actions)
	}
}

func TestLogout_RevokesAndClears(t *testing.T) {
	var revoked string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["action"] == "logout" {
			revoked = req["refresh_token"]
		}
		w.Write([]byte(`{}`))
	}))
	defer provider.Close()

	store := memory.New()
	store.Write(context.Background(), session.Bundle{AccessToken: "a", RefreshToken: "refresh-1"})

	s := newTestService(t, provider.URL, store)
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if revoked != "refresh-1" {
		t.Errorf("expected refresh token to be revoked, got %q", revoked)
	}
	stored, _ := store.Read(context.Background())
	if !stored.Empty() {
		t.Errorf("logout must clear credentials, got %+v", stored)
	}
}

func TestLogout_RevocationFailureStillClears(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer provider.Close()

	store := memory.New()
	store.Write(context.Background(), session.Bundle{RefreshToken: "refresh-1"})

	s := newTestService(t, provider.URL, store)
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout should not fail on revocation errors: %v", err)
	}
	stored, _ := store.Read(context.Background())
	if !stored.Empty() {
		t.Error("logout must clear credentials even when revocation fails")
	}
}
