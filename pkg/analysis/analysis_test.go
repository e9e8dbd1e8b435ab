package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/threatalytics/threatalytics-go/pkg/analysis"
)

type passthroughGateway struct {
	client *http.Client
}

func (g *passthroughGateway) Do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	client := g.client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

func newTestClient(t *testing.T, backend *httptest.Server, mutate func(*analysis.Config)) *analysis.Client {
	t.Helper()

	cfg := analysis.Config{
		BaseURL: backend.URL,
		Gateway: &passthroughGateway{client: backend.Client()},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := analysis.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_RequiresGateway(t *testing.T) {
	if _, err := analysis.New(analysis.Config{}); err == nil {
		t.Error("expected error for missing gateway")
	}
}

func TestAnalyze(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req analysis.Request
		json.NewDecoder(r.Body).Decode(&req)
		if req.Content != "suspicious payload" || req.Mode != "analyze" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(analysis.Response{
			Result:          "malware detected",
			ThreatLevel:     analysis.ThreatHigh,
			Recommendations: []string{"isolate host"},
		})
	}))
	defer backend.Close()

	c := newTestClient(t, backend, nil)
	resp, err := c.Analyze(context.Background(), "suspicious payload")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp.ThreatLevel != analysis.ThreatHigh {
		t.Errorf("expected high threat, got %v", resp.ThreatLevel)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("expected recommendations to decode, got %v", resp.Recommendations)
	}
}

func TestRedact(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/redact" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(analysis.Response{Result: "call me at [REDACTED]"})
	}))
	defer backend.Close()

	c := newTestClient(t, backend, nil)
	resp, err := c.Redact(context.Background(), "call me at 555-0100")
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if resp.Result != "call me at [REDACTED]" {
		t.Errorf("unexpected result %q", resp.Result)
	}
}

func TestSimulateDrill_Timeout(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // hang like the documented 504
	}))
	defer backend.Close()
	defer close(release)

	c := newTestClient(t, backend, func(cfg *analysis.Config) {
		cfg.DrillTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	_, err := c.SimulateDrill(context.Background(), "ransomware tabletop")
	if !errors.Is(err, analysis.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout should be bounded, took %v", elapsed)
	}
}

func TestGenerateReport_ErrorBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"content too large"}`)
	}))
	defer backend.Close()

	c := newTestClient(t, backend, nil)
	_, err := c.GenerateReport(context.Background(), analysis.Request{Content: "big", Mode: "report"})
	if err == nil || err.Error() != "analysis request failed: content too large" {
		t.Errorf("expected server error message to propagate, got %v", err)
	}
}

func TestAnalyze_ErrorStatusWithoutBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	c := newTestClient(t, backend, nil)
	_, err := c.Analyze(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error for 502")
	}
}
