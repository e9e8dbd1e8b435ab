package session

import "time"

// Metrics defines the interface for tracking session and usage operations.
type Metrics interface {
	// RecordRefresh records a refresh exchange and its outcome
	// ("success", "rejected" or "transport").
	RecordRefresh(outcome string, duration time.Duration)

	// RecordRefreshShared records a caller joining an already in-flight
	// refresh instead of starting its own.
	RecordRefreshShared()

	// RecordTokenServed records which credential type satisfied a
	// GetValidToken call ("id_token" or "access_token").
	RecordTokenServed(tokenType string)

	// RecordUsageFetch records a usage snapshot fetch and its outcome
	// ("success" or "degraded").
	RecordUsageFetch(outcome string, duration time.Duration)

	// RecordAdmission records an admission decision.
	RecordAdmission(allowed bool)

	// RecordTrackedRequest records a post-flight usage tracking call.
	RecordTrackedRequest(endpoint string, success bool)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordRefresh(outcome string, duration time.Duration) {}
func (n *NoopMetrics) RecordRefreshShared()                                 {}
func (n *NoopMetrics) RecordTokenServed(tokenType string)                   {}
func (n *NoopMetrics) RecordUsageFetch(outcome string, duration time.Duration) {}
func (n *NoopMetrics) RecordAdmission(allowed bool)                            {}
func (n *NoopMetrics) RecordTrackedRequest(endpoint string, success bool)      {}
