// Package admission drives the per-send admission flow: consult the usage
// tracker before a quota-consuming action, surface an upgrade prompt when
// the action is denied, and record consumption after the action succeeds.
package admission

import (
	"context"
	"fmt"
	"sync"

	"github.com/threatalytics/threatalytics-go/pkg/session"
	"github.com/threatalytics/threatalytics-go/pkg/usage"
)

// State is the controller's position in the send flow.
type State string

const (
	// StateIdle means no send is in progress.
	StateIdle State = "idle"
	// StateCheckingUsage means the pre-flight admission check is in flight.
	StateCheckingUsage State = "checking_usage"
	// StateDenied means usage disallowed the action.
	StateDenied State = "denied"
	// StateProceeding means the action's underlying request is in flight.
	StateProceeding State = "proceeding"
	// StateRecordingUsage means consumption is being recorded after success.
	StateRecordingUsage State = "recording_usage"
)

// Tracker is the admission surface of the usage tracker.
// *usage.Service satisfies it.
type Tracker interface {
	CanMakeRequest(ctx context.Context) usage.Decision
	TrackUsage(ctx context.Context, endpoint string) bool
}

// DeniedError is returned from Run when usage disallowed the action.
// The action was not performed and nothing was recorded.
type DeniedError struct {
	Decision usage.Decision
}

func (e *DeniedError) Error() string {
	if e.Decision.Message != "" {
		return e.Decision.Message
	}
	return "request denied by usage limit"
}

// Config holds admission controller configuration.
type Config struct {
	// Tracker answers admission checks and records consumption. Required.
	Tracker Tracker

	// OnDenied is invoked with the denying decision so the caller can
	// surface an upgrade prompt (optional).
	OnDenied func(usage.Decision)

	// Logger is used for structured logging (default: NoopLogger).
	Logger session.Logger

	// Metrics is used for tracking decisions (default: NoopMetrics).
	Metrics session.Metrics
}

// Controller runs user-initiated actions through the admission state
// machine. One controller serves one send surface; concurrent sends are
// serialized.
type Controller struct {
	tracker  Tracker
	onDenied func(usage.Decision)
	logger   session.Logger
	metrics  session.Metrics

	mu    sync.Mutex
	state State
}

// New creates an admission controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = &session.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &session.NoopMetrics{}
	}

	return &Controller{
		tracker:  cfg.Tracker,
		onDenied: cfg.OnDenied,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		state:    StateIdle,
	}, nil
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run drives one action through the state machine. The action runs only
// when admitted; on denial Run invokes OnDenied and returns a
// *DeniedError without performing it. Consumption is recorded only after
// the action succeeds; a failed action returns its error with nothing
// recorded, since no API consumption occurred. A failed recording is
// logged and does not fail the action.
func (c *Controller) Run(ctx context.Context, endpoint string, action func(ctx context.Context) error) error {
	c.setState(StateCheckingUsage)
	defer c.setState(StateIdle)

	decision := c.tracker.CanMakeRequest(ctx)
	c.metrics.RecordAdmission(decision.Allowed)

	if !decision.Allowed {
		c.setState(StateDenied)
		c.logger.Info("request denied by usage limit",
			session.Field{Key: "endpoint", Value: endpoint},
			session.Field{Key: "message", Value: decision.Message},
		)
		if c.onDenied != nil {
			c.onDenied(decision)
		}
		return &DeniedError{Decision: decision}
	}

	c.setState(StateProceeding)
	if err := action(ctx); err != nil {
		return err
	}

	c.setState(StateRecordingUsage)
	if ok := c.tracker.TrackUsage(ctx, endpoint); !ok {
		c.logger.Warn("usage recording failed", session.Field{Key: "endpoint", Value: endpoint})
	}
	return nil
}
