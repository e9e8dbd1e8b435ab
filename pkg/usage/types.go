package usage

import (
	"encoding/json"
	"fmt"
)

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Amount models a quota value that is either a non-negative integer or
// the string "unlimited" on the wire.
type Amount struct {
	Unlimited bool
	Value     int
}

// Limited returns a numeric amount.
func Limited(v int) Amount {
	return Amount{Value: v}
}

// UnlimitedAmount is the non-numeric amount.
var UnlimitedAmount = Amount{Unlimited: true}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(a.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return fmt.Errorf("invalid amount %q", s)
		}
		*a = Amount{Unlimited: true}
		return nil
	}

	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if v < 0 {
		return fmt.Errorf("negative amount %d", v)
	}
	*a = Amount{Value: v}
	return nil
}

func (a Amount) String() string {
	if a.Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", a.Value)
}

// Snapshot is the remaining-quota state reported by the usage endpoint.
// It is never mutated locally; a newer fetch supersedes it wholesale.
type Snapshot struct {
	UserID                string  `json:"user_id,omitempty"`
	Plan                  Plan    `json:"plan"`
	Current               int     `json:"current"`
	Limit                 Amount  `json:"limit"`
	Remaining             Amount  `json:"remaining"`
	Percentage            float64 `json:"percentage"`
	HasActiveSubscription bool    `json:"has_active_subscription"`
}

// NearLimit reports whether usage has crossed 80% of a numeric limit.
func (s Snapshot) NearLimit() bool {
	if s.Limit.Unlimited {
		return false
	}
	return s.Percentage > 80
}

// OverLimit reports whether a numeric quota is exhausted.
func (s Snapshot) OverLimit() bool {
	if s.Limit.Unlimited {
		return false
	}
	return !s.Remaining.Unlimited && s.Remaining.Value <= 0
}

// Display renders the snapshot for a usage meter.
func (s Snapshot) Display() string {
	if s.Limit.Unlimited {
		return fmt.Sprintf("%d requests this month (Unlimited)", s.Current)
	}
	return fmt.Sprintf("%d / %d requests (%s remaining)", s.Current, s.Limit.Value, s.Remaining)
}

// DefaultSnapshot is the free-tier snapshot served when the usage endpoint
// is unavailable or the user is not provisioned. Usage unavailability must
// never block the UI.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		UserID:                "current_user",
		Plan:                  PlanFree,
		Current:               0,
		Limit:                 Limited(100),
		Remaining:             Limited(100),
		Percentage:            0,
		HasActiveSubscription: false,
	}
}

// Decision is the outcome of a pre-flight admission check.
type Decision struct {
	// Allowed reports whether the action may proceed.
	Allowed bool

	// Usage is the snapshot the decision was based on, when one was
	// available.
	Usage *Snapshot

	// Message names the numeric limit when the action is denied.
	Message string
}
