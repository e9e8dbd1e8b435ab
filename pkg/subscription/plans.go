package subscription

import "github.com/threatalytics/threatalytics-go/pkg/usage"

// Plan describes a purchasable tier.
type Plan struct {
	ID            usage.Plan
	Name          string
	Price         int // USD per interval
	Interval      string
	APICalls      usage.Amount
	StripePriceID string
	Features      []string
}

// Plans is the tier catalog, ordered by price.
var Plans = []Plan{
	{
		ID:       usage.PlanFree,
		Name:     "Free",
		Price:    0,
		Interval: "month",
		APICalls: usage.Limited(100),
		Features: []string{
			"100 API requests/month",
			"Basic threat analysis",
			"Document redaction",
			"Report generation",
			"Email support",
		},
	},
	{
		ID:            usage.PlanStarter,
		Name:          "Starter",
		Price:         29,
		Interval:      "month",
		APICalls:      usage.Limited(500),
		StripePriceID: "price_starter",
		Features: []string{
			"500 API requests/month",
			"Advanced threat analysis",
			"Priority support",
			"Document redaction",
			"Custom reports",
			"Drill simulation",
		},
	},
	{
		ID:            usage.PlanProfessional,
		Name:          "Professional",
		Price:         99,
		Interval:      "month",
		APICalls:      usage.Limited(5000),
		StripePriceID: "price_professional",
		Features: []string{
			"5,000 API requests/month",
			"All Starter features",
			"Advanced analytics",
			"Team collaboration",
			"API access",
			"Custom integrations",
			"Priority support",
		},
	},
	{
		ID:            usage.PlanEnterprise,
		Name:          "Enterprise",
		Price:         499,
		Interval:      "month",
		APICalls:      usage.UnlimitedAmount,
		StripePriceID: "price_enterprise",
		Features: []string{
			"Unlimited API requests",
			"All Professional features",
			"Dedicated support",
			"SLA guarantee",
			"Custom deployment",
		},
	},
}

// PlanByID returns the catalog entry for a plan, or nil when unknown.
func PlanByID(id usage.Plan) *Plan {
	for i := range Plans {
		if Plans[i].ID == id {
			return &Plans[i]
		}
	}
	return nil
}
