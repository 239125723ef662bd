package models

import "time"

// RiskLevel is the qualitative risk classification of a customer account.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Customer is read-only reference data consumed by the priority scorer and
// the condition evaluator. The orchestration core never mutates it.
type Customer struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ARR         float64    `json:"arr"`
	HealthScore float64    `json:"health_score"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Snapshot flattens the customer into a condition-evaluation context as of
// the given time. Field names here are the vocabulary rule and trigger
// conditions are written in.
func (c *Customer) Snapshot(now time.Time) map[string]any {
	snapshot := map[string]any{
		"customer_id":  c.ID,
		"health_score": c.HealthScore,
		"arr":          c.ARR,
		"risk_level":   string(c.RiskLevel),
	}

	if c.RenewalDate != nil {
		snapshot["renewal_date"] = c.RenewalDate.Format(time.RFC3339)
		snapshot["days_until_renewal"] = float64(int(c.RenewalDate.Sub(now).Hours() / 24))
	}

	return snapshot
}
