package queue

import (
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// Band maps a metric ceiling to the points it contributes.
type Band struct {
	// Max is the inclusive upper bound of the band, in whatever unit the
	// factor measures (days, score, dollars).
	Max    float64
	Points float64
}

// Config holds the priority weights and thresholds. The exact numbers are
// tunable; the contract is the relative ordering they produce: risk >
// opportunity > strategic > renewal base weights, and a wake bump large
// enough that recently woken work outranks newly created same-type work.
type Config struct {
	// TypeWeights is the base score per workflow type.
	TypeWeights map[models.WorkflowType]float64

	// RenewalBands score proximity to the renewal date in days; the first
	// band whose Max is >= days-until-renewal applies. Overdue renewals take
	// the first band.
	RenewalBands []Band

	// HealthBands score low customer health; the first band whose Max is >=
	// the health score applies.
	HealthBands []Band

	// ARRBands score revenue at stake; the LAST band whose Max is <= ARR
	// applies (ascending floors).
	ARRFloors []Band

	// RiskLevelPoints scores the qualitative customer risk level.
	RiskLevelPoints map[models.RiskLevel]float64

	// WakeBump is added to executions woken within WakeWindow.
	WakeBump   float64
	WakeWindow time.Duration

	// Urgency band thresholds over the final score, descending.
	CriticalThreshold float64
	HighThreshold     float64
	MediumThreshold   float64
}

// DefaultConfig returns the default weighting. Numbers preserve the factor
// ordering contract; deployments tune them per book of business.
func DefaultConfig() Config {
	return Config{
		TypeWeights: map[models.WorkflowType]float64{
			models.WorkflowTypeRisk:        40,
			models.WorkflowTypeOpportunity: 30,
			models.WorkflowTypeStrategic:   20,
			models.WorkflowTypeRenewal:     10,
		},
		RenewalBands: []Band{
			{Max: 30, Points: 25},
			{Max: 60, Points: 15},
			{Max: 90, Points: 8},
		},
		HealthBands: []Band{
			{Max: 50, Points: 20},
			{Max: 70, Points: 10},
		},
		ARRFloors: []Band{
			{Max: 100_000, Points: 5},
			{Max: 250_000, Points: 10},
			{Max: 500_000, Points: 15},
		},
		RiskLevelPoints: map[models.RiskLevel]float64{
			models.RiskLevelHigh:   10,
			models.RiskLevelMedium: 5,
		},
		WakeBump:   35,
		WakeWindow: 72 * time.Hour,

		CriticalThreshold: 80,
		HighThreshold:     55,
		MediumThreshold:   30,
	}
}
