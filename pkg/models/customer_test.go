package models_test

import (
	"testing"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCustomer_Snapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	renewal := now.Add(45 * 24 * time.Hour)

	customer := &models.Customer{
		ID:          "cust-1",
		Name:        "Acme Corp",
		ARR:         250000,
		HealthScore: 62,
		RiskLevel:   models.RiskLevelMedium,
		RenewalDate: &renewal,
	}

	snapshot := customer.Snapshot(now)

	assert.Equal(t, "cust-1", snapshot["customer_id"])
	assert.Equal(t, 62.0, snapshot["health_score"])
	assert.Equal(t, 250000.0, snapshot["arr"])
	assert.Equal(t, "medium", snapshot["risk_level"])
	assert.Equal(t, renewal.Format(time.RFC3339), snapshot["renewal_date"])
	assert.Equal(t, 45.0, snapshot["days_until_renewal"])

	// Same inputs, same snapshot: the clock is the caller's, not the wall's.
	assert.Equal(t, snapshot, customer.Snapshot(now))

	later := customer.Snapshot(now.Add(10 * 24 * time.Hour))
	assert.Equal(t, 35.0, later["days_until_renewal"])
}

func TestCustomer_Snapshot_NoRenewalDate(t *testing.T) {
	customer := &models.Customer{ID: "cust-1", HealthScore: 80, ARR: 50000, RiskLevel: models.RiskLevelLow}

	snapshot := customer.Snapshot(time.Now().UTC())

	assert.NotContains(t, snapshot, "renewal_date")
	assert.NotContains(t, snapshot, "days_until_renewal")
}
