package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// CustomerRepository handles customer database operations.
type CustomerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *sql.DB, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger}
}

const customerColumns = `
	id, name, arr, health_score, risk_level, renewal_date, created_at, updated_at
`

// Save inserts or replaces a customer record.
func (cr *CustomerRepository) Save(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			arr = EXCLUDED.arr,
			health_score = EXCLUDED.health_score,
			risk_level = EXCLUDED.risk_level,
			renewal_date = EXCLUDED.renewal_date,
			updated_at = EXCLUDED.updated_at
	`

	_, err := cr.db.ExecContext(ctx, query,
		customer.ID, customer.Name, customer.ARR, customer.HealthScore,
		customer.RiskLevel, customer.RenewalDate, customer.CreatedAt, customer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save customer %s: %w", customer.ID, err)
	}

	return nil
}

// List returns every customer record.
func (cr *CustomerRepository) List(ctx context.Context) ([]*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY id`

	rows, err := cr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			cr.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var customers []*models.Customer

	for rows.Next() {
		var customer models.Customer

		err := rows.Scan(
			&customer.ID, &customer.Name, &customer.ARR, &customer.HealthScore,
			&customer.RiskLevel, &customer.RenewalDate, &customer.CreatedAt, &customer.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}

		customers = append(customers, &customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}

	return customers, nil
}

// GetByID returns a customer by its ID.
func (cr *CustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	var customer models.Customer

	err := cr.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID, &customer.Name, &customer.ARR, &customer.HealthScore,
		&customer.RiskLevel, &customer.RenewalDate, &customer.CreatedAt, &customer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrCustomerNotFound
		}

		return nil, fmt.Errorf("failed to get customer %s: %w", id, err)
	}

	return &customer, nil
}
