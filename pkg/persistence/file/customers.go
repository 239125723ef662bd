package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// CustomerRepository handles customer reference-data file operations.
type CustomerRepository struct {
	root string
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(root string) *CustomerRepository {
	return &CustomerRepository{root: root}
}

func (cr *CustomerRepository) dir() string {
	return cr.root + "/customers"
}

func (cr *CustomerRepository) filePath(id string) string {
	return filepath.Clean(path.Join(cr.dir(), id+".json"))
}

// Save writes a customer record to the file system.
func (cr *CustomerRepository) Save(_ context.Context, customer *models.Customer) error {
	if err := os.MkdirAll(cr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create customers directory: %w", err)
	}

	data, err := json.MarshalIndent(customer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal customer %s: %w", customer.ID, err)
	}

	if err := os.WriteFile(cr.filePath(customer.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write customer %s: %w", customer.ID, err)
	}

	return nil
}

// List returns every customer record on disk.
func (cr *CustomerRepository) List(_ context.Context) ([]*models.Customer, error) {
	entries, err := os.ReadDir(cr.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Customer{}, nil
		}

		return nil, fmt.Errorf("failed to read customers directory: %w", err)
	}

	customers := make([]*models.Customer, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		body, err := os.ReadFile(filepath.Clean(path.Join(cr.dir(), entry.Name())))
		if err != nil {
			return nil, fmt.Errorf("failed to read customer file %s: %w", entry.Name(), err)
		}

		var customer models.Customer
		if err := json.Unmarshal(body, &customer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customer file %s: %w", entry.Name(), err)
		}

		customers = append(customers, &customer)
	}

	return customers, nil
}

// GetByID retrieves a customer by its ID from the file system.
func (cr *CustomerRepository) GetByID(_ context.Context, id string) (*models.Customer, error) {
	body, err := os.ReadFile(cr.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrCustomerNotFound
		}

		return nil, fmt.Errorf("failed to fetch customer %s: %w", id, err)
	}

	var customer models.Customer

	if err := json.Unmarshal(body, &customer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer %s: %w", id, err)
	}

	return &customer, nil
}
