// Package file provides file-based persistence for workflow executions,
// automation rules, customers, and rule schedules. Intended for development
// and tests; production deployments use the postgresql package.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/cadencehq/cadence/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	executionRepo *ExecutionRepository
	ruleRepo      *RuleRepository
	customerRepo  *CustomerRepository
	scheduleRepo  *ScheduleRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		executionRepo: NewExecutionRepository(cleanRoot),
		ruleRepo:      NewRuleRepository(cleanRoot),
		customerRepo:  NewCustomerRepository(cleanRoot),
		scheduleRepo:  NewScheduleRepository(cleanRoot),
	}
}

// Executions returns the execution repository implementation for file persistence.
func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executionRepo
}

// Rules returns the automation rule repository implementation for file persistence.
func (fp *Persistence) Rules() persistence.RuleRepository {
	return fp.ruleRepo
}

// Customers returns the customer repository implementation for file persistence.
func (fp *Persistence) Customers() persistence.CustomerRepository {
	return fp.customerRepo
}

// Schedules returns the rule schedule repository implementation for file persistence.
func (fp *Persistence) Schedules() persistence.ScheduleRepository {
	return fp.scheduleRepo
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}
