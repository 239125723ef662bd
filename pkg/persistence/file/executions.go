package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ExecutionRepository handles workflow execution file operations. A single
// mutex serializes guarded updates so the compare-and-swap contract holds
// within one process; cross-process safety is what the SQL store is for.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return er.root + "/executions"
}

func (er *ExecutionRepository) filePath(id string) string {
	return filepath.Clean(path.Join(er.dir(), id+".json"))
}

// Save writes a new execution to the file system.
func (er *ExecutionRepository) Save(_ context.Context, execution *models.WorkflowExecution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.MkdirAll(er.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	if _, err := os.Stat(er.filePath(execution.ID)); err == nil {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	return er.write(execution)
}

// GetByID retrieves an execution by its ID from the file system.
func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	return er.read(id)
}

// ListByAssignee returns every execution assigned to the operator.
func (er *ExecutionRepository) ListByAssignee(ctx context.Context, userID string) ([]*models.WorkflowExecution, error) {
	return er.list(ctx, func(execution *models.WorkflowExecution) bool {
		return execution.AssignedUserID == userID
	})
}

// ListByStatus returns every execution in the given status.
func (er *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.WorkflowExecution, error) {
	return er.list(ctx, func(execution *models.WorkflowExecution) bool {
		return execution.Status == status
	})
}

// UpdateGuarded persists the execution only if the stored record still holds
// the expected status and updated_at.
func (er *ExecutionRepository) UpdateGuarded(_ context.Context, execution *models.WorkflowExecution,
	expectedStatus models.ExecutionStatus, expectedUpdatedAt time.Time,
) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.read(execution.ID)
	if err != nil {
		return err
	}

	if stored.Status != expectedStatus || !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return persistence.NewExecutionError("UpdateGuarded", execution.ID, persistence.ErrConflict)
	}

	return er.write(execution)
}

// HasLaunch reports whether the rule already launched an execution with the
// given launch key.
func (er *ExecutionRepository) HasLaunch(ctx context.Context, ruleID, launchKey string) (bool, error) {
	matches, err := er.list(ctx, func(execution *models.WorkflowExecution) bool {
		return execution.AutomationRuleID == ruleID && execution.LaunchKey == launchKey
	})
	if err != nil {
		return false, err
	}

	return len(matches) > 0, nil
}

func (er *ExecutionRepository) read(id string) (*models.WorkflowExecution, error) {
	body, err := os.ReadFile(er.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch execution %s: %w", id, err)
	}

	var execution models.WorkflowExecution

	if err := json.Unmarshal(body, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) write(execution *models.WorkflowExecution) error {
	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	if err := os.WriteFile(er.filePath(execution.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) list(_ context.Context, keep func(*models.WorkflowExecution) bool) ([]*models.WorkflowExecution, error) {
	if _, err := os.Stat(er.dir()); os.IsNotExist(err) {
		return make([]*models.WorkflowExecution, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.WorkflowExecution, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		execution, err := er.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if keep(execution) {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}
