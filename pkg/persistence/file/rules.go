package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// RuleRepository handles automation rule file operations.
type RuleRepository struct {
	root string
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(root string) *RuleRepository {
	return &RuleRepository{root: root}
}

func (rr *RuleRepository) dir() string {
	return rr.root + "/rules"
}

func (rr *RuleRepository) filePath(id string) string {
	return filepath.Clean(path.Join(rr.dir(), id+".json"))
}

// Save writes a rule to the file system, creating or replacing it.
func (rr *RuleRepository) Save(_ context.Context, rule *models.AutomationRule) error {
	if err := os.MkdirAll(rr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rule %s: %w", rule.ID, err)
	}

	if err := os.WriteFile(rr.filePath(rule.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write rule %s: %w", rule.ID, err)
	}

	return nil
}

// GetByID retrieves a rule by its ID from the file system.
func (rr *RuleRepository) GetByID(_ context.Context, id string) (*models.AutomationRule, error) {
	body, err := os.ReadFile(rr.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRuleError("GetByID", id, persistence.ErrRuleNotFound)
		}

		return nil, fmt.Errorf("failed to fetch rule %s: %w", id, err)
	}

	var rule models.AutomationRule

	if err := json.Unmarshal(body, &rule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule %s: %w", id, err)
	}

	return &rule, nil
}

// ListByOwner returns the operator's rules, optionally only active ones.
func (rr *RuleRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*models.AutomationRule, error) {
	return rr.list(func(rule *models.AutomationRule) bool {
		if rule.OwnerID != ownerID {
			return false
		}

		return !activeOnly || rule.IsActive
	})
}

// ListActive returns every active rule across all owners.
func (rr *RuleRepository) ListActive(_ context.Context) ([]*models.AutomationRule, error) {
	return rr.list(func(rule *models.AutomationRule) bool {
		return rule.IsActive
	})
}

// Delete removes a rule from the file system.
func (rr *RuleRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(rr.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewRuleError("Delete", id, persistence.ErrRuleNotFound)
		}

		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}

	return nil
}

func (rr *RuleRepository) list(keep func(*models.AutomationRule) bool) ([]*models.AutomationRule, error) {
	if _, err := os.Stat(rr.dir()); os.IsNotExist(err) {
		return make([]*models.AutomationRule, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(rr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	rules := make([]*models.AutomationRule, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		rule, err := rr.GetByID(context.Background(), file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if keep(rule) {
			rules = append(rules, rule)
		}
	}

	return rules, nil
}
