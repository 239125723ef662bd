package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// ScheduleRepository handles rule schedule file operations.
type ScheduleRepository struct {
	root string
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(root string) *ScheduleRepository {
	return &ScheduleRepository{root: root}
}

func (sr *ScheduleRepository) dir() string {
	return sr.root + "/schedules"
}

func (sr *ScheduleRepository) filePath(id string) string {
	return filepath.Clean(path.Join(sr.dir(), id+".json"))
}

// Save writes a schedule to the file system, creating or replacing it.
func (sr *ScheduleRepository) Save(_ context.Context, schedule *models.RuleSchedule) error {
	if err := os.MkdirAll(sr.dir(), 0750); err != nil {
		return fmt.Errorf("failed to create schedules directory: %w", err)
	}

	data, err := json.MarshalIndent(schedule, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule %s: %w", schedule.ID, err)
	}

	if err := os.WriteFile(sr.filePath(schedule.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write schedule %s: %w", schedule.ID, err)
	}

	return nil
}

// GetByRuleID retrieves the schedule attached to the given rule.
func (sr *ScheduleRepository) GetByRuleID(_ context.Context, ruleID string) (*models.RuleSchedule, error) {
	schedules, err := sr.list(func(schedule *models.RuleSchedule) bool {
		return schedule.RuleID == ruleID
	})
	if err != nil {
		return nil, err
	}

	if len(schedules) == 0 {
		return nil, persistence.ErrScheduleNotFound
	}

	return schedules[0], nil
}

// ListDue returns every active schedule whose next due time has passed.
func (sr *ScheduleRepository) ListDue(_ context.Context, now time.Time) ([]*models.RuleSchedule, error) {
	return sr.list(func(schedule *models.RuleSchedule) bool {
		return schedule.IsDue(now)
	})
}

// Delete removes the schedule attached to the given rule from the file system.
func (sr *ScheduleRepository) Delete(ctx context.Context, ruleID string) error {
	schedule, err := sr.GetByRuleID(ctx, ruleID)
	if err != nil {
		return err
	}

	if err := os.Remove(sr.filePath(schedule.ID)); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrScheduleNotFound
		}

		return fmt.Errorf("failed to delete schedule for rule %s: %w", ruleID, err)
	}

	return nil
}

func (sr *ScheduleRepository) list(keep func(*models.RuleSchedule) bool) ([]*models.RuleSchedule, error) {
	if _, err := os.Stat(sr.dir()); os.IsNotExist(err) {
		return make([]*models.RuleSchedule, 0), nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(sr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule files: %w", err)
	}

	schedules := make([]*models.RuleSchedule, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(sr.dir(), file)))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch schedule %s: %w", file, err)
		}

		var schedule models.RuleSchedule

		if err := json.Unmarshal(body, &schedule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule %s: %w", file, err)
		}

		if keep(&schedule) {
			schedules = append(schedules, &schedule)
		}
	}

	return schedules, nil
}
