package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/queue"
)

// Queue is the application service for the daily priority queue.
type Queue struct {
	builder *queue.Builder
	logger  *slog.Logger
}

// NewQueue creates a new queue service.
func NewQueue(builder *queue.Builder, logger *slog.Logger) *Queue {
	return &Queue{
		builder: builder,
		logger:  logger.With("module", "queue-service"),
	}
}

// QueueEntry pairs an execution with its urgency band.
type QueueEntry struct {
	Execution *models.WorkflowExecution `json:"execution"`
	Band      queue.UrgencyBand         `json:"band"`
}

// BuildQueueResponse is the queue plus its envelope: summary statistics,
// customer grouping, and the executions excluded for missing reference data.
type BuildQueueResponse struct {
	Queue   []*QueueEntry         `json:"queue"`
	Groups  []queue.CustomerGroup `json:"groups"`
	Stats   queue.Stats           `json:"stats"`
	Skipped []queue.SkippedEntry  `json:"skipped,omitempty"`
}

// BuildQueue assembles the operator's prioritized work queue.
func (s *Queue) BuildQueue(ctx context.Context, operatorID string) (*BuildQueueResponse, error) {
	if strings.TrimSpace(operatorID) == "" {
		return nil, ErrOperatorIDRequired
	}

	result, err := s.builder.BuildQueue(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	entries := make([]*QueueEntry, 0, len(result.Queue))
	for _, execution := range result.Queue {
		entries = append(entries, &QueueEntry{
			Execution: execution,
			Band:      s.builder.Band(execution.PriorityScore),
		})
	}

	return &BuildQueueResponse{
		Queue:   entries,
		Groups:  queue.GroupByCustomer(result.Queue),
		Stats:   result.Stats,
		Skipped: result.Skipped,
	}, nil
}
