// Package queue implements the priority queue builder: for a given operator
// it scores every open workflow execution and produces a total, deterministic
// order plus derived statistics and customer groupings.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// UrgencyBand classifies a priority score for presentation.
type UrgencyBand string

const (
	BandCritical UrgencyBand = "critical"
	BandHigh     UrgencyBand = "high"
	BandMedium   UrgencyBand = "medium"
	BandLow      UrgencyBand = "low"
)

// SkippedEntry reports an execution excluded from the queue. Exclusion is a
// side channel, not a failure: one missing customer must not block ranking
// of the rest, and a score silently defaulted to zero would misrank instead
// of excluding.
type SkippedEntry struct {
	ExecutionID string `json:"execution_id"`
	CustomerID  string `json:"customer_id"`
	Reason      string `json:"reason"`
}

// Stats are pure derived views over a built queue.
type Stats struct {
	Total           int                            `json:"total"`
	ByType          map[models.WorkflowType]int    `json:"by_type"`
	ByStatus        map[models.ExecutionStatus]int `json:"by_status"`
	ByBand          map[UrgencyBand]int            `json:"by_band"`
	AveragePriority float64                        `json:"average_priority"`
	MinPriority     float64                        `json:"min_priority"`
	MaxPriority     float64                        `json:"max_priority"`
}

// CustomerGroup bundles an operator's queue entries for one customer.
type CustomerGroup struct {
	CustomerID   string                      `json:"customer_id"`
	CustomerName string                      `json:"customer_name,omitempty"`
	Executions   []*models.WorkflowExecution `json:"executions"`
}

// Result is a built queue with its derived views.
type Result struct {
	Queue   []*models.WorkflowExecution `json:"queue"`
	Stats   Stats                       `json:"stats"`
	Skipped []SkippedEntry              `json:"skipped,omitempty"`
}

// Builder computes priority queues over the record store.
type Builder struct {
	persistence persistence.Persistence
	config      Config
	logger      *slog.Logger
	now         func() time.Time
}

// NewBuilder creates a queue builder with the given weighting config.
func NewBuilder(persistence persistence.Persistence, config Config, logger *slog.Logger) *Builder {
	return &Builder{
		persistence: persistence,
		config:      config,
		logger:      logger.With("module", "queue"),
		now:         time.Now,
	}
}

// WithClock overrides the builder's clock. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now

	return b
}

// BuildQueue scores and ranks every non-terminal, non-snoozed execution
// assigned to the operator. Re-running against identical input data yields
// an identical ordering: the sort key chain (score desc, renewal proximity,
// created_at, id) is a total order.
func (b *Builder) BuildQueue(ctx context.Context, operatorID string) (*Result, error) {
	executions, err := b.persistence.Executions().ListByAssignee(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for operator %s: %w", operatorID, err)
	}

	now := b.now().UTC()
	result := &Result{}
	customers := make(map[string]*models.Customer)

	for _, execution := range executions {
		if execution.Status.IsTerminal() || execution.Status == models.ExecutionStatusSnoozed {
			continue
		}

		customer, err := b.lookupCustomer(ctx, customers, execution.CustomerID)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedEntry{
				ExecutionID: execution.ID,
				CustomerID:  execution.CustomerID,
				Reason:      err.Error(),
			})

			b.logger.WarnContext(ctx, "Execution excluded from queue",
				"execution_id", execution.ID, "customer_id", execution.CustomerID, "error", err)

			continue
		}

		factors := b.Score(execution, customer, now)
		execution.PriorityFactors = &factors
		execution.PriorityScore = factors.Total()

		result.Queue = append(result.Queue, execution)
	}

	b.sortQueue(result.Queue, customers, now)
	result.Stats = b.stats(result.Queue)

	return result, nil
}

// Score computes the priority factor breakdown for one execution.
func (b *Builder) Score(execution *models.WorkflowExecution, customer *models.Customer, now time.Time) models.PriorityFactors {
	factors := models.PriorityFactors{
		TypeWeight: b.config.TypeWeights[execution.Type],
	}

	if customer.RenewalDate != nil {
		days := daysUntil(now, *customer.RenewalDate)
		for _, band := range b.config.RenewalBands {
			if days <= band.Max {
				factors.RenewalProximity = band.Points

				break
			}
		}
	}

	for _, band := range b.config.HealthBands {
		if customer.HealthScore <= band.Max {
			factors.HealthRisk = band.Points

			break
		}
	}

	factors.HealthRisk += b.config.RiskLevelPoints[customer.RiskLevel]

	for _, floor := range b.config.ARRFloors {
		if customer.ARR >= floor.Max {
			factors.ARRAtStake = floor.Points
		}
	}

	if execution.RecentlyWoken(now, b.config.WakeWindow) {
		factors.WakeBump = b.config.WakeBump
	}

	return factors
}

// Band classifies a score into its urgency band.
func (b *Builder) Band(score float64) UrgencyBand {
	switch {
	case score >= b.config.CriticalThreshold:
		return BandCritical
	case score >= b.config.HighThreshold:
		return BandHigh
	case score >= b.config.MediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// GroupByCustomer groups a built queue by customer, preserving queue order
// inside each group. Groups are ordered by their best-ranked entry.
func GroupByCustomer(queue []*models.WorkflowExecution) []CustomerGroup {
	index := make(map[string]int)

	var groups []CustomerGroup

	for _, execution := range queue {
		position, exists := index[execution.CustomerID]
		if !exists {
			position = len(groups)
			index[execution.CustomerID] = position
			groups = append(groups, CustomerGroup{CustomerID: execution.CustomerID})
		}

		groups[position].Executions = append(groups[position].Executions, execution)
	}

	return groups
}

func (b *Builder) lookupCustomer(ctx context.Context, cache map[string]*models.Customer, customerID string) (*models.Customer, error) {
	if customer, cached := cache[customerID]; cached {
		return customer, nil
	}

	if customerID == "" {
		return nil, persistence.ErrCustomerNotFound
	}

	customer, err := b.persistence.Customers().GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	cache[customerID] = customer

	return customer, nil
}

// sortQueue orders by score descending, then renewal proximity (closer
// first, no renewal date last), then creation time ascending, then ID. The
// final ID key makes the order total: no two entries ever compare equal.
func (b *Builder) sortQueue(queue []*models.WorkflowExecution, customers map[string]*models.Customer, now time.Time) {
	proximity := func(execution *models.WorkflowExecution) float64 {
		customer := customers[execution.CustomerID]
		if customer == nil || customer.RenewalDate == nil {
			return math.MaxFloat64
		}

		return daysUntil(now, *customer.RenewalDate)
	}

	sort.Slice(queue, func(i, j int) bool {
		left, right := queue[i], queue[j]

		if left.PriorityScore != right.PriorityScore {
			return left.PriorityScore > right.PriorityScore
		}

		if leftDays, rightDays := proximity(left), proximity(right); leftDays != rightDays {
			return leftDays < rightDays
		}

		if !left.CreatedAt.Equal(right.CreatedAt) {
			return left.CreatedAt.Before(right.CreatedAt)
		}

		return left.ID < right.ID
	})
}

func (b *Builder) stats(queue []*models.WorkflowExecution) Stats {
	stats := Stats{
		Total:    len(queue),
		ByType:   make(map[models.WorkflowType]int),
		ByStatus: make(map[models.ExecutionStatus]int),
		ByBand:   make(map[UrgencyBand]int),
	}

	if len(queue) == 0 {
		return stats
	}

	var sum float64

	stats.MinPriority = queue[0].PriorityScore
	stats.MaxPriority = queue[0].PriorityScore

	for _, execution := range queue {
		stats.ByType[execution.Type]++
		stats.ByStatus[execution.Status]++
		stats.ByBand[b.Band(execution.PriorityScore)]++

		sum += execution.PriorityScore
		stats.MinPriority = math.Min(stats.MinPriority, execution.PriorityScore)
		stats.MaxPriority = math.Max(stats.MaxPriority, execution.PriorityScore)
	}

	stats.AveragePriority = sum / float64(len(queue))

	return stats
}

func daysUntil(now, target time.Time) float64 {
	return target.Sub(now).Hours() / 24
}
