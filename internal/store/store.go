// Package store persists optimization plans in SQLite or Postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/purchase-planner/internal/model"
)

// ErrNotFound is returned when a plan ID does not exist.
var ErrNotFound = errors.New("store: plan not found")

// PlanFilter specifies criteria for listing plans.
type PlanFilter struct {
	Status   model.PlanStatus `json:"status,omitempty"`
	ListName string           `json:"list_name,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f PlanFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for plans.
type Store interface {
	// SavePlan inserts p, or replaces the stored plan with the same ID. An
	// empty ID and a zero CreatedAt are filled in.
	SavePlan(ctx context.Context, p *model.Plan) error
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	// ListPlans returns plans newest first.
	ListPlans(ctx context.Context, filter PlanFilter) ([]model.Plan, error)
	DeletePlan(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepare fills in the generated fields of a plan about to be saved.
func prepare(p *model.Plan) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
}
