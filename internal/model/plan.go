package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanStatus is the outcome of one optimization run.
type PlanStatus string

const (
	PlanStatusSolved        PlanStatus = "solved"
	PlanStatusInfeasible    PlanStatus = "infeasible"    // no vendor group satisfies the constraints
	PlanStatusUnsatisfiable PlanStatus = "unsatisfiable" // some product has no offer at all
)

// PlanParams records the constraints a plan was computed under.
type PlanParams struct {
	MinimumOrder decimal.Decimal `json:"minimum_order"`
	MaxVendors   int             `json:"max_vendors"`
	Dominance    bool            `json:"dominance"`
}

// SearchStats summarizes the work done by the optimizer.
type SearchStats struct {
	Candidates     int             `json:"candidates"`
	Dominated      []string        `json:"dominated,omitempty"`
	Enumerated     int             `json:"enumerated"`
	PrunedCoverage int             `json:"pruned_coverage"`
	PrunedBound    int             `json:"pruned_bound"`
	Evaluated      int             `json:"evaluated"`
	RepairFailures int             `json:"repair_failures"`
	LargestGroup   int             `json:"largest_group"`
	EarlyStopped   bool            `json:"early_stopped"`
	LowerBound     decimal.Decimal `json:"lower_bound"`
	DurationMillis int64           `json:"duration_ms"`
}

// Plan is a persisted optimization run.
type Plan struct {
	ID        string      `json:"id"`
	ListName  string      `json:"list_name"`
	Status    PlanStatus  `json:"status"`
	Params    PlanParams  `json:"params"`
	Demands   []Demand    `json:"demands"`
	Dropped   []string    `json:"dropped,omitempty"` // products removed for lack of offers
	Solution  *Solution   `json:"solution,omitempty"`
	Stats     SearchStats `json:"stats"`
	Error     string      `json:"error,omitempty"`
	Missing   []string    `json:"missing,omitempty"` // products named by the failure
	CreatedAt time.Time   `json:"created_at"`
}

// Total returns the plan's grand total, or zero when unsolved.
func (p *Plan) Total() decimal.Decimal {
	if p.Solution == nil {
		return decimal.Zero
	}
	return p.Solution.Total
}
