// Package planner runs the optimizer over a loaded catalog and records the
// outcome as a plan.
package planner

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/purchase-planner/internal/model"
	"github.com/sells-group/purchase-planner/internal/optimizer"
	"github.com/sells-group/purchase-planner/internal/store"
)

// Request is one planning job.
type Request struct {
	ListName string
	Catalog  *model.Catalog
	Options  optimizer.Options

	// DropUnavailable removes products that have no offer at all instead of
	// failing the whole plan.
	DropUnavailable bool

	// Save persists the plan when the service has a store.
	Save bool
}

// Service ties the optimizer to plan persistence.
type Service struct {
	store store.Store
}

// New creates a Service. st may be nil, in which case nothing is saved.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Run optimizes req.Catalog and returns the resulting plan.
//
// When the optimizer reports the list unsatisfiable or infeasible, Run
// returns both the (failed) plan and the optimizer's typed error, so callers
// can show the plan and still exit with the named error. Any other error
// means no plan was produced.
func (s *Service) Run(ctx context.Context, req Request) (*model.Plan, error) {
	log := zap.L().With(zap.String("list", req.ListName))

	if req.Catalog == nil {
		return nil, optimizer.ErrEmptyCatalog
	}
	if err := req.Catalog.Validate(); err != nil {
		return nil, err
	}
	opt, err := optimizer.New(req.Options)
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{
		ListName: req.ListName,
		Params: model.PlanParams{
			MinimumOrder: req.Options.MinimumOrder,
			MaxVendors:   req.Options.MaxVendors,
			Dominance:    !req.Options.DisableDominance,
		},
		Demands: req.Catalog.Demands,
	}

	cat := req.Catalog
	if req.DropUnavailable {
		if dropped := Unavailable(cat); len(dropped) > 0 {
			log.Warn("planner: dropping products without offers", zap.Strings("products", dropped))
			plan.Dropped = dropped
			cat = cat.Without(dropped)
		}
	}

	res, optErr := opt.Optimize(ctx, cat)
	if res != nil {
		plan.Stats = res.Stats
	}

	var unsat *optimizer.UnsatisfiableError
	var infeasible *optimizer.InfeasibleError
	switch {
	case optErr == nil:
		plan.Status = model.PlanStatusSolved
		plan.Solution = res.Solution
	case errors.As(optErr, &unsat):
		plan.Status = model.PlanStatusUnsatisfiable
		plan.Error = unsat.Error()
		plan.Missing = unsat.Products
	case errors.As(optErr, &infeasible):
		plan.Status = model.PlanStatusInfeasible
		plan.Error = infeasible.Error()
		plan.Missing = infeasible.Products
	default:
		return nil, optErr
	}

	log.Info("planner: plan computed",
		zap.String("status", string(plan.Status)),
		zap.String("total", plan.Total().String()),
		zap.Int("vendors", vendorCount(plan)),
		zap.Int("evaluated", plan.Stats.Evaluated),
		zap.Int64("duration_ms", plan.Stats.DurationMillis),
	)

	if req.Save && s.store != nil {
		if err := s.store.SavePlan(ctx, plan); err != nil {
			return nil, eris.Wrap(err, "planner: save plan")
		}
		log.Info("planner: plan saved", zap.String("plan_id", plan.ID))
	}
	return plan, optErr
}

// Unavailable lists the demanded products with no offer, in list order.
func Unavailable(c *model.Catalog) []string {
	offered := make(map[string]bool, len(c.Demands))
	for _, o := range c.Offers {
		offered[o.Product()] = true
	}
	var out []string
	for _, d := range c.Demands {
		if !offered[d.Product] {
			out = append(out, d.Product)
		}
	}
	return out
}

func vendorCount(p *model.Plan) int {
	if p.Solution == nil {
		return 0
	}
	return len(p.Solution.Orders)
}
