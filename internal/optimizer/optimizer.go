// Package optimizer picks the vendors and the product-to-vendor assignment
// that minimise total spend for a shopping list, under a minimum per-vendor
// order value and a cap on the number of vendors.
//
// The search enumerates vendor groups of growing size, prunes groups that
// cannot cover the list or cannot beat the incumbent, assigns products
// greedily and repairs vendors left under the minimum order.
package optimizer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/purchase-planner/internal/model"
)

// Result is the outcome of one optimization run. Stats is filled in even
// when Optimize returns an error after searching.
type Result struct {
	Solution *model.Solution
	Stats    model.SearchStats
}

// Optimizer runs the vendor-selection search with fixed options. It holds
// no per-run state and is safe for concurrent use.
type Optimizer struct {
	opts Options
}

// New validates opts and returns an Optimizer.
func New(opts Options) (*Optimizer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Optimizer{opts: opts}, nil
}

// Options returns the options the optimizer was built with.
func (o *Optimizer) Options() Options { return o.opts }

// Optimize finds the cheapest valid solution for c. It returns an error
// wrapping model.ErrInvalidCatalog when c fails validation,
// *UnsatisfiableError when a product has no offer, *InfeasibleError when no
// group of at most MaxVendors vendors can satisfy the constraints, and the
// context error if ctx is cancelled mid-search.
func (o *Optimizer) Optimize(ctx context.Context, c *model.Catalog) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "optimizer"))

	if c == nil {
		return nil, ErrEmptyCatalog
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lk, err := buildLookup(c)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Stats.LowerBound = lk.floor

	cands := lk.allVendors()
	if !o.opts.DisableDominance {
		var removed []int
		cands, removed = lk.filterDominated(o.opts.minimumEnabled())
		for _, v := range removed {
			res.Stats.Dominated = append(res.Stats.Dominated, lk.vendors[v])
		}
	}
	res.Stats.Candidates = len(cands)

	s := &search{lk: lk, opts: o.opts, cands: cands, full: lk.fullSet()}

	maxK := min(o.opts.MaxVendors, len(cands))
	log.Debug("search starting",
		zap.Int("products", len(lk.products)),
		zap.Int("vendors", len(lk.vendors)),
		zap.Int("candidates", len(cands)),
		zap.Int("max_group", maxK),
		zap.String("floor", lk.floor.String()),
	)

	var seq int64
	for k := 1; k <= maxK; k++ {
		var t tally
		seq, t, err = s.runSize(ctx, k, seq)
		res.Stats.Enumerated += t.enumerated
		res.Stats.PrunedCoverage += t.prunedCoverage
		res.Stats.PrunedBound += t.prunedBound
		res.Stats.Evaluated += t.evaluated
		res.Stats.RepairFailures += t.repairFailures
		res.Stats.LargestGroup = k
		if err != nil {
			res.Stats.DurationMillis = time.Since(start).Milliseconds()
			return res, err
		}

		best := s.sel.incumbent()
		log.Debug("group size searched",
			zap.Int("k", k),
			zap.Int("enumerated", t.enumerated),
			zap.Int("evaluated", t.evaluated),
			zap.Bool("found", best != nil),
		)
		if best != nil && k < maxK && closeEnough(best.Total, lk.floor, o.opts.EarlyStopTolerance) {
			res.Stats.EarlyStopped = true
			break
		}
	}
	res.Stats.DurationMillis = time.Since(start).Milliseconds()

	best := s.sel.incumbent()
	if best == nil {
		return res, s.infeasible(o.opts)
	}
	res.Solution = best
	return res, nil
}

// infeasible explains why no subset produced a solution: either repair
// failed somewhere (minimum order) or no group ever covered the list.
func (s *search) infeasible(opts Options) *InfeasibleError {
	e := &InfeasibleError{MinimumOrder: opts.MinimumOrder, MaxVendors: opts.MaxVendors}
	if s.sel.hasReject {
		e.Reason = ReasonMinimumOrder
		e.Products = s.sel.rejected
		return e
	}
	e.Reason = ReasonCoverage
	e.Products = s.sel.uncovered
	return e
}
