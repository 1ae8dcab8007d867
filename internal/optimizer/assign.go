package optimizer

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/purchase-planner/internal/model"
)

// assignment maps every product to one vendor of a subset.
type assignment struct {
	lk      *lookup
	subset  []int
	owner   []int // product -> vendor index
	minimum decimal.Decimal
}

// vendorTotals returns the line totals vendor v is charged for, the number of
// products it supplies, and its shipping charge (largest fee among them).
func (a *assignment) vendorTotals(v int) (subtotal, shipping decimal.Decimal, n int) {
	for p, owner := range a.owner {
		if owner != v {
			continue
		}
		subtotal = subtotal.Add(a.lk.line[v][p])
		if s := a.lk.ship[v][p]; s.GreaterThan(shipping) {
			shipping = s
		}
		n++
	}
	return subtotal, shipping, n
}

func (a *assignment) vendorCost(v int) decimal.Decimal {
	sub, ship, _ := a.vendorTotals(v)
	return sub.Add(ship)
}

// failing reports whether vendor v is used but under the minimum order.
func (a *assignment) failing(v int) bool {
	sub, _, n := a.vendorTotals(v)
	return n > 0 && sub.LessThan(a.minimum)
}

// greedy gives each product to the subset vendor with its cheapest best
// offer. Ties go to the vendor earlier in the subset.
func (a *assignment) greedy() {
	for p := range a.lk.products {
		a.owner[p] = -1
		var best decimal.Decimal
		for _, v := range a.subset {
			if !a.lk.offered[v][p] {
				continue
			}
			if a.owner[p] < 0 || a.lk.cost[v][p].LessThan(best) {
				a.owner[p] = v
				best = a.lk.cost[v][p]
			}
		}
	}
}

type move struct {
	product int
	to      int
	delta   decimal.Decimal
}

// bestMove finds the cheapest legal transfer of one product to a failing
// vendor. The donor must end up empty or still at or above the minimum.
func (a *assignment) bestMove() (move, bool) {
	var (
		best  move
		found bool
	)
	for _, f := range a.subset {
		if !a.failing(f) {
			continue
		}
		for p := range a.lk.products {
			d := a.owner[p]
			if d < 0 || d == f || !a.lk.offered[f][p] {
				continue
			}
			before := a.vendorCost(f).Add(a.vendorCost(d))
			a.owner[p] = f
			dSub, _, dN := a.vendorTotals(d)
			legal := dN == 0 || !dSub.LessThan(a.minimum)
			after := a.vendorCost(f).Add(a.vendorCost(d))
			a.owner[p] = d
			if !legal {
				continue
			}
			delta := after.Sub(before)
			if !found || delta.LessThan(best.delta) {
				best = move{product: p, to: f, delta: delta}
				found = true
			}
		}
	}
	return best, found
}

// repair moves products onto vendors below the minimum order, one per
// iteration, for at most as many iterations as there are products. It
// returns the products still held by failing vendors when no valid
// assignment was reached.
func (a *assignment) repair() []string {
	if !a.minimum.IsPositive() {
		return nil
	}
	for range a.lk.products {
		if len(a.failingProducts()) == 0 {
			return nil
		}
		m, ok := a.bestMove()
		if !ok {
			break
		}
		a.owner[m.product] = m.to
	}
	return a.failingProducts()
}

// failingProducts lists, in demand order, the products assigned to vendors
// below the minimum order.
func (a *assignment) failingProducts() []string {
	bad := make(map[int]bool)
	for _, v := range a.subset {
		if a.failing(v) {
			bad[v] = true
		}
	}
	if len(bad) == 0 {
		return nil
	}
	var out []string
	for p, v := range a.owner {
		if bad[v] {
			out = append(out, a.lk.products[p])
		}
	}
	return out
}

// solution rebuilds the orders from the chosen offers and checks every
// invariant a valid solution must satisfy.
func (a *assignment) solution() (*model.Solution, error) {
	sol := &model.Solution{Assignment: make(map[string]string, len(a.owner))}
	for _, v := range a.subset {
		var items []model.Offer
		for p, owner := range a.owner {
			if owner == v {
				items = append(items, a.lk.best[v][p])
			}
		}
		if len(items) == 0 {
			continue
		}
		vo := model.NewVendorOrder(a.lk.vendors[v], items)
		if vo.Subtotal.LessThan(a.minimum) {
			return nil, eris.Errorf("optimizer: vendor %q subtotal %s below minimum %s", vo.Vendor, vo.Subtotal, a.minimum)
		}
		for _, it := range items {
			sol.Assignment[it.Product()] = vo.Vendor
		}
		sol.Orders = append(sol.Orders, vo)
		sol.Total = sol.Total.Add(vo.Total)
	}
	for p, name := range a.lk.products {
		if a.owner[p] < 0 || !a.lk.offered[a.owner[p]][p] {
			return nil, eris.Errorf("optimizer: product %q unassigned", name)
		}
	}
	if len(sol.Assignment) != len(a.lk.products) {
		return nil, eris.New("optimizer: assignment does not cover every product")
	}
	return sol, nil
}

// solve runs greedy assignment and repair for one vendor subset. On failure
// it returns the products that could not be placed under the minimum order.
func (lk *lookup) solve(subset []int, minimum decimal.Decimal) (*model.Solution, []string) {
	a := &assignment{
		lk:      lk,
		subset:  subset,
		owner:   make([]int, len(lk.products)),
		minimum: minimum,
	}
	a.greedy()
	if failed := a.repair(); len(failed) > 0 {
		return nil, failed
	}
	sol, err := a.solution()
	if err != nil {
		return nil, lk.products
	}
	return sol, nil
}
