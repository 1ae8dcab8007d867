package optimizer

import (
	"math/bits"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/purchase-planner/internal/model"
)

// productSet is a bitset over product indices.
type productSet []uint64

func newProductSet(n int) productSet {
	return make(productSet, (n+63)/64)
}

func (s productSet) add(i int) { s[i/64] |= 1 << (uint(i) % 64) }

func (s productSet) has(i int) bool { return s[i/64]&(1<<(uint(i)%64)) != 0 }

func (s productSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// unionWith adds every member of o to s.
func (s productSet) unionWith(o productSet) {
	for i := range s {
		s[i] |= o[i]
	}
}

// covers reports whether s is a superset of o.
func (s productSet) covers(o productSet) bool {
	for i := range s {
		if o[i]&^s[i] != 0 {
			return false
		}
	}
	return true
}

// lookup holds the read-only tables derived from a catalog. Vendor indices
// follow the candidate ordering: coverage descending, then cheapest shipping
// ascending, then name.
type lookup struct {
	products []string
	vendors  []string

	// Indexed [vendor][product]. offered is false where the vendor does not
	// list the product; the other tables are then zero.
	offered [][]bool
	best    [][]model.Offer
	cost    [][]decimal.Decimal
	line    [][]decimal.Decimal
	ship    [][]decimal.Decimal

	coverage []productSet

	// floor is the unconstrained cost floor: every product at its lowest
	// line total plus the unavoidable shipping charge.
	floor decimal.Decimal
}

// buildLookup indexes the catalog. It fails when the catalog is empty or a
// demanded product has no offer.
func buildLookup(c *model.Catalog) (*lookup, error) {
	if c == nil || len(c.Demands) == 0 {
		return nil, ErrEmptyCatalog
	}

	productIdx := make(map[string]int, len(c.Demands))
	products := make([]string, len(c.Demands))
	for i, d := range c.Demands {
		productIdx[d.Product] = i
		products[i] = d.Product
	}
	np := len(products)

	type vendorAcc struct {
		name    string
		offered []bool
		best    []model.Offer
		cost    []decimal.Decimal
		minShip decimal.Decimal
		covered int
	}
	accIdx := make(map[string]int)
	var accs []*vendorAcc

	for _, o := range c.Offers {
		p, ok := productIdx[o.Product()]
		if !ok {
			continue
		}
		vi, ok := accIdx[o.Vendor()]
		if !ok {
			vi = len(accs)
			accIdx[o.Vendor()] = vi
			accs = append(accs, &vendorAcc{
				name:    o.Vendor(),
				offered: make([]bool, np),
				best:    make([]model.Offer, np),
				cost:    make([]decimal.Decimal, np),
				minShip: o.Shipping(),
			})
		}
		a := accs[vi]
		if o.Shipping().LessThan(a.minShip) {
			a.minShip = o.Shipping()
		}
		cost := o.Cost()
		if !a.offered[p] {
			a.offered[p] = true
			a.best[p] = o
			a.cost[p] = cost
			a.covered++
			continue
		}
		if cost.LessThan(a.cost[p]) {
			a.best[p] = o
			a.cost[p] = cost
		}
	}

	var missing []string
	for p, name := range products {
		found := false
		for _, a := range accs {
			if a.offered[p] {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &UnsatisfiableError{Products: missing}
	}

	sort.SliceStable(accs, func(i, j int) bool {
		if accs[i].covered != accs[j].covered {
			return accs[i].covered > accs[j].covered
		}
		if c := accs[i].minShip.Cmp(accs[j].minShip); c != 0 {
			return c < 0
		}
		return accs[i].name < accs[j].name
	})

	lk := &lookup{
		products: products,
		vendors:  make([]string, len(accs)),
		offered:  make([][]bool, len(accs)),
		best:     make([][]model.Offer, len(accs)),
		cost:     make([][]decimal.Decimal, len(accs)),
		line:     make([][]decimal.Decimal, len(accs)),
		ship:     make([][]decimal.Decimal, len(accs)),
		coverage: make([]productSet, len(accs)),
	}
	for v, a := range accs {
		lk.vendors[v] = a.name
		lk.offered[v] = a.offered
		lk.best[v] = a.best
		lk.cost[v] = a.cost
		lk.line[v] = make([]decimal.Decimal, np)
		lk.ship[v] = make([]decimal.Decimal, np)
		lk.coverage[v] = newProductSet(np)
		for p := range products {
			if !a.offered[p] {
				continue
			}
			lk.line[v][p] = a.best[p].LineTotal()
			lk.ship[v][p] = a.best[p].Shipping()
			lk.coverage[v].add(p)
		}
	}

	lk.floor = lk.lowerBound(lk.allVendors())

	return lk, nil
}

// lowerBound returns a cost no solution restricted to vendors can beat:
// each product at its lowest line total within the group, plus the largest
// per-product minimum shipping fee (some vendor must charge at least that).
// Uncovered products add zero; coverage is checked separately.
func (lk *lookup) lowerBound(vendors []int) decimal.Decimal {
	total := decimal.Zero
	maxShip := decimal.Zero
	for p := range lk.products {
		var minLine, minShip decimal.Decimal
		first := true
		for _, v := range vendors {
			if !lk.offered[v][p] {
				continue
			}
			if first || lk.line[v][p].LessThan(minLine) {
				minLine = lk.line[v][p]
			}
			if first || lk.ship[v][p].LessThan(minShip) {
				minShip = lk.ship[v][p]
			}
			first = false
		}
		total = total.Add(minLine)
		if minShip.GreaterThan(maxShip) {
			maxShip = minShip
		}
	}
	return total.Add(maxShip)
}

// fullSet returns the set of all products.
func (lk *lookup) fullSet() productSet {
	s := newProductSet(len(lk.products))
	for p := range lk.products {
		s.add(p)
	}
	return s
}
