package optimizer

// dominates reports whether vendor b makes vendor a redundant: b offers
// everything a does, each at no higher line total and no higher shipping.
// With a minimum order in force the line totals must also be equal, so that
// swapping a for b never lowers a vendor subtotal.
func (lk *lookup) dominates(b, a int, minimum bool) bool {
	if !lk.coverage[b].covers(lk.coverage[a]) {
		return false
	}
	for p := range lk.products {
		if !lk.offered[a][p] {
			continue
		}
		lineA, lineB := lk.line[a][p], lk.line[b][p]
		if lineB.GreaterThan(lineA) {
			return false
		}
		if minimum && lineB.LessThan(lineA) {
			return false
		}
		if lk.ship[b][p].GreaterThan(lk.ship[a][p]) {
			return false
		}
	}
	return true
}

// filterDominated returns the candidate vendors that survive dominance, in
// candidate order, plus the indices removed. Of two vendors dominating each
// other the later one goes. If the survivors no longer cover every product
// the filter is abandoned and every vendor is kept.
func (lk *lookup) filterDominated(minimum bool) (kept, removed []int) {
	n := len(lk.vendors)
	gone := make([]bool, n)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			if b == a || gone[b] {
				continue
			}
			if !lk.dominates(b, a, minimum) {
				continue
			}
			if b > a && lk.dominates(a, b, minimum) {
				// Mutual: keep the earlier vendor, a.
				continue
			}
			gone[a] = true
			break
		}
	}

	union := newProductSet(len(lk.products))
	for v := 0; v < n; v++ {
		if gone[v] {
			removed = append(removed, v)
			continue
		}
		kept = append(kept, v)
		union.unionWith(lk.coverage[v])
	}
	if !union.covers(lk.fullSet()) {
		return lk.allVendors(), nil
	}
	return kept, removed
}

func (lk *lookup) allVendors() []int {
	all := make([]int, len(lk.vendors))
	for v := range all {
		all[v] = v
	}
	return all
}
