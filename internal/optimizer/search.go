package optimizer

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/purchase-planner/internal/model"
)

// batchSize is the number of subsets handed to one worker at a time.
const batchSize = 64

// forEachCombination calls fn with every k-combination of 0..n-1 in
// lexicographic order. The slice is reused between calls. Enumeration stops
// when fn returns false.
func forEachCombination(n, k int, fn func(idx []int) bool) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// tally counts what happened to a run of subsets.
type tally struct {
	enumerated     int
	prunedCoverage int
	prunedBound    int
	evaluated      int
	repairFailures int
}

func (t *tally) add(o tally) {
	t.enumerated += o.enumerated
	t.prunedCoverage += o.prunedCoverage
	t.prunedBound += o.prunedBound
	t.evaluated += o.evaluated
	t.repairFailures += o.repairFailures
}

// selector keeps the best solution seen. Among equal totals the one from
// the earliest subset wins, so any evaluation order yields the same result.
type selector struct {
	mu      sync.Mutex
	best    *model.Solution
	bestSeq int64

	// First subset rejected by repair, for the infeasibility report.
	rejectSeq int64
	rejected  []string
	hasReject bool

	// Widest coverage among subsets that missed products.
	hasCover   bool
	coverSeq   int64
	coverCount int
	uncovered  []string
}

func (s *selector) offer(sol *model.Solution, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.best == nil || sol.Total.LessThan(s.best.Total) ||
		(sol.Total.Equal(s.best.Total) && seq < s.bestSeq) {
		s.best = sol
		s.bestSeq = seq
	}
}

// beaten reports whether a subset with lower bound lb and sequence seq can no
// longer displace the incumbent.
func (s *selector) beaten(lb decimal.Decimal, seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.best == nil {
		return false
	}
	if c := lb.Cmp(s.best.Total); c != 0 {
		return c > 0
	}
	return s.bestSeq < seq
}

func (s *selector) reject(seq int64, products []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasReject || seq < s.rejectSeq {
		s.rejectSeq = seq
		s.rejected = products
		s.hasReject = true
	}
}

// uncover records the best coverage reached by a subset that missed
// products. count is the number of products it did cover.
func (s *selector) uncover(seq int64, count int, missing func() []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCover || count > s.coverCount || (count == s.coverCount && seq < s.coverSeq) {
		s.hasCover = true
		s.coverCount = count
		s.coverSeq = seq
		s.uncovered = missing()
	}
}

func (s *selector) incumbent() *model.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best
}

// search enumerates vendor subsets of one run.
type search struct {
	lk    *lookup
	opts  Options
	cands []int
	full  productSet
	sel   selector
}

// evaluate runs one subset through the coverage check, the bound check and
// the assignment solver.
func (s *search) evaluate(seq int64, subset []int, t *tally) {
	t.enumerated++

	union := newProductSet(len(s.lk.products))
	for _, v := range subset {
		union.unionWith(s.lk.coverage[v])
	}
	if !union.covers(s.full) {
		t.prunedCoverage++
		s.sel.uncover(seq, union.count(), func() []string {
			var out []string
			for p, name := range s.lk.products {
				if !union.has(p) {
					out = append(out, name)
				}
			}
			return out
		})
		return
	}

	if s.sel.beaten(s.lk.lowerBound(subset), seq) {
		t.prunedBound++
		return
	}

	t.evaluated++
	sol, failed := s.lk.solve(subset, s.opts.MinimumOrder)
	if sol == nil {
		t.repairFailures++
		s.sel.reject(seq, failed)
		return
	}
	s.sel.offer(sol, seq)
}

// runSize searches every subset of size k. seq is the sequence number of the
// first subset and the next free number is returned.
func (s *search) runSize(ctx context.Context, k int, seq int64) (int64, tally, error) {
	if s.opts.workers() > 1 {
		return s.runSizeParallel(ctx, k, seq)
	}
	var (
		t   tally
		err error
	)
	subset := make([]int, k)
	forEachCombination(len(s.cands), k, func(idx []int) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		for i, j := range idx {
			subset[i] = s.cands[j]
		}
		s.evaluate(seq, subset, &t)
		seq++
		return true
	})
	return seq, t, err
}

func (s *search) runSizeParallel(ctx context.Context, k int, seq int64) (int64, tally, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers())

	var (
		mu    sync.Mutex
		total tally
	)
	dispatch := func(first int64, batch [][]int) {
		g.Go(func() error {
			var t tally
			for i, subset := range batch {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.evaluate(first+int64(i), subset, &t)
			}
			mu.Lock()
			total.add(t)
			mu.Unlock()
			return nil
		})
	}

	var (
		batch [][]int
		first = seq
	)
	forEachCombination(len(s.cands), k, func(idx []int) bool {
		if gctx.Err() != nil {
			return false
		}
		subset := make([]int, k)
		for i, j := range idx {
			subset[i] = s.cands[j]
		}
		batch = append(batch, subset)
		seq++
		if len(batch) == batchSize {
			dispatch(first, batch)
			batch, first = nil, seq
		}
		return true
	})
	if len(batch) > 0 {
		dispatch(first, batch)
	}

	if err := g.Wait(); err != nil {
		return seq, total, err
	}
	return seq, total, ctx.Err()
}

// closeEnough reports whether best is within the early-stop tolerance of the
// floor. The floor counts shipping once, at the largest per-product minimum
// fee, rather than summing cheapest offer costs: that sum can exceed the true
// optimum when one vendor's shipping covers several products. The lower
// floor keeps the test sound but lets early stop fire less often.
func closeEnough(best, floor, tolerance decimal.Decimal) bool {
	return !best.Sub(floor).GreaterThan(floor.Mul(tolerance))
}
