package optimizer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Options are the optimizer's constraints and tuning knobs. They are passed
// explicitly on every call so concurrent runs never share state.
type Options struct {
	// MinimumOrder is the smallest subtotal (shipping excluded) any used
	// vendor may have. Zero disables the constraint.
	MinimumOrder decimal.Decimal

	// MaxVendors caps the number of distinct vendors in a solution.
	MaxVendors int

	// EarlyStopTolerance stops the search after a group size whose best
	// solution is within this fraction of the absolute lower bound.
	EarlyStopTolerance decimal.Decimal

	// DisableDominance skips the dominated-vendor filter.
	DisableDominance bool

	// Workers > 1 evaluates the vendor groups of each size concurrently.
	// Results are identical to the sequential search.
	Workers int
}

// DefaultOptions returns the stock configuration: minimum order 50,
// at most 4 vendors, 5% early-stop tolerance, dominance on, sequential.
func DefaultOptions() Options {
	return Options{
		MinimumOrder:       decimal.NewFromInt(50),
		MaxVendors:         4,
		EarlyStopTolerance: decimal.RequireFromString("0.05"),
		Workers:            1,
	}
}

func (o Options) validate() error {
	if o.MinimumOrder.IsNegative() {
		return fmt.Errorf("%w: minimum order %s is negative", ErrInvalidOptions, o.MinimumOrder)
	}
	if o.MaxVendors < 1 {
		return fmt.Errorf("%w: max vendors must be at least 1, got %d", ErrInvalidOptions, o.MaxVendors)
	}
	if o.EarlyStopTolerance.IsNegative() {
		return fmt.Errorf("%w: early stop tolerance %s is negative", ErrInvalidOptions, o.EarlyStopTolerance)
	}
	return nil
}

func (o Options) minimumEnabled() bool {
	return o.MinimumOrder.IsPositive()
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}
