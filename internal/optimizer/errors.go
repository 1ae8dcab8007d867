package optimizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCatalog is returned when there is nothing to buy.
	ErrEmptyCatalog = errors.New("optimizer: empty catalog")

	// ErrInvalidOptions is wrapped by every Options validation failure.
	ErrInvalidOptions = errors.New("optimizer: invalid options")
)

// UnsatisfiableError reports products that have no offer at all. It is
// returned before any search happens.
type UnsatisfiableError struct {
	Products []string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("optimizer: no offers for %s", strings.Join(e.Products, ", "))
}

// InfeasibleError reports that no group of at most MaxVendors vendors can
// cover every product while meeting the minimum order.
type InfeasibleError struct {
	Reason       string
	Products     []string // products that could not be jointly satisfied
	MinimumOrder decimal.Decimal
	MaxVendors   int
}

func (e *InfeasibleError) Error() string {
	if len(e.Products) == 0 {
		return "optimizer: no valid solution found: " + e.Reason
	}
	return fmt.Sprintf("optimizer: no valid solution found: %s: %s", e.Reason, strings.Join(e.Products, ", "))
}

// Infeasibility reasons.
const (
	ReasonCoverage     = "no group of allowed size covers every product"
	ReasonMinimumOrder = "minimum order threshold unreachable"
)
