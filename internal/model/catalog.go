package model

import (
	"errors"
	"fmt"
)

// ErrInvalidCatalog is wrapped by every Catalog.Validate failure.
var ErrInvalidCatalog = errors.New("catalog: invalid")

// Demand is one line of a shopping list: a required product and how many
// units of it to buy.
type Demand struct {
	Product  string `json:"product" yaml:"name"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// Catalog is the full input of one optimization run.
type Catalog struct {
	Demands []Demand `json:"demands"`
	Offers  []Offer  `json:"offers"`
}

// Products returns the demanded product names in list order.
func (c *Catalog) Products() []string {
	out := make([]string, len(c.Demands))
	for i, d := range c.Demands {
		out[i] = d.Product
	}
	return out
}

// Validate checks the structural invariants of the catalog: every demand is
// unique with a positive quantity, and every offer refers to a demanded
// product with the demanded quantity. It does not require that every product
// has an offer; that is reported by the optimizer.
func (c *Catalog) Validate() error {
	qty := make(map[string]int, len(c.Demands))
	for _, d := range c.Demands {
		if d.Product == "" {
			return fmt.Errorf("%w: demand with empty product", ErrInvalidCatalog)
		}
		if d.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %q must be positive, got %d", ErrInvalidCatalog, d.Product, d.Quantity)
		}
		if _, dup := qty[d.Product]; dup {
			return fmt.Errorf("%w: product %q listed twice", ErrInvalidCatalog, d.Product)
		}
		qty[d.Product] = d.Quantity
	}
	for _, o := range c.Offers {
		want, ok := qty[o.Product()]
		if !ok {
			return fmt.Errorf("%w: offer from %q for unlisted product %q", ErrInvalidCatalog, o.Vendor(), o.Product())
		}
		if o.Quantity() != want {
			return fmt.Errorf("%w: offer from %q for %q has quantity %d, list wants %d",
				ErrInvalidCatalog, o.Vendor(), o.Product(), o.Quantity(), want)
		}
	}
	return nil
}

// Without returns a copy of the catalog with the named products and their
// offers removed.
func (c *Catalog) Without(products []string) *Catalog {
	drop := make(map[string]bool, len(products))
	for _, p := range products {
		drop[p] = true
	}
	out := &Catalog{}
	for _, d := range c.Demands {
		if !drop[d.Product] {
			out.Demands = append(out.Demands, d)
		}
	}
	for _, o := range c.Offers {
		if !drop[o.Product()] {
			out.Offers = append(out.Offers, o)
		}
	}
	return out
}
