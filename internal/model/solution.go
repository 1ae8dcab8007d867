package model

import (
	"github.com/shopspring/decimal"
)

// VendorOrder is everything bought from one vendor in a solution. All items
// ship together, so only the largest shipping fee among them is charged.
type VendorOrder struct {
	Vendor   string          `json:"vendor"`
	Items    []Offer         `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"` // Σ line totals, shipping excluded
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// NewVendorOrder computes subtotal, shipping charge and total for items.
func NewVendorOrder(vendor string, items []Offer) VendorOrder {
	vo := VendorOrder{Vendor: vendor, Items: items}
	for _, it := range items {
		vo.Subtotal = vo.Subtotal.Add(it.LineTotal())
		if it.Shipping().GreaterThan(vo.Shipping) {
			vo.Shipping = it.Shipping()
		}
	}
	vo.Total = vo.Subtotal.Add(vo.Shipping)
	return vo
}

// Solution is a complete, validated assignment of every product to a vendor.
type Solution struct {
	Assignment map[string]string `json:"assignment"` // product -> vendor
	Orders     []VendorOrder     `json:"orders"`
	Total      decimal.Decimal   `json:"total"`
}

// Vendors returns the vendors used, in order of Orders.
func (s *Solution) Vendors() []string {
	out := make([]string, len(s.Orders))
	for i, o := range s.Orders {
		out[i] = o.Vendor
	}
	return out
}

// Order returns the order placed with vendor, if any.
func (s *Solution) Order(vendor string) (VendorOrder, bool) {
	for _, o := range s.Orders {
		if o.Vendor == vendor {
			return o, true
		}
	}
	return VendorOrder{}, false
}
