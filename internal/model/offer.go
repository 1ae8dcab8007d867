// Package model defines the domain types shared by the catalog loader, the
// optimizer, the store and the CLI. All monetary values use shopspring/decimal.
package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Offer is one vendor's terms for one product. Offers are immutable: build
// them with NewOffer and pass them by value.
type Offer struct {
	product   string
	vendor    string
	name      string
	url       string
	unitPrice decimal.Decimal
	shipping  decimal.Decimal
	quantity  int
}

// OfferInput carries the raw fields of an offer before validation.
type OfferInput struct {
	Product   string
	Vendor    string
	Name      string // listing title, informational
	URL       string // listing link, informational
	UnitPrice decimal.Decimal
	Shipping  decimal.Decimal
	Quantity  int
}

// NewOffer validates in and returns the immutable offer.
func NewOffer(in OfferInput) (Offer, error) {
	switch {
	case in.Product == "":
		return Offer{}, eris.New("offer: product is required")
	case in.Vendor == "":
		return Offer{}, eris.Errorf("offer: vendor is required for product %q", in.Product)
	case in.UnitPrice.IsNegative():
		return Offer{}, eris.Errorf("offer: negative unit price %s for %q from %q", in.UnitPrice, in.Product, in.Vendor)
	case in.Shipping.IsNegative():
		return Offer{}, eris.Errorf("offer: negative shipping %s for %q from %q", in.Shipping, in.Product, in.Vendor)
	case in.Quantity <= 0:
		return Offer{}, eris.Errorf("offer: quantity must be positive for %q, got %d", in.Product, in.Quantity)
	}
	return Offer{
		product:   in.Product,
		vendor:    in.Vendor,
		name:      in.Name,
		url:       in.URL,
		unitPrice: in.UnitPrice,
		shipping:  in.Shipping,
		quantity:  in.Quantity,
	}, nil
}

// MustOffer is NewOffer for fixtures; it panics on invalid input.
func MustOffer(in OfferInput) Offer {
	o, err := NewOffer(in)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Offer) Product() string { return o.product }
func (o Offer) Vendor() string { return o.vendor }
func (o Offer) Name() string { return o.name }
func (o Offer) URL() string { return o.url }
func (o Offer) UnitPrice() decimal.Decimal { return o.unitPrice }
func (o Offer) Shipping() decimal.Decimal { return o.shipping }
func (o Offer) Quantity() int { return o.quantity }

// LineTotal is unit price × quantity, shipping excluded.
func (o Offer) LineTotal() decimal.Decimal {
	return o.unitPrice.Mul(decimal.NewFromInt(int64(o.quantity)))
}

// Cost is LineTotal plus this offer's shipping fee.
func (o Offer) Cost() decimal.Decimal {
	return o.LineTotal().Add(o.shipping)
}

type offerJSON struct {
	Product   string          `json:"product"`
	Vendor    string          `json:"vendor"`
	Name      string          `json:"name,omitempty"`
	URL       string          `json:"url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Shipping  decimal.Decimal `json:"shipping"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// MarshalJSON includes the derived line total for consumers of the output.
func (o Offer) MarshalJSON() ([]byte, error) {
	return json.Marshal(offerJSON{
		Product:   o.product,
		Vendor:    o.vendor,
		Name:      o.name,
		URL:       o.url,
		UnitPrice: o.unitPrice,
		Shipping:  o.shipping,
		Quantity:  o.quantity,
		LineTotal: o.LineTotal(),
	})
}

// UnmarshalJSON re-validates the offer; line_total is ignored and recomputed.
func (o *Offer) UnmarshalJSON(data []byte) error {
	var w offerJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "offer: decode")
	}
	parsed, err := NewOffer(OfferInput{
		Product:   w.Product,
		Vendor:    w.Vendor,
		Name:      w.Name,
		URL:       w.URL,
		UnitPrice: w.UnitPrice,
		Shipping:  w.Shipping,
		Quantity:  w.Quantity,
	})
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
