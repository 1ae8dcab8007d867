package optimizer

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/purchase-planner/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type offerRow struct {
	product string
	vendor  string
	price   string
	ship    string
}

// demands builds a shopping list with one unit of each product.
func demands(products ...string) []model.Demand {
	out := make([]model.Demand, len(products))
	for i, p := range products {
		out[i] = model.Demand{Product: p, Quantity: 1}
	}
	return out
}

func newCatalog(t testing.TB, ds []model.Demand, rows ...offerRow) *model.Catalog {
	t.Helper()
	qty := make(map[string]int, len(ds))
	for _, d := range ds {
		qty[d.Product] = d.Quantity
	}
	c := &model.Catalog{Demands: ds}
	for _, r := range rows {
		o, err := model.NewOffer(model.OfferInput{
			Product:   r.product,
			Vendor:    r.vendor,
			UnitPrice: dec(r.price),
			Shipping:  dec(r.ship),
			Quantity:  qty[r.product],
		})
		require.NoError(t, err)
		c.Offers = append(c.Offers, o)
	}
	require.NoError(t, c.Validate())
	return c
}

func testOptions(minimum string, maxVendors int) Options {
	opts := DefaultOptions()
	opts.MinimumOrder = dec(minimum)
	opts.MaxVendors = maxVendors
	return opts
}

// randomCatalog generates a catalog that always has a solution: a "hub"
// vendor offers everything at a price that clears any minimum used in tests.
func randomCatalog(t testing.TB, rng *rand.Rand, products, vendors int, withShipping bool) *model.Catalog {
	t.Helper()
	ds := make([]model.Demand, products)
	for p := range ds {
		ds[p] = model.Demand{Product: string(rune('a' + p)), Quantity: 1 + rng.Intn(3)}
	}
	c := &model.Catalog{Demands: ds}
	add := func(product string, qty int, vendor string, price, ship int64) {
		c.Offers = append(c.Offers, model.MustOffer(model.OfferInput{
			Product:   product,
			Vendor:    vendor,
			UnitPrice: decimal.NewFromInt(price),
			Shipping:  decimal.NewFromInt(ship),
			Quantity:  qty,
		}))
	}
	for v := 0; v < vendors; v++ {
		name := "v" + string(rune('0'+v))
		for _, d := range ds {
			if rng.Intn(10) < 6 {
				var ship int64
				if withShipping {
					ship = int64(rng.Intn(10))
				}
				add(d.Product, d.Quantity, name, int64(5+rng.Intn(56)), ship)
			}
		}
	}
	for _, d := range ds {
		add(d.Product, d.Quantity, "zz-hub", 200, 0)
	}
	require.NoError(t, c.Validate())
	return c
}
