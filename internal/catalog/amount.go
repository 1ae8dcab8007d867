package catalog

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

var currencyMarks = strings.NewReplacer("€", "", "EUR", "", "eur", "", "\u00a0", "", " ", "")

// ParseAmount reads a money amount as found in scraped listings: currency
// marks and spaces are ignored, and both "1,234.50" and "1.234,50" are
// accepted. A lone comma is a decimal separator. Negative amounts are
// rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = currencyMarks.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, eris.New("empty amount")
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, eris.Errorf("ambiguous amount %q", raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, eris.Errorf("invalid amount %q", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, eris.Errorf("negative amount %q", raw)
	}
	return d, nil
}
