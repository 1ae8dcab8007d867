package catalog

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/purchase-planner/internal/model"
)

// ReadShoppingList reads the products to buy and their quantities.
//
// Text and CSV lists hold one "name[,quantity]" per line; quantity defaults
// to 1, blank lines and lines starting with '#' are skipped. YAML lists are
// a document with a "products" sequence of {name, quantity} entries.
func ReadShoppingList(path string) ([]model.Demand, error) {
	var (
		demands []model.Demand
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		demands, err = readYAMLList(path)
	default:
		demands, err = readTextList(path)
	}
	if err != nil {
		return nil, err
	}
	if len(demands) == 0 {
		return nil, eris.Errorf("catalog: shopping list %s is empty", path)
	}

	seen := make(map[string]bool, len(demands))
	for _, d := range demands {
		if seen[d.Product] {
			return nil, eris.Errorf("catalog: %s: product %q listed twice", path, d.Product)
		}
		seen[d.Product] = true
	}
	return demands, nil
}

func readTextList(path string) ([]model.Demand, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open shopping list")
	}
	defer f.Close() //nolint:errcheck

	var out []model.Demand
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		name, qty := text, 1
		if i := strings.LastIndex(text, ","); i >= 0 {
			name = text[:i]
			q := strings.TrimSpace(text[i+1:])
			n, err := strconv.Atoi(q)
			if err != nil {
				return nil, eris.Errorf("catalog: %s:%d: bad quantity %q", path, line, q)
			}
			qty = n
		}
		d, err := newDemand(name, qty)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: %s:%d", path, line)
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: read shopping list")
	}
	return out, nil
}

type yamlList struct {
	Products []model.Demand `yaml:"products"`
}

func readYAMLList(path string) ([]model.Demand, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read shopping list")
	}
	var doc yamlList
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	out := make([]model.Demand, 0, len(doc.Products))
	for i, p := range doc.Products {
		qty := p.Quantity
		if qty == 0 {
			qty = 1
		}
		d, err := newDemand(p.Product, qty)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: %s: entry %d", path, i+1)
		}
		out = append(out, d)
	}
	return out, nil
}

// canonicalProduct is the form product names are compared in.
func canonicalProduct(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func newDemand(name string, qty int) (model.Demand, error) {
	name = canonicalProduct(name)
	if name == "" {
		return model.Demand{}, eris.New("empty product name")
	}
	if qty <= 0 {
		return model.Demand{}, eris.Errorf("quantity for %q must be positive, got %d", name, qty)
	}
	return model.Demand{Product: name, Quantity: qty}, nil
}

// NormalizeProductName turns a shopping-list entry into the stem of its
// offer file: NFC form, any ",quantity" suffix dropped, spaces replaced by
// underscores.
func NormalizeProductName(name string) string {
	name = norm.NFC.String(name)
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
