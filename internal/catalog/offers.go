// Package catalog loads shopping lists and vendor offers from disk and turns
// them into an optimizer catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/purchase-planner/internal/model"
)

// Options configures offer loading.
type Options struct {
	Concurrency int // files read in parallel; <1 means 1
}

// RowError is a rejected offer record. Loading continues past it.
type RowError struct {
	File  string
	Line  int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// LoadReport summarizes what a load read and what it skipped.
type LoadReport struct {
	Files   int
	Offers  int
	Missing []string // demanded products with no offer file
	Rows    []RowError
}

// headerAliases maps accepted column names to canonical ones. The Italian
// names are those written by the legacy scraper.
var headerAliases = map[string]string{
	"nome_prodotto":  "name",
	"name":           "name",
	"title":          "name",
	"prezzo":         "price",
	"price":          "price",
	"unit_price":     "price",
	"spedizione":     "shipping",
	"shipping":       "shipping",
	"venditore":      "vendor",
	"vendor":         "vendor",
	"seller":         "vendor",
	"link_venditore": "url",
	"link":           "url",
	"url":            "url",
	"prodotto":       "product",
	"product":        "product",
	"quantita":       "quantity",
	"quantità":       "quantity",
	"quantity":       "quantity",
	"qty":            "quantity",
}

// offerRecord is one row of a per-product offer file or a flat offer table.
type offerRecord struct {
	Product  string `csv:"product"`
	Name     string `csv:"name"`
	Price    string `csv:"price"`
	Shipping string `csv:"shipping"`
	Vendor   string `csv:"vendor"`
	URL      string `csv:"url"`
	Quantity string `csv:"quantity"`
}

var (
	productFileColumns = []string{"price", "shipping", "vendor"}
	flatFileColumns    = []string{"product", "vendor", "price", "shipping", "quantity"}
)

func canonicalHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.ToLower(strings.Trim(strings.TrimSpace(h), `"`))
		if c, ok := headerAliases[h]; ok && !seen[c] {
			out[i] = c
			seen[c] = true
			continue
		}
		// Unknown and repeated columns get a name no field maps to.
		out[i] = "_" + strconv.Itoa(i) + "_" + h
	}
	return out
}

// decodeRecords reads the header, checks required columns and calls fn for
// every record with its line number.
func decodeRecords(name string, src *recordReader, required []string, fn func(line int, rec offerRecord)) ([]RowError, error) {
	raw, err := src.Read()
	if err == io.EOF {
		return nil, eris.Errorf("catalog: %s is empty", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", name)
	}
	header := canonicalHeader(raw)
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, col := range required {
		if !have[col] {
			return nil, eris.Errorf("catalog: %s: missing column %q", name, col)
		}
	}
	src.width = len(header)

	dec, err := csvutil.NewDecoder(src, header...)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: %s: header", name)
	}

	var rowErrs []RowError
	for {
		var rec offerRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			return rowErrs, nil
		}
		if errors.Is(err, csvutil.ErrFieldCount) {
			rowErrs = append(rowErrs, RowError{File: name, Line: src.line, Err: err})
			continue
		}
		if err != nil {
			return rowErrs, eris.Wrapf(err, "catalog: %s:%d", name, src.line)
		}
		fn(src.line, rec)
	}
}

// buildOffer validates one record into an offer for product.
func buildOffer(file string, line int, product string, qty int, rec offerRecord) (model.Offer, *RowError) {
	rowErr := func(field string, err error) *RowError {
		return &RowError{File: file, Line: line, Field: field, Err: err}
	}

	vendor := strings.TrimSpace(rec.Vendor)
	if vendor == "" {
		return model.Offer{}, rowErr("vendor", errors.New("empty vendor"))
	}
	price, err := ParseAmount(rec.Price)
	if err != nil {
		return model.Offer{}, rowErr("price", err)
	}
	shipping := decimal.Zero
	if strings.TrimSpace(rec.Shipping) != "" {
		if shipping, err = ParseAmount(rec.Shipping); err != nil {
			return model.Offer{}, rowErr("shipping", err)
		}
	}

	o, err := model.NewOffer(model.OfferInput{
		Product:   product,
		Vendor:    vendor,
		Name:      rec.Name,
		URL:       rec.URL,
		UnitPrice: price,
		Shipping:  shipping,
		Quantity:  qty,
	})
	if err != nil {
		return model.Offer{}, rowErr("", err)
	}
	return o, nil
}

// productFile locates the offer file for a demanded product, preferring CSV.
// It returns "" when neither exists.
func productFile(dir, product string) string {
	stem := NormalizeProductName(product)
	for _, ext := range []string{".csv", ".xlsx"} {
		p := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// readProductFile loads the offers of one product file.
func readProductFile(ctx context.Context, path string, d model.Demand) ([]model.Offer, []RowError, error) {
	src, closeFn, err := openRecords(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	var (
		offers  []model.Offer
		badRows []RowError
	)
	name := filepath.Base(path)
	decodeErrs, err := decodeRecords(name, src, productFileColumns, func(line int, rec offerRecord) {
		o, rowErr := buildOffer(name, line, d.Product, d.Quantity, rec)
		if rowErr != nil {
			badRows = append(badRows, *rowErr)
			return
		}
		offers = append(offers, o)
	})
	badRows = append(badRows, decodeErrs...)
	return offers, badRows, err
}

// openRecords opens a CSV or XLSX file as a record source.
func openRecords(ctx context.Context, path string) (*recordReader, func(), error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := ReadXLSX(path)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		return &recordReader{next: sliceRows(rows)}, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	ctx, cancel := context.WithCancel(ctx)
	rowCh, errCh := StreamCSV(ctx, f)
	closeFn := func() {
		cancel()
		for range rowCh {
		}
		f.Close() //nolint:errcheck
	}
	return &recordReader{next: channelRows(rowCh, errCh)}, closeFn, nil
}

// LoadDirectory reads one offer file per demanded product from dir. A file
// is named after the product (see NormalizeProductName) with a .csv or .xlsx
// extension. Products without a file get no offers and are listed in the
// report; the optimizer later reports them as unsatisfiable.
func LoadDirectory(ctx context.Context, dir string, demands []model.Demand, opts Options) (*model.Catalog, *LoadReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "catalog: offer directory %s", dir)
	}
	if !info.IsDir() {
		return nil, nil, eris.Errorf("catalog: %s is not a directory", dir)
	}

	type fileResult struct {
		offers []model.Offer
		rows   []RowError
		found  bool
	}
	results := make([]fileResult, len(demands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, d := range demands {
		g.Go(func() error {
			path := productFile(dir, d.Product)
			if path == "" {
				return nil
			}
			offers, rows, err := readProductFile(gctx, path, d)
			if err != nil {
				return err
			}
			results[i] = fileResult{offers: offers, rows: rows, found: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	c := &model.Catalog{Demands: demands}
	report := &LoadReport{}
	for i, r := range results {
		if !r.found {
			report.Missing = append(report.Missing, demands[i].Product)
			continue
		}
		report.Files++
		report.Rows = append(report.Rows, r.rows...)
		c.Offers = append(c.Offers, r.offers...)
	}
	report.Offers = len(c.Offers)

	zap.L().Info("catalog: offers loaded",
		zap.String("dir", dir),
		zap.Int("files", report.Files),
		zap.Int("offers", report.Offers),
		zap.Int("rejected_rows", len(report.Rows)),
		zap.Strings("missing", report.Missing),
	)
	return c, report, nil
}

// LoadFlat reads a single offer table with product, vendor, price (or
// unit_price), shipping and quantity columns. When demands is empty the
// shopping list is taken from the table in order of first appearance, with
// the quantity of the first row; otherwise rows for unlisted products are
// skipped. Rows whose quantity disagrees with the list are rejected.
func LoadFlat(ctx context.Context, path string, demands []model.Demand) (*model.Catalog, *LoadReport, error) {
	src, closeFn, err := openRecords(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	fixed := len(demands) > 0
	qty := make(map[string]int, len(demands))
	for _, d := range demands {
		qty[d.Product] = d.Quantity
	}

	c := &model.Catalog{}
	report := &LoadReport{Files: 1}
	name := filepath.Base(path)
	decodeErrs, err := decodeRecords(name, src, flatFileColumns, func(line int, rec offerRecord) {
		product := canonicalProduct(rec.Product)
		if product == "" {
			report.Rows = append(report.Rows, RowError{File: name, Line: line, Field: "product", Err: errors.New("empty product")})
			return
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(rec.Quantity))
		if convErr != nil || n <= 0 {
			report.Rows = append(report.Rows, RowError{File: name, Line: line, Field: "quantity", Err: fmt.Errorf("invalid quantity %q", rec.Quantity)})
			return
		}
		want, listed := qty[product]
		switch {
		case !listed && fixed:
			return
		case !listed:
			qty[product] = n
			demands = append(demands, model.Demand{Product: product, Quantity: n})
		case want != n:
			report.Rows = append(report.Rows, RowError{File: name, Line: line, Field: "quantity", Err: fmt.Errorf("quantity %d, list wants %d", n, want)})
			return
		}
		o, rowErr := buildOffer(name, line, product, n, rec)
		if rowErr != nil {
			report.Rows = append(report.Rows, *rowErr)
			return
		}
		c.Offers = append(c.Offers, o)
	})
	report.Rows = append(report.Rows, decodeErrs...)
	if err != nil {
		return nil, nil, err
	}

	c.Demands = demands
	report.Offers = len(c.Offers)
	seen := make(map[string]bool, len(c.Offers))
	for _, o := range c.Offers {
		seen[o.Product()] = true
	}
	for _, d := range demands {
		if !seen[d.Product] {
			report.Missing = append(report.Missing, d.Product)
		}
	}

	zap.L().Info("catalog: flat offers loaded",
		zap.String("file", path),
		zap.Int("products", len(demands)),
		zap.Int("offers", report.Offers),
		zap.Int("rejected_rows", len(report.Rows)),
	)
	return c, report, nil
}
