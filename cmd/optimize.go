package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/purchase-planner/internal/catalog"
	"github.com/sells-group/purchase-planner/internal/config"
	"github.com/sells-group/purchase-planner/internal/model"
	"github.com/sells-group/purchase-planner/internal/planner"
)

type optimizeFlags struct {
	offers          string
	searchConfig    string
	format          string
	output          string
	dropUnavailable bool
	save            bool
}

var optFlags optimizeFlags

var optimizeCmd = &cobra.Command{
	Use:   "optimize <shopping-list>",
	Short: "Find the cheapest vendor plan for a shopping list",
	Long: "Loads the offers for every product on the list (one file per product under --data, or a single " +
		"--offers table), runs the vendor-selection optimizer and prints the plan. Exits non-zero when a product " +
		"has no offers or no vendor group satisfies the constraints.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if optFlags.searchConfig != "" {
			if err := config.ApplySearchConfig(cfg, optFlags.searchConfig); err != nil {
				return err
			}
		}
		if err := applyOptimizeOverrides(cmd.Flags(), cfg); err != nil {
			return err
		}

		out := io.Writer(os.Stdout)
		if optFlags.output != "" {
			f, err := os.Create(optFlags.output)
			if err != nil {
				return eris.Wrap(err, "optimize: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return runOptimize(cmd.Context(), cfg, out, args[0], optFlags)
	},
}

// applyOptimizeOverrides copies explicitly set command-line flags over the
// loaded configuration.
func applyOptimizeOverrides(fs *pflag.FlagSet, c *config.Config) error {
	var err error
	if fs.Changed("data") {
		c.Catalog.DataDir, err = fs.GetString("data")
	}
	if err == nil && fs.Changed("minimum-order") {
		c.Optimizer.MinimumOrder, err = fs.GetString("minimum-order")
	}
	if err == nil && fs.Changed("max-vendors") {
		c.Optimizer.MaxVendorCombinations, err = fs.GetInt("max-vendors")
	}
	if err == nil && fs.Changed("tolerance") {
		c.Optimizer.EarlyStopTolerance, err = fs.GetString("tolerance")
	}
	if err == nil && fs.Changed("workers") {
		c.Optimizer.Workers, err = fs.GetInt("workers")
	}
	if err == nil && fs.Changed("no-dominance") {
		var off bool
		off, err = fs.GetBool("no-dominance")
		c.Optimizer.Dominance = !off
	}
	return eris.Wrap(err, "optimize: read flags")
}

func runOptimize(ctx context.Context, c *config.Config, out io.Writer, listPath string, f optimizeFlags) error {
	if err := c.Validate("optimize"); err != nil {
		return err
	}
	if err := checkFormat(f.format); err != nil {
		return err
	}
	opts, err := c.Optimizer.Options()
	if err != nil {
		return err
	}

	demands, err := catalog.ReadShoppingList(listPath)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(ctx, c, demands, f.offers)
	if err != nil {
		return err
	}

	var svc *planner.Service
	if f.save {
		st, err := openStore(ctx, c.Store)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}
		svc = planner.New(st)
	} else {
		svc = planner.New(nil)
	}

	plan, runErr := svc.Run(ctx, planner.Request{
		ListName:        listName(listPath),
		Catalog:         cat,
		Options:         opts,
		DropUnavailable: f.dropUnavailable,
		Save:            f.save,
	})
	if plan == nil {
		return runErr
	}
	if err := writePlan(out, plan, f.format); err != nil {
		return eris.Wrap(err, "optimize: write plan")
	}
	return runErr
}

// loadCatalog reads offers from a flat table when one is given, otherwise
// from the per-product files of the data directory.
func loadCatalog(ctx context.Context, c *config.Config, demands []model.Demand, offersPath string) (*model.Catalog, error) {
	var (
		cat    *model.Catalog
		report *catalog.LoadReport
		err    error
	)
	if offersPath != "" {
		cat, report, err = catalog.LoadFlat(ctx, offersPath, demands)
	} else {
		cat, report, err = catalog.LoadDirectory(ctx, c.Catalog.DataDir, demands, catalog.Options{Concurrency: c.Catalog.LoadConcurrency})
	}
	if err != nil {
		return nil, err
	}
	for _, re := range report.Rows {
		zap.L().Warn("optimize: offer rejected", zap.Error(&re))
	}
	return cat, nil
}

// listName derives a plan's list name from the shopping list file name.
func listName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// addOptimizeFlags registers the optimize flags on fs. Flags that override
// configuration are read back through applyOptimizeOverrides.
func addOptimizeFlags(fs *pflag.FlagSet, f *optimizeFlags) {
	fs.String("data", "", "directory of per-product offer files (default from config)")
	fs.StringVar(&f.offers, "offers", "", "single offer table (csv or xlsx) instead of --data")
	fs.String("minimum-order", "", "minimum order per vendor, shipping excluded (0 disables)")
	fs.Int("max-vendors", 0, "maximum number of vendors in a plan")
	fs.String("tolerance", "", "stop once a plan is within this fraction of the lower bound")
	fs.Int("workers", 0, "evaluate vendor groups with this many workers")
	fs.Bool("no-dominance", false, "keep vendors that another vendor beats on every product")
	fs.BoolVar(&f.dropUnavailable, "drop-unavailable", false, "plan without products that have no offers")
	fs.StringVar(&f.searchConfig, "search-config", "", "legacy search.cfg with MINIMUM_ORDER / MAX_VENDOR_COMBINATIONS")
	fs.StringVar(&f.format, "format", formatTable, "output format: table or json")
	fs.StringVarP(&f.output, "output", "o", "", "write the plan to this file instead of stdout")
	fs.BoolVar(&f.save, "save", false, "persist the plan in the configured store")
}

func init() {
	addOptimizeFlags(optimizeCmd.Flags(), &optFlags)
	rootCmd.AddCommand(optimizeCmd)
}
