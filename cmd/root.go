package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/purchase-planner/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "purchase-planner",
	Short: "Cheapest multi-vendor purchase plans for a shopping list",
	Long: "Reads a shopping list and vendor offers, picks the vendors and product assignment with the lowest total " +
		"(shipping charged once per vendor), honouring a minimum order per vendor and a cap on the number of vendors.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
