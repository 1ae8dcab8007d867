package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/purchase-planner/internal/model"
	"github.com/sells-group/purchase-planner/internal/store"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Inspect saved plans",
	Long:  "Commands for listing, viewing, and deleting plans saved with optimize --save or the HTTP API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("plans")
	},
}

// -- plans list --

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved plans, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		list, _ := cmd.Flags().GetString("list")
		limit, _ := cmd.Flags().GetInt("limit")

		plans, err := st.ListPlans(ctx, store.PlanFilter{
			Status:   model.PlanStatus(status),
			ListName: list,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "plans list")
		}

		if len(plans) == 0 {
			fmt.Fprintln(os.Stderr, "No plans found.")
			return nil
		}

		formatPlansList(os.Stdout, plans)
		return nil
	},
}

// -- plans show --

var plansShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a saved plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		plan, err := st.GetPlan(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "plans show")
		}
		return writePlan(os.Stdout, plan, format)
	},
}

// -- plans delete --

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a saved plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeletePlan(ctx, args[0]); err != nil {
			return eris.Wrap(err, "plans delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted plan %s.\n", args[0])
		return nil
	},
}

func init() {
	plansListCmd.Flags().String("status", "", "filter by status (solved, infeasible, unsatisfiable)")
	plansListCmd.Flags().String("list", "", "filter by shopping list name")
	plansListCmd.Flags().Int("limit", 50, "max number of plans to display")

	plansShowCmd.Flags().String("format", formatTable, "output format: table or json")

	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansShowCmd)
	plansCmd.AddCommand(plansDeleteCmd)
	rootCmd.AddCommand(plansCmd)
}
