package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/purchase-planner/internal/model"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return eris.Errorf("unknown output format %q (want table or json)", format)
	}
}

// writePlan renders a plan as a table or as indented JSON.
func writePlan(out io.Writer, p *model.Plan, format string) error {
	if format == formatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	formatPlan(out, p)
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatPlan writes a human-readable plan to w.
func formatPlan(out io.Writer, p *model.Plan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := fmt.Sprintf("Plan %s", truncateID(p.ID))
	if p.ID == "" {
		header = "Plan (not saved)"
	}
	if p.ListName != "" {
		header += "  list=" + p.ListName
	}
	_, _ = fmt.Fprintf(w, "%s  status=%s  minimum_order=%s  max_vendors=%d\n",
		header, p.Status, money(p.Params.MinimumOrder), p.Params.MaxVendors)
	if len(p.Dropped) > 0 {
		_, _ = fmt.Fprintf(w, "Dropped (no offers): %s\n", strings.Join(p.Dropped, ", "))
	}

	if p.Solution == nil {
		_, _ = fmt.Fprintf(w, "No valid solution: %s\n", p.Error)
		if len(p.Missing) > 0 {
			_, _ = fmt.Fprintf(w, "Products: %s\n", strings.Join(p.Missing, ", "))
		}
		_ = w.Flush()
		return
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "VENDOR\tPRODUCT\tQTY\tUNIT\tLINE\tURL")
	_, _ = fmt.Fprintln(w, "------\t-------\t---\t----\t----\t---")
	for _, o := range p.Solution.Orders {
		for _, it := range o.Items {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				o.Vendor, it.Product(), it.Quantity(), money(it.UnitPrice()), money(it.LineTotal()), it.URL())
		}
		_, _ = fmt.Fprintf(w, "\tsubtotal %s + shipping %s\t\t\t%s\t\n",
			money(o.Subtotal), money(o.Shipping), money(o.Total))
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t\t\t\t%s\t\n", money(p.Solution.Total))
	_, _ = fmt.Fprintf(w, "\nLower bound %s; %d groups enumerated, %d evaluated, largest group %d",
		money(p.Stats.LowerBound), p.Stats.Enumerated, p.Stats.Evaluated, p.Stats.LargestGroup)
	if p.Stats.EarlyStopped {
		_, _ = fmt.Fprint(w, " (stopped early)")
	}
	_, _ = fmt.Fprintln(w)
	_ = w.Flush()
}

// formatPlansList writes a tabular list of plans to w.
func formatPlansList(out io.Writer, plans []model.Plan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tLIST\tSTATUS\tTOTAL\tVENDORS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-------\t-------")

	for _, p := range plans {
		total, vendors := "-", "-"
		if p.Solution != nil {
			total = money(p.Solution.Total)
			vendors = ellipsize(strings.Join(p.Solution.Vendors(), ", "), 40)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(p.ID),
			p.ListName,
			p.Status,
			total,
			vendors,
			p.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// ellipsize shortens s to at most n runes, marking the cut with "...".
func ellipsize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
