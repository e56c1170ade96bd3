package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summaries over the active inventory",
	}
	cmd.AddCommand(newReportSummaryCmd(opts))
	cmd.AddCommand(newReportCategoriesCmd(opts))
	cmd.AddCommand(newReportLocationsCmd(opts))
	cmd.AddCommand(newReportLowStockCmd(opts))
	cmd.AddCommand(newReportSearchCmd(opts))
	cmd.AddCommand(newReportCreatedCmd(opts))
	return cmd
}

func newReportSummaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Totals across all active items",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			s, err := a.reports.InventorySummary(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendRows([]table.Row{
				{"Items", s.TotalItems},
				{"Quantity", s.TotalQuantity},
				{"Value", s.TotalValue.StringFixed(2)},
				{"Categories", s.CategoryCount},
				{"Locations", s.LocationCount},
			})
			t.Render()
			return nil
		}),
	}
}

func newReportCategoriesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Totals per category, highest value first",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			rows, err := a.reports.CategorySummaries(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"Category", "Items", "Quantity", "Value", "Avg price"})
			for _, r := range rows {
				t.AppendRow(table.Row{
					orNone(r.Category),
					r.ItemCount,
					r.TotalQuantity,
					r.TotalValue.StringFixed(2),
					r.AveragePrice.StringFixed(2),
				})
			}
			t.Render()
			return nil
		}),
	}
}

func newReportLocationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "Totals per location, highest value first",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			rows, err := a.reports.LocationSummaries(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"Location", "Items", "Quantity", "Value"})
			for _, r := range rows {
				t.AppendRow(table.Row{orNone(r.Location), r.ItemCount, r.TotalQuantity, r.TotalValue.StringFixed(2)})
			}
			t.Render()
			return nil
		}),
	}
}

func newReportLowStockCmd(opts *rootOptions) *cobra.Command {
	var threshold int
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "Items at or below the stock threshold",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.LowStockThreshold
			}
			rows, err := a.reports.LowStockItems(cmd.Context(), threshold)
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"ID", "Name", "SKU", "Qty", "Price", "Category", "Location"})
			for _, r := range rows {
				t.AppendRow(table.Row{r.ID, r.Name, r.SKU, r.Quantity, r.Price.StringFixed(2), r.Category, r.Location})
			}
			t.Render()
			return nil
		}),
	}
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Quantity threshold (default from config)")
	return cmd
}

func newReportSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find active items by name, description, SKU, category or location",
		Args:  cobra.MinimumNArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			items, err := a.reports.SearchItems(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			outputItemsTable(cmd, items)
			return nil
		}),
	}
}

func newReportCreatedCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "created",
		Short: "Items created in a date range, newest first",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			start, end, err := parseDateRange(from, to)
			if err != nil {
				return err
			}
			items, err := a.reports.ItemsCreatedInPeriod(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			outputItemsTable(cmd, items)
			return nil
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), inclusive")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
