package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vbonduro/invtrack/internal/domain"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune the audit trail",
	}
	cmd.AddCommand(newHistoryListCmd(opts))
	cmd.AddCommand(newHistoryStatsCmd(opts))
	cmd.AddCommand(newHistoryCleanCmd(opts))
	return cmd
}

func newHistoryListCmd(opts *rootOptions) *cobra.Command {
	var (
		itemID int64
		action string
		from   string
		to     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List history entries, newest first",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			ctx := cmd.Context()
			var (
				recs []*domain.HistoryRecord
				err  error
			)
			switch {
			case itemID != 0:
				recs, err = a.history.GetByItem(ctx, itemID)
			case action != "":
				kind, perr := domain.ParseActionKind(action)
				if perr != nil {
					return perr
				}
				recs, err = a.history.GetByAction(ctx, kind)
			case from != "" || to != "":
				start, end, perr := parseDateRange(from, to)
				if perr != nil {
					return perr
				}
				recs, err = a.history.GetByDateRange(ctx, start, end)
			default:
				recs, err = a.history.GetAll(ctx)
			}
			if err != nil {
				return err
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"When", "Item", "SKU", "Action", "Actor", "Qty", "Details"})
			for _, r := range recs {
				qty := ""
				if r.QuantityChange != 0 {
					qty = fmt.Sprintf("%+d", r.QuantityChange)
				}
				t.AppendRow(table.Row{
					formatTimestamp(r.Timestamp),
					r.ItemName,
					r.ItemSKU,
					r.Action,
					r.Actor,
					qty,
					r.Details,
				})
			}
			t.Render()
			return nil
		}),
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only entries for this item id")
	cmd.Flags().StringVar(&action, "action", "", "Only entries of this action kind")
	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), inclusive")
	cmd.MarkFlagsMutuallyExclusive("item", "action", "from")
	cmd.MarkFlagsMutuallyExclusive("item", "action", "to")
	return cmd
}

func newHistoryStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count history entries per action",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			stats, err := a.history.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"Action", "Count"})
			for _, s := range stats {
				t.AppendRow(table.Row{s.Action, s.Count})
			}
			t.Render()
			return nil
		}),
	}
}

func newHistoryCleanCmd(opts *rootOptions) *cobra.Command {
	var (
		days   int
		before string
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete history entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			ctx := cmd.Context()
			var (
				removed bool
				err     error
			)
			if before != "" {
				cutoff, perr := time.ParseInLocation(dateFlagLayout, before, time.UTC)
				if perr != nil {
					return fmt.Errorf("invalid --before %q, want %s", before, dateFlagLayout)
				}
				removed, err = a.history.CleanOldHistory(ctx, cutoff)
			} else {
				if !cmd.Flags().Changed("days") {
					days = a.cfg.HistoryRetentionDays
				}
				removed, err = a.history.CleanOlderThan(ctx, days)
			}
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Old history entries removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to remove")
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&days, "days", 0, "Keep this many days of history (default from config)")
	cmd.Flags().StringVar(&before, "before", "", "Delete entries before this date (YYYY-MM-DD)")
	cmd.MarkFlagsMutuallyExclusive("days", "before")
	return cmd
}
