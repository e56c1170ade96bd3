package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const dateFlagLayout = "2006-01-02"

type rootOptions struct {
	actor string
}

// withApp opens the application for the duration of one command.
func (o *rootOptions) withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if o.actor != "" {
			a.cfg.Actor = o.actor
		}
		return run(cmd, args, a)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "invtrack",
		Short:        "invtrack - stock items with a full audit trail",
		Long:         "invtrack keeps stock items, records every change to them and produces reports, snapshots and CSV exports.",
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.actor, "actor", "", "Actor recorded in the audit trail (default from config)")

	cmd.AddCommand(newItemCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newBackupCmd(opts))
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id: %s", s)
	}
	return id, nil
}

// parseDateRange reads inclusive day bounds. An empty from means the epoch,
// an empty to means now.
func parseDateRange(from, to string) (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC()
	var errs []error
	if from != "" {
		t, err := time.ParseInLocation(dateFlagLayout, from, time.UTC)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid --from %q, want %s", from, dateFlagLayout))
		}
		start = t
	}
	if to != "" {
		t, err := time.ParseInLocation(dateFlagLayout, to, time.UTC)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid --to %q, want %s", to, dateFlagLayout))
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, errors.Join(errs...)
}
