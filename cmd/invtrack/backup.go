package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vbonduro/invtrack/internal/backup"
)

func newBackupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshots and CSV interchange",
	}
	cmd.AddCommand(newBackupCreateCmd(opts))
	cmd.AddCommand(newBackupRestoreCmd(opts))
	cmd.AddCommand(newBackupListCmd(opts))
	cmd.AddCommand(newBackupExportCSVCmd(opts))
	cmd.AddCommand(newBackupImportCSVCmd(opts))
	return cmd
}

func newBackupCreateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create [path]",
		Short: "Write a snapshot of all active items",
		Args:  cobra.MaximumNArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			path := filepath.Join(a.cfg.BackupDir,
				fmt.Sprintf("inventory_%s_%s.json", backup.FileMarker, time.Now().Format("20060102_150405")))
			if len(args) == 1 {
				path = args[0]
			}
			n, err := a.backups.CreateBackup(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d items to %s\n", n, path)
			return nil
		}),
	}
}

func newBackupRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>",
		Short: "Replace the whole inventory with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			result, err := a.backups.RestoreBackup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored %d items\n", result.Restored)
			fmt.Fprintf(out, "Previous state saved to %s\n", result.SafetyBackup)
			return nil
		}),
	}
}

func newBackupListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List snapshot files",
		Args:  cobra.MaximumNArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			dir := a.cfg.BackupDir
			if len(args) == 1 {
				dir = args[0]
			}
			files, err := a.backups.GetBackupFiles(cmd.Context(), dir)
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"Name", "Created", "Size"})
			for _, f := range files {
				t.AppendRow(table.Row{f.Name, formatTimestamp(f.CreatedAt), f.Size})
			}
			t.Render()
			return nil
		}),
	}
}

func newBackupExportCSVCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-csv <path>",
		Short: "Write all active items as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			n, err := a.backups.ExportToCSV(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", n, args[0])
			return nil
		}),
	}
}

func newBackupImportCSVCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-csv <path>",
		Short: "Insert the rows of a CSV file; bad rows are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, a *app) error {
			result, err := a.backups.ImportFromCSV(cmd.Context(), a.cfg.Actor, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Message())
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  line %d: %s\n", e.Line, e.Reason)
			}
			fmt.Fprintf(out, "Previous state saved to %s\n", result.SafetyBackup)
			return nil
		}),
	}
}
