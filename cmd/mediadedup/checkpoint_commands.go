package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mediadedup/internal/checkpoint"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and manage scan checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCheckpointListCommand(ctx))
	cmd.AddCommand(newCheckpointPurgeCommand(ctx))
	cmd.AddCommand(newCheckpointDeleteCommand(ctx))
	return cmd
}

func newCheckpointListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			checkpoints, err := s.ListCheckpoints(cmd.Context())
			if err != nil {
				return err
			}
			if len(checkpoints) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints.")
				return nil
			}

			rows := make([]table.Row, 0, len(checkpoints))
			for _, cp := range checkpoints {
				rows = append(rows, table.Row{
					cp.ScanID,
					cp.SourcePath,
					cp.Stage,
					cp.ProcessedCount,
					cp.Timestamp.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				renderTable(table.Row{"Scan", "Source", "Stage", "Processed", "Updated"}, rows, 4))
			return nil
		},
	}
}

func newCheckpointPurgeCommand(ctx *commandContext) *cobra.Command {
	var daysFlag int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete checkpoints older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			days := daysFlag
			if days <= 0 {
				days = cfg.Checkpoints.RetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("retention window must be positive, got %d days", days)
			}

			manager := checkpoint.NewManager(cfg, s, logger)
			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			purged, err := manager.PurgeOlderThan(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d checkpoint(s) older than %d day(s).\n", purged, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&daysFlag, "days", 0, "Override the configured retention window")
	return cmd
}

func newCheckpointDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <scan-id>",
		Short: "Delete one checkpoint by scan id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			manager := checkpoint.NewManager(cfg, s, logger)
			if err := manager.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted checkpoint %s.\n", args[0])
			return nil
		},
	}
}
