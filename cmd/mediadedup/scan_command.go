package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediadedup/internal/scan"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		resumeFlag      bool
		resumeScanID    string
		forceResumeFlag bool
		noProgressFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "scan <source>",
		Short: "Scan a directory of media files for duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			opts := scan.Options{
				Source:       args[0],
				Resume:       resumeFlag,
				ResumeScanID: resumeScanID,
				ForceResume:  forceResumeFlag,
			}

			showProgress := !noProgressFlag && isatty.IsTerminal(os.Stderr.Fd())
			var bar *progressbar.ProgressBar
			if showProgress {
				opts.Progress = func(processed, total int) {
					if bar == nil {
						bar = progressbar.NewOptions(total,
							progressbar.OptionSetDescription("extracting"),
							progressbar.OptionSetWriter(os.Stderr),
							progressbar.OptionShowCount(),
							progressbar.OptionClearOnFinish(),
						)
					}
					_ = bar.Set(processed)
				}
			}

			orchestrator := scan.New(cfg, s, logger)
			summary, err := orchestrator.Run(cmd.Context(), opts)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderScanSummary(summary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&resumeFlag, "resume", false, "Continue the newest unfinished scan of this source")
	cmd.Flags().StringVar(&resumeScanID, "resume-scan-id", "", "Resume a specific scan by id")
	cmd.Flags().BoolVar(&forceResumeFlag, "force-resume", false, "Resume even if the drive or settings changed")
	cmd.Flags().BoolVar(&noProgressFlag, "no-progress", false, "Disable the progress bar")

	return cmd
}

func renderScanSummary(summary *scan.Summary) string {
	rows := []table.Row{
		{"Scan", summary.ScanID},
		{"Source", summary.Source},
		{"Drive", fmt.Sprintf("%s (#%d)", summary.DriveLabel, summary.DriveID)},
		{"Discovered", summary.FilesDiscovered},
		{"Processed", summary.FilesProcessed},
		{"Skipped", summary.FilesSkipped},
		{"New records", summary.NewRecords},
		{"Groups created", summary.Grouping.GroupsCreated},
		{"Duplicates found", summary.Grouping.DuplicatesFound},
		{"Dedup ratio", fmt.Sprintf("%.1f%%", summary.DedupRatio()*100)},
		{"Cataloged files", summary.DriveStats.TotalFiles},
		{"Cataloged bytes", humanize.IBytes(uint64(max(summary.DriveStats.TotalBytes, 0)))},
		{"Duration", summary.Duration.Round(time.Millisecond).String()},
	}
	if summary.Resumed {
		rows = append(rows[:1], append([]table.Row{{"Resumed", "yes"}}, rows[1:]...)...)
	}
	return renderTable(table.Row{"Field", "Value"}, rows)
}
