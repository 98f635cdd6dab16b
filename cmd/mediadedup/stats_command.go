package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog-wide duplicate statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}

			rows := []table.Row{
				{"Drives", stats.Drives},
				{"Files", stats.TotalFiles},
				{"Images", stats.Images},
				{"Videos", stats.Videos},
				{"Large files", stats.LargeFiles},
				{"Groups", stats.Groups},
				{"Duplicates", stats.Duplicates},
				{"Total size", humanize.IBytes(uint64(max(stats.TotalBytes, 0)))},
			}

			titler := cases.Title(language.English)
			statuses := make([]string, 0, len(stats.ReviewCounts))
			for status := range stats.ReviewCounts {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				label := fmt.Sprintf("Review: %s", titler.String(status))
				rows = append(rows, table.Row{label, stats.ReviewCounts[status]})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(table.Row{"Metric", "Value"}, rows, 2))
			return nil
		},
	}
}
