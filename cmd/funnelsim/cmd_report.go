// File path: cmd/funnelsim/cmd_report.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/funnelsim/internal/config"
	"github.com/nicodishanthj/funnelsim/internal/report"
	"github.com/nicodishanthj/funnelsim/internal/store"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render an archived run",
		Long: `Render a run from the SQLite archive. With --run the full report is
printed; without it the archived runs are listed newest first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath, _ := cmd.Flags().GetString("archive")
			archivePath = strings.TrimSpace(archivePath)
			if archivePath == "" {
				cfg, err := config.LoadConfig()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				archivePath = strings.TrimSpace(cfg.ArchivePath)
			}
			st, err := store.Open(archivePath)
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer st.Close()

			ctx := context.Background()
			runID, _ := cmd.Flags().GetString("run")
			runID = strings.TrimSpace(runID)
			if runID == "" {
				limit, _ := cmd.Flags().GetInt("limit")
				return listArchivedRuns(ctx, cmd, st, limit)
			}

			result, err := st.GetResult(ctx, runID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("run %s not found in %s", runID, archivePath)
				}
				return err
			}
			if markdown, _ := cmd.Flags().GetBool("markdown"); markdown {
				fmt.Fprintln(cmd.OutOrStdout(), report.Markdown(result))
				return nil
			}
			width, _ := cmd.Flags().GetInt("width")
			fmt.Fprintln(cmd.OutOrStdout(), report.Render(result, width))
			return nil
		},
	}
	cmd.Flags().String("archive", "", "path to the SQLite run archive (overrides FUNNELSIM_ARCHIVE_PATH)")
	cmd.Flags().String("run", "", "run id to render; omit to list archived runs")
	cmd.Flags().Bool("markdown", false, "emit the markdown report instead of the terminal view")
	cmd.Flags().Int("width", 100, "report width in columns")
	cmd.Flags().Int("limit", 20, "number of runs to list")
	return cmd
}

func listArchivedRuns(ctx context.Context, cmd *cobra.Command, st *store.Store, limit int) error {
	recs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No archived runs.")
		return nil
	}
	fmt.Fprintf(out, "%-24s  %-20s  %8s  %9s  %10s\n", "RUN", "STARTED", "PERSONAS", "COMPLETED", "CONVERSION")
	for _, rec := range recs {
		fmt.Fprintf(out, "%-24s  %-20s  %8d  %9d  %9.1f%%\n",
			rec.ID,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.PersonaCount,
			rec.CompletedCount,
			rec.ConversionRate*100,
		)
	}
	return nil
}
