package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/course-jobs/internal/core"
	"github.com/joseph-ayodele/course-jobs/internal/export"
)

var (
	reportPrincipal string
	reportFrom      string
	reportTo        string
	reportOut       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a principal's jobs as an XLSX workbook",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportPrincipal, "principal", "", "job owner (required)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "first day, YYYY-MM-DD")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "last day, YYYY-MM-DD")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "jobs.xlsx", "output file")
	_ = reportCmd.MarkFlagRequired("principal")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	from, err := parseDay("from", reportFrom)
	if err != nil {
		return err
	}
	to, err := parseDay("to", reportTo)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	orch := core.NewOrchestrator(a.jobs, nil, nil, logger)
	xlsx, err := export.NewService(orch, logger).ExportJobsXLSX(cmd.Context(), reportPrincipal, from, to)
	if err != nil {
		return err
	}
	if err := os.WriteFile(reportOut, xlsx, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", reportOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", reportOut, len(xlsx))
	return nil
}
