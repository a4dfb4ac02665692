package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/course-jobs/internal/core"
)

var statusPrincipal string

var statusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Print the status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id: %w", err)
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		view, err := core.NewOrchestrator(a.jobs, nil, nil, logger).GetStatus(cmd.Context(), id, statusPrincipal)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusPrincipal, "principal", "", "job owner (required)")
	_ = statusCmd.MarkFlagRequired("principal")
	rootCmd.AddCommand(statusCmd)
}
