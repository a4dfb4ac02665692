package main

import (
	"github.com/spf13/cobra"

	repo "github.com/joseph-ayodele/course-jobs/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the jobs table and its indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return repo.Migrate(cmd.Context(), a.db, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
