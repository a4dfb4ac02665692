package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/course-jobs/internal/ingest"
)

var (
	watchPrincipal   string
	watchCourseID    string
	watchInitialScan bool
	watchDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR...",
	Short: "Submit documents and presentations dropped into folders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchPrincipal, "principal", "", "principal that owns submitted jobs (required)")
	watchCmd.Flags().StringVar(&watchCourseID, "course-id", "", "course the submitted jobs belong to")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "also submit files already present")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "wait for writes to settle before submitting")
	_ = watchCmd.MarkFlagRequired("principal")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	orch, err := a.submitter()
	if err != nil {
		return err
	}
	ing := ingest.NewFSIngestor(orch, watchPrincipal, logger, ingest.WithCourseID(watchCourseID))
	return ignoreCanceled(ing.Watch(ctx, ingest.WatchConfig{
		Roots:       args,
		InitialScan: watchInitialScan,
		Debounce:    watchDebounce,
	}))
}
