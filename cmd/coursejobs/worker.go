package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/course-jobs/internal/async/rabbitmq"
	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/core"
	"github.com/joseph-ayodele/course-jobs/internal/server"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued jobs and execute them",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	if cfg.Queue.DispatchMode != common.DispatchAMQP {
		return fmt.Errorf("worker needs JOBS_DISPATCH_MODE=%s", common.DispatchAMQP)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stages, err := a.stages()
	if err != nil {
		return err
	}
	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}
	orch := core.NewOrchestrator(a.jobs, stages, nil, logger)

	conn, err := rabbitmq.Dial(cfg.Queue.URL)
	if err != nil {
		return err
	}
	defer conn.Close()
	w, err := rabbitmq.NewWorker(conn, a.queueConfig(), orch, locker, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	health := server.NewHealthServer(a.ready, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return health.Serve(gctx, cfg.Server.GRPCAddr, 15*time.Second) })
	return ignoreCanceled(g.Wait())
}
