package main

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/course-jobs/internal/export"
	"github.com/joseph-ayodele/course-jobs/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the job submission and status API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	if logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := server.NewJobHandler(orch, export.NewService(orch, logger), logger)
	router := server.NewRouter(handler, a.ready, logger)
	health := server.NewHealthServer(a.ready, logger)

	logger.Info("coursejobs.serve", "http_addr", cfg.Server.HTTPAddr, "grpc_health_addr", cfg.Server.GRPCAddr, "dispatch_mode", cfg.Queue.DispatchMode)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.RunHTTP(gctx, cfg.Server.HTTPAddr, router, 15*time.Second, logger)
	})
	g.Go(func() error {
		return health.Serve(gctx, cfg.Server.GRPCAddr, 15*time.Second)
	})
	return ignoreCanceled(g.Wait())
}
