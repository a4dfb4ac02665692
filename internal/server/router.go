package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the job API under /api/v1. ready backs /healthz and may be nil.
func NewRouter(h *JobHandler, ready func(ctx context.Context) error, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger))

	r.GET("/healthz", func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1", PrincipalMiddleware())
	{
		v1.POST("/jobs", h.Submit)
		v1.POST("/jobs/status", h.StatusByBody)
		v1.GET("/jobs/report", h.Report)
		v1.GET("/jobs/:id", h.Status)
	}
	return r
}

// RunHTTP runs handler on addr until ctx is cancelled, then drains for up to grace.
func RunHTTP(ctx context.Context, addr string, handler http.Handler, grace time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http.listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	logger.Info("http.shutdown")
	return srv.Shutdown(sctx)
}
