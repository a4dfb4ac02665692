package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/course-jobs/internal/common"
	repo "github.com/joseph-ayodele/course-jobs/internal/repository"
)

// ConnectDB opens the job store described by cfg and pings it once.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	logger.Info("connecting to database")
	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := PingDB(ctx, db, logger, 5*time.Second); err != nil {
		repo.Close(db, logger)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, logger *slog.Logger, timeout time.Duration) error {
	err := repo.HealthCheck(ctx, db, timeout, logger)
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the database connections gracefully
func CloseDB(db *repo.DB, logger *slog.Logger) {
	repo.Close(db, logger)
}
