package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/doctext/internal/common"
	repo "github.com/joseph-ayodele/doctext/internal/repository"
)

// ConnectJobStore opens the job log described by cfg. An empty DSN disables
// the job log and returns (nil, nil).
func ConnectJobStore(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		logger.Info("job store disabled")
		return nil, nil
	}

	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
		MaxConnIdleTime: cfg.MaxConnIdleTime,
		DialTimeout:     cfg.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to job store", "error", err)
		return nil, err
	}

	if err := repo.HealthCheck(ctx, db, cfg.DialTimeout, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	logger.Info("successfully connected to job store", "dialect", db.Dialect)
	return db, nil
}
