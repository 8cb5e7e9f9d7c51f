package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/doctext/internal/async"
	"github.com/joseph-ayodele/doctext/internal/common"
	"github.com/joseph-ayodele/doctext/internal/docx"
	"github.com/joseph-ayodele/doctext/internal/export"
	"github.com/joseph-ayodele/doctext/internal/extract"
	"github.com/joseph-ayodele/doctext/internal/legacy"
	"github.com/joseph-ayodele/doctext/internal/pipeline"
	repo "github.com/joseph-ayodele/doctext/internal/repository"
	"github.com/joseph-ayodele/doctext/internal/scratch"
	svc "github.com/joseph-ayodele/doctext/internal/server"
)

func main() {
	cfg, err := common.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := scratch.NewStore(cfg.Scratch.Dir, logger)
	if err != nil {
		logger.Error("failed to prepare scratch dir", "dir", cfg.Scratch.Dir, "error", err)
		os.Exit(1)
	}
	// leftovers from a previous process that died mid-extraction
	if _, err := store.Sweep(2 * cfg.Legacy.Timeout); err != nil {
		logger.Warn("scratch sweep failed", "error", err)
	}

	db, err := svc.ConnectJobStore(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close(logger)

	var (
		jobsRepo  repo.ExtractJobRepository
		exportSvc *export.Service
	)
	if db != nil {
		jobsRepo = repo.NewExtractJobRepository(db, logger)
		exportSvc = export.NewService(jobsRepo, logger)
	}

	decoder := legacy.NewDecoder(legacy.Config{
		Command: cfg.Legacy.Decoder,
		Args:    cfg.Legacy.Args,
		Timeout: cfg.Legacy.Timeout,
	}, logger)
	if !decoder.Available() {
		logger.Warn("legacy decoder not found on PATH; .doc requests will fail", "command", decoder.Command())
	}

	// Orchestrator
	processor := pipeline.NewProcessor(logger, store,
		extract.NewDocxAdapter(docx.NewExtractor(logger), logger),
		extract.NewLegacyAdapter(decoder, cfg.Legacy.Timeout, logger),
		jobsRepo,
	)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
	)

	api, err := svc.NewServer(svc.Options{
		Queue:          queue,
		Jobs:           jobsRepo,
		Export:         exportSvc,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to build http server", "error", err)
		os.Exit(1)
	}
	httpServer := svc.NewHTTPServer(cfg.Server.HTTPAddr, api.Handler(), 2*cfg.Legacy.Timeout+30*time.Second)

	var health *svc.HealthService
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		health = svc.NewHealthService(logger)
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("doctext listening", "addr", cfg.Server.HTTPAddr, "decoder", decoder.Command())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if health != nil {
		health.SetServing(true)
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("http serve error", "error", err)
	}

	logger.Info("shutting down")
	if health != nil {
		health.SetServing(false)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Legacy.Timeout+10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	if health != nil {
		health.Stop()
	}
}
