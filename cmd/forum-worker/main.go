package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"forum/internal/amqp"
	"forum/internal/cli"
	"forum/internal/log"
	"forum/internal/metrics"
	"forum/internal/services"
	"forum/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting forum-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	ctx := context.Background()
	backendRes := cli.OpenStore(ctx, logger, cfg)
	store := backendRes.Store

	m := metrics.New()
	deps := services.Deps{Store: store, Metrics: m, Logger: logger, Timeout: cfg.StoreTimeout}
	auditor := services.NewAuditor(deps, cfg.AuditConcurrency)
	scheduler := services.NewAuditScheduler(auditor, cfg.AuditInterval, logger)
	handler := worker.NewAuditWorker(auditor, store, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", log.FieldError, err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
		logger.Info("Serving worker metrics", "addr", cfg.WorkerMetricsAddr)
	}

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Audit scheduler did not stop cleanly", log.FieldError, err)
		}
		_ = amqpClient.Close()
		if err := backendRes.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	})

	if err := scheduler.Start(runCtx); err != nil {
		logger.Error("Failed to start audit scheduler", log.FieldError, err)
		os.Exit(1)
	}

	if err := amqpClient.Consume(runCtx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped gracefully")
}
