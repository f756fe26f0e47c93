package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"forum/internal/amqp"
	"forum/internal/assistant"
	"forum/internal/cache"
	"forum/internal/cli"
	"forum/internal/core"
	apphttp "forum/internal/http"
	"forum/internal/log"
	"forum/internal/metrics"
	"forum/internal/services"
	gsheet "forum/internal/sheets/google"
)

const (
	shutdownTimeout = 30 * time.Second
	summaryTTL      = 30 * time.Second
	janitorInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	backendRes := cli.OpenStore(ctx, logger, cfg)
	store := backendRes.Store

	if cfg.SeedDemoData {
		seeded, err := services.Seed(ctx, store, logger)
		if err != nil {
			logger.Error("Failed to seed demo data", log.FieldError, err)
			os.Exit(1)
		}
		if seeded {
			logger.Info("Seeded demo data")
		}
	}

	m := metrics.New()
	janitor := cache.NewJanitor(logger)
	summary := cache.NewLRUCache[core.Summary](1, summaryTTL)
	janitor.Register(summary)

	deps := services.Deps{
		Store:   store,
		Metrics: m,
		Summary: summary,
		Logger:  logger,
		Timeout: cfg.StoreTimeout,
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, ledger events disabled", log.FieldError, err)
			amqpClient = nil
		} else {
			deps.Publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ledger := services.NewLedgerService(deps)
	directory := services.NewDirectoryService(deps, ledger)
	svc := apphttp.Services{
		Ledger:    ledger,
		Directory: directory,
		Board:     services.NewBoardService(deps),
		Auditor:   services.NewAuditor(deps, cfg.AuditConcurrency),
	}

	auth, err := gsheet.NewAuthenticator(gsheet.AuthOptions{
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:     cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
		RedirectURL:        cfg.GoogleOAuthRedirectURL,
	}, logger)
	if err != nil {
		logger.Error("Failed to load Google credentials", log.FieldError, err)
		os.Exit(1)
	}
	if auth.ConsentEnabled() {
		svc.Consent = auth
	}
	if cfg.SheetsConfigured() || auth.ConsentEnabled() {
		reader := gsheet.NewClient(auth, logger)
		svc.Importer = services.NewImportService(deps, reader, directory, cfg.GoogleSpreadsheetID, cfg.GoogleSheetRange)
		logger.Info("Google Sheets import enabled", log.FieldSpreadsheetID, cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets import disabled - no credentials provided")
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Failed to initialize Gemini client, assistant disabled", log.FieldError, err)
		} else {
			svc.Assistant = assistant.NewService(gen, store, logger)
			logger.Info("Assistant enabled", "model", cfg.GeminiModel)
		}
	} else {
		logger.Info("Assistant disabled - no GEMINI_API_KEY provided")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Logger:             logger,
		Metrics:            m,
		Store:              store,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Janitor:            janitor,
	}, svc)

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		janitor.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := backendRes.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	})
	janitor.Start(runCtx, janitorInterval)

	logger.Info("Starting forum server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
