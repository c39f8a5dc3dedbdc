package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetdigest/internal/amqp"
	"budgetdigest/internal/config"
	"budgetdigest/internal/llm"
	"budgetdigest/internal/log"
	"budgetdigest/internal/mail"
	"budgetdigest/internal/provider"
	"budgetdigest/internal/service"
	"budgetdigest/internal/sheets"
	gsheet "budgetdigest/internal/sheets/google"
	"budgetdigest/internal/storage"
	"budgetdigest/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("starting digest-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the digest worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize sqlite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	providerClient := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	auth := provider.NewAuthenticator(cfg.ProviderClientID, cfg.ProviderClientSecret, cfg.ProviderTokenURL, "")

	var ai service.CommentaryGenerator
	if os.Getenv("GEMINI_API_KEY") != "" {
		gemini, err := llm.NewGeminiClient(context.Background(), cfg.LLMModel, cfg.LLMFallbackModel, cfg.LLMMaxTokens)
		if err != nil {
			logger.Error("failed to initialize LLM client", log.FieldError, err)
			os.Exit(1)
		}
		ai = gemini
	} else {
		logger.Info("AI commentary disabled - no GEMINI_API_KEY provided")
	}

	var mailer mail.Sender
	if cfg.MailConfigured() {
		mailer = mail.NewResendSender(cfg.MailAPIKey, cfg.MailFrom)
	} else {
		logger.Info("mail delivery disabled - MAIL_API_KEY or MAIL_FROM missing")
	}

	svc := service.NewNewsletter(repo, providerClient, auth, ai, mailer, service.Config{
		PeriodMonths:      cfg.PeriodMonths,
		FrontendURL:       cfg.FrontendURL,
		DefaultRecipients: cfg.DefaultRecipients,
	}, logger)

	// Snapshot mirror is optional; without a spreadsheet the worker only
	// runs the pipeline.
	var mirror sheets.SnapshotMirror
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = sheetsClient
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("snapshot mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	digestWorker := worker.NewDigestWorker(svc, repo, mirror, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := amqpClient.ConsumeRunRequests(ctx, digestWorker.HandleRunRequest); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("run request consumption failed", log.FieldError, err)
			}
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	logger.Info("shutting down digest-worker...")
	cancel()

	// Give the in-flight run a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("digest-worker shutdown complete")
}
