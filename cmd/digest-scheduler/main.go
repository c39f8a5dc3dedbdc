package main

import (
	"context"
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
	"budgetdigest/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentScheduler})
	log.SetDefault(logger)

	logger.Info("starting digest-scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if !cfg.MailConfigured() {
		logger.Error("MAIL_API_KEY and MAIL_FROM are required for scheduled delivery")
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Error("invalid timezone", log.FieldError, err, "timezone", cfg.DefaultTimezone)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize sqlite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// With a queue configured the scheduler only publishes; the digest
	// worker executes. Without one it runs the pipeline itself.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("failed to initialize AMQP client, continuing in inline mode", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - runs will execute via digest-worker")
		}
	} else {
		logger.Info("AMQP disabled - runs will execute inline")
	}

	var svc *service.Newsletter
	if amqpClient == nil {
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
		}

		svc = service.NewNewsletter(repo, providerClient, auth, ai,
			mail.NewResendSender(cfg.MailAPIKey, cfg.MailFrom), service.Config{
				PeriodMonths:      cfg.PeriodMonths,
				FrontendURL:       cfg.FrontendURL,
				DefaultRecipients: cfg.DefaultRecipients,
			}, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("scheduler configured",
		"send_weekday", cfg.SendWeekday.String(),
		"send_hour", cfg.SendHour,
		"timezone", cfg.DefaultTimezone,
		"check_interval", cfg.CheckInterval)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	fire := func(now time.Time) {
		local := now.In(location)
		if local.Weekday() != cfg.SendWeekday || local.Hour() != cfg.SendHour {
			return
		}
		// The pipeline's dedup window absorbs repeated checks within the
		// send hour.
		if amqpClient != nil {
			msg := amqp.NewRunRequestMessage(cfg.DefaultUserID, false, false, false)
			if err := amqpClient.PublishRunRequest(ctx, msg); err != nil {
				logger.Error("run request publish failed", log.FieldError, err)
				return
			}
			logger.Info("run request published", log.FieldUserID, cfg.DefaultUserID)
			return
		}

		result, err := svc.Run(ctx, service.RunOptions{UserID: cfg.DefaultUserID})
		if err != nil {
			logger.Error("scheduled run failed", log.FieldError, err)
			return
		}
		logger.Info("scheduled run finished",
			log.FieldRunID, result.RunID,
			log.FieldRunStatus, string(result.Status),
			log.FieldEmailsSent, result.EmailsSent)
	}

	// Check immediately on startup, then on the ticker.
	fire(time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				fire(now)
			}
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

	logger.Info("digest-scheduler shutdown complete")
}
