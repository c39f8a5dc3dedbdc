package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetdigest/internal/amqp"
	"budgetdigest/internal/config"
	apphttp "budgetdigest/internal/http"
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

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentApp})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
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
		logger.Info("LLM client initialized", log.FieldModel, cfg.LLMModel)
	} else {
		logger.Info("AI commentary disabled - no GEMINI_API_KEY provided")
	}

	var mailer mail.Sender
	if cfg.MailConfigured() {
		mailer = mail.NewResendSender(cfg.MailAPIKey, cfg.MailFrom)
		logger.Info("mail sender initialized", "from", cfg.MailFrom)
	} else {
		logger.Info("mail delivery disabled - MAIL_API_KEY or MAIL_FROM missing")
	}

	svc := service.NewNewsletter(repo, providerClient, auth, ai, mailer, service.Config{
		PeriodMonths:      cfg.PeriodMonths,
		FrontendURL:       cfg.FrontendURL,
		DefaultRecipients: cfg.DefaultRecipients,
	}, logger)

	// With a queue configured, POST /api/run publishes and the digest
	// worker executes. Without one, runs execute inline.
	var publisher apphttp.RunPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("failed to initialize AMQP client, runs will execute inline", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized - runs will execute via digest-worker")
		}
	} else {
		logger.Info("AMQP disabled - runs will execute inline")
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, publisher, apphttp.Options{
		CronSecret:    cfg.CronSecret,
		DefaultUserID: cfg.DefaultUserID,
	}, logger)

	// Inline runs hold the connection through provider fetch, LLM call,
	// and delivery, so the write timeout is generous.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 2 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting budgetdigest server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
