package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finny/internal/amqp"
	"finny/internal/backend"
	"finny/internal/coach"
	"finny/internal/config"
	apphttp "finny/internal/http"
	"finny/internal/log"
	"finny/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.Create(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	})
	if err != nil {
		logger.Error("Failed to initialize data backend",
			log.FieldError, err,
			"backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	// Event stream is optional: no broker URL means no events, nothing else
	// changes.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		events = amqpClient
		logger.Info("Ledger event stream enabled",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
	} else {
		logger.Info("Ledger event stream disabled - no AMQP_URL provided")
	}

	// Coach runs canned-only without an API key.
	var upstream coach.Responder
	if cfg.GeminiAPIKey != "" {
		gateway, err := coach.NewGateway(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.CoachTimeout, logger.WithComponent(log.ComponentCoach))
		if err != nil {
			logger.Error("Failed to initialize coach gateway", log.FieldError, err)
			os.Exit(1)
		}
		upstream = gateway
		logger.Info("Coach gateway enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("Coach running in canned-only mode - no GEMINI_API_KEY provided")
	}
	chatCoach := coach.New(upstream, logger.WithComponent(log.ComponentCoach))

	ledgerService := services.NewLedgerService(result.Store, events, logger.WithComponent(log.ComponentLedger))

	srv := apphttp.NewServer(":"+cfg.Port, ledgerService, chatCoach, cfg.DefaultUserID, logger.WithComponent(log.ComponentHTTP))

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting finny server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"default_user_id", cfg.DefaultUserID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
