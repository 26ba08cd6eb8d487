// tally-audit consumes ledger mutation events from the broker and writes
// them to the structured log. It is a companion process for watching what
// sessions are doing without touching the ledger itself.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	applog "tally/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.DefaultConfig().Level,
		Component: applog.ComponentAudit,
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit consumer")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting tally-audit",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	err = client.ConsumeLedgerEvents(ctx, func(ctx context.Context, msg *amqp.LedgerEventMessage) error {
		logger.InfoContext(ctx, "Ledger event",
			applog.FieldSessionID, msg.SessionID,
			applog.FieldOperation, msg.Op,
			applog.FieldRows, msg.Count,
			"at", msg.Timestamp)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Audit consumer stopped gracefully")
}
