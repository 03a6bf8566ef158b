package main

import (
	"context"
	"os"

	"homepay/internal/amqp"
	"homepay/internal/cli"
	"homepay/internal/config"
	"homepay/internal/log"
	"homepay/internal/notify"
	"homepay/internal/sheets/google"
	"homepay/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)
	logger.Info("Starting homepay-worker", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	mailer, err := deliveryMailer(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize mailer", log.FieldError, err)
		os.Exit(1)
	}

	// Without a broker the worker only drains the SQLite outbox.
	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled, draining the outbox only")
	}

	w := worker.NewNotificationWorker(mailer, repo, cfg.WorkerBatchSize, cfg.OutboxMaxAttempts)
	if err := w.StartupOutboxCheck(ctx); err != nil {
		logger.Error("Failed startup outbox check", log.FieldError, err)
	}

	if err := w.Run(ctx, consumer, cfg.WorkerInterval); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("homepay-worker stopped gracefully")
}

// deliveryMailer sends through Gmail when credentials and a sender are set,
// else logs every message.
func deliveryMailer(ctx context.Context, cfg *config.Config, logger *log.Logger) (notify.Mailer, error) {
	auth := google.AuthFromEnv()
	if !auth.Configured() || cfg.MailFrom == "" {
		logger.Warn("Gmail not configured, messages are only logged")
		return notify.NewLogMailer(), nil
	}
	opts, err := google.ClientOptions(ctx, auth)
	if err != nil {
		return nil, err
	}
	return notify.NewGmailMailer(ctx, cfg.MailFrom, cfg.MailSenderName, opts...)
}
