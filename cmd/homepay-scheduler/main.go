package main

import (
	"os"

	"homepay/internal/cli"
	"homepay/internal/config"
	"homepay/internal/log"
	"homepay/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentScheduler)
	logger.Info("Starting homepay-scheduler", log.FieldOperation, log.OpStartup)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to release resources", log.FieldError, err)
		}
	}()

	reminder, err := services.BalanceReminderJob(app.Open)
	if err != nil {
		logger.Error("Invalid job schedule", log.FieldError, err)
		os.Exit(1)
	}
	insights, err := services.MonthlyInsightsJob(app.Open)
	if err != nil {
		logger.Error("Invalid job schedule", log.FieldError, err)
		os.Exit(1)
	}

	// Without SQLite, last runs are kept in memory and reset on restart.
	var runs services.RunStore
	if app.Backend.Store != nil {
		runs = app.Backend.Store
	} else {
		logger.Warn("No SQLite store, job runs are not persisted")
	}

	scheduler := services.NewScheduler(runs, nil, reminder, insights)
	if err := scheduler.Start(ctx, cfg.SchedulerInterval); err != nil && ctx.Err() == nil {
		logger.Error("Scheduler stopped", log.FieldError, err)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("homepay-scheduler stopped gracefully")
}
