package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homepay/internal/ai"
	"homepay/internal/amqp"
	"homepay/internal/analytics"
	"homepay/internal/backend"
	"homepay/internal/config"
	"homepay/internal/log"
	"homepay/internal/notify"
	"homepay/internal/schema"
	"homepay/internal/services"
	"homepay/internal/sheets"
)

// App is the wiring of one process: configuration, the document backend and
// the collaborators every household shares.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Layout  *schema.Layout
	Backend *backend.BackendResult

	notifier *services.Notifier
	narrator analytics.Narrator
	now      func() time.Time
	closers  []func() error
}

// NewApp opens the backend selected by cfg and prepares the mailer and the
// optional Gemini narrator. Close releases everything.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, now: time.Now}
	if err := app.init(ctx); err != nil {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("Cleanup after failed start", log.FieldError, cerr)
		}
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) (err error) {
	cfg, logger := a.Config, a.Logger

	a.Layout = schema.Default()
	if cfg.LayoutFile != "" {
		if a.Layout, err = schema.Load(cfg.LayoutFile); err != nil {
			return fmt.Errorf("load layout: %w", err)
		}
	}
	if cfg.FilePrefix != "" {
		a.Layout.FilePrefix = cfg.FilePrefix
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	a.Backend, err = backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.Backend.Cleanup)

	mailer, err := a.mailer(ctx)
	if err != nil {
		return err
	}
	if a.notifier, err = services.NewNotifier(mailer); err != nil {
		return err
	}

	if cfg.GeminiAPIKey != "" {
		g, err := ai.New(ai.Config{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return fmt.Errorf("gemini: %w", err)
		}
		a.narrator = g
		a.closers = append(a.closers, g.Close)
		logger.Info("Gemini narration enabled", "model", cfg.GeminiModel)
	}
	return nil
}

// mailer picks the transport of outgoing notices.
func (a *App) mailer(ctx context.Context) (notify.Mailer, error) {
	cfg := a.Config
	switch cfg.MailTransport {
	case "gmail":
		m, err := notify.NewGmailMailer(ctx, cfg.MailFrom, cfg.MailSenderName, a.Backend.ClientOptions...)
		if err != nil {
			return nil, fmt.Errorf("gmail: %w", err)
		}
		return m, nil
	case "queue":
		var publisher notify.Publisher
		if cfg.AMQPURL != "" {
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				a.Logger.Warn("Failed to initialize AMQP client, notices go to the outbox only", log.FieldError, err)
			} else {
				publisher = client
				a.closers = append(a.closers, client.Close)
			}
		}
		if publisher == nil && a.Backend.Store == nil {
			return nil, errors.New("queue transport needs AMQP_URL or a SQLite outbox")
		}
		var outbox notify.Outbox
		if a.Backend.Store != nil {
			outbox = a.Backend.Store
		}
		return notify.NewQueueMailer(publisher, outbox), nil
	default:
		return notify.NewLogMailer(), nil
	}
}

// Open returns a household working on the document of year. The current
// year's document honours the configured spreadsheet or document name and
// is created on local backends when missing; other years must exist.
func (a *App) Open(ctx context.Context, year int) (*services.Household, error) {
	var (
		doc sheets.Document
		err error
	)
	if year == a.now().Year() {
		doc, err = a.Backend.Current(ctx, a.Layout, year)
	} else {
		doc, err = a.Backend.Year(ctx, a.Layout, year)
	}
	if err != nil {
		return nil, err
	}

	deps := services.Deps{
		Layout:   a.Layout,
		Document: doc,
		Locator:  a.Backend.Locator,
		Uploader: a.Backend.Uploader,
		Notifier: a.notifier,
		Narrator: a.narrator,
		Now:      a.now,
		Logger:   a.Logger,
	}
	if a.Backend.Store != nil {
		deps.Journal = a.Backend.Store
	}
	return services.NewHousehold(deps)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
