// Package worker delivers queued household emails.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"homepay/internal/amqp"
	"homepay/internal/notify"
	"homepay/internal/storage"
)

// Outbox is the SQLite fallback queue. *storage.SQLiteRepository
// implements it.
type Outbox interface {
	Enqueue(ctx context.Context, m storage.OutboxMessage) error
	Pending(ctx context.Context, limit int) ([]storage.OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, maxAttempts int) error
}

// Consumer delivers jobs from the broker until ctx is done.
type Consumer interface {
	ConsumeNotifications(ctx context.Context, handler func(context.Context, *amqp.NotificationJob) error) error
}

// NotificationWorker sends jobs taken from the broker and drains the outbox.
type NotificationWorker struct {
	mailer      notify.Mailer
	outbox      Outbox
	batchSize   int
	maxAttempts int
}

func NewNotificationWorker(mailer notify.Mailer, outbox Outbox, batchSize, maxAttempts int) *NotificationWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &NotificationWorker{
		mailer:      mailer,
		outbox:      outbox,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// HandleNotification sends a single job. A failed send is parked in the
// outbox so the periodic pass retries it; the job is then acknowledged.
func (w *NotificationWorker) HandleNotification(ctx context.Context, job *amqp.NotificationJob) error {
	slog.InfoContext(ctx, "Processing notification job",
		"id", job.ID,
		"kind", job.Kind,
		"recipients", len(job.To))

	err := w.mailer.Send(ctx, notify.FromJob(job))
	if err == nil {
		return nil
	}
	if errors.Is(err, notify.ErrNoRecipients) || w.outbox == nil {
		return fmt.Errorf("send %s: %w", job.ID, err)
	}

	slog.WarnContext(ctx, "Send failed, parking job in outbox", "id", job.ID, "error", err)
	if perr := w.outbox.Enqueue(ctx, storage.OutboxMessage{
		ID:      job.ID,
		Kind:    job.Kind,
		To:      job.To,
		Subject: job.Subject,
		HTML:    job.HTML,
	}); perr != nil {
		return fmt.Errorf("send %s: %w", job.ID, errors.Join(err, perr))
	}
	return nil
}

// ProcessPendingOutbox sends up to one batch of parked messages and returns
// how many went out. This is the backup path when the broker is down.
func (w *NotificationWorker) ProcessPendingOutbox(ctx context.Context) (int, error) {
	return w.drain(ctx, w.batchSize)
}

// StartupOutboxCheck drains a larger batch when the worker starts.
func (w *NotificationWorker) StartupOutboxCheck(ctx context.Context) error {
	sent, err := w.drain(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup outbox check: %w", err)
	}
	slog.InfoContext(ctx, "Startup outbox check completed", "sent", sent)
	return nil
}

func (w *NotificationWorker) drain(ctx context.Context, limit int) (int, error) {
	if w.outbox == nil {
		return 0, nil
	}
	pending, err := w.outbox.Pending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending messages: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing outbox", "count", len(pending))
	sent := 0
	for _, m := range pending {
		if err := w.mailer.Send(ctx, notify.FromOutbox(m)); err != nil {
			if markErr := w.outbox.MarkFailed(ctx, m.ID, err, w.maxAttempts); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark outbox failure", "id", m.ID, "error", markErr)
			}
			continue
		}
		if err := w.outbox.MarkSent(ctx, m.ID); err != nil {
			// Delivered; a duplicate on the next pass is the worst case.
			slog.ErrorContext(ctx, "Failed to mark outbox message sent", "id", m.ID, "error", err)
		}
		sent++
	}
	slog.InfoContext(ctx, "Outbox pass completed", "total", len(pending), "sent", sent)
	return sent, nil
}

// Run consumes jobs from c (when not nil) and drains the outbox every
// interval, until ctx is done or the consumer fails.
func (w *NotificationWorker) Run(ctx context.Context, c Consumer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	if c != nil {
		g.Go(func() error {
			return c.ConsumeNotifications(ctx, w.HandleNotification)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := w.ProcessPendingOutbox(ctx); err != nil {
					slog.ErrorContext(ctx, "Outbox pass failed", "error", err)
				}
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
