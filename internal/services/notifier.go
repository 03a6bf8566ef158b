package services

import (
	"context"
	"fmt"

	"homepay/internal/amqp"
	"homepay/internal/analytics"
	"homepay/internal/log"
	"homepay/internal/notify"
)

const (
	kindNewYear    = amqp.KindNewYear
	kindTaxReceipt = amqp.KindTaxReceipt
)

// Notifier renders household emails and hands them to a mailer.
type Notifier struct {
	renderer *notify.Renderer
	mailer   notify.Mailer
}

func NewNotifier(mailer notify.Mailer) (*Notifier, error) {
	r, err := notify.NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Notifier{renderer: r, mailer: mailer}, nil
}

func (n *Notifier) send(ctx context.Context, msg notify.Message, err error) error {
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	log.FromContext(ctx).InfoContext(ctx, "Email handed to mailer",
		"kind", msg.Kind, log.FieldRecipients, len(msg.To), "subject", msg.Subject)
	return nil
}

// Reminder sends the monthly balance notice.
func (n *Notifier) Reminder(ctx context.Context, r *analytics.Reminder) error {
	msg, err := n.renderer.Reminder(r)
	return n.send(ctx, msg, err)
}

// Insights sends the monthly insights email.
func (n *Notifier) Insights(ctx context.Context, r *analytics.MonthlyReport) error {
	msg, err := n.renderer.Insights(r)
	return n.send(ctx, msg, err)
}

// FileReady announces a new document or report.
func (n *Notifier) FileReady(ctx context.Context, kind, name, url, notes string, to []string) error {
	msg, err := n.renderer.FileReady(kind, name, url, notes, to)
	return n.send(ctx, msg, err)
}
