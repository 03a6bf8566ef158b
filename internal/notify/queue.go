package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"homepay/internal/amqp"
	"homepay/internal/storage"
)

// Publisher hands jobs to the broker.
type Publisher interface {
	PublishNotification(ctx context.Context, job *amqp.NotificationJob) error
}

// Outbox parks messages that could not be published.
type Outbox interface {
	Enqueue(ctx context.Context, m storage.OutboxMessage) error
}

// QueueMailer publishes messages as jobs for the notification worker. When
// the broker is unavailable the message is parked in the outbox and the
// worker picks it up on its next drain.
type QueueMailer struct {
	publisher Publisher
	outbox    Outbox
}

// NewQueueMailer accepts a nil publisher (outbox only) or a nil outbox
// (broker only), not both.
func NewQueueMailer(publisher Publisher, outbox Outbox) *QueueMailer {
	return &QueueMailer{publisher: publisher, outbox: outbox}
}

func (m *QueueMailer) Send(ctx context.Context, msg Message) error {
	msg, err := prepare(msg)
	if err != nil {
		return err
	}
	job := amqp.NewNotificationJob(msg.Kind, msg.To, msg.Subject, msg.HTML)
	if msg.ID != "" {
		job.ID = msg.ID
	}

	var pubErr error
	if m.publisher != nil {
		if pubErr = m.publisher.PublishNotification(ctx, job); pubErr == nil {
			return nil
		}
		slog.WarnContext(ctx, "Publish failed, parking message in outbox",
			"id", job.ID,
			"kind", job.Kind,
			"error", pubErr)
	}
	if m.outbox == nil {
		if pubErr == nil {
			pubErr = errors.New("no publisher configured")
		}
		return fmt.Errorf("queue %q: %w", msg.Subject, pubErr)
	}
	err = m.outbox.Enqueue(ctx, storage.OutboxMessage{
		ID:        job.ID,
		Kind:      job.Kind,
		To:        job.To,
		Subject:   job.Subject,
		HTML:      job.HTML,
		CreatedAt: job.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("queue %q: %w", msg.Subject, errors.Join(pubErr, err))
	}
	return nil
}

// FromJob converts a broker job back into a message.
func FromJob(job *amqp.NotificationJob) Message {
	return Message{ID: job.ID, Kind: job.Kind, To: job.To, Subject: job.Subject, HTML: job.HTML}
}

// FromOutbox converts a parked message back into a message.
func FromOutbox(m storage.OutboxMessage) Message {
	return Message{ID: m.ID, Kind: m.Kind, To: m.To, Subject: m.Subject, HTML: m.HTML}
}
