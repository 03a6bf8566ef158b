// Package notify delivers household emails: balance reminders, monthly
// insights and "file is ready" notices.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

var ErrNoRecipients = errors.New("no recipients")

// Message is a rendered HTML email.
type Message struct {
	// ID is kept across retries so a redelivered job is recognisable.
	ID      string
	Kind    string
	To      []string
	Subject string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Recipients trims addrs and drops blanks and case-insensitive duplicates,
// keeping the first spelling.
func Recipients(addrs ...string) []string {
	var out []string
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if strings.EqualFold(o, a) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	return out
}

func prepare(msg Message) (Message, error) {
	msg.To = Recipients(msg.To...)
	if len(msg.To) == 0 {
		return msg, ErrNoRecipients
	}
	return msg, nil
}

// LogMailer logs messages instead of sending them and keeps them for
// inspection.
type LogMailer struct {
	mu   sync.Mutex
	sent []Message
}

func NewLogMailer() *LogMailer { return &LogMailer{} }

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	msg, err := prepare(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	slog.InfoContext(ctx, "Email not sent, logging only",
		"kind", msg.Kind,
		"subject", msg.Subject,
		"recipients", strings.Join(msg.To, ","),
		"bytes", len(msg.HTML))
	return nil
}

// Sent returns every message logged so far.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
