package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/mail"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailMailer sends through the Gmail API as the authorised user.
type GmailMailer struct {
	svc  *gmail.Service
	from mail.Address
}

func NewGmailMailer(ctx context.Context, from, senderName string, opts ...option.ClientOption) (*GmailMailer, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailMailer{svc: svc, from: mail.Address{Name: senderName, Address: from}}, nil
}

func (m *GmailMailer) Send(ctx context.Context, msg Message) error {
	msg, err := prepare(msg)
	if err != nil {
		return err
	}
	raw := base64.URLEncoding.EncodeToString(buildRaw(m.from, msg))
	sent, err := m.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	slog.InfoContext(ctx, "Email sent",
		"gmail_id", sent.Id,
		"kind", msg.Kind,
		"subject", msg.Subject,
		"recipients", len(msg.To))
	return nil
}

// buildRaw renders msg as an RFC 2822 message with an HTML body.
func buildRaw(from mail.Address, msg Message) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	if from.Address != "" {
		header("From", from.String())
		header("Reply-To", from.String())
	}
	header("To", strings.Join(msg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	if msg.ID != "" {
		header("X-Homepay-Job", msg.ID)
	}
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}
