package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job kinds.
const (
	KindBalanceReminder = "balance_reminder"
	KindMonthlyInsights = "monthly_insights"
	KindNewYear         = "new_year"
	KindTaxReceipt      = "tax_receipt"
	KindGeneric         = "generic"
)

// NotificationJob is a fully rendered email waiting for delivery. The
// worker sends it as is.
type NotificationJob struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotificationJob stamps a new job with a random id.
func NewNotificationJob(kind string, to []string, subject, html string) *NotificationJob {
	if kind == "" {
		kind = KindGeneric
	}
	return &NotificationJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		To:        append([]string(nil), to...),
		Subject:   subject,
		HTML:      html,
		Timestamp: time.Now(),
	}
}

// Validate rejects jobs that could never be delivered.
func (m *NotificationJob) Validate() error {
	if m.ID == "" {
		return errors.New("job has no id")
	}
	if len(m.To) == 0 {
		return errors.New("job has no recipients")
	}
	if m.Subject == "" {
		return errors.New("job has no subject")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *NotificationJob) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationJobFromJSON decodes and validates a job.
func NotificationJobFromJSON(data []byte) (*NotificationJob, error) {
	var msg NotificationJob
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
