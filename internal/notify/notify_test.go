package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"net/mail"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"homepay/internal/amqp"
	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/internal/storage"
)

func TestRecipients(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"distinct", []string{"a@x.com", "b@x.com"}, []string{"a@x.com", "b@x.com"}},
		{"same address twice", []string{"a@x.com", " A@X.com "}, []string{"a@x.com"}},
		{"blank dropped", []string{"", "  ", "b@x.com"}, []string{"b@x.com"}},
		{"none", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recipients(tt.in...)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Recipients(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildRaw(t *testing.T) {
	raw := string(buildRaw(mail.Address{Name: "HomePayments", Address: "home@example.com"},
		Message{ID: "job-1", To: []string{"a@x.com", "b@x.com"}, Subject: "Monthly Property Account for March 2026", HTML: "<p>hi</p>"}))

	for _, want := range []string{
		"From: \"HomePayments\" <home@example.com>\r\n",
		"To: a@x.com, b@x.com\r\n",
		"Subject: Monthly Property Account for March 2026\r\n",
		"Content-Type: text/html; charset=\"UTF-8\"\r\n",
		"X-Homepay-Job: job-1\r\n",
		"\r\n\r\n<p>hi</p>",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("raw message lacks %q:\n%s", want, raw)
		}
	}
	encoded := base64.URLEncoding.EncodeToString([]byte(raw))
	if strings.ContainsAny(encoded, "+/") {
		t.Error("gmail raw payload must be base64url")
	}
}

type fakePublisher struct {
	err  error
	jobs []*amqp.NotificationJob
}

func (p *fakePublisher) PublishNotification(_ context.Context, job *amqp.NotificationJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type fakeOutbox struct {
	err  error
	msgs []storage.OutboxMessage
}

func (o *fakeOutbox) Enqueue(_ context.Context, m storage.OutboxMessage) error {
	if o.err != nil {
		return o.err
	}
	o.msgs = append(o.msgs, m)
	return nil
}

func TestQueueMailer(t *testing.T) {
	ctx := context.Background()
	msg := Message{Kind: amqp.KindBalanceReminder, To: []string{"a@x.com", "A@x.com"}, Subject: "s", HTML: "<p/>"}

	t.Run("publishes to the broker", func(t *testing.T) {
		pub, box := &fakePublisher{}, &fakeOutbox{}
		if err := NewQueueMailer(pub, box).Send(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if len(pub.jobs) != 1 || len(box.msgs) != 0 {
			t.Fatalf("jobs=%d parked=%d", len(pub.jobs), len(box.msgs))
		}
		if len(pub.jobs[0].To) != 1 || pub.jobs[0].Kind != amqp.KindBalanceReminder {
			t.Errorf("job = %+v", pub.jobs[0])
		}
	})

	t.Run("falls back to the outbox", func(t *testing.T) {
		pub, box := &fakePublisher{err: amqp.ErrCircuitOpen}, &fakeOutbox{}
		if err := NewQueueMailer(pub, box).Send(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if len(box.msgs) != 1 || box.msgs[0].ID == "" {
			t.Fatalf("parked = %+v", box.msgs)
		}
	})

	t.Run("outbox only", func(t *testing.T) {
		box := &fakeOutbox{}
		if err := NewQueueMailer(nil, box).Send(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if len(box.msgs) != 1 {
			t.Fatal("message not parked")
		}
	})

	t.Run("both fail", func(t *testing.T) {
		pub, box := &fakePublisher{err: errors.New("broker down")}, &fakeOutbox{err: errors.New("disk full")}
		err := NewQueueMailer(pub, box).Send(ctx, msg)
		if err == nil || !strings.Contains(err.Error(), "broker down") || !strings.Contains(err.Error(), "disk full") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("no recipients", func(t *testing.T) {
		err := NewQueueMailer(&fakePublisher{}, nil).Send(ctx, Message{Subject: "s", To: []string{" "}})
		if !errors.Is(err, ErrNoRecipients) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRenderer(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("reminder", func(t *testing.T) {
		rem := &analytics.Reminder{
			Subject:    "Monthly Property Account for March 2026",
			Recipients: []string{"a@x.com"},
			Label:      "March 2026",
			Headline:   "Ada to pay $120.00",
			Total:      decimal.NewFromInt(2000),
			Names:      [2]string{"Ada", "Bob"},
			Parts:      [2]decimal.Decimal{decimal.NewFromInt(1000), decimal.NewFromInt(1000)},
			Paid:       [2]decimal.Decimal{decimal.NewFromInt(880), decimal.NewFromInt(1120)},
		}
		msg, err := r.Reminder(rem)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"In March 2026", "Ada to pay $120.00", "Total amount: $2,000.00", "Bob paid: $1,120.00", "Ada's part"} {
			if !strings.Contains(msg.HTML, want) {
				t.Errorf("reminder lacks %q:\n%s", want, msg.HTML)
			}
		}
		if msg.Kind != amqp.KindBalanceReminder || msg.Subject != rem.Subject {
			t.Errorf("msg = %+v", msg)
		}
	})

	t.Run("all paid", func(t *testing.T) {
		msg, err := r.Reminder(&analytics.Reminder{Label: "May 2026", AllPaid: true, Headline: "All Paid"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(msg.HTML, "<strong>All Paid</strong>") {
			t.Errorf("html = %s", msg.HTML)
		}
	})

	t.Run("insights with fallback", func(t *testing.T) {
		rep := &analytics.MonthlyReport{
			Subject: "Monthly Expense Insights: Sep 2026",
			Month:   9,
			Year:    2026,
			Current: core.MonthStats{
				Total:        decimal.NewFromInt(1500),
				TopCategory:  "Housing",
				ByCategory:   []core.CategoryAmount{{Name: "Housing", Amount: decimal.NewFromInt(1200)}},
				ExpenseCount: 3,
			},
			VsYearAgo: &analytics.Change{Difference: decimal.NewFromInt(-100), Percent: decimal.NewFromFloat(-6.3)},
			Insights:  []string{"Great news!"},
		}
		msg, err := r.Insights(rep)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"September 2026", "$1,500.00", "-$100.00 (-6.3%)", "<li>Great news!</li>"} {
			if !strings.Contains(msg.HTML, want) {
				t.Errorf("insights lack %q:\n%s", want, msg.HTML)
			}
		}
	})

	t.Run("narrative is not escaped", func(t *testing.T) {
		msg, err := r.Insights(&analytics.MonthlyReport{Month: 1, Year: 2026, Narrative: "<p><b>ok</b></p>"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(msg.HTML, "<p><b>ok</b></p>") {
			t.Errorf("html = %s", msg.HTML)
		}
	})

	t.Run("file ready", func(t *testing.T) {
		msg, err := r.FileReady(amqp.KindNewYear, "Home payments 2027", "https://docs.example.com/x", "", []string{"a@x.com"})
		if err != nil {
			t.Fatal(err)
		}
		if msg.Subject != "Your File Home payments 2027 is ready" || !strings.Contains(msg.HTML, `href="https://docs.example.com/x"`) {
			t.Errorf("msg = %+v", msg)
		}
	})
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer()
	if err := m.Send(context.Background(), Message{To: []string{"a@x.com", "a@x.com"}, Subject: "s"}); err != nil {
		t.Fatal(err)
	}
	if sent := m.Sent(); len(sent) != 1 || len(sent[0].To) != 1 {
		t.Fatalf("sent = %+v", sent)
	}
}
