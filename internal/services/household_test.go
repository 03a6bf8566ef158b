package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"homepay/internal/core"
	"homepay/internal/log"
	"homepay/internal/notify"
	"homepay/internal/schema"
	"homepay/internal/settlement"
	"homepay/internal/sheets"
	"homepay/internal/sheets/memory"
	"homepay/internal/storage"
)

var april = time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC)

type fakeJournal struct{ entries []storage.JournalEntry }

func (f *fakeJournal) Record(_ context.Context, e storage.JournalEntry) (string, error) {
	f.entries = append(f.entries, e)
	return "id", nil
}

type fakeUploader struct {
	name string
	body []byte
}

func (f *fakeUploader) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	f.name = name
	f.body, _ = io.ReadAll(r)
	return "https://files.example.com/" + name, nil
}

type fixture struct {
	h        *Household
	doc      *memory.Store
	journal  *fakeJournal
	mailer   *notify.LogMailer
	uploader *fakeUploader
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	ctx := context.Background()
	l := schema.Default()
	doc := memory.New("Home payments 2025")
	for _, c := range []sheets.Cell{
		{Sheet: sheets.Dashboard, Row: l.Dashboard.AddressRow, Col: l.Dashboard.AddressCol, Value: "1 Main St"},
		{Sheet: sheets.Dashboard, Row: l.Dashboard.NamesRow, Col: 2, Value: "Alex"},
		{Sheet: sheets.Dashboard, Row: l.Dashboard.NamesRow, Col: 3, Value: "Sam"},
		{Sheet: sheets.Dashboard, Row: l.Dashboard.EmailsRow, Col: 2, Value: "alex@example.com"},
		{Sheet: sheets.Dashboard, Row: l.Dashboard.EmailsRow, Col: 3, Value: "sam@example.com"},
	} {
		if err := doc.Set(ctx, c.Sheet, c.Row, c.Col, c.Value); err != nil {
			t.Fatal(err)
		}
	}
	f := &fixture{doc: doc, journal: &fakeJournal{}, mailer: notify.NewLogMailer(), uploader: &fakeUploader{}}
	n, err := NewNotifier(f.mailer)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	f.h, err = NewHousehold(Deps{
		Layout:   l,
		Document: doc,
		Locator:  memory.NewLocator(doc),
		Uploader: f.uploader,
		Journal:  f.journal,
		Notifier: n,
		Now:      func() time.Time { return now },
		Logger:   log.Discard(),
	})
	if err != nil {
		t.Fatalf("NewHousehold: %v", err)
	}
	return f
}

func TestNewHouseholdRequiresDocument(t *testing.T) {
	if _, err := NewHousehold(Deps{Layout: schema.Default()}); err == nil {
		t.Fatal("expected an error without document and locator")
	}
}

func TestAddExpenseJournalsEveryMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, april)
	exp := core.Expense{
		Description: "Gym",
		Type:        "Health",
		Amount:      core.NewAmount(core.CellValue("30")),
		Mode:        core.CurrentMonthForward,
	}
	results, err := f.h.AddExpense(ctx, exp, core.AlwaysYes)
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if len(results) != 9 {
		t.Fatalf("results = %d, want April through December", len(results))
	}
	if len(f.journal.entries) != 9 {
		t.Fatalf("journal entries = %d", len(f.journal.entries))
	}
	e := f.journal.entries[0]
	if e.Operation != log.OpUpsert || e.Month != 4 || e.Outcome != "ok" || !strings.HasPrefix(e.Detail, "Gym") {
		t.Errorf("first entry = %+v", e)
	}
	if e.Document != "Home payments 2025" {
		t.Errorf("document = %q", e.Document)
	}
}

func TestDeleteExpenseDeclinedIsNotJournaled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, april)
	_ = f.doc.Set(ctx, sheets.Month(5), 3, 2, "Gym")

	if _, err := f.h.DeleteExpense(ctx, "Gym", core.CurrentMonthForward, core.AlwaysNo); !errors.Is(err, core.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if len(f.journal.entries) != 0 {
		t.Fatalf("declined delete journaled: %+v", f.journal.entries)
	}

	if _, err := f.h.DeleteExpense(ctx, "Gym", core.CurrentMonthForward, core.AlwaysYes); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if len(f.journal.entries) != 1 || f.journal.entries[0].Month != 5 {
		t.Fatalf("journal = %+v", f.journal.entries)
	}
}

func seedBalance(t *testing.T, doc *memory.Store, month int, balance1, balance2 string) {
	t.Helper()
	l := schema.Default().Month
	for row, v := range map[int]string{
		l.BalanceParty1Row: balance1, l.BalanceParty2Row: balance2,
		l.TotalAmountRow: "90", l.TotalPaidParty1Row: "45", l.TotalPaidParty2Row: "45",
	} {
		if err := doc.Set(context.Background(), sheets.Month(month), row, l.AggregateCol, v); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSettlePreviousMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, april)
	seedBalance(t, f.doc, 3, "-45.00", "45.00")

	d, err := f.h.PlanSettlement(ctx, SettleRequest{Mode: settlement.FullyPaid, Amount: core.UnsetAmount})
	if err != nil {
		t.Fatalf("PlanSettlement: %v", err)
	}
	if d.State != settlement.NeedsConfirmation || d.Evaluation.Month != 3 {
		t.Fatalf("decision = %+v", d)
	}

	res, err := f.h.Settle(ctx, SettleRequest{Mode: settlement.FullyPaid, Amount: core.UnsetAmount}, core.AlwaysYes)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if res.State != settlement.Applied {
		t.Fatalf("state = %s", res.State)
	}
	l := schema.Default()
	if v, _ := f.doc.Get(ctx, sheets.Month(3), l.Month.PaymentRow, l.TransferCol(schema.Party1)); v != "45.00" {
		t.Fatalf("payment slot = %q", v)
	}
	if len(f.journal.entries) != 1 || f.journal.entries[0].Operation != log.OpSettle {
		t.Fatalf("journal = %+v", f.journal.entries)
	}
}

func TestSettleUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("previous month in January", func(t *testing.T) {
		f := newFixture(t, time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC))
		var ve *core.ValidationError
		if _, err := f.h.Settle(ctx, SettleRequest{Mode: settlement.CarryOver}, core.AlwaysYes); !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("fund without funds", func(t *testing.T) {
		f := newFixture(t, april)
		var ve *core.ValidationError
		req := SettleRequest{Mode: settlement.FromInitialBalance, Amount: core.NewAmount(core.CellValue("10"))}
		if _, err := f.h.Settle(ctx, req, core.AlwaysYes); !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestCleanAsksFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, april)
	_ = f.doc.Set(ctx, sheets.Month(6), 3, 2, "Gym")

	if _, err := f.h.Clean(ctx, 0, core.AlwaysNo); !errors.Is(err, core.ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	n, err := f.h.Clean(ctx, 0, core.AlwaysYes)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if n != 8 {
		t.Fatalf("cleaned %d months, want May through December", n)
	}
	if v, _ := f.doc.Get(ctx, sheets.Month(6), 3, 2); v != "" {
		t.Fatalf("June not cleaned: %q", v)
	}
}

func TestBalanceReminderSendsEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, april)
	for col, v := range map[int]string{4: "2000", 5: "800", 6: "1200", 11: "-600", 12: "600"} {
		_ = f.doc.Set(ctx, sheets.Dashboard, 9, col, v)
	}
	r, err := f.h.BalanceReminder(ctx)
	if err != nil {
		t.Fatalf("BalanceReminder: %v", err)
	}
	sent := f.mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages", len(sent))
	}
	if sent[0].Subject != r.Subject || len(sent[0].To) != 2 {
		t.Errorf("message = %+v", sent[0])
	}
	if !strings.Contains(sent[0].HTML, "Alex to pay") {
		t.Errorf("body misses the headline: %s", sent[0].HTML)
	}
}

func TestTaxReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("declined before December", func(t *testing.T) {
		f := newFixture(t, april)
		if _, err := f.h.TaxReceipt(ctx, core.AlwaysNo); !errors.Is(err, core.ErrDeclined) {
			t.Fatalf("expected ErrDeclined, got %v", err)
		}
	})

	t.Run("past year document", func(t *testing.T) {
		f := newFixture(t, time.Date(2026, time.January, 3, 9, 0, 0, 0, time.UTC))
		_ = f.doc.SetRange(ctx, sheets.Month(2), 3, 1, [][]string{{"Housing", "Rent", "", "1500"}})

		res, err := f.h.TaxReceipt(ctx, core.AlwaysNo)
		if err != nil {
			t.Fatalf("TaxReceipt: %v", err)
		}
		if res.Receipt.Name != "Home payments 2025 Tax Receipt January-03-2026" {
			t.Errorf("name = %q", res.Receipt.Name)
		}
		if res.Receipt.Address != "1 Main St" {
			t.Errorf("address = %q", res.Receipt.Address)
		}
		if !bytes.HasPrefix(f.uploader.body, []byte("%PDF")) || f.uploader.name != res.Receipt.FileName() {
			t.Errorf("upload = %q (%d bytes)", f.uploader.name, len(f.uploader.body))
		}
		sent := f.mailer.Sent()
		if len(sent) != 1 || sent[0].Subject != "Your File "+res.Receipt.Name+" is ready" {
			t.Fatalf("sent = %+v", sent)
		}
		if !strings.Contains(sent[0].HTML, "https://files.example.com/") {
			t.Errorf("notice misses the link %s", res.URL)
		}
	})
}
