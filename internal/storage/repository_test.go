package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"homepay/internal/sheets"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "homepay.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestDocumentGrid(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	doc, err := repo.Create(ctx, "Home payments 2026")
	if err != nil {
		t.Fatal(err)
	}

	if err := doc.Set(ctx, sheets.Month(3), 4, 2, "Rent"); err != nil {
		t.Fatal(err)
	}
	if err := doc.SetRange(ctx, sheets.Month(3), 5, 1, [][]string{{"Food", "Groceries"}, {"Car", "Fuel"}}); err != nil {
		t.Fatal(err)
	}
	got, err := doc.GetRange(ctx, sheets.Month(3), 4, 1, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"", "Rent", ""}, {"Food", "Groceries", ""}, {"Car", "Fuel", ""}}
	for r := range want {
		for c := range want[r] {
			if got[r][c] != want[r][c] {
				t.Fatalf("cell (%d,%d) = %q, want %q", r, c, got[r][c], want[r][c])
			}
		}
	}

	if err := doc.SetNote(ctx, sheets.Month(3), 4, 2, "note"); err != nil {
		t.Fatal(err)
	}
	if err := doc.Clear(ctx, sheets.Month(3), 4, 1, 2, 2); err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Get(ctx, sheets.Month(3), 4, 2); v != "" {
		t.Errorf("cleared cell = %q", v)
	}
	if v, _ := doc.Get(ctx, sheets.Month(3), 6, 1); v != "Car" {
		t.Errorf("cell outside the cleared range = %q", v)
	}
	if n, _ := doc.Note(ctx, sheets.Month(3), 4, 2); n != "note" {
		t.Errorf("note = %q, clear should keep it", n)
	}
	if v, _ := doc.Get(ctx, sheets.Month(4), 6, 1); v != "" {
		t.Errorf("other sheet leaked: %q", v)
	}

	if err := doc.SetCells(ctx, []sheets.Cell{{Sheet: sheets.Dashboard, Row: 2, Col: 2, Value: "Ada"}, {Sheet: sheets.Dashboard, Row: 2, Col: 3, Value: "Bob"}}); err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Get(ctx, sheets.Dashboard, 2, 3); v != "Bob" {
		t.Errorf("batched cell = %q", v)
	}

	if _, err := doc.Get(ctx, sheets.Dashboard, 0, 1); !errors.Is(err, sheets.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestDocumentFormatting(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	doc, err := repo.Create(ctx, "Home payments 2026")
	if err != nil {
		t.Fatal(err)
	}
	if title, _ := doc.SheetTitle(ctx, sheets.Month(2)); title != "Feb 2026" {
		t.Errorf("default title = %q", title)
	}
	if err := doc.RenameSheet(ctx, sheets.Month(2), "Feb 2027"); err != nil {
		t.Fatal(err)
	}
	if title, _ := doc.SheetTitle(ctx, sheets.Month(2)); title != "Feb 2027" {
		t.Errorf("renamed title = %q", title)
	}

	if err := doc.SetValidationList(ctx, sheets.Month(1), 3, 1, 2, 1, []string{"Food", "Housing"}); err != nil {
		t.Fatal(err)
	}
	list, err := doc.ValidationList(ctx, sheets.Month(1), 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1] != "Housing" {
		t.Errorf("validation list = %v", list)
	}
	if err := doc.SetBackground(ctx, sheets.Month(1), 3, 4, 1, 1, "#ffffff"); err != nil {
		t.Fatal(err)
	}
}

func TestLocator(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src, err := repo.Create(ctx, "Home payments 2025")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(ctx, "Other 2025"); err != nil {
		t.Fatal(err)
	}
	_ = src.Set(ctx, sheets.Month(12), 3, 2, "Rent")

	cp, err := repo.Copy(ctx, src, "Home payments 2026")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := cp.Get(ctx, sheets.Month(12), 3, 2); v != "Rent" {
		t.Errorf("copied cell = %q", v)
	}
	_ = cp.Set(ctx, sheets.Month(12), 3, 2, "")
	if v, _ := src.Get(ctx, sheets.Month(12), 3, 2); v != "Rent" {
		t.Error("copy shares cells with its source")
	}

	found, err := repo.Find(ctx, "Home payments 2026")
	if err != nil || found.ID() != cp.ID() {
		t.Fatalf("Find = %v, %v", found, err)
	}
	if _, err := repo.Find(ctx, "Home payments 2030"); !errors.Is(err, sheets.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	opened, err := repo.Open(ctx, src.ID())
	if err != nil || opened.Name() != "Home payments 2025" {
		t.Fatalf("Open = %v, %v", opened, err)
	}

	list, err := repo.List(ctx, "Home payments ")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "Home payments 2025" || list[1].Name != "Home payments 2026" {
		t.Errorf("List = %v", list)
	}
	if _, err := repo.Create(ctx, "Home payments 2025"); err == nil {
		t.Error("duplicate document name accepted")
	}
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	for _, op := range []string{"upsert", "settle"} {
		if _, err := repo.Record(ctx, JournalEntry{Document: "Home payments 2026", Operation: op, Month: 3}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repo.Record(ctx, JournalEntry{Document: "Home payments 2025", Operation: "delete"}); err != nil {
		t.Fatal(err)
	}
	entries, err := repo.Recent(ctx, "Home payments 2026", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Operation != "settle" || entries[0].Outcome != "ok" || entries[0].ID == "" {
		t.Errorf("newest entry = %+v", entries[0])
	}
}

func TestOutbox(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	msg := OutboxMessage{ID: "m1", Kind: "balance_reminder", To: []string{"a@example.com", "b@example.com"}, Subject: "s", HTML: "<p/>"}
	if err := repo.Enqueue(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if err := repo.Enqueue(ctx, msg); err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if err := repo.Enqueue(ctx, OutboxMessage{ID: "m2", Kind: "generic", To: []string{"a@example.com"}, Subject: "t"}); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.Pending(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || len(pending[0].To) != 2 || pending[0].To[1] != "b@example.com" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := repo.MarkSent(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := repo.MarkFailed(ctx, "m2", errors.New("smtp down"), 3); err != nil {
			t.Fatal(err)
		}
	}
	pending, _ = repo.Pending(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("pending after delivery = %+v", pending)
	}
	if n, _ := repo.OutboxCount(ctx, "failed"); n != 1 {
		t.Errorf("failed count = %d", n)
	}
	if n, _ := repo.OutboxCount(ctx, "sent"); n != 1 {
		t.Errorf("sent count = %d", n)
	}
}

func TestJobRuns(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	last, err := repo.LastRun(ctx, "balance_reminder")
	if err != nil {
		t.Fatalf("LastRun: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("never-run job reported %v", last)
	}

	at := time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC)
	if err := repo.MarkRun(ctx, "balance_reminder", at, "ok"); err != nil {
		t.Fatalf("MarkRun: %v", err)
	}
	if err := repo.MarkRun(ctx, "balance_reminder", at.AddDate(0, 1, 0), "ok"); err != nil {
		t.Fatalf("MarkRun again: %v", err)
	}
	last, err = repo.LastRun(ctx, "balance_reminder")
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(at.AddDate(0, 1, 0)) {
		t.Fatalf("LastRun = %v, want %v", last, at.AddDate(0, 1, 0))
	}
}
