package xlsx

import (
	"context"
	"errors"
	"strings"
	"testing"

	"homepay/internal/sheets"
)

func newDir(t *testing.T) (*Dir, *Workbook) {
	t.Helper()
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	w, err := d.Create(context.Background(), "Home payments 2026")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return d, w
}

func TestCreateTitlesSheets(t *testing.T) {
	ctx := context.Background()
	_, w := newDir(t)
	for _, tc := range []struct {
		sheet sheets.SheetID
		want  string
	}{
		{sheets.Dashboard, sheets.SheetTitle(sheets.Dashboard, 2026)},
		{sheets.Month(3), sheets.SheetTitle(sheets.Month(3), 2026)},
		{sheets.Summary, sheets.SheetTitle(sheets.Summary, 2026)},
	} {
		got, err := w.SheetTitle(ctx, tc.sheet)
		if err != nil {
			t.Fatalf("SheetTitle(%d): %v", tc.sheet, err)
		}
		if got != tc.want {
			t.Errorf("SheetTitle(%d) = %q, want %q", tc.sheet, got, tc.want)
		}
	}
	if _, err := w.SheetTitle(ctx, 14); !errors.Is(err, sheets.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestWorkbookValues(t *testing.T) {
	ctx := context.Background()
	_, w := newDir(t)
	jan := sheets.Month(1)

	if err := w.SetRange(ctx, jan, 3, 1, [][]string{{"Housing", "Rent", "", "1500.5"}}); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if err := w.Set(ctx, jan, 3, 5, "=D3*2"); err != nil {
		t.Fatalf("Set formula: %v", err)
	}
	got, err := w.GetRange(ctx, jan, 3, 1, 1, 5)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	want := []string{"Housing", "Rent", "", "1500.5", "3001"}
	for i := range want {
		if got[0][i] != want[i] {
			t.Errorf("col %d = %q, want %q", i+1, got[0][i], want[i])
		}
	}

	if err := w.Clear(ctx, jan, 3, 1, 1, 2); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if v, _ := w.Get(ctx, jan, 3, 2); v != "" {
		t.Errorf("cleared cell = %q", v)
	}
	if v, _ := w.Get(ctx, jan, 3, 4); v != "1500.5" {
		t.Errorf("cell outside the cleared range = %q", v)
	}

	if err := sheets.WriteCells(ctx, w, []sheets.Cell{{Sheet: jan, Row: 4, Col: 1, Value: "Food"}, {Sheet: 2, Row: 4, Col: 1, Value: "Food"}}); err != nil {
		t.Fatalf("WriteCells: %v", err)
	}
	if v, _ := w.Get(ctx, 2, 4, 1); v != "Food" {
		t.Errorf("batched cell = %q", v)
	}
	if _, err := w.GetRange(ctx, jan, 0, 1, 1, 1); !errors.Is(err, sheets.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestWorkbookPresentation(t *testing.T) {
	ctx := context.Background()
	_, w := newDir(t)
	jan := sheets.Month(1)

	if err := w.SetNote(ctx, jan, 2, 6, "Carryover amount"); err != nil {
		t.Fatalf("SetNote: %v", err)
	}
	if n, _ := w.Note(jan, 2, 6); n != "Carryover amount" {
		t.Errorf("Note = %q", n)
	}
	if err := w.SetBackground(ctx, jan, 3, 1, 48, 14, "#FFFFFF"); err != nil {
		t.Fatalf("SetBackground: %v", err)
	}
	if err := w.SetValidationList(ctx, jan, 3, 1, 48, 1, []string{"Housing", "Food"}); err != nil {
		t.Fatalf("SetValidationList: %v", err)
	}
	if err := w.RenameSheet(ctx, sheets.Dashboard, "Dashboard 2027"); err != nil {
		t.Fatalf("RenameSheet: %v", err)
	}
	if title, _ := w.SheetTitle(ctx, sheets.Dashboard); title != "Dashboard 2027" {
		t.Errorf("title = %q", title)
	}
}

func TestDirLocator(t *testing.T) {
	ctx := context.Background()
	d, w := newDir(t)
	if err := w.Set(ctx, sheets.Dashboard, 2, 2, "Ada"); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Find(ctx, "Home payments 2025"); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	found, err := d.Find(ctx, "Home payments 2026")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found != sheets.Document(w) {
		t.Error("Find should return the open workbook")
	}

	cp, err := d.Copy(ctx, w, "Home payments 2027")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if v, _ := cp.Get(ctx, sheets.Dashboard, 2, 2); v != "Ada" {
		t.Errorf("copied cell = %q", v)
	}
	if _, err := d.Copy(ctx, w, "Home payments 2027"); err == nil {
		t.Error("copy onto an existing workbook should fail")
	}

	list, err := d.List(ctx, "Home payments")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Home payments 2026" || list[1].Name != "Home payments 2027" {
		t.Fatalf("List = %+v", list)
	}

	url, err := d.Upload(ctx, "receipt.pdf", "application/pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "receipt.pdf") {
		t.Errorf("url = %q", url)
	}
}
