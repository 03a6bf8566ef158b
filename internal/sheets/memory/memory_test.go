package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"homepay/internal/sheets"
)

func TestMemoryStoreSetAndGetRange(t *testing.T) {
	ctx := context.Background()
	s := New("Home payments 2025")
	if err := s.SetRange(ctx, sheets.Month(3), 3, 1, [][]string{{"Utilities", "Electricity", "", "120.00"}}); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	got, err := s.GetRange(ctx, sheets.Month(3), 3, 1, 2, 4)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 4 {
		t.Fatalf("unexpected shape %dx%d", len(got), len(got[0]))
	}
	if got[0][1] != "Electricity" || got[0][3] != "120.00" || got[1][0] != "" {
		t.Fatalf("unexpected values %v", got)
	}
	if err := s.Clear(ctx, sheets.Month(3), 3, 1, 1, 2); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if v, _ := s.Get(ctx, sheets.Month(3), 3, 2); v != "" {
		t.Fatalf("expected cleared cell, got %q", v)
	}
	if v, _ := s.Get(ctx, sheets.Month(3), 3, 4); v != "120.00" {
		t.Fatalf("clear touched an outside cell: %q", v)
	}
}

func TestMemoryStoreRejectsBadCoordinates(t *testing.T) {
	s := New("x")
	if _, err := s.Get(context.Background(), sheets.Dashboard, 0, 1); !errors.Is(err, sheets.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestMemoryStoreTitlesFollowYear(t *testing.T) {
	s := New("Home payments 2025")
	title, _ := s.SheetTitle(context.Background(), sheets.Month(1))
	if title != "Jan 2025" {
		t.Fatalf("title = %q", title)
	}
}

func TestNewFromFileSeeds(t *testing.T) {
	dir := t.TempDir()
	seed := "# dashboard names\n0,2,2,Alex\n0,2,3,Sam\n\n4,64,2,-45.00\n"
	path := filepath.Join(dir, "seed.csv")
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromFile("Home payments 2025", path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	ctx := context.Background()
	if v, _ := s.Get(ctx, sheets.Dashboard, 2, 3); v != "Sam" {
		t.Fatalf("dashboard name = %q", v)
	}
	if v, _ := s.Get(ctx, sheets.Month(4), 64, 2); v != "-45.00" {
		t.Fatalf("balance = %q", v)
	}
}

func TestLocatorCopyIsIndependent(t *testing.T) {
	ctx := context.Background()
	src := New("Home payments 2025")
	_ = src.Set(ctx, sheets.Month(1), 3, 2, "Rent")
	loc := NewLocator(src)

	if _, err := loc.Find(ctx, "Home payments 2026"); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cp, err := loc.Copy(ctx, src, "Home payments 2026")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	_ = cp.Set(ctx, sheets.Month(1), 3, 2, "Mortgage")
	if v, _ := src.Get(ctx, sheets.Month(1), 3, 2); v != "Rent" {
		t.Fatalf("copy leaked into source: %q", v)
	}
	list, _ := loc.List(ctx, "Home payments")
	if len(list) != 2 || list[0].Name != "Home payments 2025" {
		t.Fatalf("List = %+v", list)
	}
}
