package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLayoutIsValid(t *testing.T) {
	l := Default()
	if err := l.Validate(); err != nil {
		t.Fatalf("default layout invalid: %v", err)
	}
	if got := l.Slots(); got != 48 {
		t.Fatalf("Slots() = %d, want 48", got)
	}
}

func TestPartyAccessors(t *testing.T) {
	l := Default()
	tests := []struct {
		party                                      Party
		balance, fundLeft, fundPaid, transfer, cov int
	}{
		{Party1, 64, 70, 69, 14, 6},
		{Party2, 63, 67, 66, 13, 5},
	}
	for _, tt := range tests {
		t.Run(tt.party.String(), func(t *testing.T) {
			if got := l.BalanceRow(tt.party); got != tt.balance {
				t.Errorf("BalanceRow = %d, want %d", got, tt.balance)
			}
			if got := l.FundLeftRow(tt.party); got != tt.fundLeft {
				t.Errorf("FundLeftRow = %d, want %d", got, tt.fundLeft)
			}
			if got := l.FundPaidRow(tt.party); got != tt.fundPaid {
				t.Errorf("FundPaidRow = %d, want %d", got, tt.fundPaid)
			}
			if got := l.TransferCol(tt.party); got != tt.transfer {
				t.Errorf("TransferCol = %d, want %d", got, tt.transfer)
			}
			if got := l.CarryOverCol(tt.party); got != tt.cov {
				t.Errorf("CarryOverCol = %d, want %d", got, tt.cov)
			}
		})
	}
	if Party1.Other() != Party2 || Party2.Other() != Party1 {
		t.Fatal("Other() should swap parties")
	}
}

func TestValidateRejectsBrokenLayouts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Layout)
		want   string
	}{
		{"rows inverted", func(l *Layout) { l.Month.FirstRow = 60 }, "after month.last_row"},
		{"duplicate column", func(l *Layout) { l.Month.PaidCol = l.Month.AmountCol }, "share column"},
		{"scan into aggregates", func(l *Layout) { l.PaymentScan = 60 }, "inside the aggregate block"},
		{"empty prefix", func(l *Layout) { l.FilePrefix = " " }, "file_prefix"},
		{"discovery range", func(l *Layout) { l.DiscoveryMonths = 13 }, "discovery_months"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Default()
			tt.mutate(l)
			err := l.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidLayout) {
				t.Errorf("error should wrap ErrInvalidLayout: %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	content := "file_prefix: Casa\nthreshold: 2.5\nmonth:\n  last_row: 40\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.FilePrefix != "Casa" || l.Threshold != 2.5 || l.Month.LastRow != 40 {
		t.Fatalf("overrides not applied: %+v", l)
	}
	if l.Month.FirstRow != 3 {
		t.Fatalf("untouched keys should keep defaults, FirstRow = %d", l.Month.FirstRow)
	}
	if got := l.DocumentName(2026); got != "Casa 2026" {
		t.Fatalf("DocumentName = %q", got)
	}
}
