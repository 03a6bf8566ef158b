package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/analytics"
	"homepay/internal/core"
)

func table() *analytics.SummaryTable {
	months := [12][]core.ExpenseRow{
		{{Type: "Housing", Description: "Rent", Amount: "1500"}, {Type: "Utilities", Description: "Water", Amount: "40.5"}},
		{{Type: "Housing", Description: "Insurance", Amount: "120"}},
	}
	return analytics.BuildSummary(2025, 12, months)
}

func TestReceiptName(t *testing.T) {
	now := time.Date(2025, time.December, 5, 10, 0, 0, 0, time.UTC)
	if got := ReceiptName("Home payments 2025", now); got != "Home payments 2025 Tax Receipt December-05-2025" {
		t.Fatalf("ReceiptName = %q", got)
	}
}

func TestNewReceipt(t *testing.T) {
	now := time.Date(2025, time.December, 5, 10, 0, 0, 0, time.UTC)
	r := NewReceipt("Home payments 2025", "1 Main St", now, table())
	if len(r.Lines) != 3 {
		t.Fatalf("lines = %d, want totals plus two types", len(r.Lines))
	}
	want := []ReceiptLine{
		{Type: "Total", Amount: "$1,660.50"},
		{Type: "Housing", Description: "Rent, Insurance", Amount: "$1,620.00"},
		{Type: "Utilities", Description: "Water", Amount: "$40.50"},
	}
	for i := range want {
		if r.Lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, r.Lines[i], want[i])
		}
	}
	if r.FileName() != r.Name+".pdf" {
		t.Errorf("FileName = %q", r.FileName())
	}

	pdf, err := r.PDF()
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", pdf[:min(len(pdf), 8)])
	}
}

func TestSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummaryCSV(&buf, table()); err != nil {
		t.Fatalf("WriteSummaryCSV: %v", err)
	}
	header, _, _ := strings.Cut(buf.String(), "\n")
	if header != "Type,Description,Total Amount,Jan,Feb,Mar,Apr,May,Jun,Jul,Aug,Sep,Oct,Nov,Dec" {
		t.Fatalf("header = %q", header)
	}

	recs, err := ReadSummaryCSV(&buf)
	if err != nil {
		t.Fatalf("ReadSummaryCSV: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[1].Type != "Housing" || recs[1].Jan != "1500.00" || recs[1].Feb != "120.00" {
		t.Errorf("housing = %+v", recs[1])
	}
	if got, _ := decimal.NewFromString(recs[0].Total); !got.Equal(decimal.RequireFromString("1660.5")) {
		t.Errorf("total = %s", recs[0].Total)
	}
}
