// Package report renders household documents into files: the year-end tax
// receipt PDF and CSV exports of the summary sheet.
package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"homepay/internal/analytics"
	"homepay/internal/core"
)

// PDFMimeType is the content type of rendered receipts.
const PDFMimeType = "application/pdf"

type (
	// ReceiptLine is one summary row as printed on the receipt.
	ReceiptLine struct {
		Type        string
		Description string
		Amount      string
	}

	// Receipt is the content of a year-end tax receipt.
	Receipt struct {
		Name      string
		Document  string
		Address   string
		PrintDate time.Time
		Lines     []ReceiptLine
	}
)

// ReceiptName is "<document> Tax Receipt <Month-dd-yyyy>".
func ReceiptName(document string, now time.Time) string {
	return fmt.Sprintf("%s Tax Receipt %s", document, now.UTC().Format("January-02-2006"))
}

// NewReceipt takes the totals row and every type row of t.
func NewReceipt(document, address string, now time.Time, t *analytics.SummaryTable) *Receipt {
	r := &Receipt{
		Name:      ReceiptName(document, now),
		Document:  document,
		Address:   address,
		PrintDate: now,
	}
	rows := append([]analytics.SummaryRow{t.Totals}, t.Rows...)
	for _, row := range rows {
		r.Lines = append(r.Lines, ReceiptLine{
			Type:        row.Type,
			Description: row.Descriptions,
			Amount:      core.FormatCurrency(row.Total),
		})
	}
	return r
}

// FileName is the receipt's name with a .pdf extension.
func (r *Receipt) FileName() string { return r.Name + ".pdf" }

// WritePDF renders the receipt to w.
func (r *Receipt) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(r.Name, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, r.Document+" Tax Receipt")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "Address: "+r.Address)
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Print Date: %d/%d/%d", r.PrintDate.Day(), int(r.PrintDate.Month()), r.PrintDate.Year()))
	pdf.Ln(12)

	widths := []float64{45, 105, 40}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range []string{"Type", "Description", "Total Amount"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, l := range r.Lines {
		pdf.CellFormat(widths[0], 7, l.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, truncate(pdf, l.Description, widths[1]-2), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, l.Amount, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return nil
}

// PDF returns the rendered receipt.
func (r *Receipt) PDF() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WritePDF(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
