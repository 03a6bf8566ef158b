package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/internal/log"
	"homepay/internal/report"
	"homepay/internal/rollover"
	"homepay/internal/sheets"
)

// BalanceReminder builds the monthly balance notice for the household's
// document and sends it. analytics.ErrSkipped means nothing was due.
func (h *Household) BalanceReminder(ctx context.Context) (*analytics.Reminder, error) {
	r, err := h.analyst.BalanceReminder(ctx, h.doc)
	if err != nil {
		return nil, err
	}
	if h.notifier != nil {
		if err := h.notifier.Reminder(ctx, r); err != nil {
			return r, err
		}
	}
	h.logger.InfoContext(ctx, "Balance reminder prepared",
		log.FieldDocument, h.doc.Name(), "label", r.Label, "all_paid", r.AllPaid)
	return r, nil
}

// MonthlyInsights reviews the month that just ended and sends the result.
func (h *Household) MonthlyInsights(ctx context.Context) (*analytics.MonthlyReport, error) {
	r, err := h.analyst.MonthlyInsights(ctx)
	if err != nil {
		return nil, err
	}
	if h.notifier != nil {
		if err := h.notifier.Insights(ctx, r); err != nil {
			return r, err
		}
	}
	h.logger.InfoContext(ctx, "Monthly insights prepared",
		log.FieldYear, r.Year, log.FieldMonth, r.Month, "narrated", r.Narrative != "")
	return r, nil
}

// ReceiptResult describes a generated tax receipt.
type ReceiptResult struct {
	Receipt *report.Receipt
	PDF     []byte
	// URL is empty when no uploader is configured.
	URL     string
	History *analytics.HistoryTable
}

// ReceiptQuestion is asked before a receipt is printed while the year is
// not over.
func ReceiptQuestion(year int) string {
	return fmt.Sprintf("You may not have all expenses for %d yet. Continue?", year)
}

// TaxReceipt rebuilds the summary, renders the year-end receipt, uploads it
// next to the document when possible, tells both parties and refreshes the
// history and year comparison.
func (h *Household) TaxReceipt(ctx context.Context, confirm core.Confirmer) (*ReceiptResult, error) {
	now := h.now()
	year := h.year()
	if year >= now.Year() && now.Month() != time.December {
		ok, err := confirm.Confirm(ctx, ReceiptQuestion(year))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, core.ErrDeclined
		}
	}

	summary, err := h.analyst.Summary(ctx, h.doc)
	if err != nil {
		return nil, fmt.Errorf("rebuild summary: %w", err)
	}
	d := h.layout.Dashboard
	address, err := h.doc.Get(ctx, sheets.Dashboard, d.AddressRow, d.AddressCol)
	if err != nil {
		return nil, fmt.Errorf("read address: %w", err)
	}

	res := &ReceiptResult{Receipt: report.NewReceipt(h.doc.Name(), address, now, summary)}
	if res.PDF, err = res.Receipt.PDF(); err != nil {
		return nil, err
	}
	if h.uploader != nil {
		if res.URL, err = h.uploader.Upload(ctx, res.Receipt.FileName(), report.PDFMimeType, bytes.NewReader(res.PDF)); err != nil {
			return nil, fmt.Errorf("upload receipt: %w", err)
		}
	}
	h.record(ctx, "receipt", 0, res.Receipt.Name, nil)

	if h.notifier != nil && res.URL != "" {
		to, err := rollover.Recipients(ctx, h.doc, h.layout)
		if err == nil {
			err = h.notifier.FileReady(ctx, kindTaxReceipt, res.Receipt.Name, res.URL, "", to)
		}
		if err != nil {
			h.logger.WarnContext(ctx, "Receipt notice not sent", log.FieldDocument, h.doc.Name(), log.FieldError, err)
		}
	}

	if res.History, err = h.History(ctx); err != nil {
		h.logger.WarnContext(ctx, "History not refreshed", log.FieldError, err)
	}
	if _, err := h.YearComparison(ctx); err != nil && !errors.Is(err, analytics.ErrSkipped) {
		h.logger.WarnContext(ctx, "Year comparison not refreshed", log.FieldError, err)
	}
	return res, nil
}
