// Package analytics derives reports from household documents: the yearly
// summary sheet, multi-year history, month statistics, forecasts and the
// data behind the periodic emails.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"homepay/internal/schema"
	"homepay/internal/sheets"
)

// ErrSkipped is returned by report builders when there is nothing to send
// for the requested period.
var ErrSkipped = errors.New("nothing to report")

// Narrator turns a prompt into prose. Implementations return an error when
// no text could be produced; analytics then falls back to built-in insights.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) (string, error)
}

type (
	Analyst struct {
		layout   *schema.Layout
		loc      sheets.Locator
		narrator Narrator
		now      func() time.Time
		fetchers int
	}

	Option func(*Analyst)
)

func WithClock(now func() time.Time) Option {
	return func(a *Analyst) { a.now = now }
}

func WithNarrator(n Narrator) Option {
	return func(a *Analyst) { a.narrator = n }
}

// WithConcurrency bounds how many documents History reads at once.
func WithConcurrency(n int) Option {
	return func(a *Analyst) {
		if n > 0 {
			a.fetchers = n
		}
	}
}

// New returns an Analyst. loc may be nil, in which case only the current
// document is ever read.
func New(layout *schema.Layout, loc sheets.Locator, opts ...Option) *Analyst {
	a := &Analyst{layout: layout, loc: loc, now: time.Now, fetchers: 4}
	for _, o := range opts {
		o(a)
	}
	return a
}

// documentFor returns cur when it is the document of year, otherwise looks
// the year's document up by name.
func (a *Analyst) documentFor(ctx context.Context, cur sheets.Document, year int) (sheets.Document, error) {
	if cur != nil {
		if y, err := sheets.DocumentYear(cur.Name()); err == nil && y == year {
			return cur, nil
		}
	}
	if a.loc == nil {
		return nil, fmt.Errorf("%w: %s", sheets.ErrNotFound, a.layout.DocumentName(year))
	}
	return a.loc.Find(ctx, a.layout.DocumentName(year))
}

// optionalDocument is documentFor with "not found" mapped to nil.
func (a *Analyst) optionalDocument(ctx context.Context, cur sheets.Document, year int) (sheets.Document, error) {
	doc, err := a.documentFor(ctx, cur, year)
	if errors.Is(err, sheets.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

func (a *Analyst) narrate(ctx context.Context, prompt string) string {
	if a.narrator == nil {
		return ""
	}
	text, err := a.narrator.Narrate(ctx, prompt)
	if err != nil {
		slog.WarnContext(ctx, "Narration unavailable, using built-in insights", "error", err)
		return ""
	}
	return text
}

func documentYear(doc sheets.Document) (int, error) {
	y, err := sheets.DocumentYear(doc.Name())
	if err != nil {
		return 0, fmt.Errorf("document %q: %w", doc.Name(), err)
	}
	return y, nil
}
