// Package google backs household documents with Google Sheets and finds
// them through Google Drive.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	gsheet "google.golang.org/api/sheets/v4"

	"homepay/internal/sheets"
)

const (
	userEntered = "USER_ENTERED"
	// Reads take raw numbers so display formats such as "#,##0" never leak
	// into parsing; dates stay as displayed.
	unformattedValue = "UNFORMATTED_VALUE"
	formattedString  = "FORMATTED_STRING"
)

// Grid is one spreadsheet. Sheet ids map to tab positions: the first tab is
// the dashboard, the next twelve are the months and the fourteenth is the
// summary.
type Grid struct {
	svc  *gsheet.Service
	id   string
	name string

	mu   sync.Mutex
	tabs []*gsheet.SheetProperties
}

func NewGrid(svc *gsheet.Service, id, name string) *Grid {
	return &Grid{svc: svc, id: id, name: name}
}

func (g *Grid) ID() string   { return g.id }
func (g *Grid) Name() string { return g.name }
func (g *Grid) URL() string  { return "https://docs.google.com/spreadsheets/d/" + g.id + "/edit" }

// tab resolves sheet to its properties, loading the tab list once.
func (g *Grid) tab(ctx context.Context, sheet sheets.SheetID) (*gsheet.SheetProperties, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tabs == nil {
		ss, err := g.svc.Spreadsheets.Get(g.id).Fields("sheets.properties").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("read tabs of %s: %w", g.name, err)
		}
		for _, s := range ss.Sheets {
			g.tabs = append(g.tabs, s.Properties)
		}
	}
	return tabAt(g.tabs, sheet)
}

func (g *Grid) rangeOf(ctx context.Context, sheet sheets.SheetID, row, col, height, width int) (string, error) {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return "", err
	}
	t, err := g.tab(ctx, sheet)
	if err != nil {
		return "", err
	}
	return a1(t.Title, row, col, height, width), nil
}

func (g *Grid) Get(ctx context.Context, sheet sheets.SheetID, row, col int) (string, error) {
	v, err := g.GetRange(ctx, sheet, row, col, 1, 1)
	if err != nil {
		return "", err
	}
	return v[0][0], nil
}

func (g *Grid) Set(ctx context.Context, sheet sheets.SheetID, row, col int, value string) error {
	return g.SetRange(ctx, sheet, row, col, [][]string{{value}})
}

func (g *Grid) GetRange(ctx context.Context, sheet sheets.SheetID, row, col, height, width int) ([][]string, error) {
	if height == 0 || width == 0 {
		return sheets.Blank(height, width), nil
	}
	rng, err := g.rangeOf(ctx, sheet, row, col, height, width)
	if err != nil {
		return nil, err
	}
	resp, err := g.svc.Spreadsheets.Values.Get(g.id, rng).
		ValueRenderOption(unformattedValue).
		DateTimeRenderOption(formattedString).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return toMatrix(resp.Values, height, width), nil
}

func (g *Grid) SetRange(ctx context.Context, sheet sheets.SheetID, row, col int, values [][]string) error {
	width := 0
	for _, line := range values {
		width = max(width, len(line))
	}
	if len(values) == 0 || width == 0 {
		return nil
	}
	rng, err := g.rangeOf(ctx, sheet, row, col, len(values), width)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: fromMatrix(values)}
	if _, err := g.svc.Spreadsheets.Values.Update(g.id, rng, vr).ValueInputOption(userEntered).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	return nil
}

// SetCells implements sheets.BatchWriter with one values:batchUpdate call.
func (g *Grid) SetCells(ctx context.Context, cells []sheets.Cell) error {
	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: userEntered}
	for _, c := range cells {
		rng, err := g.rangeOf(ctx, c.Sheet, c.Row, c.Col, 1, 1)
		if err != nil {
			return err
		}
		req.Data = append(req.Data, &gsheet.ValueRange{Range: rng, Values: [][]interface{}{{c.Value}}})
	}
	if len(req.Data) == 0 {
		return nil
	}
	resp, err := g.svc.Spreadsheets.Values.BatchUpdate(g.id, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch write %d cells: %w", len(cells), err)
	}
	slog.DebugContext(ctx, "Cells written", "document", g.name, "cells", resp.TotalUpdatedCells)
	return nil
}

func (g *Grid) Clear(ctx context.Context, sheet sheets.SheetID, row, col, height, width int) error {
	if height == 0 || width == 0 {
		return nil
	}
	rng, err := g.rangeOf(ctx, sheet, row, col, height, width)
	if err != nil {
		return err
	}
	if _, err := g.svc.Spreadsheets.Values.Clear(g.id, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (g *Grid) batch(ctx context.Context, what string, reqs ...*gsheet.Request) error {
	_, err := g.svc.Spreadsheets.BatchUpdate(g.id, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (g *Grid) SetNote(ctx context.Context, sheet sheets.SheetID, row, col int, note string) error {
	t, err := g.tab(ctx, sheet)
	if err != nil {
		return err
	}
	return g.batch(ctx, "annotate "+sheets.A1(row, col), noteRequest(t.SheetId, row, col, note))
}

func (g *Grid) SetBackground(ctx context.Context, sheet sheets.SheetID, row, col, height, width int, color string) error {
	t, err := g.tab(ctx, sheet)
	if err != nil {
		return err
	}
	req, err := backgroundRequest(t.SheetId, row, col, height, width, color)
	if err != nil {
		return err
	}
	return g.batch(ctx, "color "+sheets.A1Range(row, col, height, width), req)
}

func (g *Grid) SetValidationList(ctx context.Context, sheet sheets.SheetID, row, col, height, width int, values []string) error {
	t, err := g.tab(ctx, sheet)
	if err != nil {
		return err
	}
	return g.batch(ctx, "validate "+sheets.A1Range(row, col, height, width), validationRequest(t.SheetId, row, col, height, width, values))
}

func (g *Grid) SheetTitle(ctx context.Context, sheet sheets.SheetID) (string, error) {
	t, err := g.tab(ctx, sheet)
	if err != nil {
		return "", err
	}
	return t.Title, nil
}

func (g *Grid) RenameSheet(ctx context.Context, sheet sheets.SheetID, title string) error {
	t, err := g.tab(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.Request{UpdateSheetProperties: &gsheet.UpdateSheetPropertiesRequest{
		Properties: &gsheet.SheetProperties{SheetId: t.SheetId, Title: title},
		Fields:     "title",
	}}
	if err := g.batch(ctx, "rename "+t.Title, req); err != nil {
		return err
	}
	g.mu.Lock()
	t.Title = title
	g.mu.Unlock()
	return nil
}

var (
	_ sheets.Document    = (*Grid)(nil)
	_ sheets.Formatter   = (*Grid)(nil)
	_ sheets.Renamer     = (*Grid)(nil)
	_ sheets.BatchWriter = (*Grid)(nil)
)
