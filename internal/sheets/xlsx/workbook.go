// Package xlsx keeps household documents as .xlsx workbooks in a
// directory, for offline use and for exports.
package xlsx

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"homepay/internal/sheets"
)

// Workbook is a single .xlsx file. Tabs map to sheet ids by position like
// the hosted spreadsheets. Every mutation is saved before returning.
type Workbook struct {
	mu   sync.Mutex
	f    *excelize.File
	path string
	name string
}

func open(path, name string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{f: f, path: path, name: name}, nil
}

// create writes a new workbook with a dashboard, twelve months and a
// summary tab titled for the year in name.
func create(path, name string) (*Workbook, error) {
	year, err := sheets.DocumentYear(name)
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, sheets.SheetTitle(sheets.Dashboard, year)); err != nil {
		return nil, fmt.Errorf("name dashboard: %w", err)
	}
	for s := sheets.Month(1); s <= sheets.Summary; s++ {
		if _, err := f.NewSheet(sheets.SheetTitle(s, year)); err != nil {
			return nil, fmt.Errorf("add sheet %d: %w", s, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("save workbook %s: %w", path, err)
	}
	return &Workbook{f: f, path: path, name: name}, nil
}

func (w *Workbook) ID() string   { return w.path }
func (w *Workbook) Name() string { return w.name }
func (w *Workbook) URL() string  { return "file://" + w.path }

// Close releases the workbook.
func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *Workbook) title(sheet sheets.SheetID) (string, error) {
	list := w.f.GetSheetList()
	i := int(sheet)
	if i < 0 || i >= len(list) {
		return "", fmt.Errorf("%w: sheet %d of %d tabs", sheets.ErrOutOfBounds, i, len(list))
	}
	return list[i], nil
}

func cellName(row, col int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// read returns the displayed value; formulas are evaluated.
func (w *Workbook) read(tab, cell string) (string, error) {
	formula, err := w.f.GetCellFormula(tab, cell)
	if err != nil {
		return "", err
	}
	if formula == "" {
		return w.f.GetCellValue(tab, cell)
	}
	if v, err := w.f.CalcCellValue(tab, cell); err == nil {
		return v, nil
	}
	if v, err := w.f.GetCellValue(tab, cell); err == nil && v != "" {
		return v, nil
	}
	return "=" + formula, nil
}

func (w *Workbook) write(tab, cell, value string) error {
	if strings.HasPrefix(value, "=") {
		return w.f.SetCellFormula(tab, cell, strings.TrimPrefix(value, "="))
	}
	if err := w.f.SetCellFormula(tab, cell, ""); err != nil {
		return err
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return w.f.SetCellValue(tab, cell, n)
	}
	return w.f.SetCellValue(tab, cell, value)
}

func (w *Workbook) save() error {
	if err := w.f.Save(); err != nil {
		return fmt.Errorf("save workbook %s: %w", w.path, err)
	}
	return nil
}

func (w *Workbook) Get(ctx context.Context, sheet sheets.SheetID, row, col int) (string, error) {
	v, err := w.GetRange(ctx, sheet, row, col, 1, 1)
	if err != nil {
		return "", err
	}
	return v[0][0], nil
}

func (w *Workbook) Set(ctx context.Context, sheet sheets.SheetID, row, col int, value string) error {
	return w.SetRange(ctx, sheet, row, col, [][]string{{value}})
}

func (w *Workbook) GetRange(_ context.Context, sheet sheets.SheetID, row, col, height, width int) ([][]string, error) {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return nil, err
	}
	out := sheets.Blank(height, width)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			if out[r][c], err = w.read(tab, cellName(row+r, col+c)); err != nil {
				return nil, fmt.Errorf("read %s!%s: %w", tab, cellName(row+r, col+c), err)
			}
		}
	}
	return out, nil
}

func (w *Workbook) SetRange(_ context.Context, sheet sheets.SheetID, row, col int, values [][]string) error {
	if err := sheets.CheckBounds(row, col, len(values), 0); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return err
	}
	for r, line := range values {
		for c, v := range line {
			if err := w.write(tab, cellName(row+r, col+c), v); err != nil {
				return fmt.Errorf("write %s!%s: %w", tab, cellName(row+r, col+c), err)
			}
		}
	}
	return w.save()
}

// SetCells implements sheets.BatchWriter with a single save.
func (w *Workbook) SetCells(_ context.Context, cells []sheets.Cell) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range cells {
		if err := sheets.CheckBounds(c.Row, c.Col, 1, 1); err != nil {
			return err
		}
		tab, err := w.title(c.Sheet)
		if err != nil {
			return err
		}
		if err := w.write(tab, cellName(c.Row, c.Col), c.Value); err != nil {
			return fmt.Errorf("write %s!%s: %w", tab, cellName(c.Row, c.Col), err)
		}
	}
	return w.save()
}

func (w *Workbook) Clear(_ context.Context, sheet sheets.SheetID, row, col, height, width int) error {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return err
	}
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			if err := w.write(tab, cellName(row+r, col+c), ""); err != nil {
				return fmt.Errorf("clear %s!%s: %w", tab, cellName(row+r, col+c), err)
			}
		}
	}
	return w.save()
}

func (w *Workbook) SetNote(_ context.Context, sheet sheets.SheetID, row, col int, note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return err
	}
	cell := cellName(row, col)
	_ = w.f.DeleteComment(tab, cell)
	if note != "" {
		if err := w.f.AddComment(tab, excelize.Comment{Cell: cell, Author: "homepay", Text: note}); err != nil {
			return fmt.Errorf("annotate %s!%s: %w", tab, cell, err)
		}
	}
	return w.save()
}

// Note returns the comment attached to a cell.
func (w *Workbook) Note(sheet sheets.SheetID, row, col int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return "", err
	}
	comments, err := w.f.GetComments(tab)
	if err != nil {
		return "", err
	}
	cell := cellName(row, col)
	for _, c := range comments {
		if c.Cell == cell {
			return c.Text, nil
		}
	}
	return "", nil
}

func (w *Workbook) SetBackground(_ context.Context, sheet sheets.SheetID, row, col, height, width int, color string) error {
	if height == 0 || width == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return err
	}
	style, err := w.f.NewStyle(&excelize.Style{Fill: excelize.Fill{
		Type:    "pattern",
		Pattern: 1,
		Color:   []string{strings.TrimPrefix(color, "#")},
	}})
	if err != nil {
		return fmt.Errorf("background style %s: %w", color, err)
	}
	if err := w.f.SetCellStyle(tab, cellName(row, col), cellName(row+height-1, col+width-1), style); err != nil {
		return fmt.Errorf("color %s: %w", sheets.A1Range(row, col, height, width), err)
	}
	return w.save()
}

func (w *Workbook) SetValidationList(_ context.Context, sheet sheets.SheetID, row, col, height, width int, values []string) error {
	if height == 0 || width == 0 || len(values) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	tab, err := w.title(sheet)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = cellName(row, col) + ":" + cellName(row+height-1, col+width-1)
	if err := dv.SetDropList(values); err != nil {
		return fmt.Errorf("validation list: %w", err)
	}
	if err := w.f.AddDataValidation(tab, dv); err != nil {
		return fmt.Errorf("validate %s: %w", dv.Sqref, err)
	}
	return w.save()
}

func (w *Workbook) SheetTitle(_ context.Context, sheet sheets.SheetID) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title(sheet)
}

func (w *Workbook) RenameSheet(_ context.Context, sheet sheets.SheetID, title string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	old, err := w.title(sheet)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetName(old, title); err != nil {
		return fmt.Errorf("rename %s: %w", old, err)
	}
	return w.save()
}

var (
	_ sheets.Document    = (*Workbook)(nil)
	_ sheets.Formatter   = (*Workbook)(nil)
	_ sheets.Renamer     = (*Workbook)(nil)
	_ sheets.BatchWriter = (*Workbook)(nil)
)
