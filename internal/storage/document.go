package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"homepay/internal/sheets"
)

// Document is a household document stored as one row per touched cell.
type Document struct {
	repo *SQLiteRepository
	id   string
	name string
}

func (d *Document) ID() string   { return d.id }
func (d *Document) Name() string { return d.name }
func (d *Document) URL() string  { return "sqlite://" + d.id }

func (d *Document) Get(ctx context.Context, sheet sheets.SheetID, row, col int) (string, error) {
	v, err := d.GetRange(ctx, sheet, row, col, 1, 1)
	if err != nil {
		return "", err
	}
	return v[0][0], nil
}

func (d *Document) Set(ctx context.Context, sheet sheets.SheetID, row, col int, value string) error {
	if err := sheets.CheckBounds(row, col, 1, 1); err != nil {
		return err
	}
	if err := d.repo.queries.UpsertValue(ctx, d.id, int(sheet), row, col, value); err != nil {
		return fmt.Errorf("write %s: %w", sheets.A1(row, col), err)
	}
	return nil
}

func (d *Document) GetRange(ctx context.Context, sheet sheets.SheetID, row, col, height, width int) ([][]string, error) {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return nil, err
	}
	cells, err := d.repo.queries.GetCellsInRange(ctx, d.id, int(sheet), row, col, row+height-1, col+width-1)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheets.A1Range(row, col, height, width), err)
	}
	out := sheets.Blank(height, width)
	for _, c := range cells {
		out[c.Row-row][c.Col-col] = c.Value
	}
	return out, nil
}

func (d *Document) SetRange(ctx context.Context, sheet sheets.SheetID, row, col int, values [][]string) error {
	if err := sheets.CheckBounds(row, col, len(values), 0); err != nil {
		return err
	}
	return d.repo.inTx(ctx, func(q *Queries) error {
		for r, line := range values {
			for c, v := range line {
				if err := q.UpsertValue(ctx, d.id, int(sheet), row+r, col+c, v); err != nil {
					return fmt.Errorf("write %s: %w", sheets.A1(row+r, col+c), err)
				}
			}
		}
		return nil
	})
}

// SetCells implements sheets.BatchWriter in a single transaction.
func (d *Document) SetCells(ctx context.Context, cells []sheets.Cell) error {
	for _, c := range cells {
		if err := sheets.CheckBounds(c.Row, c.Col, 1, 1); err != nil {
			return err
		}
	}
	return d.repo.inTx(ctx, func(q *Queries) error {
		for _, c := range cells {
			if err := q.UpsertValue(ctx, d.id, int(c.Sheet), c.Row, c.Col, c.Value); err != nil {
				return fmt.Errorf("write %s: %w", sheets.A1(c.Row, c.Col), err)
			}
		}
		return nil
	})
}

func (d *Document) Clear(ctx context.Context, sheet sheets.SheetID, row, col, height, width int) error {
	if err := sheets.CheckBounds(row, col, height, width); err != nil {
		return err
	}
	if err := d.repo.queries.ClearValues(ctx, d.id, int(sheet), row, col, row+height-1, col+width-1); err != nil {
		return fmt.Errorf("clear %s: %w", sheets.A1Range(row, col, height, width), err)
	}
	return nil
}

func (d *Document) SetNote(ctx context.Context, sheet sheets.SheetID, row, col int, note string) error {
	if err := d.repo.queries.UpsertNote(ctx, d.id, int(sheet), row, col, note); err != nil {
		return fmt.Errorf("annotate %s: %w", sheets.A1(row, col), err)
	}
	return nil
}

// Note returns the note attached to a cell.
func (d *Document) Note(ctx context.Context, sheet sheets.SheetID, row, col int) (string, error) {
	cells, err := d.repo.queries.GetCellsInRange(ctx, d.id, int(sheet), row, col, row, col)
	if err != nil || len(cells) == 0 {
		return "", err
	}
	return cells[0].Note, nil
}

func (d *Document) SetBackground(ctx context.Context, sheet sheets.SheetID, row, col, height, width int, color string) error {
	return d.repo.inTx(ctx, func(q *Queries) error {
		for r := 0; r < height; r++ {
			for c := 0; c < width; c++ {
				if err := q.UpsertBackground(ctx, d.id, int(sheet), row+r, col+c, color); err != nil {
					return fmt.Errorf("color %s: %w", sheets.A1(row+r, col+c), err)
				}
			}
		}
		return nil
	})
}

func (d *Document) SetValidationList(ctx context.Context, sheet sheets.SheetID, row, col, height, width int, values []string) error {
	list, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode validation list: %w", err)
	}
	return d.repo.inTx(ctx, func(q *Queries) error {
		for r := 0; r < height; r++ {
			for c := 0; c < width; c++ {
				if err := q.UpsertValidation(ctx, d.id, int(sheet), row+r, col+c, string(list)); err != nil {
					return fmt.Errorf("validate %s: %w", sheets.A1(row+r, col+c), err)
				}
			}
		}
		return nil
	})
}

// ValidationList returns the allowed values attached to a cell.
func (d *Document) ValidationList(ctx context.Context, sheet sheets.SheetID, row, col int) ([]string, error) {
	cells, err := d.repo.queries.GetCellsInRange(ctx, d.id, int(sheet), row, col, row, col)
	if err != nil || len(cells) == 0 || cells[0].Validation == "" {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(cells[0].Validation), &out); err != nil {
		return nil, fmt.Errorf("decode validation list: %w", err)
	}
	return out, nil
}

func (d *Document) SheetTitle(ctx context.Context, sheet sheets.SheetID) (string, error) {
	title, err := d.repo.queries.GetTitle(ctx, d.id, int(sheet))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read title of sheet %d: %w", sheet, err)
	}
	return title, nil
}

func (d *Document) RenameSheet(ctx context.Context, sheet sheets.SheetID, title string) error {
	if err := d.repo.queries.UpsertTitle(ctx, d.id, int(sheet), title); err != nil {
		return fmt.Errorf("rename sheet %d: %w", sheet, err)
	}
	return nil
}

var (
	_ sheets.Document    = (*Document)(nil)
	_ sheets.Formatter   = (*Document)(nil)
	_ sheets.Renamer     = (*Document)(nil)
	_ sheets.BatchWriter = (*Document)(nil)
)
