package sheets

import (
	"context"
	"errors"
	"io"
)

// SheetID addresses a sheet inside a household document.
// 0 is the dashboard, 1..12 are the months, 13 is the summary.
type SheetID int

const (
	Dashboard SheetID = 0
	Summary   SheetID = 13
)

// Month returns the sheet of month m (1-12).
func Month(m int) SheetID { return SheetID(m) }

// IsMonth reports whether s is one of the twelve month sheets.
func (s SheetID) IsMonth() bool { return s >= 1 && s <= 12 }

var (
	ErrNotFound    = errors.New("document not found")
	ErrOutOfBounds = errors.New("coordinates out of bounds")
)

// Ports for outbound adapters. Coordinates are 1-based.
type (
	// Grid is a coordinate addressed cell store. GetRange always returns a
	// height x width matrix; absent cells are "".
	Grid interface {
		Get(ctx context.Context, sheet SheetID, row, col int) (string, error)
		Set(ctx context.Context, sheet SheetID, row, col int, value string) error
		GetRange(ctx context.Context, sheet SheetID, row, col, height, width int) ([][]string, error)
		SetRange(ctx context.Context, sheet SheetID, row, col int, values [][]string) error
		Clear(ctx context.Context, sheet SheetID, row, col, height, width int) error
		SetNote(ctx context.Context, sheet SheetID, row, col int, note string) error
	}

	// Formatter is implemented by grids that carry presentation.
	Formatter interface {
		SetBackground(ctx context.Context, sheet SheetID, row, col, height, width int, color string) error
		SetValidationList(ctx context.Context, sheet SheetID, row, col, height, width int, values []string) error
	}

	// Renamer is implemented by grids whose sheets carry a title.
	Renamer interface {
		SheetTitle(ctx context.Context, sheet SheetID) (string, error)
		RenameSheet(ctx context.Context, sheet SheetID, title string) error
	}

	// Document is a named yearly grid.
	Document interface {
		Grid
		ID() string
		Name() string
		URL() string
	}

	// DocumentInfo identifies a document without opening it.
	DocumentInfo struct {
		ID   string
		Name string
	}

	// Locator discovers sibling yearly documents.
	Locator interface {
		// Find returns ErrNotFound when no document has exactly this name.
		Find(ctx context.Context, name string) (Document, error)
		List(ctx context.Context, prefix string) ([]DocumentInfo, error)
		Open(ctx context.Context, id string) (Document, error)
		Copy(ctx context.Context, src Document, name string) (Document, error)
	}

	// Uploader stores generated files next to the documents.
	Uploader interface {
		Upload(ctx context.Context, name, mimeType string, r io.Reader) (url string, err error)
	}
)

// Cell is a single pending write.
type Cell struct {
	Sheet SheetID
	Row   int
	Col   int
	Value string
}

// BatchWriter is implemented by grids that can apply many single-cell
// writes in one round trip.
type BatchWriter interface {
	SetCells(ctx context.Context, cells []Cell) error
}

// WriteCells applies cells through BatchWriter when g supports it, one Set
// at a time otherwise.
func WriteCells(ctx context.Context, g Grid, cells []Cell) error {
	if len(cells) == 0 {
		return nil
	}
	if bw, ok := g.(BatchWriter); ok {
		return bw.SetCells(ctx, cells)
	}
	for _, c := range cells {
		if err := g.Set(ctx, c.Sheet, c.Row, c.Col, c.Value); err != nil {
			return err
		}
	}
	return nil
}
