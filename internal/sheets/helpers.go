package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnLetter converts a 1-based column to its letter form (1 -> A, 27 -> AA).
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// A1 renders a 1-based coordinate in A1 notation.
func A1(row, col int) string {
	return ColumnLetter(col) + strconv.Itoa(row)
}

// A1Range renders a rectangle ("B2:D4").
func A1Range(row, col, height, width int) string {
	if height <= 1 && width <= 1 {
		return A1(row, col)
	}
	return A1(row, col) + ":" + A1(row+height-1, col+width-1)
}

// DocumentYear extracts the trailing year of a document or sheet name
// ("Home payments 2025" -> 2025).
func DocumentYear(name string) (int, error) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no year in %q", name)
	}
	y, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || y < 1900 || y > 9999 {
		return 0, fmt.Errorf("no year in %q", name)
	}
	return y, nil
}

// MonthTitle is the default title of a month sheet ("Jan 2025").
func MonthTitle(m, year int) string {
	return fmt.Sprintf("%s %d", time.Month(m).String()[:3], year)
}

// SheetTitle is the default title of any sheet of a document for year.
func SheetTitle(s SheetID, year int) string {
	switch {
	case s == Dashboard:
		return "Dashboard"
	case s == Summary:
		return "Summary"
	default:
		return MonthTitle(int(s), year)
	}
}

// Pad returns values resized to height x width, filling with "".
func Pad(values [][]string, height, width int) [][]string {
	out := make([][]string, height)
	for r := range out {
		out[r] = make([]string, width)
		if r < len(values) {
			copy(out[r], values[r])
		}
	}
	return out
}

// Column reads a single column as a slice.
func Column(ctx context.Context, g Grid, sheet SheetID, row, col, height int) ([]string, error) {
	vals, err := g.GetRange(ctx, sheet, row, col, height, 1)
	if err != nil {
		return nil, err
	}
	out := make([]string, height)
	for i := range vals {
		out[i] = vals[i][0]
	}
	return out, nil
}

// Blank builds a height x width matrix of empty strings.
func Blank(height, width int) [][]string {
	return Pad(nil, height, width)
}

// CheckBounds validates a rectangle.
func CheckBounds(row, col, height, width int) error {
	if row < 1 || col < 1 || height < 0 || width < 0 {
		return fmt.Errorf("%w: row=%d col=%d h=%d w=%d", ErrOutOfBounds, row, col, height, width)
	}
	return nil
}
