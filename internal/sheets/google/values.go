package google

import (
	"fmt"
	"strconv"
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	"homepay/internal/sheets"
)

func tabAt(tabs []*gsheet.SheetProperties, sheet sheets.SheetID) (*gsheet.SheetProperties, error) {
	i := int(sheet)
	if i < 0 || i >= len(tabs) {
		return nil, fmt.Errorf("%w: sheet %d of %d tabs", sheets.ErrOutOfBounds, i, len(tabs))
	}
	return tabs[i], nil
}

// a1 quotes title so names with spaces ("Jan 2026") resolve.
func a1(title string, row, col, height, width int) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + sheets.A1Range(row, col, height, width)
}

// toMatrix pads the ragged rows returned by the values API.
func toMatrix(values [][]interface{}, height, width int) [][]string {
	out := sheets.Blank(height, width)
	for r := 0; r < height && r < len(values); r++ {
		for c := 0; c < width && c < len(values[r]); c++ {
			out[r][c] = cellString(values[r][c])
		}
	}
	return out
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}

func fromMatrix(values [][]string) [][]interface{} {
	out := make([][]interface{}, len(values))
	for r, line := range values {
		out[r] = make([]interface{}, len(line))
		for c, v := range line {
			out[r][c] = v
		}
	}
	return out
}

// gridRange converts 1-based inclusive coordinates to the API's 0-based,
// end-exclusive range.
func gridRange(sheetID int64, row, col, height, width int) *gsheet.GridRange {
	return &gsheet.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    int64(row - 1),
		EndRowIndex:      int64(row - 1 + height),
		StartColumnIndex: int64(col - 1),
		EndColumnIndex:   int64(col - 1 + width),
		// SheetId 0 is a valid tab id and would be dropped otherwise.
		ForceSendFields: []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func noteRequest(sheetID int64, row, col int, note string) *gsheet.Request {
	return &gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
		Range:  gridRange(sheetID, row, col, 1, 1),
		Cell:   &gsheet.CellData{Note: note},
		Fields: "note",
	}}
}

func backgroundRequest(sheetID int64, row, col, height, width int, hex string) (*gsheet.Request, error) {
	color, err := parseColor(hex)
	if err != nil {
		return nil, err
	}
	return &gsheet.Request{RepeatCell: &gsheet.RepeatCellRequest{
		Range:  gridRange(sheetID, row, col, height, width),
		Cell:   &gsheet.CellData{UserEnteredFormat: &gsheet.CellFormat{BackgroundColor: color}},
		Fields: "userEnteredFormat.backgroundColor",
	}}, nil
}

func validationRequest(sheetID int64, row, col, height, width int, values []string) *gsheet.Request {
	cond := &gsheet.BooleanCondition{Type: "ONE_OF_LIST"}
	for _, v := range values {
		cond.Values = append(cond.Values, &gsheet.ConditionValue{UserEnteredValue: v})
	}
	return &gsheet.Request{SetDataValidation: &gsheet.SetDataValidationRequest{
		Range: gridRange(sheetID, row, col, height, width),
		Rule:  &gsheet.DataValidationRule{Condition: cond, ShowCustomUi: true},
	}}
}

// parseColor reads "#rrggbb".
func parseColor(hex string) (*gsheet.Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return nil, fmt.Errorf("invalid color %q", hex)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	channel := func(shift uint) float64 { return float64((n>>shift)&0xff) / 255 }
	return &gsheet.Color{
		Red:             channel(16),
		Green:           channel(8),
		Blue:            channel(0),
		ForceSendFields: []string{"Red", "Green", "Blue"},
	}, nil
}

// escapeQuery quotes s for a Drive files.list query literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
