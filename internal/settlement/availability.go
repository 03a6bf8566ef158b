package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/sheets"
)

// Funds reads both parties' initial fund from the dashboard.
func (e *Engine) Funds(ctx context.Context) (party1, party2 decimal.Decimal, err error) {
	d := e.layout.Dashboard
	vals, err := e.grid.GetRange(ctx, sheets.Dashboard, d.FundsRow, d.Party1Col, 1, d.Party2Col-d.Party1Col+1)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("read funds: %w", err)
	}
	row := vals[0]
	return core.CellValue(row[0]), core.CellValue(row[len(row)-1]), nil
}

// CheckAvailable rejects settlement actions that make no sense for the
// document and date:
//   - a past-year document can only be settled in full (December);
//   - in January the previous month of the same year does not exist;
//   - drawing on the initial fund requires a fund on the dashboard.
func CheckAvailable(now time.Time, documentYear int, mode Mode, current bool, fundsConfigured bool) error {
	reject := func(reason string) error {
		return &core.ValidationError{Field: core.FieldMode, Reason: reason}
	}
	if documentYear > 0 && documentYear < now.Year() {
		if mode != FullyPaid {
			return reject(fmt.Sprintf("a %d document can only be settled as fully paid", documentYear))
		}
		return nil
	}
	if !current && now.Month() == time.January {
		return reject("there is no previous month to settle in January")
	}
	if mode == FromInitialBalance && !fundsConfigured {
		return reject("no special fund is configured on the dashboard")
	}
	return nil
}
