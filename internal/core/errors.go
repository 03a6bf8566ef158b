package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/schema"
)

const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldMode        = "mode"
	FieldMonth       = "month"
)

type (
	// ValidationError reports bad user input. Nothing was written.
	ValidationError struct {
		Field  string
		Reason string
	}

	// AlreadyExistsError reports a duplicate the caller declined to overwrite,
	// or a document that already exists.
	AlreadyExistsError struct {
		Name   string
		Months []int
	}

	// CapacityError reports target months without a free slot. Writes to
	// other months in the same call are kept.
	CapacityError struct {
		Region string
		Months []int
	}

	// NotFoundError reports that nothing matched.
	NotFoundError struct {
		What string
		Name string
	}

	// InsufficientFundsError reports a draw larger than the remaining fund.
	InsufficientFundsError struct {
		Party     schema.Party
		Requested decimal.Decimal
		Available decimal.Decimal
	}
)

func (e *ValidationError) Error() string { return e.Reason }

func (e *AlreadyExistsError) Error() string {
	if len(e.Months) == 0 {
		return fmt.Sprintf("%q already exists", e.Name)
	}
	return fmt.Sprintf("%q already exists in %s", e.Name, MonthList(e.Months))
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("no empty %s left in %s", e.Region, MonthList(e.Months))
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Name)
}

func (e *InsufficientFundsError) Error() string {
	if e.Available.IsZero() {
		return fmt.Sprintf("%s does not have special fund left", e.Party)
	}
	return fmt.Sprintf("%s requested %s but only %s is left in the special fund",
		e.Party, e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// ErrDeclined is returned when a confirmation was answered "no".
var ErrDeclined = errors.New("declined")

// Result codes returned to callers that expect the legacy numeric outcome.
const (
	CodeOK                 = 1
	CodeDeclined           = 0
	CodeMissingDescription = -1
	CodeCapacity           = -2
	CodeInvalidAmount      = -3
	CodeFailure            = -99
)

// ResultCode maps an engine error to its numeric outcome.
func ResultCode(err error) int {
	var (
		ve *ValidationError
		ae *AlreadyExistsError
		ce *CapacityError
	)
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &ve):
		if ve.Field == FieldDescription {
			return CodeMissingDescription
		}
		return CodeInvalidAmount
	case errors.As(err, &ce):
		return CodeCapacity
	case errors.As(err, &ae), errors.Is(err, ErrDeclined):
		return CodeDeclined
	default:
		return CodeFailure
	}
}

// MonthShort is the three letter month label ("Jan").
func MonthShort(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return time.Month(m).String()[:3]
}

// MonthList renders months as "Jan, Feb, Mar".
func MonthList(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = MonthShort(m)
	}
	return strings.Join(parts, ", ")
}
