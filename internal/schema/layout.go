// Package schema holds the fixed row/column layout of a household payments
// document: the twelve month sheets, the dashboard and the summary sheet.
//
// A Layout is built once (Default or Load), validated, and then passed by
// pointer into every engine. Nothing in this module mutates a Layout after
// construction.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Party identifies one of the two people sharing costs.
type Party int

const (
	Party1 Party = 1
	Party2 Party = 2
)

// Other returns the counterpart of p.
func (p Party) Other() Party {
	if p == Party1 {
		return Party2
	}
	return Party1
}

func (p Party) String() string {
	switch p {
	case Party1:
		return "party1"
	case Party2:
		return "party2"
	default:
		return fmt.Sprintf("party(%d)", int(p))
	}
}

type (
	// Month describes the cells of a single month sheet.
	Month struct {
		CarryOverRow int `yaml:"carry_over_row"`
		PaymentRow   int `yaml:"payment_row"`
		FirstRow     int `yaml:"first_row"`
		LastRow      int `yaml:"last_row"`

		TotalAmountRow     int `yaml:"total_amount_row"`
		TotalPaidParty2Row int `yaml:"total_paid_party2_row"`
		TotalPaidParty1Row int `yaml:"total_paid_party1_row"`
		BalanceParty2Row   int `yaml:"balance_party2_row"`
		BalanceParty1Row   int `yaml:"balance_party1_row"`
		FundPaidParty2Row  int `yaml:"fund_paid_party2_row"`
		FundLeftParty2Row  int `yaml:"fund_left_party2_row"`
		FundPaidParty1Row  int `yaml:"fund_paid_party1_row"`
		FundLeftParty1Row  int `yaml:"fund_left_party1_row"`
		AggregateCol       int `yaml:"aggregate_col"`

		TypeCol           int `yaml:"type_col"`
		DescriptionCol    int `yaml:"description_col"`
		DateCol           int `yaml:"date_col"`
		AmountCol         int `yaml:"amount_col"`
		Split2Col         int `yaml:"split2_col"`
		Split1Col         int `yaml:"split1_col"`
		SplitCol          int `yaml:"split_col"`
		Pay1Col           int `yaml:"pay1_col"`
		Pay2Col           int `yaml:"pay2_col"`
		PeriodCol         int `yaml:"period_col"`
		PaidCol           int `yaml:"paid_col"`
		PAPCol            int `yaml:"pap_col"`
		Party2ToParty1Col int `yaml:"party2_to_party1_col"`
		Party1ToParty2Col int `yaml:"party1_to_party2_col"`
	}

	// Dashboard describes the yearly overview sheet.
	Dashboard struct {
		AddressRow    int `yaml:"address_row"`
		AddressCol    int `yaml:"address_col"`
		NamesRow      int `yaml:"names_row"`
		EmailsRow     int `yaml:"emails_row"`
		SharesRow     int `yaml:"shares_row"`
		FundsRow      int `yaml:"funds_row"`
		TitleRow      int `yaml:"title_row"`
		FirstMonthRow int `yaml:"first_month_row"`

		Party1Col int `yaml:"party1_col"`
		Party2Col int `yaml:"party2_col"`

		MonthNameCol      int `yaml:"month_name_col"`
		TotalCol          int `yaml:"total_col"`
		Part2Col          int `yaml:"part2_col"`
		Part1Col          int `yaml:"part1_col"`
		Paid2Col          int `yaml:"paid2_col"`
		Paid1Col          int `yaml:"paid1_col"`
		Party2ToParty1Col int `yaml:"party2_to_party1_col"`
		Party1ToParty2Col int `yaml:"party1_to_party2_col"`
		Balance2Col       int `yaml:"balance2_col"`
		Balance1Col       int `yaml:"balance1_col"`
	}

	// Summary describes the analytics sheet.
	Summary struct {
		HeaderRow      int `yaml:"header_row"`
		TotalRow       int `yaml:"total_row"`
		FirstDataRow   int `yaml:"first_data_row"`
		AmountCol      int `yaml:"amount_col"`
		HistoryMinRow  int `yaml:"history_min_row"`
		HistoryDataCol int `yaml:"history_data_col"`
		ComparisonCol  int `yaml:"comparison_col"`
		// Rows and Cols bound the area cleared when the summary is rebuilt.
		Rows int `yaml:"rows"`
		Cols int `yaml:"cols"`
	}

	// Layout is the complete, immutable coordinate registry.
	Layout struct {
		Month     Month     `yaml:"month"`
		Dashboard Dashboard `yaml:"dashboard"`
		Summary   Summary   `yaml:"summary"`

		// Threshold is the balance magnitude below which a month counts as settled.
		Threshold float64 `yaml:"threshold"`
		// PaymentScan is how many rows of the settlement block may hold payments.
		PaymentScan int `yaml:"payment_scan"`
		// DiscoveryMonths limits the months scanned for type suggestions.
		DiscoveryMonths int `yaml:"discovery_months"`
		// FilePrefix names yearly documents: "<FilePrefix> <year>".
		FilePrefix string `yaml:"file_prefix"`
	}
)

// Default returns the layout used by the household payments template.
func Default() *Layout {
	return &Layout{
		Month: Month{
			CarryOverRow: 2,
			PaymentRow:   2,
			FirstRow:     3,
			LastRow:      50,

			TotalAmountRow:     53,
			TotalPaidParty2Row: 56,
			TotalPaidParty1Row: 60,
			BalanceParty2Row:   63,
			BalanceParty1Row:   64,
			FundPaidParty2Row:  66,
			FundLeftParty2Row:  67,
			FundPaidParty1Row:  69,
			FundLeftParty1Row:  70,
			AggregateCol:       2,

			TypeCol:           1,
			DescriptionCol:    2,
			DateCol:           3,
			AmountCol:         4,
			Split2Col:         5,
			Split1Col:         6,
			SplitCol:          7,
			Pay1Col:           8,
			Pay2Col:           9,
			PeriodCol:         10,
			PaidCol:           11,
			PAPCol:            12,
			Party2ToParty1Col: 13,
			Party1ToParty2Col: 14,
		},
		Dashboard: Dashboard{
			AddressRow:    1,
			AddressCol:    2,
			NamesRow:      2,
			EmailsRow:     3,
			SharesRow:     4,
			FundsRow:      5,
			TitleRow:      6,
			FirstMonthRow: 7,

			Party1Col: 2,
			Party2Col: 3,

			MonthNameCol:      1,
			TotalCol:          4,
			Part2Col:          5,
			Part1Col:          6,
			Paid2Col:          7,
			Paid1Col:          8,
			Party2ToParty1Col: 9,
			Party1ToParty2Col: 10,
			Balance2Col:       11,
			Balance1Col:       12,
		},
		Summary: Summary{
			HeaderRow:      1,
			TotalRow:       2,
			FirstDataRow:   3,
			AmountCol:      3,
			HistoryMinRow:  29,
			HistoryDataCol: 4,
			ComparisonCol:  17,
			Rows:           400,
			Cols:           30,
		},
		Threshold:       1,
		PaymentScan:     20,
		DiscoveryMonths: 11,
		FilePrefix:      "Home payments",
	}
}

// Load reads a YAML override file on top of Default. Keys absent from the
// file keep their default value.
func Load(path string) (*Layout, error) {
	l := Default()
	if path == "" {
		return l, l.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, l); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

var ErrInvalidLayout = errors.New("invalid layout")

// Validate checks coordinates for consistency.
func (l *Layout) Validate() error {
	var problems []string
	m := l.Month

	positive := map[string]int{
		"month.carry_over_row": m.CarryOverRow, "month.payment_row": m.PaymentRow,
		"month.first_row": m.FirstRow, "month.last_row": m.LastRow,
		"month.aggregate_col": m.AggregateCol, "dashboard.first_month_row": l.Dashboard.FirstMonthRow,
		"summary.first_data_row": l.Summary.FirstDataRow, "payment_scan": l.PaymentScan,
		"summary.rows": l.Summary.Rows, "summary.cols": l.Summary.Cols,
	}
	for name, v := range positive {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", name, v))
		}
	}
	if m.FirstRow > m.LastRow {
		problems = append(problems, fmt.Sprintf("month.first_row (%d) is after month.last_row (%d)", m.FirstRow, m.LastRow))
	}
	if m.CarryOverRow >= m.FirstRow {
		problems = append(problems, "month.carry_over_row must precede month.first_row")
	}
	if end := m.PaymentRow + l.PaymentScan - 1; end >= m.TotalAmountRow {
		problems = append(problems, fmt.Sprintf("payment scan ends at row %d, inside the aggregate block", end))
	}
	if l.Threshold < 0 {
		problems = append(problems, "threshold cannot be negative")
	}
	if l.DiscoveryMonths < 1 || l.DiscoveryMonths > 12 {
		problems = append(problems, "discovery_months must be between 1 and 12")
	}
	if strings.TrimSpace(l.FilePrefix) == "" {
		problems = append(problems, "file_prefix is required")
	}

	seen := map[int]string{}
	for name, col := range map[string]int{
		"type": m.TypeCol, "description": m.DescriptionCol, "date": m.DateCol, "amount": m.AmountCol,
		"split2": m.Split2Col, "split1": m.Split1Col, "split": m.SplitCol, "pay1": m.Pay1Col,
		"pay2": m.Pay2Col, "period": m.PeriodCol, "paid": m.PaidCol, "pap": m.PAPCol,
	} {
		if col <= 0 {
			problems = append(problems, fmt.Sprintf("month.%s_col must be positive", name))
			continue
		}
		if other, dup := seen[col]; dup {
			problems = append(problems, fmt.Sprintf("month.%s_col and month.%s_col share column %d", name, other, col))
		}
		seen[col] = name
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrInvalidLayout, strings.Join(problems, "\n- "))
	}
	return nil
}

// Slots is the number of expense rows per month.
func (l *Layout) Slots() int { return l.Month.LastRow - l.Month.FirstRow + 1 }

// BalanceRow is the monthly balance row of p.
func (l *Layout) BalanceRow(p Party) int {
	if p == Party1 {
		return l.Month.BalanceParty1Row
	}
	return l.Month.BalanceParty2Row
}

// FundLeftRow is the row holding what is left of p's initial fund.
func (l *Layout) FundLeftRow(p Party) int {
	if p == Party1 {
		return l.Month.FundLeftParty1Row
	}
	return l.Month.FundLeftParty2Row
}

// FundPaidRow is the row where draws from p's initial fund are recorded.
func (l *Layout) FundPaidRow(p Party) int {
	if p == Party1 {
		return l.Month.FundPaidParty1Row
	}
	return l.Month.FundPaidParty2Row
}

// TransferCol is the settlement column receiving payments made by p.
func (l *Layout) TransferCol(p Party) int {
	if p == Party1 {
		return l.Month.Party1ToParty2Col
	}
	return l.Month.Party2ToParty1Col
}

// CarryOverCol is the carryover cell (on CarryOverRow) holding p's debt.
func (l *Layout) CarryOverCol(p Party) int {
	if p == Party1 {
		return l.Month.Split1Col
	}
	return l.Month.Split2Col
}

// PayCol is the expense payment column credited to p.
func (l *Layout) PayCol(p Party) int {
	if p == Party1 {
		return l.Month.Pay1Col
	}
	return l.Month.Pay2Col
}

// DashboardCol is the dashboard column of p in the header block.
func (l *Layout) DashboardCol(p Party) int {
	if p == Party1 {
		return l.Dashboard.Party1Col
	}
	return l.Dashboard.Party2Col
}

// DocumentName is the name of the yearly document for year.
func (l *Layout) DocumentName(year int) string {
	return fmt.Sprintf("%s %d", l.FilePrefix, year)
}
