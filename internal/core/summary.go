package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount is an amount aggregated by expense type.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthStats is the spending profile of one month grid.
type MonthStats struct {
	Year         int
	Month        int // 1-12
	Total        decimal.Decimal
	Highest      decimal.Decimal
	HighestName  string
	TopCategory  string
	ByCategory   []CategoryAmount
	ExpenseCount int
}

// HasData reports whether any positive expense was seen.
func (s MonthStats) HasData() bool { return s.ExpenseCount > 0 }

// Category returns the total for name, zero when absent.
func (s MonthStats) Category(name string) decimal.Decimal {
	for _, c := range s.ByCategory {
		if c.Name == name {
			return c.Amount
		}
	}
	return decimal.Zero
}

// SortCategories orders categories by amount, largest first, then by name.
func SortCategories(cs []CategoryAmount) {
	sort.SliceStable(cs, func(i, j int) bool {
		if c := cs[i].Amount.Cmp(cs[j].Amount); c != 0 {
			return c > 0
		}
		return cs[i].Name < cs[j].Name
	})
}
