package query

import (
	"time"

	"github.com/shopspring/decimal"

	"smartexpense/internal/core"
)

// Totals holds per-category sums in order of first appearance.
type Totals []core.CategoryAmount

// Map returns the totals keyed by category.
func (t Totals) Map() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(t))
	for _, c := range t {
		m[c.Name] = c.Amount
	}
	return m
}

// Get returns the total of category and whether it is present.
func (t Totals) Get(category string) (decimal.Decimal, bool) {
	for _, c := range t {
		if c.Name == category {
			return c.Amount, true
		}
	}
	return decimal.Zero, false
}

// CategoryTotals sums amounts per category. Categories without expenses
// are absent.
func CategoryTotals(expenses []core.Expense) Totals {
	index := make(map[string]int)
	var totals Totals
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(totals)
			index[e.Category] = i
			totals = append(totals, core.CategoryAmount{Name: e.Category, Amount: decimal.Zero})
		}
		totals[i].Amount = totals[i].Amount.Add(e.Amount)
		totals[i].Count++
	}
	return totals
}

// TopCategory returns the category with the largest total. Ties go to the
// category encountered first. Totals that are not positive never win.
func TopCategory(totals Totals) (core.CategoryAmount, bool) {
	var (
		top   core.CategoryAmount
		found bool
	)
	for _, c := range totals {
		if c.Amount.GreaterThan(top.Amount) {
			top = c
			found = true
		}
	}
	return top, found
}

// PercentageOfTotal returns amount/total*100, or 0 when total is not positive.
func PercentageOfTotal(amount, total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return amount.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Total sums the amounts of expenses.
func Total(expenses []core.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// MonthOverview builds the dashboard summary of month/year.
func MonthOverview(expenses []core.Expense, month time.Month, year int, loc *time.Location) core.MonthOverview {
	selected := MonthlyExpenses(expenses, month, year, loc, Filters{})
	total := Total(selected)
	totals := CategoryTotals(selected)
	for i := range totals {
		totals[i].Percent = PercentageOfTotal(totals[i].Amount, total)
	}

	overview := core.MonthOverview{
		Year:       year,
		Month:      month,
		Total:      total,
		Count:      len(selected),
		ByCategory: []core.CategoryAmount(totals),
	}
	if top, ok := TopCategory(totals); ok {
		overview.Top = &top
	}
	return overview
}
