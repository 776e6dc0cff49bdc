package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string
	Amount  decimal.Decimal
	Count   int
	Percent float64
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      time.Month
	Total      decimal.Decimal
	Count      int
	ByCategory []CategoryAmount
	Top        *CategoryAmount
}

// DayGroup holds the expenses recorded on one calendar day.
type DayGroup struct {
	Day      time.Time
	Label    string
	Expenses []Expense
}

// MonthItem is one page of the month pager.
type MonthItem struct {
	Month time.Month
	Year  int
	Name  string
}
