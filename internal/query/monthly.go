package query

import (
	"sort"
	"strings"
	"time"

	"smartexpense/internal/core"
)

// DayLabelLayout matches the day headers of the expense list.
const DayLabelLayout = "Mon Jan 02 2006"

// Filters narrows a month selection. Zero values disable a filter; all
// enabled filters must match.
type Filters struct {
	Category      string
	PaymentMethod core.PaymentMethod
	Text          string
}

func (f Filters) match(e core.Expense) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// InMonth reports whether e falls in month/year of loc's calendar.
func InMonth(e core.Expense, month time.Month, year int, loc *time.Location) bool {
	y, m, _ := e.Date.In(location(loc)).Date()
	return y == year && m == month
}

// MonthlyExpenses selects the expenses of month/year and applies f.
// The result keeps input order.
func MonthlyExpenses(expenses []core.Expense, month time.Month, year int, loc *time.Location, f Filters) []core.Expense {
	out := make([]core.Expense, 0)
	for _, e := range expenses {
		if InMonth(e, month, year, loc) && f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortByDateDescending returns a copy of expenses, most recent first.
// Equal dates keep their relative order.
func SortByDateDescending(expenses []core.Expense) []core.Expense {
	out := append([]core.Expense(nil), expenses...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// GroupByCalendarDay partitions expenses by local calendar day, most
// recent day first. Within a group the input order is preserved.
func GroupByCalendarDay(expenses []core.Expense, loc *time.Location) []core.DayGroup {
	loc = location(loc)
	index := make(map[time.Time]int)
	var groups []core.DayGroup
	for _, e := range expenses {
		y, m, d := e.Date.In(loc).Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, core.DayGroup{Day: day, Label: day.Format(DayLabelLayout)})
		}
		groups[i].Expenses = append(groups[i].Expenses, e)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Day.After(groups[j].Day)
	})
	return groups
}
