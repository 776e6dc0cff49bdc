package query

import (
	"time"

	"smartexpense/internal/core"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthIndexRange lists every month from January of ref's year minus
// yearsBack through December of ref's year plus yearsForward, and the
// index of ref's month in that list: yearsBack*12 + zero-based month.
func MonthIndexRange(yearsBack, yearsForward int, ref time.Time) ([]core.MonthItem, int) {
	if yearsBack < 0 {
		yearsBack = 0
	}
	if yearsForward < 0 {
		yearsForward = 0
	}
	year := ref.Year()
	items := make([]core.MonthItem, 0, (yearsBack+yearsForward+1)*12)
	for y := year - yearsBack; y <= year+yearsForward; y++ {
		for m := time.January; m <= time.December; m++ {
			items = append(items, core.MonthItem{Month: m, Year: y, Name: monthNames[m-1]})
		}
	}
	return items, yearsBack*12 + int(ref.Month()-1)
}

// ShiftMonth moves month/year by delta months.
func ShiftMonth(month time.Month, year, delta int) (time.Month, int) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Month(), t.Year()
}
