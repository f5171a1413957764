package ledger

import (
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// SchoolDays counts Monday to Friday days in the given month.
func SchoolDays(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := 0
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// TotalClasses is the number of class slots in a month.
func TotalClasses(year int, month time.Month) int {
	return SchoolDays(year, month) * constants.PeriodsPerDay
}

// monthRange returns the first and last day of the month as YYYY-MM-DD.
func monthRange(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(constants.DateLayout), last.Format(constants.DateLayout)
}
