package planner

import (
	"fmt"
	"time"
)

// WorkingDates returns the Monday-to-Friday dates of a "YYYY-MM" month as
// YYYY-MM-DD strings, in calendar order. The 1-based position of a date in
// the returned slice is its day index within the planning horizon.
func WorkingDates(month string) ([]string, error) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("planner: invalid month %q: %w", month, err)
	}

	var dates []string
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			dates = append(dates, d.Format("2006-01-02"))
		}
	}
	return dates, nil
}
