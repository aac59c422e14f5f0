package importer

import (
	"fmt"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseDate accepts the date forms seen in bundles: date-only, RFC3339,
// or a timestamp without zone.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// planDates resolves a meal plan snapshot's date range. Legacy
// single-date plans carry only "date"; a missing end date collapses the
// range to the start date.
func planDates(snap bundle.MealPlanSnapshot) (start, end time.Time, err error) {
	startStr := snap.StartDate
	if startStr == "" {
		startStr = snap.Date
	}
	start, err = parseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if snap.EndDate == "" {
		return start, start, nil
	}
	end, err = parseDate(snap.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		end = start
	}
	return start, end, nil
}
