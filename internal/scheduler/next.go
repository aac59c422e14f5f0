package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
)

// parseClockTime parses "HH:MM" into hour and minute.
func parseClockTime(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NextRun computes the first scheduled run strictly after now, in the
// schedule's timezone. An unknown timezone falls back to UTC.
func NextRun(schedule *entities.BackupSchedule, now time.Time) (time.Time, error) {
	hour, minute, err := parseClockTime(schedule.Time)
	if err != nil {
		return time.Time{}, err
	}

	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	switch schedule.Frequency {
	case entities.BackupFrequencyDaily:
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case entities.BackupFrequencyWeekly:
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 7)
		}
	case entities.BackupFrequencyMonthly:
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 1, 0)
		}
	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", schedule.Frequency)
	}

	return candidate.UTC(), nil
}
