package allocation

import (
	"fmt"
	"strings"
	"time"

	"github.com/jobtrack/jobtrack/pkg/model"
)

type DayStatus string

const (
	DayScheduled DayStatus = "scheduled"
	DayOngoing   DayStatus = "ongoing"
	DayCompleted DayStatus = "completed"
)

// DisplayStatus projects a project date onto the calendar day of now in loc.
// Project dates are calendar dates, so only their year, month and day count.
func DisplayStatus(projectDate, now time.Time, loc *time.Location) DayStatus {
	if loc == nil {
		loc = time.Local
	}
	day := projectDate.Format(model.DateLayout)
	today := now.In(loc).Format(model.DateLayout)
	switch {
	case day > today:
		return DayScheduled
	case day == today:
		return DayOngoing
	default:
		return DayCompleted
	}
}

// ParseDate accepts a plain date or an RFC 3339 timestamp and returns the
// calendar date at midnight UTC.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(model.DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func dayDates(days []model.ProjectDay) []time.Time {
	dates := make([]time.Time, 0, len(days))
	for _, day := range days {
		dates = append(dates, day.ProjectDate)
	}
	return dates
}
