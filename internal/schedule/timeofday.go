package schedule

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// Two times are equal only when they fall on the exact same minute; there
// is no tolerance window anywhere in slot matching.
type TimeOfDay int

// ParseTimeOfDay parses "15:04" formatted input.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// TimeOfDayFrom truncates an instant to its wall-clock minute.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

// String renders 24-hour "15:04" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Clock12 renders the human-facing 12-hour form used in slot listings,
// e.g. "9:00 AM".
func (t TimeOfDay) Clock12() string {
	ref := time.Date(2000, time.January, 1, t.Hour(), t.Minute(), 0, 0, time.UTC)
	return ref.Format("3:04 PM")
}

// At pins the time of day onto a calendar date. Dates are clinic-local
// wall clock; the store carries no timezone.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}
