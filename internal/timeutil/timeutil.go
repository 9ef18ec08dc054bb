package timeutil

import (
	"fmt"
	"time"
)

// DateLayout defines the canonical calendar date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// FormatDate formats a time as YYYY-MM-DD in its current location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// LocalDate projects an absolute instant into the civil date observed in the
// given IANA timezone (e.g. "America/New_York").
func LocalDate(instant time.Time, timezone string) (string, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return FormatDate(instant.In(loc)), nil
}

// DateRange returns every calendar date from start through end inclusive, in
// ascending order. A start after end yields an empty slice; start == end
// yields exactly one entry.
func DateRange(start, end string) ([]string, error) {
	startDay, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	endDay, err := ParseDate(end)
	if err != nil {
		return nil, err
	}

	var days []string
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		days = append(days, FormatDate(d))
	}
	return days, nil
}

// ValidateTimezone reports whether the value is a loadable IANA timezone
// identifier. An empty string is rejected rather than treated as UTC.
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return nil
}

// DayBoundsUTC returns the instants bounding the given calendar date in the
// given timezone (00:00:00 through 23:59:59 local), expressed in UTC. These
// are the bounds passed to the upstream summary API.
func DayBoundsUTC(date, timezone string) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// AddDate respects DST transitions where the local day is not 24 hours.
	end := day.AddDate(0, 0, 1).Add(-time.Second).UTC()
	return day.UTC(), end, nil
}
