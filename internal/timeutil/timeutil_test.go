package timeutil

import (
	"testing"
	"time"
)

func TestParseDateRoundTrip(t *testing.T) {
	parsed, err := ParseDate("2025-01-02")
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if got := FormatDate(parsed); got != "2025-01-02" {
		t.Fatalf("expected formatted date to round-trip, got %s", got)
	}
}

func TestLocalDateUsesTimezone(t *testing.T) {
	// 2025-01-24T03:00:00Z is still the evening of the 23rd in New York.
	instant := time.Date(2025, 1, 24, 3, 0, 0, 0, time.UTC)

	got, err := LocalDate(instant, "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "2025-01-23" {
		t.Fatalf("expected 2025-01-23, got %s", got)
	}

	utc, err := LocalDate(instant, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utc != "2025-01-24" {
		t.Fatalf("expected 2025-01-24 in UTC, got %s", utc)
	}
}

func TestLocalDateRejectsInvalidTimezone(t *testing.T) {
	if _, err := LocalDate(time.Now(), "Not/AZone"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{"multiple days", "2025-01-23", "2025-01-25", []string{"2025-01-23", "2025-01-24", "2025-01-25"}},
		{"single day", "2025-01-23", "2025-01-23", []string{"2025-01-23"}},
		{"start after end", "2025-01-25", "2025-01-23", nil},
		{"month boundary", "2025-01-31", "2025-02-01", []string{"2025-01-31", "2025-02-01"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DateRange(tc.start, tc.end)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestDayBoundsUTC(t *testing.T) {
	start, end, err := DayBoundsUTC("2025-01-23", "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStart := time.Date(2025, 1, 23, 5, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 1, 24, 4, 59, 59, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, start)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("expected end %v, got %v", wantEnd, end)
	}
}

func TestDayBoundsUTCInvalidTimezone(t *testing.T) {
	if _, _, err := DayBoundsUTC("2025-01-23", "Mars/Olympus"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
