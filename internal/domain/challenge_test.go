package domain

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestChallengeStateAt(t *testing.T) {
	start := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		challenge Challenge
		now       time.Time
		want      ChallengeState
	}{
		{"no start means open", Challenge{}, start, StateOpenForSignups},
		{"before start", Challenge{StartedTime: timePtr(start)}, start.Add(-time.Second), StateOpenForSignups},
		{"at start", Challenge{StartedTime: timePtr(start)}, start, StateStarted},
		{"running", Challenge{StartedTime: timePtr(start), EndedTime: timePtr(end)}, start.Add(time.Hour), StateStarted},
		{"no end stays started", Challenge{StartedTime: timePtr(start)}, end.Add(365 * 24 * time.Hour), StateStarted},
		{"at end", Challenge{StartedTime: timePtr(start), EndedTime: timePtr(end)}, end, StateEnded},
		{"after end", Challenge{StartedTime: timePtr(start), EndedTime: timePtr(end)}, end.Add(time.Hour), StateEnded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.challenge.StateAt(tc.now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestTotalSeconds(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
	}{
		{"empty payload", "", 0},
		{"no categories", `{}`, 0},
		{"single category", `{"categories":[{"name":"coding","total":3600}]}`, 3600},
		{"multiple categories", `{"categories":[{"name":"coding","total":1800},{"name":"debugging","total":450.5}]}`, 2250.5},
		{"malformed json", `{"categories":`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TotalSeconds([]byte(tc.payload)); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMinimumSeconds(t *testing.T) {
	c := Challenge{MinimumTimeMinutes: 30}
	if got := c.MinimumSeconds(); got != 1800 {
		t.Fatalf("expected 1800, got %v", got)
	}
}
