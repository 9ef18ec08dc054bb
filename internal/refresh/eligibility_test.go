package refresh

import (
	"context"
	"testing"
	"time"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/store"
	"challenge-tracker/internal/testutil"
)

func timePtr(t time.Time) *time.Time { return &t }

func participation(started, ended *time.Time) domain.Participation {
	return domain.Participation{
		Challenge: domain.Challenge{StartedTime: started, EndedTime: ended},
	}
}

func TestEligible(t *testing.T) {
	now := testutil.MustParseRFC3339("2025-02-01T12:00:00Z")
	window := 7 * 24 * time.Hour

	tests := []struct {
		name string
		p    domain.Participation
		want bool
	}{
		{"open for signups excluded", participation(nil, nil), false},
		{"not yet started excluded", participation(timePtr(now.Add(time.Hour)), nil), false},
		{"active no end", participation(timePtr(now.Add(-time.Hour)), nil), true},
		{"active with future end", participation(timePtr(now.Add(-48 * time.Hour)), timePtr(now.Add(time.Hour))), true},
		{"ended within window", participation(timePtr(now.Add(-10 * 24 * time.Hour)), timePtr(now.Add(-24 * time.Hour))), true},
		{"ended exactly 7 days ago included", participation(timePtr(now.Add(-10 * 24 * time.Hour)), timePtr(now.Add(-window))), true},
		{"ended 7 days and a second ago excluded", participation(timePtr(now.Add(-10 * 24 * time.Hour)), timePtr(now.Add(-window - time.Second))), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eligible(tc.p, now, window); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestResolverFiltersParticipations(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := testutil.MustParseRFC3339("2025-02-01T12:00:00Z")

	person, _ := s.GetOrCreatePerson(ctx, "U1")

	active := &domain.Challenge{Name: "active", StartedTime: timePtr(now.Add(-time.Hour))}
	stale := &domain.Challenge{
		Name:        "stale",
		StartedTime: timePtr(now.Add(-30 * 24 * time.Hour)),
		EndedTime:   timePtr(now.Add(-8 * 24 * time.Hour)),
	}
	signup := &domain.Challenge{Name: "signup"}
	for _, c := range []*domain.Challenge{active, stale, signup} {
		if err := s.CreateChallenge(ctx, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		team := &domain.ChallengeTeam{ChallengeID: c.ID, JoinCode: "C" + c.Name[:3]}
		creator := &domain.ChallengeParticipant{PersonID: person.ID, Timezone: "UTC"}
		if err := s.CreateTeamWithCreator(ctx, team, creator); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	resolver := NewResolver(s, 7*24*time.Hour)
	resolver.now = testutil.NowAt(now)

	eligible, err := resolver.EligibleParticipations(ctx, "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eligible) != 1 {
		t.Fatalf("expected one eligible participation, got %d", len(eligible))
	}
	if eligible[0].Challenge.Name != "active" {
		t.Fatalf("expected the active challenge, got %s", eligible[0].Challenge.Name)
	}
}

func TestResolverUnknownUser(t *testing.T) {
	resolver := NewResolver(store.NewMemoryStore(), 7*24*time.Hour)
	eligible, err := resolver.EligibleParticipations(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("expected no participations, got %d", len(eligible))
	}
}
