package refresh

import (
	"context"
	"time"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/store"
)

// Eligible reports whether a participation should receive summary refreshes
// at the given instant: its challenge is running, or ended no longer than
// trailingWindow ago (inclusive). Challenges still open for signups have no
// activity window yet.
func Eligible(p domain.Participation, now time.Time, trailingWindow time.Duration) bool {
	switch p.Challenge.StateAt(now) {
	case domain.StateStarted:
		return true
	case domain.StateEnded:
		return now.Sub(*p.Challenge.EndedTime) <= trailingWindow
	default:
		return false
	}
}

// Resolver maps a user identity to the participations that should be
// refreshed when new activity arrives for them.
type Resolver struct {
	participants   store.ParticipantStore
	trailingWindow time.Duration
	now            func() time.Time
}

// NewResolver constructs a Resolver. The trailing window bounds reprocessing
// cost for ended challenges while still catching late heartbeats.
func NewResolver(participants store.ParticipantStore, trailingWindow time.Duration) *Resolver {
	return &Resolver{
		participants:   participants,
		trailingWindow: trailingWindow,
		now:            time.Now,
	}
}

// EligibleParticipations returns the user's participations whose challenge is
// currently active or recently ended.
func (r *Resolver) EligibleParticipations(ctx context.Context, userID string) ([]domain.Participation, error) {
	all, err := r.participants.ListParticipationsByHandle(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var eligible []domain.Participation
	for _, p := range all {
		if Eligible(p, now, r.trailingWindow) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}
