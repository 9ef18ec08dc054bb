package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"challenge-tracker/internal/domain"
)

// ChallengeStore exposes challenge reads and writes. Lookups return
// (nil, nil) when no row matches.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, challenge *domain.Challenge) error
	GetChallenge(ctx context.Context, id uuid.UUID) (*domain.Challenge, error)
	ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.Challenge, error)
	EarliestChallengeStart(ctx context.Context) (*time.Time, error)
}

// PersonStore upserts and resolves people by their external handle.
type PersonStore interface {
	GetOrCreatePerson(ctx context.Context, handle string) (*domain.Person, error)
	GetPersonByHandle(ctx context.Context, handle string) (*domain.Person, error)
}

// TeamStore manages teams and their rosters.
type TeamStore interface {
	// CreateTeamWithCreator creates a team and its first participant together.
	CreateTeamWithCreator(ctx context.Context, team *domain.ChallengeTeam, creator *domain.ChallengeParticipant) error
	GetTeamByJoinCode(ctx context.Context, challengeID uuid.UUID, joinCode string) (*domain.ChallengeTeam, error)
	ListTeamRosters(ctx context.Context, challengeID uuid.UUID) ([]domain.TeamRoster, error)
}

// ParticipantStore manages challenge participations.
type ParticipantStore interface {
	AddParticipant(ctx context.Context, participant *domain.ChallengeParticipant) error
	// RemoveParticipant deletes a participation; removing the last member of
	// a team deletes the team as well.
	RemoveParticipant(ctx context.Context, participantID uuid.UUID) error
	// FindParticipationForChallenge returns the person's participation in the
	// given challenge, if any. A person has at most one per challenge.
	FindParticipationForChallenge(ctx context.Context, personID, challengeID uuid.UUID) (*domain.ChallengeParticipant, error)
	// ListParticipationsByHandle returns every participation of the person
	// with the given external handle, paired with its challenge.
	ListParticipationsByHandle(ctx context.Context, handle string) ([]domain.Participation, error)
}

// SummaryStore persists the engine's only owned entity: daily summaries.
type SummaryStore interface {
	// UpsertDailySummary creates or fully replaces the (date, participant)
	// row. Payloads are never merged.
	UpsertDailySummary(ctx context.Context, summary *domain.DailySummary) error
	ListSummariesForChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.DailySummary, error)
	LatestSummaryUpdate(ctx context.Context) (*time.Time, error)
}

// WatermarkStore durably tracks how far the poll loop has queried, so a cold
// start does not depend on summary timestamps alone.
type WatermarkStore interface {
	Watermark(ctx context.Context) (*time.Time, error)
	SetWatermark(ctx context.Context, at time.Time) error
}

// Store combines every persistence concern of the service.
type Store interface {
	ChallengeStore
	PersonStore
	TeamStore
	ParticipantStore
	SummaryStore
	WatermarkStore
}
