package domain

import (
	"time"

	"github.com/google/uuid"
)

// Person is a user known to the tracker, keyed by the handle the external
// identity provider uses for them. Upserted on first contact.
type Person struct {
	ID        uuid.UUID
	Handle    string
	Admin     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChallengeTeam groups participants within one challenge. The join code is
// unique per challenge, case-insensitive, and fixed length.
type ChallengeTeam struct {
	ID          uuid.UUID
	ChallengeID uuid.UUID
	JoinCode    string
	CreatedAt   time.Time
}

// ChallengeParticipant joins one person to one team within a challenge.
// A person has at most one participant record per challenge. The timezone is
// captured at join time and drives all day bucketing for this participant.
type ChallengeParticipant struct {
	ID       uuid.UUID
	TeamID   uuid.UUID
	PersonID uuid.UUID
	Timezone string
	JoinedAt time.Time
}

// Participation pairs a participant with its containing challenge, the unit
// the reconciliation engine operates on.
type Participation struct {
	Participant ChallengeParticipant
	Challenge   Challenge
}

// TeamMember is a participant together with the person behind it, as needed
// for leaderboard rendering.
type TeamMember struct {
	Participant ChallengeParticipant
	Person      Person
}

// TeamRoster is a team with its full membership.
type TeamRoster struct {
	Team    ChallengeTeam
	Members []TeamMember
}
