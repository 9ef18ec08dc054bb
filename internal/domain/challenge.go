package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeType distinguishes how daily minimums are interpreted over the
// challenge window.
type ChallengeType string

const (
	ChallengeDaily      ChallengeType = "DAILY"
	ChallengeCumulative ChallengeType = "CUMULATIVE"
)

// ChallengeState is derived from the clock and the start/end timestamps;
// it is never stored.
type ChallengeState string

const (
	StateOpenForSignups ChallengeState = "openForSignups"
	StateStarted        ChallengeState = "started"
	StateEnded          ChallengeState = "ended"
)

// Challenge is a time-boxed team coding challenge. A nil StartedTime means
// the challenge is still open for signups.
type Challenge struct {
	ID                 uuid.UUID
	Name               string
	StartedTime        *time.Time
	EndedTime          *time.Time
	Type               ChallengeType
	MinimumTimeMinutes int
	EditorConstraint   string
	LanguageConstraint string
	MinimumTeamSize    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StateAt derives the challenge state at the given instant.
func (c Challenge) StateAt(now time.Time) ChallengeState {
	if c.StartedTime == nil {
		return StateOpenForSignups
	}
	if c.EndedTime != nil && !now.Before(*c.EndedTime) {
		return StateEnded
	}
	if !now.Before(*c.StartedTime) {
		return StateStarted
	}
	return StateOpenForSignups
}

// MinimumSeconds returns the per-day threshold in seconds.
func (c Challenge) MinimumSeconds() float64 {
	return float64(c.MinimumTimeMinutes) * 60
}
