package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"challenge-tracker/internal/domain"
)

// MemoryStore is a thread-safe in-memory Store. It backs tests and local
// development without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	challenges   map[uuid.UUID]domain.Challenge
	people       map[uuid.UUID]domain.Person
	teams        map[uuid.UUID]domain.ChallengeTeam
	participants map[uuid.UUID]domain.ChallengeParticipant
	summaries    map[summaryKey]domain.DailySummary
	watermark    *time.Time
}

type summaryKey struct {
	participantID uuid.UUID
	date          string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges:   make(map[uuid.UUID]domain.Challenge),
		people:       make(map[uuid.UUID]domain.Person),
		teams:        make(map[uuid.UUID]domain.ChallengeTeam),
		participants: make(map[uuid.UUID]domain.ChallengeParticipant),
		summaries:    make(map[summaryKey]domain.DailySummary),
	}
}

func (s *MemoryStore) CreateChallenge(_ context.Context, challenge *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if challenge.ID == uuid.Nil {
		challenge.ID = uuid.New()
	}
	s.challenges[challenge.ID] = *challenge
	return nil
}

func (s *MemoryStore) GetChallenge(_ context.Context, id uuid.UUID) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.challenges[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListActiveChallenges(_ context.Context, now time.Time) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Challenge
	for _, c := range s.challenges {
		if c.EndedTime == nil || c.EndedTime.After(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) EarliestChallengeStart(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var earliest *time.Time
	for _, c := range s.challenges {
		if c.StartedTime == nil {
			continue
		}
		if earliest == nil || c.StartedTime.Before(*earliest) {
			t := *c.StartedTime
			earliest = &t
		}
	}
	return earliest, nil
}

func (s *MemoryStore) GetOrCreatePerson(_ context.Context, handle string) (*domain.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.people {
		if p.Handle == handle {
			return &p, nil
		}
	}
	person := domain.Person{
		ID:        uuid.New(),
		Handle:    handle,
		CreatedAt: time.Now(),
	}
	s.people[person.ID] = person
	return &person, nil
}

func (s *MemoryStore) GetPersonByHandle(_ context.Context, handle string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if p.Handle == handle {
			return &p, nil
		}
	}
	return nil, nil
}

// SetPerson replaces a person record; used by tests to flag admins.
func (s *MemoryStore) SetPerson(person domain.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[person.ID] = person
}

func (s *MemoryStore) CreateTeamWithCreator(_ context.Context, team *domain.ChallengeTeam, creator *domain.ChallengeParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	if creator.ID == uuid.Nil {
		creator.ID = uuid.New()
	}
	creator.TeamID = team.ID
	s.teams[team.ID] = *team
	s.participants[creator.ID] = *creator
	return nil
}

func (s *MemoryStore) GetTeamByJoinCode(_ context.Context, challengeID uuid.UUID, joinCode string) (*domain.ChallengeTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teams {
		if t.ChallengeID == challengeID && strings.EqualFold(t.JoinCode, joinCode) {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListTeamRosters(_ context.Context, challengeID uuid.UUID) ([]domain.TeamRoster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rosters []domain.TeamRoster
	for _, t := range s.teams {
		if t.ChallengeID != challengeID {
			continue
		}
		roster := domain.TeamRoster{Team: t}
		for _, p := range s.participants {
			if p.TeamID != t.ID {
				continue
			}
			roster.Members = append(roster.Members, domain.TeamMember{
				Participant: p,
				Person:      s.people[p.PersonID],
			})
		}
		sort.Slice(roster.Members, func(i, j int) bool {
			return roster.Members[i].Participant.ID.String() < roster.Members[j].Participant.ID.String()
		})
		rosters = append(rosters, roster)
	}
	sort.Slice(rosters, func(i, j int) bool {
		return rosters[i].Team.ID.String() < rosters[j].Team.ID.String()
	})
	return rosters, nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, participant *domain.ChallengeParticipant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if participant.ID == uuid.Nil {
		participant.ID = uuid.New()
	}
	s.participants[participant.ID] = *participant
	return nil
}

func (s *MemoryStore) RemoveParticipant(_ context.Context, participantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[participantID]
	if !ok {
		return nil
	}
	delete(s.participants, participantID)

	for _, p := range s.participants {
		if p.TeamID == participant.TeamID {
			return nil
		}
	}
	// Last member gone, the team goes too.
	delete(s.teams, participant.TeamID)
	return nil
}

func (s *MemoryStore) FindParticipationForChallenge(_ context.Context, personID, challengeID uuid.UUID) (*domain.ChallengeParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.PersonID != personID {
			continue
		}
		if team, ok := s.teams[p.TeamID]; ok && team.ChallengeID == challengeID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListParticipationsByHandle(_ context.Context, handle string) ([]domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var person *domain.Person
	for _, p := range s.people {
		if p.Handle == handle {
			v := p
			person = &v
			break
		}
	}
	if person == nil {
		return nil, nil
	}

	var out []domain.Participation
	for _, p := range s.participants {
		if p.PersonID != person.ID {
			continue
		}
		team, ok := s.teams[p.TeamID]
		if !ok {
			continue
		}
		challenge, ok := s.challenges[team.ChallengeID]
		if !ok {
			continue
		}
		out = append(out, domain.Participation{Participant: p, Challenge: challenge})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Participant.ID.String() < out[j].Participant.ID.String()
	})
	return out, nil
}

func (s *MemoryStore) UpsertDailySummary(_ context.Context, summary *domain.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := summaryKey{participantID: summary.ParticipantID, date: summary.Date}
	s.summaries[key] = *summary
	return nil
}

func (s *MemoryStore) ListSummariesForChallenge(_ context.Context, challengeID uuid.UUID) ([]domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberOf := make(map[uuid.UUID]bool)
	for _, p := range s.participants {
		if team, ok := s.teams[p.TeamID]; ok && team.ChallengeID == challengeID {
			memberOf[p.ID] = true
		}
	}

	var out []domain.DailySummary
	for key, summary := range s.summaries {
		if memberOf[key.participantID] {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ParticipantID.String() < out[j].ParticipantID.String()
	})
	return out, nil
}

func (s *MemoryStore) LatestSummaryUpdate(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *time.Time
	for _, summary := range s.summaries {
		if latest == nil || summary.LastUpdated.After(*latest) {
			t := summary.LastUpdated
			latest = &t
		}
	}
	return latest, nil
}

// GetDailySummary returns a stored summary for inspection in tests.
func (s *MemoryStore) GetDailySummary(participantID uuid.UUID, date string) (domain.DailySummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[summaryKey{participantID: participantID, date: date}]
	return summary, ok
}

func (s *MemoryStore) Watermark(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.watermark == nil {
		return nil, nil
	}
	t := *s.watermark
	return &t, nil
}

func (s *MemoryStore) SetWatermark(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = &at
	return nil
}
