package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/store"
	"challenge-tracker/internal/timeutil"
)

// ErrChallengeNotFound is returned when the requested challenge does not
// exist.
var ErrChallengeNotFound = errors.New("challenge not found")

// DayStatus classifies a day's progress against the challenge's minimum time.
type DayStatus string

const (
	StatusNone    DayStatus = "none"
	StatusPartial DayStatus = "partial"
	StatusMet     DayStatus = "met"
)

// MemberStatus is one participant's standing for a single day.
type MemberStatus struct {
	Handle      string    `json:"handle"`
	Status      DayStatus `json:"status"`
	TimeSeconds float64   `json:"timeSeconds"`
}

// TeamPlacement is a team's rank and total for a single day. Members is
// populated only for the top team's breakdown.
type TeamPlacement struct {
	TeamID      uuid.UUID      `json:"teamId"`
	Place       int            `json:"place"`
	TotalTeams  int            `json:"totalTeams"`
	TimeSeconds float64        `json:"timeSeconds"`
	Members     []MemberStatus `json:"members,omitempty"`
}

// Day is one challenge day's rendered standings from the viewer's
// perspective.
type Day struct {
	Title      string         `json:"title"`
	Date       string         `json:"date"`
	TeamStatus DayStatus      `json:"teamStatus"`
	Members    []MemberStatus `json:"members"`
	MyTeam     TeamPlacement  `json:"myTeam"`
	TopTeam    TeamPlacement  `json:"topTeam"`
}

// View is the full per-day standings for one viewer, most recent day first.
type View struct {
	ChallengeID uuid.UUID `json:"challengeId"`
	Days        []Day     `json:"days"`
}

// Aggregator reads stored daily summaries and renders ranked standings. It
// never writes anything.
type Aggregator struct {
	challenges store.ChallengeStore
	people     store.PersonStore
	teams      store.TeamStore
	summaries  store.SummaryStore
	now        func() time.Time
}

// New constructs an Aggregator.
func New(challenges store.ChallengeStore, people store.PersonStore, teams store.TeamStore, summaries store.SummaryStore) *Aggregator {
	return &Aggregator{
		challenges: challenges,
		people:     people,
		teams:      teams,
		summaries:  summaries,
		now:        time.Now,
	}
}

// ViewFor renders the challenge's per-day standings as seen by the given
// handle. A viewer who is not participating, or a challenge that has not
// started, gets an empty day list rather than an error. Days where no team
// has any summary yet are omitted.
func (a *Aggregator) ViewFor(ctx context.Context, challengeID uuid.UUID, viewerHandle string) (*View, error) {
	challenge, err := a.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("loading challenge: %w", err)
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}

	view := &View{ChallengeID: challengeID, Days: []Day{}}
	if challenge.StartedTime == nil {
		return view, nil
	}

	viewerTeamID, ok, err := a.viewerTeam(ctx, challengeID, viewerHandle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return view, nil
	}

	rosters, err := a.teams.ListTeamRosters(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("loading team rosters: %w", err)
	}
	summaries, err := a.summaries.ListSummariesForChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("loading summaries: %w", err)
	}

	// participant -> date -> total seconds for that day.
	totals := make(map[uuid.UUID]map[string]float64)
	for _, s := range summaries {
		perDate, found := totals[s.ParticipantID]
		if !found {
			perDate = make(map[string]float64)
			totals[s.ParticipantID] = perDate
		}
		perDate[s.Date] = domain.TotalSeconds(s.Payload)
	}

	dates, totalDays, err := a.challengeDates(*challenge)
	if err != nil {
		return nil, err
	}

	threshold := challenge.MinimumSeconds()
	for i, date := range dates {
		if !anySummary(rosters, totals, date) {
			continue
		}

		ranked := rankTeams(rosters, totals, date, threshold)
		my := findPlacement(ranked, viewerTeamID)
		top := ranked[0]

		day := Day{
			Title:      dayTitle(i+1, totalDays),
			Date:       date,
			TeamStatus: my.status,
			Members:    my.members,
			MyTeam: TeamPlacement{
				TeamID:      my.teamID,
				Place:       my.place,
				TotalTeams:  len(ranked),
				TimeSeconds: my.total,
			},
			TopTeam: TeamPlacement{
				TeamID:      top.teamID,
				Place:       1,
				TotalTeams:  len(ranked),
				TimeSeconds: top.total,
				Members:     top.members,
			},
		}
		view.Days = append(view.Days, day)
	}

	// Most recent day first.
	for l, r := 0, len(view.Days)-1; l < r; l, r = l+1, r-1 {
		view.Days[l], view.Days[r] = view.Days[r], view.Days[l]
	}
	return view, nil
}

func (a *Aggregator) viewerTeam(ctx context.Context, challengeID uuid.UUID, handle string) (uuid.UUID, bool, error) {
	person, err := a.people.GetPersonByHandle(ctx, handle)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("loading viewer: %w", err)
	}
	if person == nil {
		return uuid.Nil, false, nil
	}

	participant, err := a.findParticipant(ctx, challengeID, person.ID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if participant == nil {
		return uuid.Nil, false, nil
	}
	return participant.TeamID, true, nil
}

func (a *Aggregator) findParticipant(ctx context.Context, challengeID, personID uuid.UUID) (*domain.ChallengeParticipant, error) {
	rosters, err := a.teams.ListTeamRosters(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("loading team rosters: %w", err)
	}
	for _, roster := range rosters {
		for _, member := range roster.Members {
			if member.Participant.PersonID == personID {
				p := member.Participant
				return &p, nil
			}
		}
	}
	return nil, nil
}

// challengeDates enumerates every calendar day from the challenge's start
// through its end, or through today for a still-running challenge. totalDays
// is zero while the challenge is open ended.
func (a *Aggregator) challengeDates(c domain.Challenge) ([]string, int, error) {
	start := timeutil.FormatDate(c.StartedTime.UTC())
	var end string
	totalDays := 0
	if c.EndedTime != nil {
		end = timeutil.FormatDate(c.EndedTime.UTC())
	} else {
		end = timeutil.FormatDate(a.now().UTC())
	}

	dates, err := timeutil.DateRange(start, end)
	if err != nil {
		return nil, 0, fmt.Errorf("enumerating challenge days: %w", err)
	}
	if c.EndedTime != nil {
		totalDays = len(dates)
	}
	return dates, totalDays, nil
}

func dayTitle(dayNumber, totalDays int) string {
	if totalDays > 0 {
		return fmt.Sprintf("Day %d/%d", dayNumber, totalDays)
	}
	return fmt.Sprintf("Day %d", dayNumber)
}

func anySummary(rosters []domain.TeamRoster, totals map[uuid.UUID]map[string]float64, date string) bool {
	for _, roster := range rosters {
		for _, member := range roster.Members {
			if _, ok := totals[member.Participant.ID][date]; ok {
				return true
			}
		}
	}
	return false
}

type teamDay struct {
	teamID  uuid.UUID
	place   int
	total   float64
	status  DayStatus
	members []MemberStatus
}

// rankTeams computes every team's total and member statuses for one date and
// orders them by total descending, ties broken by team id ascending so equal
// totals rank identically on every recomputation.
func rankTeams(rosters []domain.TeamRoster, totals map[uuid.UUID]map[string]float64, date string, threshold float64) []teamDay {
	ranked := make([]teamDay, 0, len(rosters))
	for _, roster := range rosters {
		var teamTotal float64
		members := make([]MemberStatus, 0, len(roster.Members))
		allMet := len(roster.Members) > 0
		anyTime := false

		for _, member := range roster.Members {
			seconds := totals[member.Participant.ID][date]
			teamTotal += seconds
			if seconds > 0 {
				anyTime = true
			}
			status := classify(seconds, threshold)
			if status != StatusMet {
				allMet = false
			}
			members = append(members, MemberStatus{
				Handle:      member.Person.Handle,
				Status:      status,
				TimeSeconds: seconds,
			})
		}

		sort.SliceStable(members, func(i, j int) bool {
			if members[i].TimeSeconds != members[j].TimeSeconds {
				return members[i].TimeSeconds > members[j].TimeSeconds
			}
			return members[i].Handle < members[j].Handle
		})

		status := StatusNone
		if anyTime {
			status = StatusPartial
		}
		if allMet {
			status = StatusMet
		}

		ranked = append(ranked, teamDay{
			teamID:  roster.Team.ID,
			total:   teamTotal,
			status:  status,
			members: members,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].teamID.String() < ranked[j].teamID.String()
	})
	for i := range ranked {
		ranked[i].place = i + 1
	}
	return ranked
}

func findPlacement(ranked []teamDay, teamID uuid.UUID) teamDay {
	for _, t := range ranked {
		if t.teamID == teamID {
			return t
		}
	}
	return teamDay{}
}

// classify maps one day's logged seconds to a status. Exactly the threshold
// counts as met.
func classify(seconds, threshold float64) DayStatus {
	switch {
	case threshold > 0 && seconds >= threshold:
		return StatusMet
	case seconds > 0:
		return StatusPartial
	default:
		return StatusNone
	}
}
