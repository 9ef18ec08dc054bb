package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/timeutil"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the application database.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) CreateChallenge(ctx context.Context, challenge *domain.Challenge) error {
	if challenge.ID == uuid.Nil {
		challenge.ID = uuid.New()
	}
	query := `
		INSERT INTO challenges (id, name, started_time, ended_time, challenge_type,
			minimum_time_minutes, editor_constraint, language_constraint, minimum_team_size,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		challenge.ID.String(),
		challenge.Name,
		challenge.StartedTime,
		challenge.EndedTime,
		string(challenge.Type),
		challenge.MinimumTimeMinutes,
		challenge.EditorConstraint,
		challenge.LanguageConstraint,
		challenge.MinimumTeamSize,
		challenge.CreatedAt,
		challenge.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating challenge: %w", err)
	}
	return nil
}

const challengeColumns = `id, name, started_time, ended_time, challenge_type,
	minimum_time_minutes, editor_constraint, language_constraint, minimum_team_size,
	created_at, updated_at`

func scanChallenge(row pgx.Row) (*domain.Challenge, error) {
	var c domain.Challenge
	var challengeType string
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.StartedTime,
		&c.EndedTime,
		&challengeType,
		&c.MinimumTimeMinutes,
		&c.EditorConstraint,
		&c.LanguageConstraint,
		&c.MinimumTeamSize,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Type = domain.ChallengeType(challengeType)
	return &c, nil
}

func (s *Postgres) GetChallenge(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	challenge, err := scanChallenge(s.pool.QueryRow(ctx, query, id.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting challenge: %w", err)
	}
	return challenge, nil
}

func (s *Postgres) ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE ended_time IS NULL OR ended_time > $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error listing challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Postgres) EarliestChallengeStart(ctx context.Context) (*time.Time, error) {
	query := `SELECT MIN(started_time) FROM challenges WHERE started_time IS NOT NULL`

	var earliest *time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&earliest); err != nil {
		return nil, fmt.Errorf("error finding earliest challenge start: %w", err)
	}
	return earliest, nil
}

func (s *Postgres) GetOrCreatePerson(ctx context.Context, handle string) (*domain.Person, error) {
	person, err := s.GetPersonByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if person != nil {
		return person, nil
	}

	created := &domain.Person{
		ID:        uuid.New(),
		Handle:    handle,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	query := `
		INSERT INTO people (id, handle, admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (handle) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query,
		created.ID.String(), created.Handle, created.Admin, created.CreatedAt, created.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("error creating person: %w", err)
	}

	// Re-read to cover a concurrent insert winning the conflict.
	return s.GetPersonByHandle(ctx, handle)
}

func (s *Postgres) GetPersonByHandle(ctx context.Context, handle string) (*domain.Person, error) {
	query := `SELECT id, handle, admin, created_at, updated_at FROM people WHERE handle = $1`

	var p domain.Person
	err := s.pool.QueryRow(ctx, query, handle).Scan(&p.ID, &p.Handle, &p.Admin, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting person: %w", err)
	}
	return &p, nil
}

func (s *Postgres) CreateTeamWithCreator(ctx context.Context, team *domain.ChallengeTeam, creator *domain.ChallengeParticipant) error {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	if creator.ID == uuid.Nil {
		creator.ID = uuid.New()
	}
	creator.TeamID = team.ID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO challenge_teams (id, challenge_id, join_code, created_at) VALUES ($1, $2, $3, $4)`,
		team.ID.String(), team.ChallengeID.String(), team.JoinCode, team.CreatedAt,
	); err != nil {
		return fmt.Errorf("error creating team: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO challenge_participants (id, team_id, person_id, timezone, joined_at) VALUES ($1, $2, $3, $4, $5)`,
		creator.ID.String(), creator.TeamID.String(), creator.PersonID.String(), creator.Timezone, creator.JoinedAt,
	); err != nil {
		return fmt.Errorf("error creating first participant: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) GetTeamByJoinCode(ctx context.Context, challengeID uuid.UUID, joinCode string) (*domain.ChallengeTeam, error) {
	query := `
		SELECT id, challenge_id, join_code, created_at
		FROM challenge_teams
		WHERE challenge_id = $1 AND UPPER(join_code) = UPPER($2)`

	var t domain.ChallengeTeam
	err := s.pool.QueryRow(ctx, query, challengeID.String(), joinCode).Scan(&t.ID, &t.ChallengeID, &t.JoinCode, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting team: %w", err)
	}
	return &t, nil
}

func (s *Postgres) ListTeamRosters(ctx context.Context, challengeID uuid.UUID) ([]domain.TeamRoster, error) {
	query := `
		SELECT
			t.id, t.challenge_id, t.join_code, t.created_at,
			cp.id, cp.team_id, cp.person_id, cp.timezone, cp.joined_at,
			p.id, p.handle, p.admin, p.created_at, p.updated_at
		FROM challenge_teams t
		JOIN challenge_participants cp ON cp.team_id = t.id
		JOIN people p ON p.id = cp.person_id
		WHERE t.challenge_id = $1
		ORDER BY t.id, cp.id`

	rows, err := s.pool.Query(ctx, query, challengeID.String())
	if err != nil {
		return nil, fmt.Errorf("error listing team rosters: %w", err)
	}
	defer rows.Close()

	var rosters []domain.TeamRoster
	byTeam := make(map[uuid.UUID]int)
	for rows.Next() {
		var team domain.ChallengeTeam
		var member domain.TeamMember
		if err := rows.Scan(
			&team.ID, &team.ChallengeID, &team.JoinCode, &team.CreatedAt,
			&member.Participant.ID, &member.Participant.TeamID, &member.Participant.PersonID,
			&member.Participant.Timezone, &member.Participant.JoinedAt,
			&member.Person.ID, &member.Person.Handle, &member.Person.Admin,
			&member.Person.CreatedAt, &member.Person.UpdatedAt,
		); err != nil {
			return nil, err
		}

		idx, ok := byTeam[team.ID]
		if !ok {
			rosters = append(rosters, domain.TeamRoster{Team: team})
			idx = len(rosters) - 1
			byTeam[team.ID] = idx
		}
		rosters[idx].Members = append(rosters[idx].Members, member)
	}
	return rosters, rows.Err()
}

func (s *Postgres) AddParticipant(ctx context.Context, participant *domain.ChallengeParticipant) error {
	if participant.ID == uuid.Nil {
		participant.ID = uuid.New()
	}
	query := `
		INSERT INTO challenge_participants (id, team_id, person_id, timezone, joined_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		participant.ID.String(),
		participant.TeamID.String(),
		participant.PersonID.String(),
		participant.Timezone,
		participant.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("error adding participant: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveParticipant(ctx context.Context, participantID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var teamID uuid.UUID
	err = tx.QueryRow(ctx,
		`DELETE FROM challenge_participants WHERE id = $1 RETURNING team_id`,
		participantID.String(),
	).Scan(&teamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error removing participant: %w", err)
	}

	var remaining int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM challenge_participants WHERE team_id = $1`,
		teamID.String(),
	).Scan(&remaining); err != nil {
		return fmt.Errorf("error counting team members: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM challenge_teams WHERE id = $1`, teamID.String()); err != nil {
			return fmt.Errorf("error deleting empty team: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) FindParticipationForChallenge(ctx context.Context, personID, challengeID uuid.UUID) (*domain.ChallengeParticipant, error) {
	query := `
		SELECT cp.id, cp.team_id, cp.person_id, cp.timezone, cp.joined_at
		FROM challenge_participants cp
		JOIN challenge_teams t ON t.id = cp.team_id
		WHERE cp.person_id = $1 AND t.challenge_id = $2
		LIMIT 1`

	var p domain.ChallengeParticipant
	err := s.pool.QueryRow(ctx, query, personID.String(), challengeID.String()).Scan(
		&p.ID, &p.TeamID, &p.PersonID, &p.Timezone, &p.JoinedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding participation: %w", err)
	}
	return &p, nil
}

func (s *Postgres) ListParticipationsByHandle(ctx context.Context, handle string) ([]domain.Participation, error) {
	query := `
		SELECT
			cp.id, cp.team_id, cp.person_id, cp.timezone, cp.joined_at,
			c.id, c.name, c.started_time, c.ended_time, c.challenge_type,
			c.minimum_time_minutes, c.editor_constraint, c.language_constraint,
			c.minimum_team_size, c.created_at, c.updated_at
		FROM challenge_participants cp
		JOIN people p ON p.id = cp.person_id
		JOIN challenge_teams t ON t.id = cp.team_id
		JOIN challenges c ON c.id = t.challenge_id
		WHERE p.handle = $1
		ORDER BY cp.id`

	rows, err := s.pool.Query(ctx, query, handle)
	if err != nil {
		return nil, fmt.Errorf("error listing participations: %w", err)
	}
	defer rows.Close()

	var out []domain.Participation
	for rows.Next() {
		var participation domain.Participation
		var challengeType string
		if err := rows.Scan(
			&participation.Participant.ID,
			&participation.Participant.TeamID,
			&participation.Participant.PersonID,
			&participation.Participant.Timezone,
			&participation.Participant.JoinedAt,
			&participation.Challenge.ID,
			&participation.Challenge.Name,
			&participation.Challenge.StartedTime,
			&participation.Challenge.EndedTime,
			&challengeType,
			&participation.Challenge.MinimumTimeMinutes,
			&participation.Challenge.EditorConstraint,
			&participation.Challenge.LanguageConstraint,
			&participation.Challenge.MinimumTeamSize,
			&participation.Challenge.CreatedAt,
			&participation.Challenge.UpdatedAt,
		); err != nil {
			return nil, err
		}
		participation.Challenge.Type = domain.ChallengeType(challengeType)
		out = append(out, participation)
	}
	return out, rows.Err()
}

func (s *Postgres) UpsertDailySummary(ctx context.Context, summary *domain.DailySummary) error {
	query := `
		INSERT INTO challenge_participant_daily_summaries
			(challenge_participant_id, date, timezone, payload, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (challenge_participant_id, date) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			payload = EXCLUDED.payload,
			last_updated = EXCLUDED.last_updated`

	date, err := timeutil.ParseDate(summary.Date)
	if err != nil {
		return fmt.Errorf("invalid summary date %q: %w", summary.Date, err)
	}

	_, err = s.pool.Exec(ctx, query,
		summary.ParticipantID.String(),
		date,
		summary.Timezone,
		[]byte(summary.Payload),
		summary.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("error upserting daily summary: %w", err)
	}
	return nil
}

func (s *Postgres) ListSummariesForChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.DailySummary, error) {
	query := `
		SELECT ds.challenge_participant_id, ds.date, ds.timezone, ds.payload, ds.last_updated
		FROM challenge_participant_daily_summaries ds
		JOIN challenge_participants cp ON cp.id = ds.challenge_participant_id
		JOIN challenge_teams t ON t.id = cp.team_id
		WHERE t.challenge_id = $1
		ORDER BY ds.date, ds.challenge_participant_id`

	rows, err := s.pool.Query(ctx, query, challengeID.String())
	if err != nil {
		return nil, fmt.Errorf("error listing summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.DailySummary
	for rows.Next() {
		var summary domain.DailySummary
		var date time.Time
		var payload []byte
		if err := rows.Scan(&summary.ParticipantID, &date, &summary.Timezone, &payload, &summary.LastUpdated); err != nil {
			return nil, err
		}
		summary.Date = timeutil.FormatDate(date)
		summary.Payload = payload
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *Postgres) LatestSummaryUpdate(ctx context.Context) (*time.Time, error) {
	query := `SELECT MAX(last_updated) FROM challenge_participant_daily_summaries`

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return nil, fmt.Errorf("error finding latest summary update: %w", err)
	}
	return latest, nil
}

func (s *Postgres) Watermark(ctx context.Context) (*time.Time, error) {
	query := `SELECT last_polled_at FROM worker_state WHERE id = 1`

	var at time.Time
	err := s.pool.QueryRow(ctx, query).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading watermark: %w", err)
	}
	return &at, nil
}

func (s *Postgres) SetWatermark(ctx context.Context, at time.Time) error {
	query := `
		INSERT INTO worker_state (id, last_polled_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_polled_at = EXCLUDED.last_polled_at`

	if _, err := s.pool.Exec(ctx, query, at); err != nil {
		return fmt.Errorf("error storing watermark: %w", err)
	}
	return nil
}
