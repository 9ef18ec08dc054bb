package hackatime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HeartbeatUser is one user with activity since a given instant, with the
// UTC bounds of that activity.
type HeartbeatUser struct {
	UserID               string
	NewHeartbeatCount    int
	EarliestHeartbeatUTC time.Time
	LatestHeartbeatUTC   time.Time
}

// HeartbeatSource reports which users have new activity.
type HeartbeatSource interface {
	UsersWithHeartbeatsSince(ctx context.Context, since time.Time) ([]HeartbeatUser, error)
}

// CredentialSource resolves a user's API key for the summary API.
type CredentialSource interface {
	APIKeyForUser(ctx context.Context, userID string) (string, error)
}

// DB queries the time-tracking service's database directly for heartbeat
// activity and per-user API keys.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB connects to the heartbeat database.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing heartbeat database config: %w", err)
	}
	cfg.MaxConns = 4

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting to heartbeat database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close releases the underlying pool.
func (db *DB) Close() {
	db.pool.Close()
}

// UsersWithHeartbeatsSince returns one row per distinct user with at least
// one heartbeat at or after the given instant.
func (db *DB) UsersWithHeartbeatsSince(ctx context.Context, since time.Time) ([]HeartbeatUser, error) {
	query := `
		SELECT
			u.id,
			COUNT(h.id),
			MIN(h.time),
			MAX(h.time)
		FROM heartbeats h
		JOIN users u ON u.id = h.user_id
		WHERE h.time >= $1
		GROUP BY u.id`

	rows, err := db.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("error querying heartbeats: %w", err)
	}
	defer rows.Close()

	var out []HeartbeatUser
	for rows.Next() {
		var user HeartbeatUser
		if err := rows.Scan(&user.UserID, &user.NewHeartbeatCount, &user.EarliestHeartbeatUTC, &user.LatestHeartbeatUTC); err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// APIKeyForUser resolves a user's API key, failing with
// MissingCredentialError when none is stored.
func (db *DB) APIKeyForUser(ctx context.Context, userID string) (string, error) {
	query := `SELECT api_key FROM users WHERE id = $1`

	var apiKey *string
	err := db.pool.QueryRow(ctx, query, userID).Scan(&apiKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", &MissingCredentialError{UserID: userID}
	}
	if err != nil {
		return "", fmt.Errorf("error looking up api key: %w", err)
	}
	if apiKey == nil || *apiKey == "" {
		return "", &MissingCredentialError{UserID: userID}
	}
	return *apiKey, nil
}
