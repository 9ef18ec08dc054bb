package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"challenge-tracker/internal/hackatime"
	"challenge-tracker/internal/logging"
)

// Refresher drives the resolve → bucket → synchronize pipeline for one user
// with new heartbeat activity. Failures in one participation never stop the
// others.
type Refresher struct {
	resolver *Resolver
	sync     *Synchronizer
	logger   *slog.Logger
}

// NewRefresher constructs a Refresher.
func NewRefresher(resolver *Resolver, sync *Synchronizer, logger *slog.Logger) *Refresher {
	return &Refresher{
		resolver: resolver,
		sync:     sync,
		logger:   logger,
	}
}

// RefreshUser resynchronizes every eligible participation of the user over
// the observed heartbeat window. The returned error aggregates unit failures
// for the caller's reporting path; partial progress has already been stored.
func (r *Refresher) RefreshUser(ctx context.Context, user hackatime.HeartbeatUser) error {
	participations, err := r.resolver.EligibleParticipations(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("resolving participations for %s: %w", user.UserID, err)
	}
	if len(participations) == 0 {
		return nil
	}

	var errs []error
	for _, p := range participations {
		dates, err := DayWindow(p, user.EarliestHeartbeatUTC, user.LatestHeartbeatUTC)
		if err != nil {
			// Commonly a malformed stored timezone; skip this participation.
			logging.Warn(r.logger, "skipping participation",
				slog.String(logging.FieldUser, user.UserID),
				slog.String(logging.FieldParticipant, p.Participant.ID.String()),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		if len(dates) == 0 {
			continue
		}

		synced, err := r.sync.SyncDates(ctx, user.UserID, p, dates)
		if err != nil {
			logging.Warn(r.logger, "participation refresh incomplete",
				slog.String(logging.FieldUser, user.UserID),
				slog.String(logging.FieldParticipant, p.Participant.ID.String()),
				slog.Int(logging.FieldCount, synced),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
