package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/hackatime"
	"challenge-tracker/internal/logging"
	"challenge-tracker/internal/metrics"
	"challenge-tracker/internal/store"
	"challenge-tracker/internal/timeutil"
)

// Synchronizer fetches daily aggregates from the summary API and persists
// them idempotently, one (date, participant) row at a time.
type Synchronizer struct {
	summaries   store.SummaryStore
	credentials hackatime.CredentialSource
	client      hackatime.SummaryAPI
	logger      *slog.Logger
	metrics     *metrics.Recorder
	now         func() time.Time
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(summaries store.SummaryStore, credentials hackatime.CredentialSource, client hackatime.SummaryAPI, logger *slog.Logger, recorder *metrics.Recorder) *Synchronizer {
	return &Synchronizer{
		summaries:   summaries,
		credentials: credentials,
		client:      client,
		logger:      logger,
		metrics:     recorder,
		now:         time.Now,
	}
}

// SyncDates resynchronizes the given dates for one participation. A missing
// credential fails the whole participation; per-date failures are isolated
// and collected so the remaining dates still run. The returned count is the
// number of dates stored successfully.
func (s *Synchronizer) SyncDates(ctx context.Context, userID string, p domain.Participation, dates []string) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}

	apiKey, err := s.credentials.APIKeyForUser(ctx, userID)
	if err != nil {
		if _, ok := hackatime.AsMissingCredential(err); ok {
			s.metrics.RecordRefreshUnit(metrics.OutcomeMissingCredential)
		} else {
			s.metrics.RecordRefreshUnit(metrics.OutcomeStoreError)
		}
		return 0, err
	}

	var synced int
	var errs []error
	for _, date := range dates {
		if err := s.syncDate(ctx, userID, apiKey, p, date); err != nil {
			errs = append(errs, fmt.Errorf("date %s: %w", date, err))
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}

func (s *Synchronizer) syncDate(ctx context.Context, userID, apiKey string, p domain.Participation, date string) error {
	tz := p.Participant.Timezone

	startUTC, endUTC, err := timeutil.DayBoundsUTC(date, tz)
	if err != nil {
		s.metrics.RecordRefreshUnit(metrics.OutcomeInvalidTimezone)
		return err
	}

	payload, err := s.client.Summary(ctx, userID, apiKey, startUTC, endUTC)
	if err != nil {
		s.metrics.RecordRefreshUnit(metrics.OutcomeUpstreamError)
		return err
	}

	summary := &domain.DailySummary{
		Date:          date,
		ParticipantID: p.Participant.ID,
		Timezone:      tz,
		Payload:       payload,
		LastUpdated:   s.now(),
	}
	if err := s.summaries.UpsertDailySummary(ctx, summary); err != nil {
		s.metrics.RecordRefreshUnit(metrics.OutcomeStoreError)
		return err
	}

	s.metrics.RecordRefreshUnit(metrics.OutcomeOK)
	logging.Info(s.logger, "daily summary synchronized",
		slog.String(logging.FieldUser, userID),
		slog.String(logging.FieldParticipant, p.Participant.ID.String()),
		slog.String(logging.FieldDate, date),
	)
	return nil
}
