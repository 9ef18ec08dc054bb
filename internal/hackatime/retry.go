package hackatime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"challenge-tracker/internal/logging"
)

const (
	defaultRetryAttempts = 3
	defaultBackoff       = 200 * time.Millisecond
)

type backoffFunc func(attempt int) time.Duration

// retryingSummaryAPI wraps a SummaryAPI with retry/backoff behavior for
// transient upstream failures.
type retryingSummaryAPI struct {
	inner       SummaryAPI
	logger      *slog.Logger
	maxAttempts int
	backoffFn   backoffFunc
}

// NewRetryingSummaryAPI wraps the given client with retries. If
// maxAttempts/backoff are <= 0, defaults are used. Only transient failures
// are retried; auth and client errors surface immediately.
func NewRetryingSummaryAPI(inner SummaryAPI, logger *slog.Logger, maxAttempts int, backoff time.Duration) SummaryAPI {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &retryingSummaryAPI{
		inner:       inner,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoffFn: func(attempt int) time.Duration {
			return time.Duration(attempt) * backoff
		},
	}
}

func (r *retryingSummaryAPI) Summary(ctx context.Context, userID, apiKey string, startUTC, endUTC time.Time) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		payload, err := r.inner.Summary(ctx, userID, apiKey, startUTC, endUTC)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.maxAttempts {
			break
		}

		r.logWarn(ctx, "summary fetch retry", "attempt", attempt, "max_attempts", r.maxAttempts, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoffFn(attempt)):
		}
	}

	return nil, lastErr
}

// retryable reports whether another attempt could plausibly succeed: network
// failures and 5xx responses, plus explicit throttling.
func retryable(err error) bool {
	upstream, ok := AsUpstreamError(err)
	if !ok {
		return false
	}
	if upstream.StatusCode == 0 || upstream.StatusCode >= http.StatusInternalServerError {
		return true
	}
	return upstream.StatusCode == http.StatusTooManyRequests
}

func (r *retryingSummaryAPI) logWarn(ctx context.Context, msg string, args ...any) {
	if logger := logging.FromContext(ctx, r.logger); logger != nil {
		logger.Warn(msg, args...)
	}
}
