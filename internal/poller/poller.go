package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"challenge-tracker/internal/hackatime"
	"challenge-tracker/internal/logging"
	"challenge-tracker/internal/metrics"
)

const (
	defaultInterval    = 30 * time.Second
	defaultConcurrency = 4
)

// Refresher resynchronizes one user's daily summaries after new activity.
type Refresher interface {
	RefreshUser(ctx context.Context, user hackatime.HeartbeatUser) error
}

// StateStore provides the durable watermark plus the fallbacks used to seed
// it on a cold start.
type StateStore interface {
	Watermark(ctx context.Context) (*time.Time, error)
	SetWatermark(ctx context.Context, at time.Time) error
	LatestSummaryUpdate(ctx context.Context) (*time.Time, error)
	EarliestChallengeStart(ctx context.Context) (*time.Time, error)
}

// Poller drives the reconciliation loop: on an interval it asks the heartbeat
// store which users have activity past the watermark, fans their refreshes out
// to a bounded worker pool, and advances the watermark only after the cycle's
// dispatch completes.
type Poller struct {
	heartbeats  hackatime.HeartbeatSource
	refresher   Refresher
	state       StateStore
	logger      *slog.Logger
	metrics     *metrics.Recorder
	interval    time.Duration
	concurrency int
	now         func() time.Time

	watermark time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	statusMu sync.RWMutex
	status   Status
}

// Status describes the recent health of the poll loop.
type Status struct {
	ConsecutiveFailures int
	LastError           string
	LastAttempt         time.Time
	LastSuccess         time.Time
	Watermark           time.Time
}

// IsReady reports whether the loop has had a recent success and is not
// failing repeatedly.
func (s Status) IsReady() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}

// New constructs a Poller with sane defaults.
func New(heartbeats hackatime.HeartbeatSource, refresher Refresher, state StateStore, logger *slog.Logger, recorder *metrics.Recorder, interval time.Duration, concurrency int) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Poller{
		heartbeats:  heartbeats,
		refresher:   refresher,
		state:       state,
		logger:      logger,
		metrics:     recorder,
		interval:    interval,
		concurrency: concurrency,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

// InitWatermark seeds the query watermark before the loop starts. The durable
// watermark wins; otherwise fall back to the newest stored summary, then the
// earliest challenge start, then the current instant. Each fallback widens the
// first query rather than risking a gap.
func (p *Poller) InitWatermark(ctx context.Context) error {
	if wm, err := p.state.Watermark(ctx); err != nil {
		p.logWarn("reading durable watermark failed", err)
	} else if wm != nil {
		p.setWatermark(*wm)
		return nil
	}

	if latest, err := p.state.LatestSummaryUpdate(ctx); err != nil {
		p.logWarn("reading latest summary update failed", err)
	} else if latest != nil {
		p.setWatermark(*latest)
		return nil
	}

	if earliest, err := p.state.EarliestChallengeStart(ctx); err != nil {
		p.logWarn("reading earliest challenge start failed", err)
	} else if earliest != nil {
		p.setWatermark(*earliest)
		return nil
	}

	p.setWatermark(p.now())
	return nil
}

// Start begins polling until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return
	}
	p.started = true
	p.startMu.Unlock()

	if p.watermark.IsZero() {
		p.setWatermark(p.now())
	}

	p.ticker = time.NewTicker(p.interval)

	go func() {
		p.logInfo("poll loop started",
			slog.Int64(logging.FieldDurationMS, p.interval.Milliseconds()),
			slog.Time(logging.FieldWatermark, p.watermark),
		)
		// Initial cycle on boot so a restart catches up immediately.
		p.pollOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				p.stopTicker()
				p.logInfo("poll loop stopped")
				return
			case <-p.done:
				p.stopTicker()
				p.logInfo("poll loop stopped")
				return
			case <-p.ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()
}

// Stop halts the polling loop.
func (p *Poller) Stop(ctx context.Context) error {
	_ = ctx
	p.stopOnce.Do(func() {
		close(p.done)
		p.stopTicker()
	})
	return nil
}

// pollOnce runs one reconciliation cycle. The cycle boundary is snapshotted
// before the heartbeat query so activity arriving mid-cycle lands after the
// new watermark and is picked up next time. The watermark only advances when
// the query itself succeeds; individual user refresh failures are logged and
// retried naturally on their next heartbeat.
func (p *Poller) pollOnce(ctx context.Context) {
	start := time.Now()
	cycleBoundary := p.now()
	p.recordAttempt(start)

	users, err := p.heartbeats.UsersWithHeartbeatsSince(ctx, p.watermark)
	if err != nil {
		p.metrics.RecordPollCycle(time.Since(start), 0, err)
		p.logError("heartbeat query failed", err,
			slog.Time(logging.FieldWatermark, p.watermark),
		)
		p.recordFailure(err, start)
		return
	}

	if len(users) > 0 {
		p.refreshAll(ctx, users)
	}

	p.setWatermark(cycleBoundary)
	if err := p.state.SetWatermark(ctx, cycleBoundary); err != nil {
		// The in-memory watermark still advanced, so the loop keeps
		// working; only cold-start recovery degrades.
		p.logWarn("persisting watermark failed", err)
	}

	p.metrics.RecordPollCycle(time.Since(start), len(users), nil)
	p.recordSuccess(start)
	if len(users) > 0 {
		p.logInfo("poll cycle complete",
			slog.Int(logging.FieldCount, len(users)),
			slog.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
			slog.Time(logging.FieldWatermark, cycleBoundary),
		)
	}
}

// refreshAll dispatches user refreshes to a bounded pool and waits for all of
// them before the cycle ends, so overlapping cycles never race on the same
// user's rows.
func (p *Poller) refreshAll(ctx context.Context, users []hackatime.HeartbeatUser) {
	work := make(chan hackatime.HeartbeatUser)
	var wg sync.WaitGroup

	workers := p.concurrency
	if workers > len(users) {
		workers = len(users)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range work {
				if err := p.refresher.RefreshUser(ctx, user); err != nil {
					p.logError("user refresh failed", err,
						slog.String(logging.FieldUser, user.UserID),
					)
				}
			}
		}()
	}

	for _, user := range users {
		select {
		case work <- user:
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		}
	}
	close(work)
	wg.Wait()
}

func (p *Poller) setWatermark(at time.Time) {
	p.watermark = at
	p.statusMu.Lock()
	p.status.Watermark = at
	p.statusMu.Unlock()
}

func (p *Poller) stopTicker() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

func (p *Poller) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Poller) logWarn(msg string, err error, attrs ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, append(attrs, "error", err)...)
	}
}

func (p *Poller) logError(msg string, err error, attrs ...any) {
	if p.logger != nil {
		p.logger.Error(msg, append(attrs, "error", err)...)
	}
}

func (p *Poller) recordAttempt(at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.LastAttempt = at
}

func (p *Poller) recordSuccess(at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastError = ""
	p.status.LastSuccess = at
}

func (p *Poller) recordFailure(err error, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures++
	if err != nil {
		p.status.LastError = err.Error()
	}
	p.status.LastAttempt = at
}

// Status returns a snapshot of the loop's recent health.
func (p *Poller) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}
