package metrics

import (
	"sync"
	"time"
)

type counters struct {
	pollCycles      int
	pollErrors      int
	usersRefreshed  int
	unitAttempts    int
	unitFailures    int
	upstreamCalls   int
	upstreamErrors  int
	lastCycleTime   time.Duration
	lastUpstreamLat time.Duration
}

// Recorder captures lightweight, in-memory metrics about the reconciliation
// loop. It is intentionally simple so it can be swapped for a real backend
// later; when otel instruments are attached it mirrors everything there too.
type Recorder struct {
	mu    sync.Mutex
	stats counters
	otel  *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{otel: otel}
}

// RecordPollCycle tracks one poll loop cycle and its outcome.
func (r *Recorder) RecordPollCycle(duration time.Duration, users int, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.pollCycles++
	r.stats.usersRefreshed += users
	r.stats.lastCycleTime = duration
	if err != nil {
		r.stats.pollErrors++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordPollCycle(duration, users, err)
	}
}

// RecordRefreshUnit tracks one participant-date synchronization attempt.
// Outcome should be one of the Outcome* constants.
func (r *Recorder) RecordRefreshUnit(outcome string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.unitAttempts++
	if outcome != OutcomeOK {
		r.stats.unitFailures++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordRefreshUnit(outcome)
	}
}

// RecordUpstreamCall tracks latency and errors of summary API calls.
func (r *Recorder) RecordUpstreamCall(duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats.upstreamCalls++
	r.stats.lastUpstreamLat = duration
	if err != nil {
		r.stats.upstreamErrors++
	}
	r.mu.Unlock()

	if r.otel != nil {
		r.otel.recordUpstreamCall(duration, err)
	}
}

// RecordHTTPRequest tracks basic HTTP metrics.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// Snapshot is a copy of the current in-memory counters.
type Snapshot struct {
	PollCycles     int
	PollErrors     int
	UsersRefreshed int
	UnitAttempts   int
	UnitFailures   int
	UpstreamCalls  int
	UpstreamErrors int
	LastCycleTime  time.Duration
}

func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		PollCycles:     r.stats.pollCycles,
		PollErrors:     r.stats.pollErrors,
		UsersRefreshed: r.stats.usersRefreshed,
		UnitAttempts:   r.stats.unitAttempts,
		UnitFailures:   r.stats.unitFailures,
		UpstreamCalls:  r.stats.upstreamCalls,
		UpstreamErrors: r.stats.upstreamErrors,
		LastCycleTime:  r.stats.lastCycleTime,
	}
}
