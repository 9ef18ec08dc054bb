package teststubs

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"challenge-tracker/internal/hackatime"
)

// StubHeartbeatSource is a test double for hackatime.HeartbeatSource.
type StubHeartbeatSource struct {
	Users  []hackatime.HeartbeatUser
	Err    error
	Calls  atomic.Int32
	Notify chan struct{}

	mu     sync.Mutex
	sinces []time.Time
}

// UsersWithHeartbeatsSince returns the configured users while tracking the
// query instants it was asked about.
func (s *StubHeartbeatSource) UsersWithHeartbeatsSince(_ context.Context, since time.Time) ([]hackatime.HeartbeatUser, error) {
	s.mu.Lock()
	s.sinces = append(s.sinces, since)
	s.mu.Unlock()

	if s.Notify != nil {
		select {
		case <-s.Notify:
		default:
			close(s.Notify)
		}
	}
	s.Calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Users, nil
}

// Sinces returns every `since` instant the source was queried with.
func (s *StubHeartbeatSource) Sinces() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.sinces))
	copy(out, s.sinces)
	return out
}

// StubCredentialSource is a test double for hackatime.CredentialSource.
// Users absent from Keys fail with MissingCredentialError.
type StubCredentialSource struct {
	Keys map[string]string
	Err  error
}

func (s *StubCredentialSource) APIKeyForUser(_ context.Context, userID string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	key, ok := s.Keys[userID]
	if !ok || key == "" {
		return "", &hackatime.MissingCredentialError{UserID: userID}
	}
	return key, nil
}

// SummaryCall records one request made to a StubSummaryAPI.
type SummaryCall struct {
	UserID   string
	StartUTC time.Time
	EndUTC   time.Time
}

// StubSummaryAPI is a test double for hackatime.SummaryAPI.
type StubSummaryAPI struct {
	Payload json.RawMessage
	// PerUser overrides Payload/Err for specific users.
	PerUserPayload map[string]json.RawMessage
	PerUserErr     map[string]error
	Err            error

	mu    sync.Mutex
	calls []SummaryCall
}

func (s *StubSummaryAPI) Summary(_ context.Context, userID, _ string, startUTC, endUTC time.Time) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, SummaryCall{UserID: userID, StartUTC: startUTC, EndUTC: endUTC})
	s.mu.Unlock()

	if err, ok := s.PerUserErr[userID]; ok && err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if payload, ok := s.PerUserPayload[userID]; ok {
		return payload, nil
	}
	if s.Payload != nil {
		return s.Payload, nil
	}
	return json.RawMessage(`{"categories":[]}`), nil
}

// Calls returns a copy of the recorded summary requests.
func (s *StubSummaryAPI) Calls() []SummaryCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SummaryCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// StubRefresher is a test double for the poller's Refresher dependency.
type StubRefresher struct {
	// ErrFor makes RefreshUser fail for the given user IDs.
	ErrFor map[string]error

	mu        sync.Mutex
	refreshed []string
}

func (s *StubRefresher) RefreshUser(_ context.Context, user hackatime.HeartbeatUser) error {
	s.mu.Lock()
	s.refreshed = append(s.refreshed, user.UserID)
	s.mu.Unlock()

	if err, ok := s.ErrFor[user.UserID]; ok {
		return err
	}
	return nil
}

// Refreshed returns the user IDs refreshed so far.
func (s *StubRefresher) Refreshed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.refreshed))
	copy(out, s.refreshed)
	return out
}
