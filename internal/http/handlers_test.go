package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/leaderboard"
	"challenge-tracker/internal/metrics"
	"challenge-tracker/internal/poller"
	"challenge-tracker/internal/store"
	"challenge-tracker/internal/testutil"
)

type testAPI struct {
	store  *store.MemoryStore
	router http.Handler
	now    time.Time
}

func newTestAPI(t *testing.T, statusFn func() poller.Status) *testAPI {
	t.Helper()
	memStore := store.NewMemoryStore()
	views := leaderboard.New(memStore, memStore, memStore, memStore)

	now := testutil.MustParseRFC3339("2025-01-23T12:00:00Z")
	h := NewHandler(memStore, views, nil, statusFn, 60)
	h.now = testutil.NowAt(now)

	return &testAPI{
		store:  memStore,
		router: NewRouter(h, nil, metrics.NewRecorder()),
		now:    now,
	}
}

func (a *testAPI) do(t *testing.T, method, path, handle string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if handle != "" {
		req.Header.Set(HandleHeader, handle)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) addAdmin(t *testing.T, handle string) {
	t.Helper()
	person, err := a.store.GetOrCreatePerson(context.Background(), handle)
	if err != nil {
		t.Fatal(err)
	}
	person.Admin = true
	a.store.SetPerson(*person)
}

func (a *testAPI) addChallenge(t *testing.T, started bool) *domain.Challenge {
	t.Helper()
	c := &domain.Challenge{Name: "test", Type: domain.ChallengeDaily, MinimumTimeMinutes: 60}
	if started {
		start := a.now.Add(-24 * time.Hour)
		c.StartedTime = &start
	}
	if err := a.store.CreateChallenge(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyTracksPollerStatus(t *testing.T) {
	status := poller.Status{}
	api := newTestAPI(t, func() poller.Status { return status })

	rec := api.do(t, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first successful cycle, got %d", rec.Code)
	}

	status = poller.Status{LastSuccess: time.Now()}
	rec = api.do(t, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once the loop is healthy, got %d", rec.Code)
	}
}

func TestCreateChallengeRequiresAdmin(t *testing.T) {
	api := newTestAPI(t, nil)
	body := map[string]any{"name": "sprint"}

	rec := api.do(t, http.MethodPost, "/challenges", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/challenges", "pleb", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}

	api.addAdmin(t, "boss")
	rec = api.do(t, http.MethodPost, "/challenges", "boss", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[challengeResponse](t, rec)
	if resp.State != string(domain.StateOpenForSignups) {
		t.Fatalf("a challenge without a start is open for signups, got %q", resp.State)
	}
	if resp.MinimumTimeMinutes != 60 {
		t.Fatalf("expected the default minimum, got %d", resp.MinimumTimeMinutes)
	}
}

func TestCreateChallengeRejectsBadType(t *testing.T) {
	api := newTestAPI(t, nil)
	api.addAdmin(t, "boss")
	rec := api.do(t, http.MethodPost, "/challenges", "boss", map[string]any{"name": "x", "type": "WEEKLY"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
}

func TestCreateTeamReturnsJoinCode(t *testing.T) {
	api := newTestAPI(t, nil)
	c := api.addChallenge(t, true)

	rec := api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{"timezone": "America/New_York"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[teamResponse](t, rec)
	if !regexp.MustCompile(`^[A-Z0-9]{4}$`).MatchString(resp.JoinCode) {
		t.Fatalf("unexpected join code %q", resp.JoinCode)
	}

	// A person gets at most one participation per challenge.
	rec = api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{"timezone": "UTC"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second participation, got %d", rec.Code)
	}
}

func TestCreateTeamValidatesTimezone(t *testing.T) {
	api := newTestAPI(t, nil)
	c := api.addChallenge(t, true)

	rec := api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{"timezone": "Not/AZone"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timezone, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing timezone, got %d", rec.Code)
	}
}

func TestJoinTeamByCode(t *testing.T) {
	api := newTestAPI(t, nil)
	c := api.addChallenge(t, true)

	rec := api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{"timezone": "UTC"})
	created := decode[teamResponse](t, rec)

	// Codes match case-insensitively.
	rec = api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/join", "bob", map[string]any{
		"joinCode": strings.ToLower(created.JoinCode),
		"timezone": "Europe/Berlin",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	joined := decode[teamResponse](t, rec)
	if joined.ID != created.ID {
		t.Fatalf("expected to join team %s, got %s", created.ID, joined.ID)
	}

	rec = api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/join", "carol", map[string]any{
		"joinCode": "XXXX",
		"timezone": "UTC",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", rec.Code)
	}
}

func TestLeaveTeam(t *testing.T) {
	api := newTestAPI(t, nil)
	c := api.addChallenge(t, true)

	api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{"timezone": "UTC"})

	rec := api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/leave", "alice", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/leave", "alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after leaving, got %d", rec.Code)
	}

	// The solo team disappeared with its last member, so its code is free.
	rosters, err := api.store.ListTeamRosters(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rosters) != 0 {
		t.Fatalf("expected the empty team to be gone, got %d rosters", len(rosters))
	}
}

func TestJoinEndedChallengeConflicts(t *testing.T) {
	api := newTestAPI(t, nil)
	c := api.addChallenge(t, true)
	ended := api.now.Add(-time.Hour)
	c.EndedTime = &ended
	if err := api.store.CreateChallenge(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	rec := api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "late", map[string]any{"timezone": "UTC"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an ended challenge, got %d", rec.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)
	c := api.addChallenge(t, true)

	api.do(t, http.MethodPost, "/challenges/"+c.ID.String()+"/teams", "alice", map[string]any{"timezone": "UTC"})

	rec := api.do(t, http.MethodGet, "/challenges/"+c.ID.String()+"/leaderboard?viewer=alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	view := decode[leaderboard.View](t, rec)
	if view.ChallengeID != c.ID {
		t.Fatalf("unexpected view challenge %s", view.ChallengeID)
	}

	rec = api.do(t, http.MethodGet, "/challenges/"+c.ID.String()+"/leaderboard", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a viewer, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/challenges/"+uuid.NewString()+"/leaderboard?viewer=alice", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown challenge, got %d", rec.Code)
	}
}

func TestInvalidChallengeID(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodGet, "/challenges/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
