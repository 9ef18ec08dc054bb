package poller

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/hackatime"
	"challenge-tracker/internal/metrics"
	"challenge-tracker/internal/store"
	"challenge-tracker/internal/teststubs"
	"challenge-tracker/internal/testutil"
)

func TestPollerRefreshesUsersAndAdvancesWatermark(t *testing.T) {
	memStore := store.NewMemoryStore()
	source := &teststubs.StubHeartbeatSource{
		Users: []hackatime.HeartbeatUser{
			{UserID: "U1"}, {UserID: "U2"},
		},
	}
	refresher := &teststubs.StubRefresher{}

	p := New(source, refresher, memStore, nil, metrics.NewRecorder(), time.Second, 2)

	t0 := testutil.MustParseRFC3339("2025-01-23T10:00:00Z")
	t1 := testutil.MustParseRFC3339("2025-01-23T10:00:30Z")

	p.setWatermark(t0)
	p.now = testutil.NowAt(t1)
	p.pollOnce(context.Background())

	refreshed := refresher.Refreshed()
	sort.Strings(refreshed)
	if len(refreshed) != 2 || refreshed[0] != "U1" || refreshed[1] != "U2" {
		t.Fatalf("expected both users refreshed, got %v", refreshed)
	}

	// The query covers [old watermark, ...) and the watermark then advances
	// to the instant snapshotted at the top of the cycle.
	sinces := source.Sinces()
	if len(sinces) != 1 || !sinces[0].Equal(t0) {
		t.Fatalf("expected query since %v, got %v", t0, sinces)
	}
	if !p.watermark.Equal(t1) {
		t.Fatalf("expected watermark %v, got %v", t1, p.watermark)
	}

	// Persisted too.
	durable, err := memStore.Watermark(context.Background())
	if err != nil || durable == nil || !durable.Equal(t1) {
		t.Fatalf("expected durable watermark %v, got %v (%v)", t1, durable, err)
	}
}

func TestPollerKeepsWatermarkOnQueryFailure(t *testing.T) {
	memStore := store.NewMemoryStore()
	source := &teststubs.StubHeartbeatSource{Err: errors.New("db down")}
	refresher := &teststubs.StubRefresher{}

	p := New(source, refresher, memStore, nil, metrics.NewRecorder(), time.Second, 2)

	t0 := testutil.MustParseRFC3339("2025-01-23T10:00:00Z")
	p.setWatermark(t0)
	p.now = testutil.NowAt(t0.Add(30 * time.Second))
	p.pollOnce(context.Background())

	if !p.watermark.Equal(t0) {
		t.Fatalf("watermark must not advance past a failed query, got %v", p.watermark)
	}
	if status := p.Status(); status.ConsecutiveFailures != 1 || status.LastError == "" {
		t.Fatalf("expected recorded failure, got %+v", status)
	}
}

func TestPollerIsolatesUserFailures(t *testing.T) {
	memStore := store.NewMemoryStore()
	source := &teststubs.StubHeartbeatSource{
		Users: []hackatime.HeartbeatUser{
			{UserID: "broken"}, {UserID: "healthy"},
		},
	}
	refresher := &teststubs.StubRefresher{
		ErrFor: map[string]error{"broken": errors.New("refresh failed")},
	}

	p := New(source, refresher, memStore, nil, metrics.NewRecorder(), time.Second, 1)

	t0 := testutil.MustParseRFC3339("2025-01-23T10:00:00Z")
	t1 := t0.Add(30 * time.Second)
	p.setWatermark(t0)
	p.now = testutil.NowAt(t1)
	p.pollOnce(context.Background())

	refreshed := refresher.Refreshed()
	if len(refreshed) != 2 {
		t.Fatalf("both users should be attempted, got %v", refreshed)
	}
	// A bad user never wedges the loop.
	if !p.watermark.Equal(t1) {
		t.Fatalf("expected watermark %v, got %v", t1, p.watermark)
	}
	if status := p.Status(); status.ConsecutiveFailures != 0 {
		t.Fatalf("user failures are not cycle failures, got %+v", status)
	}
}

func TestInitWatermarkPrefersDurableValue(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	saved := testutil.MustParseRFC3339("2025-01-20T08:00:00Z")
	if err := memStore.SetWatermark(ctx, saved); err != nil {
		t.Fatal(err)
	}

	p := New(&teststubs.StubHeartbeatSource{}, &teststubs.StubRefresher{}, memStore, nil, nil, time.Second, 2)
	if err := p.InitWatermark(ctx); err != nil {
		t.Fatal(err)
	}
	if !p.watermark.Equal(saved) {
		t.Fatalf("expected durable watermark %v, got %v", saved, p.watermark)
	}
}

func TestInitWatermarkFallsBackToEarliestChallenge(t *testing.T) {
	ctx := context.Background()
	memStore := store.NewMemoryStore()
	start := testutil.MustParseRFC3339("2025-01-10T00:00:00Z")
	c := &domain.Challenge{Name: "jan", StartedTime: &start}
	if err := memStore.CreateChallenge(ctx, c); err != nil {
		t.Fatal(err)
	}

	p := New(&teststubs.StubHeartbeatSource{}, &teststubs.StubRefresher{}, memStore, nil, nil, time.Second, 2)
	if err := p.InitWatermark(ctx); err != nil {
		t.Fatal(err)
	}
	if !p.watermark.Equal(start) {
		t.Fatalf("expected challenge start %v, got %v", start, p.watermark)
	}
}

func TestInitWatermarkDefaultsToNow(t *testing.T) {
	memStore := store.NewMemoryStore()
	p := New(&teststubs.StubHeartbeatSource{}, &teststubs.StubRefresher{}, memStore, nil, nil, time.Second, 2)
	now := testutil.MustParseRFC3339("2025-01-23T12:00:00Z")
	p.now = testutil.NowAt(now)

	if err := p.InitWatermark(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !p.watermark.Equal(now) {
		t.Fatalf("expected now %v, got %v", now, p.watermark)
	}
}

func TestPollerLoopStopsOnContextCancel(t *testing.T) {
	memStore := store.NewMemoryStore()
	source := &teststubs.StubHeartbeatSource{Notify: make(chan struct{})}
	p := New(source, &teststubs.StubRefresher{}, memStore, nil, nil, 5*time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	select {
	case <-source.Notify:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for initial cycle")
	}

	cancel()
	if err := p.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Stop is idempotent.
	if err := p.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStatusIsReady(t *testing.T) {
	cases := []struct {
		name   string
		status Status
		want   bool
	}{
		{"never succeeded", Status{}, false},
		{"recent success", Status{LastSuccess: time.Now()}, true},
		{"failing repeatedly", Status{LastSuccess: time.Now(), ConsecutiveFailures: 3}, false},
		{"one recent failure", Status{LastSuccess: time.Now(), ConsecutiveFailures: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.IsReady(); got != tc.want {
				t.Fatalf("IsReady() = %v, want %v", got, tc.want)
			}
		})
	}
}
