package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"challenge-tracker/internal/config"
	"challenge-tracker/internal/metrics"
	"challenge-tracker/internal/poller"
	"challenge-tracker/internal/store"
)

type stubPoller struct {
	started atomic.Bool
	stopped atomic.Bool
	status  poller.Status
}

func (p *stubPoller) Start(context.Context) { p.started.Store(true) }
func (p *stubPoller) Stop(context.Context) error {
	p.stopped.Store(true)
	return nil
}
func (p *stubPoller) Status() poller.Status { return p.status }

func testConfig() config.Config {
	return config.Config{
		Port:               "0",
		PollInterval:       config.Duration(time.Second),
		PollConcurrency:    2,
		TrailingWindowDays: 7,
		DefaultMinimumTime: 60,
	}
}

func TestServerHandlerServesRoutes(t *testing.T) {
	plr := &stubPoller{status: poller.Status{LastSuccess: time.Now()}}
	srv := newServerWithDeps(testConfig(), nil, store.NewMemoryStore(), plr, metrics.NewRecorder())

	for _, path := range []string{"/health", "/ready", "/challenges"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRunStopsEverythingOnCancel(t *testing.T) {
	plr := &stubPoller{}
	srv := newServerWithDeps(testConfig(), nil, store.NewMemoryStore(), plr, metrics.NewRecorder())
	// Avoid binding a real port; Run only needs Shutdown to work.
	srv.httpServer = &fakeHTTPServer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx, cancel)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if !plr.started.Load() || !plr.stopped.Load() {
		t.Fatalf("poll loop lifecycle incomplete: started=%v stopped=%v", plr.started.Load(), plr.stopped.Load())
	}
}

func TestServerFailureStopsRun(t *testing.T) {
	plr := &stubPoller{}
	srv := newServerWithDeps(testConfig(), nil, store.NewMemoryStore(), plr, metrics.NewRecorder())
	srv.httpServer = &fakeHTTPServer{listenErr: errors.New("bind failed")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		srv.Run(ctx, cancel)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run should stop when the listener fails")
	}
}

type fakeHTTPServer struct {
	listenErr error
	shutdowns atomic.Int32
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	return nil
}

func (f *fakeHTTPServer) Addr() string          { return ":0" }
func (f *fakeHTTPServer) Handler() http.Handler { return nil }
