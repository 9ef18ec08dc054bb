package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"challenge-tracker/internal/config"
	"challenge-tracker/internal/hackatime"
	httpapi "challenge-tracker/internal/http"
	"challenge-tracker/internal/leaderboard"
	"challenge-tracker/internal/metrics"
	"challenge-tracker/internal/poller"
	"challenge-tracker/internal/refresh"
	"challenge-tracker/internal/store"
)

var metricsSetup = metrics.Setup

// Server owns the reconciliation loop, the API server and the metrics
// endpoint, and tears them down together.
type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	store         store.Store
	heartbeatsDB  *hackatime.DB
	poller        Poller
	httpServer    httpServer
	metricsServer httpServer
	metricsStop   func(context.Context) error
	closeStore    func()
}

// New constructs a fully wired server: postgres storage, the heartbeat
// database, the summary client, the refresh pipeline, and the poll loop with
// its watermark seeded.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger)

	pgStore, err := store.NewPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	heartbeatsDB, err := hackatime.NewDB(ctx, cfg.Hackatime.DatabaseURL)
	if err != nil {
		pgStore.Close()
		return nil, fmt.Errorf("connecting to heartbeat database: %w", err)
	}

	client := hackatime.NewRetryingSummaryAPI(hackatime.NewClient(hackatime.ClientConfig{
		BaseURL: cfg.Hackatime.BaseURL,
		Metrics: recorder,
	}), logger, 0, 0)

	trailingWindow := time.Duration(cfg.TrailingWindowDays) * 24 * time.Hour
	resolver := refresh.NewResolver(pgStore, trailingWindow)
	sync := refresh.NewSynchronizer(pgStore, heartbeatsDB, client, logger, recorder)
	refresher := refresh.NewRefresher(resolver, sync, logger)

	plr := poller.New(heartbeatsDB, refresher, pgStore, logger, recorder, time.Duration(cfg.PollInterval), cfg.PollConcurrency)
	if err := plr.InitWatermark(ctx); err != nil {
		heartbeatsDB.Close()
		pgStore.Close()
		return nil, fmt.Errorf("seeding watermark: %w", err)
	}

	srv := newServerWithDeps(cfg, logger, pgStore, plr, recorder)
	srv.heartbeatsDB = heartbeatsDB
	srv.metricsServer = metricsSrv
	srv.metricsStop = metricsShutdown
	srv.closeStore = pgStore.Close
	return srv, nil
}

// newServerWithDeps wires the API surface around injected storage and poll
// loop, so tests can run against the in-memory store.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, s store.Store, plr Poller, recorder *metrics.Recorder) *Server {
	var statusFn func() poller.Status
	if plr != nil {
		statusFn = plr.Status
	}

	views := leaderboard.New(s, s, s, s)
	handler := httpapi.NewHandler(s, views, logger, statusFn, cfg.DefaultMinimumTime)
	router := httpapi.NewRouter(handler, logger, recorder)

	httpSrv := netHTTPServer{srv: &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    recorder,
		store:      s,
		poller:     plr,
		httpServer: httpSrv,
	}
}

func buildMetrics(cfg config.Config, logger *slog.Logger) (*metrics.Recorder, httpServer, func(context.Context) error) {
	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		if logger != nil {
			logger.Warn("metrics setup failed, continuing without telemetry", "err", err)
		}
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{srv: &http.Server{
			Addr:    ":" + recCfg.Port,
			Handler: handler,
		}}
	}

	return rec, metricsSrv, shutdown
}

// Run starts the poll loop and the HTTP servers, then waits for context
// cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startServer(stop)
	s.poller.Start(ctx)

	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("shutdown signal received")
	}

	s.gracefulShutdown()
}

func (s *Server) startServer(stop context.CancelFunc) {
	launchServer("http", s.httpServer, s.logger, func(err error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop the loop first so no refresh is mid-flight when the pools close.
	if err := s.poller.Stop(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("failed to stop poll loop", "error", err)
	}

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
	}

	if s.heartbeatsDB != nil {
		s.heartbeatsDB.Close()
	}
	if s.closeStore != nil {
		s.closeStore()
	}

	if s.logger != nil {
		s.logger.Info("shutdown complete")
	}
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		if logger != nil {
			logger.Info("starting "+name+" server", slog.String("addr", srv.Addr()))
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Warn(name+" server failed", "error", err)
			}
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}
