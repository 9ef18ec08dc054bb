package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"challenge-tracker/internal/metrics"
)

// NewRouter builds the API router with logging and metrics middleware
// applied to every route.
func NewRouter(h *Handler, logger *slog.Logger, recorder *metrics.Recorder) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(logger, recorder))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)

	r.HandleFunc("/challenges", h.ListChallenges).Methods(http.MethodGet)
	r.HandleFunc("/challenges", h.CreateChallenge).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}", h.GetChallenge).Methods(http.MethodGet)
	r.HandleFunc("/challenges/{id}/teams", h.CreateTeam).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}/join", h.JoinTeam).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}/leave", h.LeaveTeam).Methods(http.MethodPost)
	r.HandleFunc("/challenges/{id}/leaderboard", h.Leaderboard).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found", logger)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", logger)
	})

	return r
}
