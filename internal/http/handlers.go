package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"challenge-tracker/internal/domain"
	"challenge-tracker/internal/leaderboard"
	"challenge-tracker/internal/logging"
	"challenge-tracker/internal/poller"
	"challenge-tracker/internal/store"
	"challenge-tracker/internal/timeutil"
)

// HandleHeader carries the caller's external identity handle. People are
// upserted on first contact, so any authenticated handle is a valid caller.
const HandleHeader = "X-User-Handle"

// Handler wires HTTP routes to the stores and the leaderboard aggregator.
type Handler struct {
	store          store.Store
	views          *leaderboard.Aggregator
	logger         *slog.Logger
	now            func() time.Time
	statusFn       func() poller.Status
	defaultMinimum int
}

// NewHandler constructs a Handler with defaults.
func NewHandler(s store.Store, views *leaderboard.Aggregator, logger *slog.Logger, statusFn func() poller.Status, defaultMinimumMinutes int) *Handler {
	return &Handler{
		store:          s,
		views:          views,
		logger:         logger,
		now:            time.Now,
		statusFn:       statusFn,
		defaultMinimum: defaultMinimumMinutes,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := r.Context().Err(); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports readiness for traffic based on the poll loop's recent health.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.statusFn == nil || h.statusFn().IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	msg := h.statusFn().LastError
	if msg == "" {
		msg = "not ready"
	}
	writeError(w, r, http.StatusServiceUnavailable, msg, h.logger)
}

type challengeRequest struct {
	Name               string     `json:"name"`
	StartedTime        *time.Time `json:"startedTime,omitempty"`
	EndedTime          *time.Time `json:"endedTime,omitempty"`
	Type               string     `json:"type,omitempty"`
	MinimumTimeMinutes int        `json:"minimumTimeMinutes,omitempty"`
	MinimumTeamSize    int        `json:"minimumTeamSize,omitempty"`
	EditorConstraint   string     `json:"editorConstraint,omitempty"`
	LanguageConstraint string     `json:"languageConstraint,omitempty"`
}

type challengeResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	State              string     `json:"state"`
	StartedTime        *time.Time `json:"startedTime,omitempty"`
	EndedTime          *time.Time `json:"endedTime,omitempty"`
	Type               string     `json:"type"`
	MinimumTimeMinutes int        `json:"minimumTimeMinutes"`
	MinimumTeamSize    int        `json:"minimumTeamSize"`
}

func (h *Handler) challengeResponse(c domain.Challenge) challengeResponse {
	return challengeResponse{
		ID:                 c.ID,
		Name:               c.Name,
		State:              string(c.StateAt(h.now())),
		StartedTime:        c.StartedTime,
		EndedTime:          c.EndedTime,
		Type:               string(c.Type),
		MinimumTimeMinutes: c.MinimumTimeMinutes,
		MinimumTeamSize:    c.MinimumTeamSize,
	}
}

// ListChallenges returns every challenge that has not ended yet.
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.store.ListActiveChallenges(r.Context(), h.now())
	if err != nil {
		h.serverError(w, r, "listing challenges", err)
		return
	}
	out := make([]challengeResponse, 0, len(challenges))
	for _, c := range challenges {
		out = append(out, h.challengeResponse(c))
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

// CreateChallenge creates a challenge; admin only.
func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	person, ok := h.identify(w, r)
	if !ok {
		return
	}
	if !person.Admin {
		writeError(w, r, http.StatusForbidden, "admin required", h.logger)
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required", h.logger)
		return
	}

	challengeType := domain.ChallengeType(req.Type)
	switch challengeType {
	case "":
		challengeType = domain.ChallengeDaily
	case domain.ChallengeDaily, domain.ChallengeCumulative:
	default:
		writeError(w, r, http.StatusBadRequest, "invalid challenge type", h.logger)
		return
	}

	minimum := req.MinimumTimeMinutes
	if minimum <= 0 {
		minimum = h.defaultMinimum
	}
	teamSize := req.MinimumTeamSize
	if teamSize <= 0 {
		teamSize = 1
	}

	challenge := &domain.Challenge{
		Name:               req.Name,
		StartedTime:        req.StartedTime,
		EndedTime:          req.EndedTime,
		Type:               challengeType,
		MinimumTimeMinutes: minimum,
		MinimumTeamSize:    teamSize,
		EditorConstraint:   req.EditorConstraint,
		LanguageConstraint: req.LanguageConstraint,
	}
	if err := h.store.CreateChallenge(r.Context(), challenge); err != nil {
		h.serverError(w, r, "creating challenge", err)
		return
	}

	logging.Info(loggerFromContext(r, h.logger), "challenge created",
		slog.String(logging.FieldChallenge, challenge.ID.String()),
		slog.String(logging.FieldUser, person.Handle),
	)
	writeJSON(w, http.StatusCreated, h.challengeResponse(*challenge), h.logger)
}

// GetChallenge returns one challenge with its derived state.
func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	challenge, ok := h.loadChallenge(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.challengeResponse(*challenge), h.logger)
}

type teamRequest struct {
	Timezone string `json:"timezone"`
}

type joinRequest struct {
	JoinCode string `json:"joinCode"`
	Timezone string `json:"timezone"`
}

type teamResponse struct {
	ID          uuid.UUID `json:"id"`
	ChallengeID uuid.UUID `json:"challengeId"`
	JoinCode    string    `json:"joinCode"`
}

// CreateTeam creates a team in the challenge with the caller as its first
// member. The caller's timezone is captured now and drives all of their day
// bucketing for this challenge.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	person, ok := h.identify(w, r)
	if !ok {
		return
	}
	challenge, ok := h.loadChallenge(w, r)
	if !ok {
		return
	}

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if !h.checkJoinable(w, r, *challenge, person.ID, req.Timezone) {
		return
	}

	joinCode, err := newJoinCode(r.Context(), h.store, challenge.ID)
	if err != nil {
		h.serverError(w, r, "generating join code", err)
		return
	}

	team := &domain.ChallengeTeam{ChallengeID: challenge.ID, JoinCode: joinCode}
	participant := &domain.ChallengeParticipant{
		PersonID: person.ID,
		Timezone: req.Timezone,
		JoinedAt: h.now(),
	}
	if err := h.store.CreateTeamWithCreator(r.Context(), team, participant); err != nil {
		h.serverError(w, r, "creating team", err)
		return
	}

	logging.Info(loggerFromContext(r, h.logger), "team created",
		slog.String(logging.FieldChallenge, challenge.ID.String()),
		slog.String(logging.FieldTeam, team.ID.String()),
		slog.String(logging.FieldUser, person.Handle),
	)
	writeJSON(w, http.StatusCreated, teamResponse{ID: team.ID, ChallengeID: challenge.ID, JoinCode: team.JoinCode}, h.logger)
}

// JoinTeam adds the caller to an existing team identified by its join code.
func (h *Handler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	person, ok := h.identify(w, r)
	if !ok {
		return
	}
	challenge, ok := h.loadChallenge(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.JoinCode == "" {
		writeError(w, r, http.StatusBadRequest, "joinCode is required", h.logger)
		return
	}
	if !h.checkJoinable(w, r, *challenge, person.ID, req.Timezone) {
		return
	}

	team, err := h.store.GetTeamByJoinCode(r.Context(), challenge.ID, req.JoinCode)
	if err != nil {
		h.serverError(w, r, "looking up join code", err)
		return
	}
	if team == nil {
		writeError(w, r, http.StatusNotFound, "unknown join code", h.logger)
		return
	}

	participant := &domain.ChallengeParticipant{
		TeamID:   team.ID,
		PersonID: person.ID,
		Timezone: req.Timezone,
		JoinedAt: h.now(),
	}
	if err := h.store.AddParticipant(r.Context(), participant); err != nil {
		h.serverError(w, r, "adding participant", err)
		return
	}

	logging.Info(loggerFromContext(r, h.logger), "participant joined",
		slog.String(logging.FieldChallenge, challenge.ID.String()),
		slog.String(logging.FieldTeam, team.ID.String()),
		slog.String(logging.FieldUser, person.Handle),
	)
	writeJSON(w, http.StatusOK, teamResponse{ID: team.ID, ChallengeID: challenge.ID, JoinCode: team.JoinCode}, h.logger)
}

// LeaveTeam removes the caller's participation in the challenge. Removing a
// team's last member removes the team.
func (h *Handler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	person, ok := h.identify(w, r)
	if !ok {
		return
	}
	challenge, ok := h.loadChallenge(w, r)
	if !ok {
		return
	}

	participant, err := h.store.FindParticipationForChallenge(r.Context(), person.ID, challenge.ID)
	if err != nil {
		h.serverError(w, r, "looking up participation", err)
		return
	}
	if participant == nil {
		writeError(w, r, http.StatusNotFound, "not participating in this challenge", h.logger)
		return
	}
	if err := h.store.RemoveParticipant(r.Context(), participant.ID); err != nil {
		h.serverError(w, r, "removing participant", err)
		return
	}

	logging.Info(loggerFromContext(r, h.logger), "participant left",
		slog.String(logging.FieldChallenge, challenge.ID.String()),
		slog.String(logging.FieldUser, person.Handle),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard renders the per-day standings for the viewer.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	challengeID, ok := h.challengeID(w, r)
	if !ok {
		return
	}

	viewer := r.URL.Query().Get("viewer")
	if viewer == "" {
		viewer = r.Header.Get(HandleHeader)
	}
	if viewer == "" {
		writeError(w, r, http.StatusBadRequest, "viewer is required", h.logger)
		return
	}

	view, err := h.views.ViewFor(r.Context(), challengeID, viewer)
	if err != nil {
		if errors.Is(err, leaderboard.ErrChallengeNotFound) {
			writeError(w, r, http.StatusNotFound, "challenge not found", h.logger)
			return
		}
		h.serverError(w, r, "rendering leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, view, h.logger)
}

// identify resolves the caller from the handle header, creating the person on
// first contact.
func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (*domain.Person, bool) {
	handle := r.Header.Get(HandleHeader)
	if handle == "" {
		writeError(w, r, http.StatusUnauthorized, "missing "+HandleHeader+" header", h.logger)
		return nil, false
	}
	person, err := h.store.GetOrCreatePerson(r.Context(), handle)
	if err != nil {
		h.serverError(w, r, "resolving person", err)
		return nil, false
	}
	return person, true
}

func (h *Handler) challengeID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid challenge id", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) loadChallenge(w http.ResponseWriter, r *http.Request) (*domain.Challenge, bool) {
	id, ok := h.challengeID(w, r)
	if !ok {
		return nil, false
	}
	challenge, err := h.store.GetChallenge(r.Context(), id)
	if err != nil {
		h.serverError(w, r, "loading challenge", err)
		return nil, false
	}
	if challenge == nil {
		writeError(w, r, http.StatusNotFound, "challenge not found", h.logger)
		return nil, false
	}
	return challenge, true
}

// checkJoinable enforces the joining rules shared by team creation and team
// joining: a valid timezone, a challenge that has not ended, and at most one
// participation per person per challenge.
func (h *Handler) checkJoinable(w http.ResponseWriter, r *http.Request, challenge domain.Challenge, personID uuid.UUID, timezone string) bool {
	if err := timeutil.ValidateTimezone(timezone); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid timezone", h.logger)
		return false
	}
	if challenge.StateAt(h.now()) == domain.StateEnded {
		writeError(w, r, http.StatusConflict, "challenge has ended", h.logger)
		return false
	}

	existing, err := h.store.FindParticipationForChallenge(r.Context(), personID, challenge.ID)
	if err != nil {
		h.serverError(w, r, "looking up participation", err)
		return false
	}
	if existing != nil {
		writeError(w, r, http.StatusConflict, "already participating in this challenge", h.logger)
		return false
	}
	return true
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, what string, err error) {
	logging.Error(loggerFromContext(r, h.logger), what+" failed", err)
	writeError(w, r, http.StatusInternalServerError, "internal error", h.logger)
}
