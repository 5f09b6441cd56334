package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/auth"
	"github.com/oscelab/osce-backend/internal/competition"
	"github.com/oscelab/osce-backend/internal/middleware"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/oscelab/osce-backend/internal/response"
	"github.com/oscelab/osce-backend/internal/validator"
	"github.com/rs/zerolog"
)

// CompetitionAdminHandler serves the operator surface of competition
// sessions: scheduling, lifecycle overrides, monitoring and standings.
type CompetitionAdminHandler struct {
	engine      *competition.Engine
	authService *auth.Service
	log         zerolog.Logger
}

// NewCompetitionAdminHandler creates a new CompetitionAdminHandler.
func NewCompetitionAdminHandler(engine *competition.Engine, authService *auth.Service, log zerolog.Logger) *CompetitionAdminHandler {
	return &CompetitionAdminHandler{
		engine:      engine,
		authService: authService,
		log:         log.With().Str("component", "competition_admin_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/sessions
func (h *CompetitionAdminHandler) List(c *gin.Context) {
	sessions, err := h.engine.ListSessions(c.Request.Context())
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// Get godoc
// GET /api/v1/admin/sessions/:id
func (h *CompetitionAdminHandler) Get(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	session, err := h.engine.GetSession(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// Create godoc
// POST /api/v1/admin/sessions
func (h *CompetitionAdminHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.engine.CreateSession(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusCreated, session)
}

// Update godoc
// PUT /api/v1/admin/sessions/:id
func (h *CompetitionAdminHandler) Update(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req model.UpdateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.engine.EditSession(c.Request.Context(), id, &req)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// Delete godoc
// DELETE /api/v1/admin/sessions/:id
func (h *CompetitionAdminHandler) Delete(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteSession(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Cancel godoc
// POST /api/v1/admin/sessions/:id/cancel
func (h *CompetitionAdminHandler) Cancel(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.engine.CancelSession(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cancelled": true})
}

// ForceStart godoc
// POST /api/v1/admin/sessions/:id/force-start
//
// Starts the session even though not every participant has logged in.
// Students who never logged in are left behind.
func (h *CompetitionAdminHandler) ForceStart(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.engine.ForceStart(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"started": true})
}

// Pause godoc
// POST /api/v1/admin/sessions/:id/pause
func (h *CompetitionAdminHandler) Pause(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.engine.Pause(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paused": true})
}

// Resume godoc
// POST /api/v1/admin/sessions/:id/resume
func (h *CompetitionAdminHandler) Resume(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.engine.Resume(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"resumed": true})
}

// End godoc
// POST /api/v1/admin/sessions/:id/end
//
// Ends the session immediately, force-completing every student still mid-run.
func (h *CompetitionAdminHandler) End(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.engine.End(c.Request.Context(), id); err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ended": true})
}

// Roster godoc
// GET /api/v1/admin/sessions/:id/participants
func (h *CompetitionAdminHandler) Roster(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	roster, err := h.engine.Roster(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, roster)
}

// Bank godoc
// GET /api/v1/admin/sessions/:id/bank
func (h *CompetitionAdminHandler) Bank(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	bank, err := h.engine.Bank(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, bank)
}

// Overview godoc
// GET /api/v1/admin/sessions/:id/overview
//
// Snapshot of every participant's live progress for the monitor dashboard.
func (h *CompetitionAdminHandler) Overview(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	overview, err := h.engine.Overview(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// Leaderboard godoc
// GET /api/v1/admin/sessions/:id/leaderboard
func (h *CompetitionAdminHandler) Leaderboard(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	entries, err := h.engine.Leaderboard(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// ResetParticipant godoc
// POST /api/v1/admin/sessions/:id/participants/:studentID/reset
//
// Wipes the student's run (assignments included) back to REGISTERED and
// clears their device login so they can sign in fresh.
func (h *CompetitionAdminHandler) ResetParticipant(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	studentID, err := strconv.Atoi(c.Param("studentID"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ss, err := h.engine.ResetParticipant(c.Request.Context(), id, studentID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	if err := h.authService.ResetStudentLogin(c.Request.Context(), studentID); err != nil {
		// The run was reset; a stale device login only blocks their next sign-in.
		h.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to clear device login after reset")
	}

	response.Success(c, http.StatusOK, ss)
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
