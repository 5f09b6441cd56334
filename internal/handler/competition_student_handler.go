package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/competition"
	"github.com/oscelab/osce-backend/internal/config"
	"github.com/oscelab/osce-backend/internal/evaluation"
	"github.com/oscelab/osce-backend/internal/middleware"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/oscelab/osce-backend/internal/repository"
	"github.com/oscelab/osce-backend/internal/response"
	"github.com/oscelab/osce-backend/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// evaluateTimeout bounds one LLM round-trip so a hung upstream cannot pin the
// request worker forever.
const evaluateTimeout = 90 * time.Second

// CompetitionStudentHandler serves the student surface of a competition run:
// joining, station flow, the patient conversation and score retrieval.
type CompetitionStudentHandler struct {
	engine    *competition.Engine
	caseRepo  *repository.CaseRepository
	evaluator evaluation.Evaluator
	patient   evaluation.PatientSimulator
	buffer    *evaluation.TranscriptBuffer
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewCompetitionStudentHandler creates a new CompetitionStudentHandler.
func NewCompetitionStudentHandler(
	engine *competition.Engine,
	caseRepo *repository.CaseRepository,
	evaluator evaluation.Evaluator,
	patient evaluation.PatientSimulator,
	buffer *evaluation.TranscriptBuffer,
	rdb *redis.Client,
	log zerolog.Logger,
) *CompetitionStudentHandler {
	return &CompetitionStudentHandler{
		engine:    engine,
		caseRepo:  caseRepo,
		evaluator: evaluator,
		patient:   patient,
		buffer:    buffer,
		rdb:       rdb,
		log:       log.With().Str("component", "competition_student_handler").Logger(),
	}
}

// ListMySessions godoc
// GET /api/v1/student/sessions
//
// The student's lobby: every session they are rostered for, newest first.
func (h *CompetitionStudentHandler) ListMySessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessions, err := h.engine.SessionsForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// Join godoc
// POST /api/v1/student/sessions/:id/join
//
// Registers the student (idempotent) and marks them present. Joining may
// trigger the session start if they were the last participant awaited.
func (h *CompetitionStudentHandler) Join(c *gin.Context) {
	claims := middleware.GetClaims(c)
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	if _, err := h.engine.Register(c.Request.Context(), id, claims.UserID); err != nil {
		failFromError(c, err, h.log)
		return
	}
	ss, err := h.engine.Login(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, ss)
}

// Status godoc
// GET /api/v1/student/sessions/:id/status
func (h *CompetitionStudentHandler) Status(c *gin.Context) {
	ss, ok := h.participation(c)
	if !ok {
		return
	}
	progress, err := h.engine.StudentStatus(c.Request.Context(), ss.ID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, progress)
}

// StartStation godoc
// POST /api/v1/student/sessions/:id/station/start
//
// Activates the student's current station and reveals the case brief. The
// checklist and patient prompt stay server-side.
func (h *CompetitionStudentHandler) StartStation(c *gin.Context) {
	ss, ok := h.participation(c)
	if !ok {
		return
	}

	assignment, session, err := h.engine.StartCurrentStation(c.Request.Context(), ss.ID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	cs, err := h.loadCase(c, assignment.CaseID)
	if err != nil {
		return
	}

	response.Success(c, http.StatusOK, model.StationStart{
		StationOrder:   assignment.StationOrder,
		TotalStations:  session.StationsPerSession,
		Case:           cs.ForStudent(),
		TimePerStation: session.TimePerStation,
	})
}

// PatientMessage godoc
// POST /api/v1/student/sessions/:id/station/message
//
// One turn of the patient interview: the student's utterance goes to the
// simulated patient and both sides land in the transcript buffer.
func (h *CompetitionStudentHandler) PatientMessage(c *gin.Context) {
	ss, ok := h.participation(c)
	if !ok {
		return
	}

	var req model.PatientMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.engine.CurrentAssignment(c.Request.Context(), ss.ID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	if assignment.Status != model.AssignmentStatusActive {
		failFromError(c, apperr.Newf(apperr.KindInvalidState,
			"station %d is %s, not active", assignment.StationOrder, assignment.Status), h.log)
		return
	}

	cs, err := h.loadCase(c, assignment.CaseID)
	if err != nil {
		return
	}

	transcript, err := h.buffer.Load(c.Request.Context(), assignment.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load transcript buffer")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), evaluateTimeout)
	defer cancel()
	reply, err := h.patient.Reply(ctx, cs, transcript, req.Message)
	if err != nil {
		h.log.Warn().Err(err).Str("assignment_id", assignment.ID.String()).Msg("Patient simulator failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrPatientUnavailable)
		return
	}

	now := time.Now()
	studentTurn := model.TranscriptTurn{Role: model.TranscriptRoleStudent, Content: req.Message, At: now}
	patientTurn := model.TranscriptTurn{Role: model.TranscriptRolePatient, Content: reply, At: time.Now()}
	if err := h.buffer.Append(c.Request.Context(), assignment.ID, studentTurn); err != nil {
		h.log.Error().Err(err).Msg("Failed to buffer student turn")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if err := h.buffer.Append(c.Request.Context(), assignment.ID, patientTurn); err != nil {
		h.log.Error().Err(err).Msg("Failed to buffer patient turn")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reply": reply})
}

// CompleteStation godoc
// POST /api/v1/student/sessions/:id/station/complete
//
// Evaluates the buffered transcript against the case rubric, then advances
// the student's pointer. An evaluation failure leaves the station active so
// the student can resubmit; nothing is lost.
func (h *CompetitionStudentHandler) CompleteStation(c *gin.Context) {
	ss, ok := h.participation(c)
	if !ok {
		return
	}

	var req model.CompleteStationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assignment, err := h.engine.CurrentAssignment(c.Request.Context(), ss.ID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	if assignment.Status != model.AssignmentStatusActive {
		failFromError(c, apperr.Newf(apperr.KindInvalidState,
			"station %d is %s, not active", assignment.StationOrder, assignment.Status), h.log)
		return
	}

	cs, err := h.loadCase(c, assignment.CaseID)
	if err != nil {
		return
	}

	transcript, err := h.buffer.Load(c.Request.Context(), assignment.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load transcript buffer")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), evaluateTimeout)
	defer cancel()
	result, err := h.evaluator.Evaluate(ctx, cs, transcript)
	if err != nil {
		// The assignment stays ACTIVE; the student retries once the
		// evaluator recovers.
		failFromError(c, err, h.log)
		return
	}
	result.TranscriptRef = assignment.ID.String()

	completion, err := h.engine.CompleteCurrentStation(c.Request.Context(), ss.ID, result)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	h.enqueueTranscriptPersist(c.Request.Context(), assignment.ID)

	response.Success(c, http.StatusOK, completion)
}

// Score godoc
// GET /api/v1/student/sessions/:id/score
func (h *CompetitionStudentHandler) Score(c *gin.Context) {
	ss, ok := h.participation(c)
	if !ok {
		return
	}
	summary, err := h.engine.Score(c.Request.Context(), ss.ID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// Leaderboard godoc
// GET /api/v1/student/sessions/:id/leaderboard
//
// Standings are withheld until the session completes.
func (h *CompetitionStudentHandler) Leaderboard(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.engine.GetSession(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	if session.Status != model.SessionStatusCompleted {
		response.Fail(c, http.StatusConflict, response.ErrLeaderboardNotSealed)
		return
	}

	entries, err := h.engine.Leaderboard(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}
	response.Success(c, http.StatusOK, entries)
}

// participation resolves the calling student's session from the path ID and
// JWT claims.
func (h *CompetitionStudentHandler) participation(c *gin.Context) (*model.StudentSession, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	id, ok := parseSessionID(c)
	if !ok {
		return nil, false
	}
	ss, err := h.engine.Participation(c.Request.Context(), id, claims.UserID)
	if err != nil {
		failFromError(c, err, h.log)
		return nil, false
	}
	return ss, true
}

func (h *CompetitionStudentHandler) loadCase(c *gin.Context, caseID uuid.UUID) (*model.Case, error) {
	cs, err := h.caseRepo.GetByID(c.Request.Context(), caseID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load case")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return nil, err
	}
	if cs == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return nil, errMissingCase
	}
	return cs, nil
}

var errMissingCase = apperr.New(apperr.KindNotFound, "case not found")

// enqueueTranscriptPersist hands the completed station's transcript to the
// background worker. Best-effort: the transcript stays in its Redis buffer
// until the worker flushes it, so a failed enqueue costs nothing durable.
func (h *CompetitionStudentHandler) enqueueTranscriptPersist(ctx context.Context, assignmentID uuid.UUID) {
	job, err := json.Marshal(map[string]string{"assignment_id": assignmentID.String()})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal transcript job")
		return
	}
	if err := h.rdb.LPush(ctx, config.WorkerKey.PersistTranscriptsQueue, job).Err(); err != nil {
		h.log.Warn().Err(err).Str("assignment_id", assignmentID.String()).Msg("Failed to enqueue transcript persist job")
	}
}
