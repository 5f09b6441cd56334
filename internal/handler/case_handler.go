package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/middleware"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/oscelab/osce-backend/internal/repository"
	"github.com/oscelab/osce-backend/internal/response"
	"github.com/oscelab/osce-backend/internal/validator"
	"github.com/rs/zerolog"
)

// CaseHandler serves admin CRUD for OSCE cases.
type CaseHandler struct {
	caseRepo *repository.CaseRepository
	log      zerolog.Logger
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(caseRepo *repository.CaseRepository, log zerolog.Logger) *CaseHandler {
	return &CaseHandler{
		caseRepo: caseRepo,
		log:      log.With().Str("component", "case_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/cases
func (h *CaseHandler) List(c *gin.Context) {
	cases, err := h.caseRepo.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list cases")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, cases)
}

// Get godoc
// GET /api/v1/admin/cases/:id
func (h *CaseHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	cs, err := h.caseRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get case")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if cs == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, cs)
}

// Create godoc
// POST /api/v1/admin/cases
func (h *CaseHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateCaseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cs := &model.Case{
		ID:                  uuid.New(),
		Title:               req.Title,
		Specialty:           req.Specialty,
		PresentingComplaint: req.PresentingComplaint,
		PatientPrompt:       req.PatientPrompt,
		Checklist:           req.Checklist,
		AuthorID:            claims.UserID,
	}
	if err := h.caseRepo.Create(c.Request.Context(), cs); err != nil {
		h.log.Error().Err(err).Msg("Failed to create case")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, cs)
}

// Update godoc
// PUT /api/v1/admin/cases/:id
func (h *CaseHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateCaseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cs, err := h.caseRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get case")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if cs == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	if req.Title != "" {
		cs.Title = req.Title
	}
	if req.Specialty != "" {
		cs.Specialty = req.Specialty
	}
	if req.PresentingComplaint != "" {
		cs.PresentingComplaint = req.PresentingComplaint
	}
	if req.PatientPrompt != "" {
		cs.PatientPrompt = req.PatientPrompt
	}
	if len(req.Checklist) > 0 {
		cs.Checklist = req.Checklist
	}

	if err := h.caseRepo.Update(c.Request.Context(), cs); err != nil {
		h.log.Error().Err(err).Msg("Failed to update case")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, cs)
}

// Delete godoc
// DELETE /api/v1/admin/cases/:id
func (h *CaseHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	inUse, err := h.caseRepo.InUse(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check case usage")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if inUse {
		response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
		return
	}

	if err := h.caseRepo.Delete(c.Request.Context(), id); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete case")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
