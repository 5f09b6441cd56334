package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oscelab/osce-backend/internal/auth"
	"github.com/oscelab/osce-backend/internal/model"
	"github.com/oscelab/osce-backend/internal/repository"
	"github.com/oscelab/osce-backend/internal/response"
	"github.com/oscelab/osce-backend/internal/validator"
	"github.com/rs/zerolog"
)

// StudentHandler serves admin management of student accounts.
type StudentHandler struct {
	studentRepo *repository.StudentRepository
	authService *auth.Service
	log         zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(studentRepo *repository.StudentRepository, authService *auth.Service, log zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		studentRepo: studentRepo,
		authService: authService,
		log:         log.With().Str("component", "student_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/admin/students
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.studentRepo.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list students")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, students)
}

// Create godoc
// POST /api/v1/admin/students
func (h *StudentHandler) Create(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	existing, err := h.studentRepo.GetByStudentNumber(c.Request.Context(), req.StudentNumber)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to look up student")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if existing != nil {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to hash password")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	student := &model.Student{
		StudentNumber: req.StudentNumber,
		Name:          req.Name,
		Year:          req.Year,
		PasswordHash:  hash,
	}
	if err := h.studentRepo.Create(c.Request.Context(), student); err != nil {
		h.log.Error().Err(err).Msg("Failed to create student")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, student)
}

// Update godoc
// PUT /api/v1/admin/students/:id
func (h *StudentHandler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get student")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if student == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	student.Name = req.Name
	student.Year = req.Year
	if err := h.studentRepo.Update(c.Request.Context(), student); err != nil {
		h.log.Error().Err(err).Msg("Failed to update student")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if req.Password != "" {
		hash, err := h.authService.HashPassword(req.Password)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to hash password")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if err := h.studentRepo.UpdatePassword(c.Request.Context(), id, hash); err != nil {
			h.log.Error().Err(err).Msg("Failed to update password")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	response.Success(c, http.StatusOK, student)
}

// Delete godoc
// DELETE /api/v1/admin/students/:id
func (h *StudentHandler) Delete(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentRepo.Delete(c.Request.Context(), id); err != nil {
		h.log.Error().Err(err).Msg("Failed to delete student")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ResetLogin godoc
// POST /api/v1/admin/students/:id/reset-login
//
// Clears the student's single-device login so they can sign in again on a
// new device.
func (h *StudentHandler) ResetLogin(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentLogin(c.Request.Context(), id); err != nil {
		h.log.Error().Err(err).Int("student_id", id).Msg("Failed to reset login")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
