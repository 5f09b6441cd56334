package model

import (
	"time"

	"github.com/google/uuid"
)

// ChecklistItem is one graded criterion in a case's evaluation rubric.
type ChecklistItem struct {
	Description string  `json:"description"`
	Points      float64 `json:"points"`
	Category    string  `json:"category"`
}

// Case represents an OSCE exam case: the patient scenario a station runs.
// PatientPrompt is the system instruction handed to the LLM patient simulator;
// it is never sent to students.
type Case struct {
	ID                  uuid.UUID       `json:"id"`
	Title               string          `json:"title"`
	Specialty           string          `json:"specialty"`
	PresentingComplaint string          `json:"presenting_complaint"`
	PatientPrompt       string          `json:"patient_prompt,omitempty"`
	Checklist           []ChecklistItem `json:"checklist"`
	AuthorID            int             `json:"author_id"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CaseForStudent is a case stripped to what a student may see at the start
// of a station (no patient prompt, no checklist).
type CaseForStudent struct {
	ID                  uuid.UUID `json:"id"`
	Title               string    `json:"title"`
	Specialty           string    `json:"specialty"`
	PresentingComplaint string    `json:"presenting_complaint"`
}

// ForStudent strips grading material from the case.
func (c *Case) ForStudent() CaseForStudent {
	return CaseForStudent{
		ID:                  c.ID,
		Title:               c.Title,
		Specialty:           c.Specialty,
		PresentingComplaint: c.PresentingComplaint,
	}
}

// CreateCaseRequest is the payload for creating a new case.
type CreateCaseRequest struct {
	Title               string          `json:"title" binding:"required,min=3,max=255"`
	Specialty           string          `json:"specialty" binding:"required,min=2,max=100"`
	PresentingComplaint string          `json:"presenting_complaint" binding:"required,min=3"`
	PatientPrompt       string          `json:"patient_prompt" binding:"required,min=10"`
	Checklist           []ChecklistItem `json:"checklist" binding:"required,min=1,dive"`
}

// UpdateCaseRequest is the payload for updating an existing case.
type UpdateCaseRequest struct {
	Title               string          `json:"title" binding:"omitempty,min=3,max=255"`
	Specialty           string          `json:"specialty" binding:"omitempty,min=2,max=100"`
	PresentingComplaint string          `json:"presenting_complaint" binding:"omitempty,min=3"`
	PatientPrompt       string          `json:"patient_prompt" binding:"omitempty,min=10"`
	Checklist           []ChecklistItem `json:"checklist" binding:"omitempty,min=1,dive"`
}
