package model

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus enumerates the sub-states of one station assignment.
// Assignments complete strictly in station_order sequence; exactly one may
// be ACTIVE at a time per student session.
type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "PENDING"
	AssignmentStatusActive    AssignmentStatus = "ACTIVE"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
)

// StationAssignment is one concrete station instance inside a student's
// private ordered queue.
type StationAssignment struct {
	ID               uuid.UUID         `json:"id"`
	StudentSessionID uuid.UUID         `json:"student_session_id"`
	CaseID           uuid.UUID         `json:"case_id"`
	StationOrder     int               `json:"station_order"`
	Status           AssignmentStatus  `json:"status"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Result           *EvaluationResult `json:"result,omitempty"`
}

// ChecklistResult is the evaluator's verdict on one checklist item.
type ChecklistResult struct {
	Description   string  `json:"description"`
	Points        float64 `json:"points"`
	Category      string  `json:"category"`
	Completed     bool    `json:"completed"`
	Justification string  `json:"justification,omitempty"`
}

// EvaluationResult is the opaque structured payload stored on a completed
// assignment. The engine round-trips it without interpretation beyond the
// percentage used for scoring.
type EvaluationResult struct {
	Checklist     []ChecklistResult `json:"checklist"`
	PointsEarned  float64           `json:"points_earned"`
	PointsTotal   float64           `json:"points_total"`
	Percentage    float64           `json:"percentage"`
	TranscriptRef string            `json:"transcript_ref,omitempty"`
}

// TranscriptTurn is one utterance in a station conversation.
type TranscriptTurn struct {
	Role    string    `json:"role"` // "student" or "patient"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

const (
	TranscriptRoleStudent = "student"
	TranscriptRolePatient = "patient"
)

// StationStart is returned when a student starts their current station.
type StationStart struct {
	StationOrder   int            `json:"station_order"`
	TotalStations  int            `json:"total_stations"`
	Case           CaseForStudent `json:"case"`
	TimePerStation int            `json:"time_per_station"` // seconds, advisory
}

// StationCompletion is returned after a station is completed.
type StationCompletion struct {
	IsFinished       bool    `json:"is_finished"`
	NextStationDelay int     `json:"next_station_delay"` // seconds, advisory
	Percentage       float64 `json:"percentage"`
}

// StudentProgress summarizes a student's position within a session.
type StudentProgress struct {
	Status              StudentSessionStatus `json:"status"`
	CurrentStationOrder int                  `json:"current_station_order"`
	TotalStations       int                  `json:"total_stations"`
	CompletedCount      int                  `json:"completed_count"`
	ProgressPercent     float64              `json:"progress_percent"`
}

// ScoreSummary aggregates a student's completed-station results.
type ScoreSummary struct {
	AverageScore   float64 `json:"average_score"`
	TotalScore     float64 `json:"total_score"`
	CompletedCount int     `json:"completed_count"`
}

// LeaderboardEntry is one row of a session's final standings. Ranks are
// strictly sequential even for equal averages: ties are broken by earlier
// completion time and still receive distinct ranks.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	StudentID      int       `json:"student_id"`
	StudentName    string    `json:"student_name,omitempty"`
	AverageScore   float64   `json:"average_score"`
	CompletedCount int       `json:"completed_count"`
	CompletionTime time.Time `json:"completion_time"`
}

// CompleteStationRequest is the student payload for finishing a station.
// The transcript is read server-side from the station buffer; the request
// itself carries nothing but an optional client note.
type CompleteStationRequest struct {
	ClientNote string `json:"client_note" binding:"omitempty,max=500"`
}

// PatientMessageRequest is one student utterance sent to the simulated patient.
type PatientMessageRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}
