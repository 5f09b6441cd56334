package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle states of a competition session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// CompetitionSession represents a scheduled multi-student, multi-station
// timed exam event. Time fields are advisory metadata surfaced to clients;
// the server does not force-complete stations when they elapse.
type CompetitionSession struct {
	ID                  uuid.UUID     `json:"id"`
	Name                string        `json:"name"`
	StartTime           time.Time     `json:"start_time"`
	EndTime             time.Time     `json:"end_time"`
	Status              SessionStatus `json:"status"`
	StationsPerSession  int           `json:"stations_per_session"`
	TimePerStation      int           `json:"time_per_station"`       // seconds
	TimeBetweenStations int           `json:"time_between_stations"`  // seconds
	RandomizeStations   bool          `json:"randomize_stations"`
	CreatedBy           int           `json:"created_by"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// Participant links a student to a session roster. Existence implies
// eligibility, not readiness.
type Participant struct {
	SessionID uuid.UUID `json:"session_id"`
	StudentID int       `json:"student_id"`
	Name      string    `json:"name,omitempty"`
}

// StationBankEntry is one candidate case made available to a session — the
// pool each student's private queue is drawn from, not an assignment.
type StationBankEntry struct {
	SessionID uuid.UUID `json:"session_id"`
	CaseID    uuid.UUID `json:"case_id"`
	Position  int       `json:"position"` // insertion order, used for non-randomized draws
}

// CreateSessionRequest is the payload for scheduling a new competition session.
type CreateSessionRequest struct {
	Name                string      `json:"name" binding:"required,min=3,max=255"`
	StartTime           time.Time   `json:"start_time" binding:"required"`
	EndTime             time.Time   `json:"end_time" binding:"required"`
	StationsPerSession  int         `json:"stations_per_session" binding:"required,min=1"`
	TimePerStation      int         `json:"time_per_station" binding:"required,min=1"`
	TimeBetweenStations int         `json:"time_between_stations" binding:"min=0"`
	RandomizeStations   bool        `json:"randomize_stations"`
	ParticipantIDs      []int       `json:"participant_ids" binding:"required,min=1"`
	CaseIDs             []uuid.UUID `json:"case_ids" binding:"required,min=1"`
}

// UpdateSessionRequest is the payload for editing a scheduled session.
// Replacing ParticipantIDs or CaseIDs discards existing student sessions
// tied to removed members (full reset).
type UpdateSessionRequest struct {
	Name                string      `json:"name" binding:"omitempty,min=3,max=255"`
	StartTime           *time.Time  `json:"start_time" binding:"omitempty"`
	EndTime             *time.Time  `json:"end_time" binding:"omitempty"`
	StationsPerSession  *int        `json:"stations_per_session" binding:"omitempty,min=1"`
	TimePerStation      *int        `json:"time_per_station" binding:"omitempty,min=1"`
	TimeBetweenStations *int        `json:"time_between_stations" binding:"omitempty,min=0"`
	RandomizeStations   *bool       `json:"randomize_stations" binding:"omitempty"`
	ParticipantIDs      []int       `json:"participant_ids" binding:"omitempty,min=1"`
	CaseIDs             []uuid.UUID `json:"case_ids" binding:"omitempty,min=1"`
}
