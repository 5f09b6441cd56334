package model

import (
	"time"

	"github.com/google/uuid"
)

// StudentSessionStatus enumerates a student's progress states within a session.
type StudentSessionStatus string

const (
	StudentStatusRegistered      StudentSessionStatus = "REGISTERED"
	StudentStatusLoggedIn        StudentSessionStatus = "LOGGED_IN"
	StudentStatusActive          StudentSessionStatus = "ACTIVE"
	StudentStatusBetweenStations StudentSessionStatus = "BETWEEN_STATIONS"
	StudentStatusCompleted       StudentSessionStatus = "COMPLETED"
)

// Terminal reports whether the status permits no further transitions.
func (s StudentSessionStatus) Terminal() bool {
	return s == StudentStatusCompleted
}

// StudentSession is one student's progress ledger within one session.
// CurrentStationOrder is a 1-based pointer into the student's private
// station queue; 0 means not started. It never decreases and never exceeds
// the session's stations_per_session.
type StudentSession struct {
	ID                  uuid.UUID            `json:"id"`
	SessionID           uuid.UUID            `json:"session_id"`
	StudentID           int                  `json:"student_id"`
	Status              StudentSessionStatus `json:"status"`
	CurrentStationOrder int                  `json:"current_station_order"`
	LoggedInAt          *time.Time           `json:"logged_in_at,omitempty"`
	StartedAt           *time.Time           `json:"started_at,omitempty"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
}

// InProgress reports whether the student is actively mid-exam: the states
// that block session deletion.
func (ss *StudentSession) InProgress() bool {
	return ss.Status == StudentStatusActive || ss.Status == StudentStatusBetweenStations
}
