package competition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/model"
)

// StartCurrentStation begins the assignment at the student's current pointer.
// Valid only while the session is active (pause blocks new starts) and the
// student is ACTIVE or BETWEEN_STATIONS with a pending current assignment.
// Entering from BETWEEN_STATIONS is the explicit "start next station"
// trigger: advancing the pointer alone never starts the clock.
func (e *Engine) StartCurrentStation(ctx context.Context, studentSessionID uuid.UUID) (*model.StationAssignment, *model.CompetitionSession, error) {
	unlock := e.locks.lock(studentSessionID)
	defer unlock()

	ss, session, err := e.loadStudentState(ctx, studentSessionID)
	if err != nil {
		return nil, nil, err
	}

	if session.Status != model.SessionStatusActive {
		return nil, nil, apperr.Newf(apperr.KindPrecondition,
			"session is %s; stations can only be started while it is active", session.Status)
	}
	if ss.Status != model.StudentStatusActive && ss.Status != model.StudentStatusBetweenStations {
		return nil, nil, apperr.Newf(apperr.KindInvalidState,
			"cannot start a station from status %s", ss.Status)
	}

	a, err := e.store.GetAssignmentByOrder(ctx, ss.ID, ss.CurrentStationOrder)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, apperr.New(apperr.KindInvalidState, "no assignment at the current station order")
		}
		return nil, nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.Status != model.AssignmentStatusPending {
		return nil, nil, apperr.Newf(apperr.KindInvalidState,
			"station %d is already %s", a.StationOrder, a.Status)
	}

	now := time.Now()
	a.Status = model.AssignmentStatusActive
	a.StartedAt = &now
	if err := e.store.StartAssignment(ctx, a); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return nil, nil, apperr.Newf(apperr.KindInvalidState,
				"station %d was already started", a.StationOrder)
		}
		return nil, nil, fmt.Errorf("start assignment: %w", err)
	}

	if ss.Status == model.StudentStatusBetweenStations {
		ss.Status = model.StudentStatusActive
		if err := e.store.UpdateStudentSession(ctx, ss); err != nil {
			return nil, nil, fmt.Errorf("update student session: %w", err)
		}
	}

	e.publish(ctx, Event{
		Type:         EventStationStarted,
		SessionID:    session.ID,
		StudentID:    ss.StudentID,
		StationOrder: a.StationOrder,
	})
	return a, session, nil
}

// CompleteCurrentStation stores the evaluation result on the active
// assignment and advances the student. A repeated call for the same station
// observes the already-advanced state and fails with an invalid-state error —
// results are never double-counted. Completing the final station completes
// the student and, if they were the last straggler, the session.
func (e *Engine) CompleteCurrentStation(ctx context.Context, studentSessionID uuid.UUID, result *model.EvaluationResult) (*model.StationCompletion, error) {
	if result == nil {
		return nil, apperr.Validation("result", "evaluation result is required")
	}

	unlock := e.locks.lock(studentSessionID)
	defer unlock()

	ss, session, err := e.loadStudentState(ctx, studentSessionID)
	if err != nil {
		return nil, err
	}
	if ss.Status != model.StudentStatusActive {
		return nil, apperr.Newf(apperr.KindInvalidState,
			"cannot complete a station from status %s", ss.Status)
	}

	a, err := e.store.GetAssignmentByOrder(ctx, ss.ID, ss.CurrentStationOrder)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindInvalidState, "no assignment at the current station order")
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a.Status != model.AssignmentStatusActive {
		return nil, apperr.Newf(apperr.KindInvalidState,
			"station %d is %s, not active", a.StationOrder, a.Status)
	}

	now := time.Now()
	a.Status = model.AssignmentStatusCompleted
	a.CompletedAt = &now
	a.Result = result
	if err := e.store.CompleteAssignment(ctx, a); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return nil, apperr.Newf(apperr.KindInvalidState,
				"station %d was already completed", a.StationOrder)
		}
		return nil, fmt.Errorf("complete assignment: %w", err)
	}

	e.publish(ctx, Event{
		Type:         EventStationCompleted,
		SessionID:    session.ID,
		StudentID:    ss.StudentID,
		StationOrder: a.StationOrder,
		Percentage:   result.Percentage,
	})

	if ss.CurrentStationOrder == session.StationsPerSession {
		ss.Status = model.StudentStatusCompleted
		ss.CompletedAt = &now
		if err := e.store.UpdateStudentSession(ctx, ss); err != nil {
			return nil, fmt.Errorf("update student session: %w", err)
		}
		e.publish(ctx, Event{Type: EventStudentFinished, SessionID: session.ID, StudentID: ss.StudentID})

		if err := e.checkAndComplete(ctx, session); err != nil {
			return nil, err
		}
		return &model.StationCompletion{IsFinished: true, Percentage: result.Percentage}, nil
	}

	// The next assignment stays pending until the student explicitly starts
	// it: the inter-station interval is owned by the caller's timer.
	ss.CurrentStationOrder++
	ss.Status = model.StudentStatusBetweenStations
	if err := e.store.UpdateStudentSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("update student session: %w", err)
	}

	return &model.StationCompletion{
		IsFinished:       false,
		NextStationDelay: session.TimeBetweenStations,
		Percentage:       result.Percentage,
	}, nil
}

// ResetParticipant is an operator recovery tool: it returns a stuck student
// to REGISTERED and deletes their station assignments without touching the
// rest of the session.
func (e *Engine) ResetParticipant(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error) {
	ss, err := e.store.GetStudentSession(ctx, sessionID, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "student is not registered for this session")
		}
		return nil, fmt.Errorf("get student session: %w", err)
	}

	unlock := e.locks.lock(ss.ID)
	defer unlock()

	ss.Status = model.StudentStatusRegistered
	ss.CurrentStationOrder = 0
	ss.LoggedInAt = nil
	ss.StartedAt = nil
	ss.CompletedAt = nil
	if err := e.store.ResetStudentSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("reset student session: %w", err)
	}

	e.publish(ctx, Event{Type: EventStudentReset, SessionID: sessionID, StudentID: studentID})
	return ss, nil
}

// StudentStatus reports a student's position within their session.
func (e *Engine) StudentStatus(ctx context.Context, studentSessionID uuid.UUID) (*model.StudentProgress, error) {
	ss, session, err := e.loadStudentState(ctx, studentSessionID)
	if err != nil {
		return nil, err
	}
	assignments, err := e.store.ListAssignments(ctx, ss.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	completed := 0
	for i := range assignments {
		if assignments[i].Status == model.AssignmentStatusCompleted {
			completed++
		}
	}

	progress := 0.0
	if session.StationsPerSession > 0 {
		progress = float64(completed) / float64(session.StationsPerSession) * 100
	}

	return &model.StudentProgress{
		Status:              ss.Status,
		CurrentStationOrder: ss.CurrentStationOrder,
		TotalStations:       session.StationsPerSession,
		CompletedCount:      completed,
		ProgressPercent:     progress,
	}, nil
}

// CurrentAssignment returns the assignment at the student's pointer.
func (e *Engine) CurrentAssignment(ctx context.Context, studentSessionID uuid.UUID) (*model.StationAssignment, error) {
	ss, _, err := e.loadStudentState(ctx, studentSessionID)
	if err != nil {
		return nil, err
	}
	if ss.CurrentStationOrder == 0 {
		return nil, apperr.New(apperr.KindPrecondition, "the session has not started for this student")
	}
	a, err := e.store.GetAssignmentByOrder(ctx, ss.ID, ss.CurrentStationOrder)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "no assignment at the current station order")
		}
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (e *Engine) loadStudentState(ctx context.Context, studentSessionID uuid.UUID) (*model.StudentSession, *model.CompetitionSession, error) {
	ss, err := e.store.GetStudentSessionByID(ctx, studentSessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, apperr.New(apperr.KindNotFound, "student session not found")
		}
		return nil, nil, fmt.Errorf("get student session: %w", err)
	}
	session, err := e.getSession(ctx, ss.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return ss, session, nil
}
