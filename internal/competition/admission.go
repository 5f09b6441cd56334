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

// Register creates a student session in REGISTERED for a roster member.
// Idempotent: a repeated call returns the existing student session, even
// after the session has started. Only NEW registrations are gated on the
// session still being scheduled.
func (e *Engine) Register(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error) {
	session, err := e.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.GetStudentSession(ctx, sessionID, studentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get student session: %w", err)
	}

	if session.Status != model.SessionStatusScheduled {
		return nil, apperr.Newf(apperr.KindPrecondition,
			"registration is only open while the session is scheduled, current status is %s", session.Status)
	}

	participants, err := e.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	onRoster := false
	for i := range participants {
		if participants[i].StudentID == studentID {
			onRoster = true
			break
		}
	}
	if !onRoster {
		return nil, apperr.New(apperr.KindPrecondition, "student is not on the session roster")
	}

	ss := &model.StudentSession{
		ID:        uuid.New(),
		SessionID: sessionID,
		StudentID: studentID,
		Status:    model.StudentStatusRegistered,
	}
	created, err := e.store.CreateStudentSession(ctx, ss)
	if err != nil {
		return nil, fmt.Errorf("create student session: %w", err)
	}
	if !created {
		return e.store.GetStudentSession(ctx, sessionID, studentID)
	}
	return ss, nil
}

// Login marks a registered student as present. Valid only from REGISTERED;
// a repeated login past that state is a no-op, not an error. After a
// successful transition the engine opportunistically tries to auto-start the
// session — this is how "start when the last student joins" works without a
// polling loop.
func (e *Engine) Login(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error) {
	ss, err := e.store.GetStudentSession(ctx, sessionID, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "student is not registered for this session")
		}
		return nil, fmt.Errorf("get student session: %w", err)
	}

	if ss.Status != model.StudentStatusRegistered {
		return ss, nil
	}

	now := time.Now()
	ss.Status = model.StudentStatusLoggedIn
	ss.LoggedInAt = &now
	if err := e.store.UpdateStudentSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("update student session: %w", err)
	}

	e.publish(ctx, Event{Type: EventStudentLoggedIn, SessionID: sessionID, StudentID: studentID})

	if _, err := e.TryAutoStart(ctx, sessionID); err != nil {
		// The login itself succeeded; an auto-start race is not the
		// student's problem.
		e.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Auto-start attempt failed")
	}

	return e.store.GetStudentSession(ctx, sessionID, studentID)
}

// Participation retrieves the student's own session within a competition.
func (e *Engine) Participation(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error) {
	ss, err := e.store.GetStudentSession(ctx, sessionID, studentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "student is not registered for this session")
		}
		return nil, fmt.Errorf("get student session: %w", err)
	}
	return ss, nil
}

// CanStart reports whether the session satisfies the strict admission gate:
// scheduled, a non-empty roster with every registered participant logged in,
// and a bank large enough for the per-student station count.
func (e *Engine) CanStart(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := e.getSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return e.canStart(ctx, session)
}

func (e *Engine) canStart(ctx context.Context, session *model.CompetitionSession) (bool, error) {
	if session.Status != model.SessionStatusScheduled {
		return false, nil
	}
	participants, err := e.store.ListParticipants(ctx, session.ID)
	if err != nil {
		return false, fmt.Errorf("list participants: %w", err)
	}
	if len(participants) == 0 {
		return false, nil
	}
	bank, err := e.store.ListBank(ctx, session.ID)
	if err != nil {
		return false, fmt.Errorf("list bank: %w", err)
	}
	if len(bank) < session.StationsPerSession {
		return false, nil
	}
	students, err := e.store.ListStudentSessions(ctx, session.ID)
	if err != nil {
		return false, fmt.Errorf("list student sessions: %w", err)
	}
	loggedIn := 0
	for i := range students {
		if students[i].Status == model.StudentStatusLoggedIn {
			loggedIn++
		}
	}
	return loggedIn >= len(participants), nil
}

// TryAutoStart starts the session if the admission gate holds. Returns
// whether a start happened.
func (e *Engine) TryAutoStart(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	ok, err := e.CanStart(ctx, sessionID)
	if err != nil || !ok {
		return false, err
	}
	if err := e.Start(ctx, sessionID, false); err != nil {
		// A concurrent login may have started the session first.
		if apperr.Is(err, apperr.KindInvalidState) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ForceStart starts the session with partial attendance: the all-logged-in
// requirement is waived, but at least one participant must have joined and
// the bank must still cover the station count.
func (e *Engine) ForceStart(ctx context.Context, sessionID uuid.UUID) error {
	return e.Start(ctx, sessionID, true)
}
