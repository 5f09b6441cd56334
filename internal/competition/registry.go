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

// CreateSession validates the configuration fully before any write and
// schedules a new session with its roster and station bank.
func (e *Engine) CreateSession(ctx context.Context, adminID int, req *model.CreateSessionRequest) (*model.CompetitionSession, error) {
	if err := validateSessionConfig(req.StartTime, req.EndTime, req.StationsPerSession, req.TimePerStation, req.TimeBetweenStations); err != nil {
		return nil, err
	}
	if len(req.ParticipantIDs) == 0 {
		return nil, apperr.Validation("participant_ids", "at least one participant is required")
	}
	if len(req.CaseIDs) == 0 {
		return nil, apperr.Validation("case_ids", "at least one station case is required")
	}
	if err := checkDistinctInts("participant_ids", req.ParticipantIDs); err != nil {
		return nil, err
	}
	if err := checkDistinctUUIDs("case_ids", req.CaseIDs); err != nil {
		return nil, err
	}
	if len(req.CaseIDs) < req.StationsPerSession {
		return nil, apperr.Validation("stations_per_session",
			fmt.Sprintf("station bank has %d cases but %d stations per student are required", len(req.CaseIDs), req.StationsPerSession))
	}

	session := &model.CompetitionSession{
		ID:                  uuid.New(),
		Name:                req.Name,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		Status:              model.SessionStatusScheduled,
		StationsPerSession:  req.StationsPerSession,
		TimePerStation:      req.TimePerStation,
		TimeBetweenStations: req.TimeBetweenStations,
		RandomizeStations:   req.RandomizeStations,
		CreatedBy:           adminID,
	}

	if err := e.store.CreateSession(ctx, session, req.ParticipantIDs, req.CaseIDs); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	e.log.Info().
		Str("session_id", session.ID.String()).
		Int("participants", len(req.ParticipantIDs)).
		Int("bank_size", len(req.CaseIDs)).
		Msg("Session scheduled")

	return session, nil
}

// EditSession applies a patch to a session. Permitted only while the session
// is still scheduled. Replacing the roster or bank discards the student
// sessions tied to removed members.
func (e *Engine) EditSession(ctx context.Context, id uuid.UUID, patch *model.UpdateSessionRequest) (*model.CompetitionSession, error) {
	session, err := e.getSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusScheduled {
		return nil, apperr.Newf(apperr.KindInvalidState,
			"session can only be edited while scheduled, current status is %s", session.Status)
	}

	if patch.Name != "" {
		session.Name = patch.Name
	}
	if patch.StartTime != nil {
		session.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		session.EndTime = *patch.EndTime
	}
	if patch.StationsPerSession != nil {
		session.StationsPerSession = *patch.StationsPerSession
	}
	if patch.TimePerStation != nil {
		session.TimePerStation = *patch.TimePerStation
	}
	if patch.TimeBetweenStations != nil {
		session.TimeBetweenStations = *patch.TimeBetweenStations
	}
	if patch.RandomizeStations != nil {
		session.RandomizeStations = *patch.RandomizeStations
	}

	if err := validateSessionConfig(session.StartTime, session.EndTime, session.StationsPerSession, session.TimePerStation, session.TimeBetweenStations); err != nil {
		return nil, err
	}

	// The bank that will be in effect after the patch must still cover the
	// per-student station count.
	bankSize := 0
	if patch.CaseIDs != nil {
		if len(patch.CaseIDs) == 0 {
			return nil, apperr.Validation("case_ids", "at least one station case is required")
		}
		if err := checkDistinctUUIDs("case_ids", patch.CaseIDs); err != nil {
			return nil, err
		}
		bankSize = len(patch.CaseIDs)
	} else {
		bank, err := e.store.ListBank(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list bank: %w", err)
		}
		bankSize = len(bank)
	}
	if bankSize < session.StationsPerSession {
		return nil, apperr.Validation("stations_per_session",
			fmt.Sprintf("station bank has %d cases but %d stations per student are required", bankSize, session.StationsPerSession))
	}

	if patch.ParticipantIDs != nil {
		if len(patch.ParticipantIDs) == 0 {
			return nil, apperr.Validation("participant_ids", "at least one participant is required")
		}
		if err := checkDistinctInts("participant_ids", patch.ParticipantIDs); err != nil {
			return nil, err
		}
	}

	if err := e.store.UpdateSession(ctx, session, patch.ParticipantIDs, patch.CaseIDs); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session and everything it owns. Blocked while any
// participant is actively mid-station: an in-progress exam cannot be
// discarded silently.
func (e *Engine) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if _, err := e.getSession(ctx, id); err != nil {
		return err
	}
	students, err := e.store.ListStudentSessions(ctx, id)
	if err != nil {
		return fmt.Errorf("list student sessions: %w", err)
	}
	for i := range students {
		if students[i].InProgress() {
			return apperr.Newf(apperr.KindConflict,
				"student %d is mid-exam (%s); end the session before deleting it", students[i].StudentID, students[i].Status)
		}
	}
	if err := e.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CancelSession discards a session that has not started.
func (e *Engine) CancelSession(ctx context.Context, id uuid.UUID) error {
	if _, err := e.getSession(ctx, id); err != nil {
		return err
	}
	err := e.store.UpdateSessionStatus(ctx, id, model.SessionStatusCancelled, model.SessionStatusScheduled)
	if errors.Is(err, ErrStateChanged) {
		return apperr.New(apperr.KindInvalidState, "only a scheduled session can be cancelled")
	}
	return err
}

// GetSession returns one session.
func (e *Engine) GetSession(ctx context.Context, id uuid.UUID) (*model.CompetitionSession, error) {
	return e.getSession(ctx, id)
}

// ListSessions returns all sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context) ([]model.CompetitionSession, error) {
	return e.store.ListSessions(ctx)
}

// SessionsForStudent returns the sessions the student is rostered for — the
// student's lobby view.
func (e *Engine) SessionsForStudent(ctx context.Context, studentID int) ([]model.CompetitionSession, error) {
	return e.store.ListSessionsForStudent(ctx, studentID)
}

// Roster returns the session's participant roster.
func (e *Engine) Roster(ctx context.Context, id uuid.UUID) ([]model.Participant, error) {
	if _, err := e.getSession(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListParticipants(ctx, id)
}

// Bank returns the session's station bank in insertion order.
func (e *Engine) Bank(ctx context.Context, id uuid.UUID) ([]model.StationBankEntry, error) {
	if _, err := e.getSession(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListBank(ctx, id)
}

func (e *Engine) getSession(ctx context.Context, id uuid.UUID) (*model.CompetitionSession, error) {
	session, err := e.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "session not found")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func validateSessionConfig(start, end time.Time, stations, perStation, between int) error {
	if !start.Before(end) {
		return apperr.Validation("start_time", "start time must be before end time")
	}
	if stations < 1 {
		return apperr.Validation("stations_per_session", "must be at least 1")
	}
	if perStation < 1 {
		return apperr.Validation("time_per_station", "must be at least 1 second")
	}
	if between < 0 {
		return apperr.Validation("time_between_stations", "must not be negative")
	}
	return nil
}

func checkDistinctInts(field string, ids []int) error {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperr.Validation(field, fmt.Sprintf("duplicate entry %d", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

func checkDistinctUUIDs(field string, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperr.Validation(field, fmt.Sprintf("duplicate entry %s", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}
