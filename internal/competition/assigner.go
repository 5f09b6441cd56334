package competition

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/model"
)

// Start activates a session and materializes every logged-in student's
// private station queue. Each student's draw is independent: two students may
// receive overlapping or disjoint station sets, but no student sees the same
// case twice.
//
// When force is false the strict admission gate must hold; when true only a
// minimal floor applies (at least one joined participant, sufficient bank).
// The session flip, student flips and assignment writes commit atomically.
func (e *Engine) Start(ctx context.Context, sessionID uuid.UUID, force bool) error {
	session, err := e.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionStatusScheduled {
		return apperr.Newf(apperr.KindInvalidState,
			"session cannot be started from status %s", session.Status)
	}

	bank, err := e.store.ListBank(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list bank: %w", err)
	}
	students, err := e.store.ListStudentSessions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list student sessions: %w", err)
	}

	if force {
		if len(bank) < session.StationsPerSession {
			return apperr.Newf(apperr.KindPrecondition,
				"station bank has %d cases but %d stations per student are required", len(bank), session.StationsPerSession)
		}
		eligible := 0
		for i := range students {
			switch students[i].Status {
			case model.StudentStatusRegistered, model.StudentStatusLoggedIn:
				eligible++
			}
		}
		if eligible == 0 {
			return apperr.New(apperr.KindPrecondition, "no participants have joined this session")
		}
	} else {
		ok, err := e.canStart(ctx, session)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.KindPrecondition, "not every registered participant is logged in")
		}
	}

	now := time.Now()
	var toStart []model.StudentSession
	var assignments []model.StationAssignment

	for i := range students {
		ss := students[i]
		if ss.Status != model.StudentStatusLoggedIn {
			// Registered-but-absent students keep their state; an operator
			// can reset or re-admit them later.
			continue
		}

		drawn := e.draw(bank, session.StationsPerSession, session.RandomizeStations)
		for order, caseID := range drawn {
			assignments = append(assignments, model.StationAssignment{
				ID:               uuid.New(),
				StudentSessionID: ss.ID,
				CaseID:           caseID,
				StationOrder:     order + 1,
				Status:           model.AssignmentStatusPending,
			})
		}

		ss.Status = model.StudentStatusActive
		ss.CurrentStationOrder = 1
		ss.StartedAt = &now
		toStart = append(toStart, ss)
	}

	session.Status = model.SessionStatusActive
	if err := e.store.StartCompetition(ctx, session, toStart, assignments); err != nil {
		return fmt.Errorf("start competition: %w", err)
	}

	e.log.Info().
		Str("session_id", sessionID.String()).
		Int("students", len(toStart)).
		Int("assignments", len(assignments)).
		Bool("forced", force).
		Msg("Session started")

	e.publish(ctx, Event{Type: EventSessionStarted, SessionID: sessionID})
	return nil
}

// draw picks n case IDs from the bank: a uniform sample without replacement
// when randomized, otherwise the first n entries in insertion order.
func (e *Engine) draw(bank []model.StationBankEntry, n int, randomize bool) []uuid.UUID {
	drawn := make([]uuid.UUID, 0, n)
	if !randomize {
		for i := 0; i < n; i++ {
			drawn = append(drawn, bank[i].CaseID)
		}
		return drawn
	}

	e.randMu.Lock()
	perm := e.rand.Perm(len(bank))
	e.randMu.Unlock()

	for _, idx := range perm[:n] {
		drawn = append(drawn, bank[idx].CaseID)
	}
	return drawn
}
