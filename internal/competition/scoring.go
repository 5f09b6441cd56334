package competition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/model"
)

// Score aggregates a student's completed-station results: the average and
// sum of stored percentages, zero if nothing is completed yet.
func (e *Engine) Score(ctx context.Context, studentSessionID uuid.UUID) (*model.ScoreSummary, error) {
	ss, err := e.store.GetStudentSessionByID(ctx, studentSessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "student session not found")
		}
		return nil, fmt.Errorf("get student session: %w", err)
	}
	assignments, err := e.store.ListAssignments(ctx, ss.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return summarize(assignments), nil
}

func summarize(assignments []model.StationAssignment) *model.ScoreSummary {
	s := &model.ScoreSummary{}
	for i := range assignments {
		a := &assignments[i]
		if a.Status != model.AssignmentStatusCompleted || a.Result == nil {
			continue
		}
		s.TotalScore += a.Result.Percentage
		s.CompletedCount++
	}
	if s.CompletedCount > 0 {
		s.AverageScore = s.TotalScore / float64(s.CompletedCount)
	}
	return s
}

// Leaderboard ranks every completed student session: average score
// descending, ties broken by earlier completion time. Ranks are strictly
// sequential — equal averages still receive distinct ranks, a deliberate
// policy of this competition format.
func (e *Engine) Leaderboard(ctx context.Context, sessionID uuid.UUID) ([]model.LeaderboardEntry, error) {
	if _, err := e.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	students, err := e.store.ListStudentSessions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}
	participants, err := e.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	names := make(map[int]string, len(participants))
	for i := range participants {
		names[participants[i].StudentID] = participants[i].Name
	}

	entries := make([]model.LeaderboardEntry, 0, len(students))
	for i := range students {
		ss := &students[i]
		if ss.Status != model.StudentStatusCompleted || ss.CompletedAt == nil {
			continue
		}
		assignments, err := e.store.ListAssignments(ctx, ss.ID)
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}
		summary := summarize(assignments)
		entries = append(entries, model.LeaderboardEntry{
			StudentID:      ss.StudentID,
			StudentName:    names[ss.StudentID],
			AverageScore:   summary.AverageScore,
			CompletedCount: summary.CompletedCount,
			CompletionTime: *ss.CompletedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AverageScore != entries[j].AverageScore {
			return entries[i].AverageScore > entries[j].AverageScore
		}
		return entries[i].CompletionTime.Before(entries[j].CompletionTime)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// checkAndComplete flips the session to COMPLETED once every student session
// has finished. Invoked after each completion that finishes a student.
func (e *Engine) checkAndComplete(ctx context.Context, session *model.CompetitionSession) error {
	students, err := e.store.ListStudentSessions(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list student sessions: %w", err)
	}
	if len(students) == 0 {
		return nil
	}
	for i := range students {
		if students[i].Status != model.StudentStatusCompleted {
			return nil
		}
	}

	err = e.store.UpdateSessionStatus(ctx, session.ID, model.SessionStatusCompleted,
		model.SessionStatusActive, model.SessionStatusPaused)
	if err != nil {
		if errors.Is(err, ErrStateChanged) {
			// Someone else completed or ended it first; nothing left to do.
			return nil
		}
		return fmt.Errorf("complete session: %w", err)
	}

	e.publish(ctx, Event{Type: EventSessionCompleted, SessionID: session.ID})
	return nil
}

// Pause suspends an active session: new station starts are blocked, running
// stations and timestamps are untouched.
func (e *Engine) Pause(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := e.getSession(ctx, sessionID); err != nil {
		return err
	}
	err := e.store.UpdateSessionStatus(ctx, sessionID, model.SessionStatusPaused, model.SessionStatusActive)
	if errors.Is(err, ErrStateChanged) {
		return apperr.New(apperr.KindInvalidState, "only an active session can be paused")
	}
	if err != nil {
		return err
	}
	e.publish(ctx, Event{Type: EventSessionPaused, SessionID: sessionID})
	return nil
}

// Resume reactivates a paused session.
func (e *Engine) Resume(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := e.getSession(ctx, sessionID); err != nil {
		return err
	}
	err := e.store.UpdateSessionStatus(ctx, sessionID, model.SessionStatusActive, model.SessionStatusPaused)
	if errors.Is(err, ErrStateChanged) {
		return apperr.New(apperr.KindInvalidState, "only a paused session can be resumed")
	}
	if err != nil {
		return err
	}
	e.publish(ctx, Event{Type: EventSessionResumed, SessionID: sessionID})
	return nil
}

// End is the operator override: it completes the session immediately and
// force-completes every unfinished student session, unfinished queues and
// all. Distinct from natural completion via checkAndComplete.
func (e *Engine) End(ctx context.Context, sessionID uuid.UUID) error {
	session, err := e.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != model.SessionStatusActive && session.Status != model.SessionStatusPaused {
		return apperr.Newf(apperr.KindInvalidState,
			"session cannot be ended from status %s", session.Status)
	}

	students, err := e.store.ListStudentSessions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list student sessions: %w", err)
	}

	now := time.Now()
	var forced []model.StudentSession
	for i := range students {
		ss := students[i]
		if ss.Status.Terminal() {
			continue
		}
		ss.Status = model.StudentStatusCompleted
		ss.CompletedAt = &now
		forced = append(forced, ss)
	}

	session.Status = model.SessionStatusCompleted
	if err := e.store.EndCompetition(ctx, session, forced); err != nil {
		return fmt.Errorf("end competition: %w", err)
	}

	e.log.Info().
		Str("session_id", sessionID.String()).
		Int("force_completed", len(forced)).
		Msg("Session ended by operator")

	e.publish(ctx, Event{Type: EventSessionEnded, SessionID: sessionID})
	return nil
}

// ParticipantOverview is one row of the admin progress view.
type ParticipantOverview struct {
	StudentID           int                        `json:"student_id"`
	Name                string                     `json:"name"`
	Status              model.StudentSessionStatus `json:"status"`
	CurrentStationOrder int                        `json:"current_station_order"`
	CompletedCount      int                        `json:"completed_count"`
	AverageScore        float64                    `json:"average_score"`
}

// Overview reports every roster member's state for the admin monitor: roster
// entries without a student session yet appear as REGISTERED with no progress.
func (e *Engine) Overview(ctx context.Context, sessionID uuid.UUID) ([]ParticipantOverview, error) {
	if _, err := e.getSession(ctx, sessionID); err != nil {
		return nil, err
	}
	participants, err := e.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	students, err := e.store.ListStudentSessions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}
	byStudent := make(map[int]*model.StudentSession, len(students))
	for i := range students {
		byStudent[students[i].StudentID] = &students[i]
	}

	overview := make([]ParticipantOverview, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		row := ParticipantOverview{
			StudentID: p.StudentID,
			Name:      p.Name,
			Status:    model.StudentStatusRegistered,
		}
		if ss, ok := byStudent[p.StudentID]; ok {
			row.Status = ss.Status
			row.CurrentStationOrder = ss.CurrentStationOrder
			assignments, err := e.store.ListAssignments(ctx, ss.ID)
			if err != nil {
				return nil, fmt.Errorf("list assignments: %w", err)
			}
			summary := summarize(assignments)
			row.CompletedCount = summary.CompletedCount
			row.AverageScore = summary.AverageScore
		}
		overview = append(overview, row)
	}
	return overview, nil
}
