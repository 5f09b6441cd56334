package competition

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/model"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStateChanged is returned by conditional updates when the row was no
	// longer in the expected state — a concurrent request won the race.
	ErrStateChanged = errors.New("state changed concurrently")
)

// Store is the persistence contract the engine depends on. The pgx
// implementation lives in internal/repository; tests use an in-memory fake.
//
// Aggregate methods (CreateSession, UpdateSession, StartCompetition,
// EndCompetition, ResetStudentSession, DeleteSession) must be all-or-nothing:
// a failure partway may not leave partial writes visible.
type Store interface {
	// ─── Sessions ──────────────────────────────────────────────────────
	CreateSession(ctx context.Context, s *model.CompetitionSession, participantIDs []int, caseIDs []uuid.UUID) error
	GetSession(ctx context.Context, id uuid.UUID) (*model.CompetitionSession, error)
	ListSessions(ctx context.Context) ([]model.CompetitionSession, error)
	// ListSessionsForStudent returns the sessions whose roster includes the
	// student, newest first.
	ListSessionsForStudent(ctx context.Context, studentID int) ([]model.CompetitionSession, error)
	// UpdateSession writes the editable configuration fields and, when the
	// slices are non-nil, swaps the roster and bank in the same transaction.
	// A roster swap discards every student session of the session (full
	// reset, not incremental diff).
	UpdateSession(ctx context.Context, s *model.CompetitionSession, participantIDs []int, caseIDs []uuid.UUID) error
	// UpdateSessionStatus transitions the session to the target status only if
	// its current status is one of from; returns ErrStateChanged otherwise.
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, to model.SessionStatus, from ...model.SessionStatus) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error)
	// ListBank returns bank entries ordered by insertion position.
	ListBank(ctx context.Context, sessionID uuid.UUID) ([]model.StationBankEntry, error)

	// ─── Student sessions ──────────────────────────────────────────────
	// CreateStudentSession inserts the row if absent; created reports whether
	// a new row was written (false means one already existed).
	CreateStudentSession(ctx context.Context, ss *model.StudentSession) (created bool, err error)
	GetStudentSession(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error)
	GetStudentSessionByID(ctx context.Context, id uuid.UUID) (*model.StudentSession, error)
	ListStudentSessions(ctx context.Context, sessionID uuid.UUID) ([]model.StudentSession, error)
	UpdateStudentSession(ctx context.Context, ss *model.StudentSession) error
	// ResetStudentSession writes the reset fields and deletes all the
	// student's station assignments in one step.
	ResetStudentSession(ctx context.Context, ss *model.StudentSession) error

	// ─── Station assignments ───────────────────────────────────────────
	// ListAssignments returns assignments ordered by station_order.
	ListAssignments(ctx context.Context, studentSessionID uuid.UUID) ([]model.StationAssignment, error)
	GetAssignmentByOrder(ctx context.Context, studentSessionID uuid.UUID, order int) (*model.StationAssignment, error)
	// StartAssignment flips PENDING → ACTIVE; ErrStateChanged if not pending.
	StartAssignment(ctx context.Context, a *model.StationAssignment) error
	// CompleteAssignment flips ACTIVE → COMPLETED and stores the result;
	// ErrStateChanged if not active (e.g. a double-submit).
	CompleteAssignment(ctx context.Context, a *model.StationAssignment) error

	// ─── Aggregates ────────────────────────────────────────────────────
	// StartCompetition atomically activates the session, flips the given
	// student sessions and writes every drawn assignment.
	StartCompetition(ctx context.Context, s *model.CompetitionSession, students []model.StudentSession, assignments []model.StationAssignment) error
	// EndCompetition atomically completes the session and force-completes the
	// given student sessions.
	EndCompetition(ctx context.Context, s *model.CompetitionSession, students []model.StudentSession) error
}
