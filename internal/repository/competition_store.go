package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oscelab/osce-backend/internal/competition"
	"github.com/oscelab/osce-backend/internal/model"
)

// CompetitionStore is the PostgreSQL implementation of competition.Store.
// Aggregate operations run inside a single transaction so a crash mid-start
// cannot leave the session active with unassigned students.
type CompetitionStore struct {
	pool *pgxpool.Pool
}

// NewCompetitionStore creates a new CompetitionStore.
func NewCompetitionStore(pool *pgxpool.Pool) *CompetitionStore {
	return &CompetitionStore{pool: pool}
}

var _ competition.Store = (*CompetitionStore)(nil)

// ─── Sessions ───────────────────────────────────────────────────────────────

const sessionColumns = `id, name, start_time, end_time, status, stations_per_session,
	time_per_station, time_between_stations, randomize_stations, created_by, created_at, updated_at`

func scanSession(row pgx.Row) (*model.CompetitionSession, error) {
	s := &model.CompetitionSession{}
	err := row.Scan(&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.Status, &s.StationsPerSession,
		&s.TimePerStation, &s.TimeBetweenStations, &s.RandomizeStations, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, competition.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// CreateSession inserts the session with its roster and bank in one transaction.
func (r *CompetitionStore) CreateSession(ctx context.Context, s *model.CompetitionSession, participantIDs []int, caseIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO competition_sessions
		   (id, name, start_time, end_time, status, stations_per_session,
		    time_per_station, time_between_stations, randomize_stations, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		s.ID, s.Name, s.StartTime, s.EndTime, s.Status, s.StationsPerSession,
		s.TimePerStation, s.TimeBetweenStations, s.RandomizeStations, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := insertParticipants(ctx, tx, s.ID, participantIDs); err != nil {
		return err
	}
	if err := insertBank(ctx, tx, s.ID, caseIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertParticipants(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, studentIDs []int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO session_participants (session_id, student_id)
		 SELECT $1, u.student_id FROM UNNEST($2::int[]) AS u (student_id)`,
		sessionID, studentIDs)
	if err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}
	return nil
}

func insertBank(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, caseIDs []uuid.UUID) error {
	positions := make([]int, len(caseIDs))
	for i := range caseIDs {
		positions[i] = i + 1
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO station_bank (session_id, case_id, position)
		 SELECT $1, u.case_id, u.position
		 FROM UNNEST($2::uuid[], $3::int[]) AS u (case_id, position)`,
		sessionID, caseIDs, positions)
	if err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}
	return nil
}

// GetSession retrieves one session by ID.
func (r *CompetitionStore) GetSession(ctx context.Context, id uuid.UUID) (*model.CompetitionSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM competition_sessions WHERE id = $1`, id))
}

// ListSessions retrieves all sessions, newest first.
func (r *CompetitionStore) ListSessions(ctx context.Context) ([]model.CompetitionSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM competition_sessions ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.CompetitionSession
	for rows.Next() {
		var s model.CompetitionSession
		if err := rows.Scan(&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.Status, &s.StationsPerSession,
			&s.TimePerStation, &s.TimeBetweenStations, &s.RandomizeStations, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListSessionsForStudent retrieves the sessions whose roster includes the
// student, newest first.
func (r *CompetitionStore) ListSessionsForStudent(ctx context.Context, studentID int) ([]model.CompetitionSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.start_time, s.end_time, s.status, s.stations_per_session,
		        s.time_per_station, s.time_between_stations, s.randomize_stations, s.created_by, s.created_at, s.updated_at
		 FROM competition_sessions s
		 JOIN session_participants p ON p.session_id = s.id
		 WHERE p.student_id = $1
		 ORDER BY s.start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.CompetitionSession
	for rows.Next() {
		var s model.CompetitionSession
		if err := rows.Scan(&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.Status, &s.StationsPerSession,
			&s.TimePerStation, &s.TimeBetweenStations, &s.RandomizeStations, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateSession writes the editable configuration fields and, when the
// slices are non-nil, swaps the roster and bank in the same transaction.
// A roster swap discards all student sessions of the session; assignments
// cascade away with them.
func (r *CompetitionStore) UpdateSession(ctx context.Context, s *model.CompetitionSession, participantIDs []int, caseIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE competition_sessions
		 SET name = $1, start_time = $2, end_time = $3, stations_per_session = $4,
		     time_per_station = $5, time_between_stations = $6, randomize_stations = $7,
		     updated_at = NOW()
		 WHERE id = $8`,
		s.Name, s.StartTime, s.EndTime, s.StationsPerSession,
		s.TimePerStation, s.TimeBetweenStations, s.RandomizeStations, s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if participantIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM student_sessions WHERE session_id = $1`, s.ID); err != nil {
			return fmt.Errorf("delete student sessions: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM session_participants WHERE session_id = $1`, s.ID); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		if err := insertParticipants(ctx, tx, s.ID, participantIDs); err != nil {
			return err
		}
	}
	if caseIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM station_bank WHERE session_id = $1`, s.ID); err != nil {
			return fmt.Errorf("delete bank: %w", err)
		}
		if err := insertBank(ctx, tx, s.ID, caseIDs); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpdateSessionStatus transitions the status only from one of the expected
// states; competition.ErrStateChanged signals a lost race.
func (r *CompetitionStore) UpdateSessionStatus(ctx context.Context, id uuid.UUID, to model.SessionStatus, from ...model.SessionStatus) error {
	fromStr := make([]string, len(from))
	for i, f := range from {
		fromStr[i] = string(f)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE competition_sessions SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = ANY($3::text[])`,
		to, id, fromStr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return competition.ErrStateChanged
	}
	return nil
}

// DeleteSession removes the session; owned rows go with it via FK cascades.
func (r *CompetitionStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM competition_sessions WHERE id = $1`, id)
	return err
}

// ListParticipants retrieves the roster with student names.
func (r *CompetitionStore) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.session_id, p.student_id, s.name
		 FROM session_participants p
		 JOIN students s ON p.student_id = s.id
		 WHERE p.session_id = $1
		 ORDER BY s.name`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.SessionID, &p.StudentID, &p.Name); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ListBank retrieves the station bank in insertion order.
func (r *CompetitionStore) ListBank(ctx context.Context, sessionID uuid.UUID) ([]model.StationBankEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, case_id, position FROM station_bank
		 WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bank []model.StationBankEntry
	for rows.Next() {
		var b model.StationBankEntry
		if err := rows.Scan(&b.SessionID, &b.CaseID, &b.Position); err != nil {
			return nil, err
		}
		bank = append(bank, b)
	}
	return bank, rows.Err()
}

// ─── Student sessions ───────────────────────────────────────────────────────

const studentSessionColumns = `id, session_id, student_id, status, current_station_order,
	logged_in_at, started_at, completed_at`

func scanStudentSession(row pgx.Row) (*model.StudentSession, error) {
	ss := &model.StudentSession{}
	err := row.Scan(&ss.ID, &ss.SessionID, &ss.StudentID, &ss.Status, &ss.CurrentStationOrder,
		&ss.LoggedInAt, &ss.StartedAt, &ss.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, competition.ErrNotFound
		}
		return nil, err
	}
	return ss, nil
}

// CreateStudentSession inserts the row if absent (idempotent registration).
func (r *CompetitionStore) CreateStudentSession(ctx context.Context, ss *model.StudentSession) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO student_sessions (id, session_id, student_id, status, current_station_order)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, student_id) DO NOTHING
		 RETURNING id`,
		ss.ID, ss.SessionID, ss.StudentID, ss.Status, ss.CurrentStationOrder,
	).Scan(&ss.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil // Concurrent or repeated registration
		}
		return false, err
	}
	return true, nil
}

// GetStudentSession retrieves the session-student pair.
func (r *CompetitionStore) GetStudentSession(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error) {
	return scanStudentSession(r.pool.QueryRow(ctx,
		`SELECT `+studentSessionColumns+` FROM student_sessions
		 WHERE session_id = $1 AND student_id = $2`, sessionID, studentID))
}

// GetStudentSessionByID retrieves one student session by primary key.
func (r *CompetitionStore) GetStudentSessionByID(ctx context.Context, id uuid.UUID) (*model.StudentSession, error) {
	return scanStudentSession(r.pool.QueryRow(ctx,
		`SELECT `+studentSessionColumns+` FROM student_sessions WHERE id = $1`, id))
}

// ListStudentSessions retrieves every student session of a session.
func (r *CompetitionStore) ListStudentSessions(ctx context.Context, sessionID uuid.UUID) ([]model.StudentSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+studentSessionColumns+` FROM student_sessions
		 WHERE session_id = $1 ORDER BY student_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.StudentSession
	for rows.Next() {
		var ss model.StudentSession
		if err := rows.Scan(&ss.ID, &ss.SessionID, &ss.StudentID, &ss.Status, &ss.CurrentStationOrder,
			&ss.LoggedInAt, &ss.StartedAt, &ss.CompletedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// UpdateStudentSession writes the mutable progress fields.
func (r *CompetitionStore) UpdateStudentSession(ctx context.Context, ss *model.StudentSession) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE student_sessions
		 SET status = $1, current_station_order = $2, logged_in_at = $3, started_at = $4, completed_at = $5
		 WHERE id = $6`,
		ss.Status, ss.CurrentStationOrder, ss.LoggedInAt, ss.StartedAt, ss.CompletedAt, ss.ID)
	return err
}

// ResetStudentSession clears the student's progress and assignments together.
func (r *CompetitionStore) ResetStudentSession(ctx context.Context, ss *model.StudentSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM station_assignments WHERE student_session_id = $1`, ss.ID); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE student_sessions
		 SET status = $1, current_station_order = 0, logged_in_at = NULL, started_at = NULL, completed_at = NULL
		 WHERE id = $2`,
		model.StudentStatusRegistered, ss.ID); err != nil {
		return fmt.Errorf("reset student session: %w", err)
	}
	return tx.Commit(ctx)
}

// ─── Station assignments ────────────────────────────────────────────────────

const assignmentColumns = `id, student_session_id, case_id, station_order, status,
	started_at, completed_at, result`

func scanAssignment(row pgx.Row) (*model.StationAssignment, error) {
	a := &model.StationAssignment{}
	var result []byte
	err := row.Scan(&a.ID, &a.StudentSessionID, &a.CaseID, &a.StationOrder, &a.Status,
		&a.StartedAt, &a.CompletedAt, &result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, competition.ErrNotFound
		}
		return nil, err
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &a.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return a, nil
}

// ListAssignments retrieves a student's queue in station order.
func (r *CompetitionStore) ListAssignments(ctx context.Context, studentSessionID uuid.UUID) ([]model.StationAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM station_assignments
		 WHERE student_session_id = $1 ORDER BY station_order`, studentSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.StationAssignment
	for rows.Next() {
		var a model.StationAssignment
		var result []byte
		if err := rows.Scan(&a.ID, &a.StudentSessionID, &a.CaseID, &a.StationOrder, &a.Status,
			&a.StartedAt, &a.CompletedAt, &result); err != nil {
			return nil, err
		}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &a.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// GetAssignmentByOrder retrieves the assignment at one queue position.
func (r *CompetitionStore) GetAssignmentByOrder(ctx context.Context, studentSessionID uuid.UUID, order int) (*model.StationAssignment, error) {
	return scanAssignment(r.pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM station_assignments
		 WHERE student_session_id = $1 AND station_order = $2`, studentSessionID, order))
}

// StartAssignment flips PENDING → ACTIVE with a conditional update so a
// concurrent double-start loses cleanly.
func (r *CompetitionStore) StartAssignment(ctx context.Context, a *model.StationAssignment) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE station_assignments SET status = $1, started_at = $2
		 WHERE id = $3 AND status = $4`,
		model.AssignmentStatusActive, a.StartedAt, a.ID, model.AssignmentStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return competition.ErrStateChanged
	}
	return nil
}

// CompleteAssignment flips ACTIVE → COMPLETED and stores the result payload;
// a double-submit observes zero affected rows and fails.
func (r *CompetitionStore) CompleteAssignment(ctx context.Context, a *model.StationAssignment) error {
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE station_assignments SET status = $1, completed_at = $2, result = $3
		 WHERE id = $4 AND status = $5`,
		model.AssignmentStatusCompleted, a.CompletedAt, result, a.ID, model.AssignmentStatusActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return competition.ErrStateChanged
	}
	return nil
}

// ─── Aggregates ─────────────────────────────────────────────────────────────

// StartCompetition commits the session activation, student flips and every
// drawn assignment in one transaction.
func (r *CompetitionStore) StartCompetition(ctx context.Context, s *model.CompetitionSession, students []model.StudentSession, assignments []model.StationAssignment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE competition_sessions SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		model.SessionStatusActive, s.ID, model.SessionStatusScheduled)
	if err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return competition.ErrStateChanged
	}

	if len(students) > 0 {
		ids := make([]uuid.UUID, len(students))
		startedAts := make([]time.Time, len(students))
		for i := range students {
			ids[i] = students[i].ID
			startedAts[i] = *students[i].StartedAt
		}
		_, err = tx.Exec(ctx,
			`UPDATE student_sessions AS ss
			 SET status = $1, current_station_order = 1, started_at = t.started_at
			 FROM (
				SELECT u.id, u.started_at
				FROM UNNEST($2::uuid[], $3::timestamptz[]) AS u (id, started_at)
			 ) AS t
			 WHERE ss.id = t.id`,
			model.StudentStatusActive, ids, startedAts)
		if err != nil {
			return fmt.Errorf("activate student sessions: %w", err)
		}
	}

	if len(assignments) > 0 {
		ids := make([]uuid.UUID, len(assignments))
		ssIDs := make([]uuid.UUID, len(assignments))
		caseIDs := make([]uuid.UUID, len(assignments))
		orders := make([]int, len(assignments))
		for i := range assignments {
			ids[i] = assignments[i].ID
			ssIDs[i] = assignments[i].StudentSessionID
			caseIDs[i] = assignments[i].CaseID
			orders[i] = assignments[i].StationOrder
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO station_assignments (id, student_session_id, case_id, station_order, status)
			 SELECT u.id, u.student_session_id, u.case_id, u.station_order, $5
			 FROM UNNEST($1::uuid[], $2::uuid[], $3::uuid[], $4::int[])
			   AS u (id, student_session_id, case_id, station_order)`,
			ids, ssIDs, caseIDs, orders, model.AssignmentStatusPending)
		if err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// EndCompetition commits the operator override: session completed plus every
// forced student completion, atomically.
func (r *CompetitionStore) EndCompetition(ctx context.Context, s *model.CompetitionSession, students []model.StudentSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE competition_sessions SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = ANY($3::text[])`,
		model.SessionStatusCompleted, s.ID,
		[]string{string(model.SessionStatusActive), string(model.SessionStatusPaused)})
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return competition.ErrStateChanged
	}

	if len(students) > 0 {
		ids := make([]uuid.UUID, len(students))
		completedAts := make([]time.Time, len(students))
		for i := range students {
			ids[i] = students[i].ID
			completedAts[i] = *students[i].CompletedAt
		}
		_, err = tx.Exec(ctx,
			`UPDATE student_sessions AS ss
			 SET status = $1, completed_at = t.completed_at
			 FROM (
				SELECT u.id, u.completed_at
				FROM UNNEST($2::uuid[], $3::timestamptz[]) AS u (id, completed_at)
			 ) AS t
			 WHERE ss.id = t.id`,
			model.StudentStatusCompleted, ids, completedAts)
		if err != nil {
			return fmt.Errorf("force-complete student sessions: %w", err)
		}
	}

	return tx.Commit(ctx)
}
