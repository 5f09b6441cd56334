package competition

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/model"
)

func newTestEngine(opts ...Option) (*Engine, *memStore) {
	store := newMemStore()
	return New(store, opts...), store
}

func sessionRequest(participants []int, bankSize, stations int, randomize bool) *model.CreateSessionRequest {
	cases := make([]uuid.UUID, bankSize)
	for i := range cases {
		cases[i] = uuid.New()
	}
	return &model.CreateSessionRequest{
		Name:                "Internal Medicine Finals",
		StartTime:           time.Now().Add(time.Hour),
		EndTime:             time.Now().Add(3 * time.Hour),
		StationsPerSession:  stations,
		TimePerStation:      600,
		TimeBetweenStations: 60,
		RandomizeStations:   randomize,
		ParticipantIDs:      participants,
		CaseIDs:             cases,
	}
}

// joinAll registers and logs in every given student; the final login
// auto-starts the session. Returns student-session IDs keyed by student.
func joinAll(t *testing.T, e *Engine, sessionID uuid.UUID, students []int) map[int]uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ids := make(map[int]uuid.UUID, len(students))
	for _, id := range students {
		if _, err := e.Register(ctx, sessionID, id); err != nil {
			t.Fatalf("Register(%d): %v", id, err)
		}
	}
	for _, id := range students {
		ss, err := e.Login(ctx, sessionID, id)
		if err != nil {
			t.Fatalf("Login(%d): %v", id, err)
		}
		ids[id] = ss.ID
	}
	return ids
}

func result(pct float64) *model.EvaluationResult {
	return &model.EvaluationResult{
		PointsEarned: pct,
		PointsTotal:  100,
		Percentage:   pct,
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %q (%v)", kind, got, err)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	base := func() *model.CreateSessionRequest {
		return sessionRequest([]int{1, 2}, 3, 2, false)
	}

	tests := []struct {
		name   string
		mutate func(*model.CreateSessionRequest)
	}{
		{"start not before end", func(r *model.CreateSessionRequest) {
			r.EndTime = r.StartTime
		}},
		{"zero stations", func(r *model.CreateSessionRequest) {
			r.StationsPerSession = 0
		}},
		{"zero time per station", func(r *model.CreateSessionRequest) {
			r.TimePerStation = 0
		}},
		{"negative between time", func(r *model.CreateSessionRequest) {
			r.TimeBetweenStations = -1
		}},
		{"empty roster", func(r *model.CreateSessionRequest) {
			r.ParticipantIDs = nil
		}},
		{"empty bank", func(r *model.CreateSessionRequest) {
			r.CaseIDs = nil
		}},
		{"duplicate participant", func(r *model.CreateSessionRequest) {
			r.ParticipantIDs = []int{1, 1}
		}},
		{"duplicate case", func(r *model.CreateSessionRequest) {
			r.CaseIDs = []uuid.UUID{r.CaseIDs[0], r.CaseIDs[0], r.CaseIDs[1]}
		}},
		{"bank smaller than station count", func(r *model.CreateSessionRequest) {
			r.StationsPerSession = 5
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(req)
			_, err := e.CreateSession(ctx, 1, req)
			wantKind(t, err, apperr.KindValidation)
		})
	}

	if _, err := e.CreateSession(ctx, 1, base()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestSessionsForStudent(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	mine, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := e.CreateSession(ctx, 1, sessionRequest([]int{11}, 1, 1, false)); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sessions, err := e.SessionsForStudent(ctx, 10)
	if err != nil {
		t.Fatalf("SessionsForStudent: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != mine.ID {
		t.Fatalf("expected only the rostered session, got %+v", sessions)
	}

	none, err := e.SessionsForStudent(ctx, 99)
	if err != nil {
		t.Fatalf("SessionsForStudent(99): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no sessions for an unrostered student, got %d", len(none))
	}
}

func TestRegisterRequiresRoster(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = e.Register(ctx, session.ID, 99)
	wantKind(t, err, apperr.KindPrecondition)
}

func TestRegisterIdempotent(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	first, err := e.Register(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}
	second, err := e.Register(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("repeated registration created a new student session: %s vs %s", first.ID, second.ID)
	}
	if second.Status != model.StudentStatusRegistered {
		t.Fatalf("expected REGISTERED, got %s", second.Status)
	}
}

func TestRegisterClosedOnceStarted(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	joinAll(t, e, session.ID, []int{10})
	if err := e.ForceStart(ctx, session.ID); err != nil {
		t.Fatalf("ForceStart: %v", err)
	}

	_, err = e.Register(ctx, session.ID, 11)
	wantKind(t, err, apperr.KindPrecondition)
}

func TestRegisterReturnsExistingAfterStart(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10})

	// The solo login auto-starts the session. A retried registration, as a
	// reconnecting client would send, must hand back the existing student
	// session rather than reject it.
	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("expected ACTIVE after solo login, got %s", got.Status)
	}

	again, err := e.Register(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("Register after start: %v", err)
	}
	if again.ID != ids[10] {
		t.Fatalf("retried registration returned a different student session: %s vs %s", again.ID, ids[10])
	}
	if again.Status != model.StudentStatusActive {
		t.Fatalf("expected ACTIVE student session, got %s", again.Status)
	}
}

func TestAutoStartWaitsForFullAttendance(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 3, 2, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := e.Register(ctx, session.ID, 10); err != nil {
		t.Fatalf("Register(10): %v", err)
	}
	if _, err := e.Register(ctx, session.ID, 11); err != nil {
		t.Fatalf("Register(11): %v", err)
	}

	first, err := e.Login(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("Login(10): %v", err)
	}
	if first.Status != model.StudentStatusLoggedIn {
		t.Fatalf("expected LOGGED_IN after first login, got %s", first.Status)
	}
	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusScheduled {
		t.Fatalf("session started before full attendance: %s", got.Status)
	}

	second, err := e.Login(ctx, session.ID, 11)
	if err != nil {
		t.Fatalf("Login(11): %v", err)
	}
	got, err = e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("last login did not start the session: %s", got.Status)
	}
	if second.Status != model.StudentStatusActive || second.CurrentStationOrder != 1 {
		t.Fatalf("student not activated at station 1: %s / %d", second.Status, second.CurrentStationOrder)
	}
	if second.StartedAt == nil {
		t.Fatal("StartedAt not set on start")
	}

	for _, id := range []int{10, 11} {
		ss, err := store.GetStudentSession(ctx, session.ID, id)
		if err != nil {
			t.Fatalf("GetStudentSession(%d): %v", id, err)
		}
		assignments, err := store.ListAssignments(ctx, ss.ID)
		if err != nil {
			t.Fatalf("ListAssignments(%d): %v", id, err)
		}
		if len(assignments) != 2 {
			t.Fatalf("student %d: expected 2 assignments, got %d", id, len(assignments))
		}
		for i, a := range assignments {
			if a.StationOrder != i+1 {
				t.Fatalf("student %d: assignment %d has order %d", id, i, a.StationOrder)
			}
			if a.Status != model.AssignmentStatusPending {
				t.Fatalf("student %d: fresh assignment is %s", id, a.Status)
			}
		}
	}
}

func TestForceStartPartialAttendance(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := e.Register(ctx, session.ID, 10); err != nil {
		t.Fatalf("Register(10): %v", err)
	}
	if _, err := e.Register(ctx, session.ID, 11); err != nil {
		t.Fatalf("Register(11): %v", err)
	}
	if _, err := e.Login(ctx, session.ID, 10); err != nil {
		t.Fatalf("Login(10): %v", err)
	}

	if err := e.ForceStart(ctx, session.ID); err != nil {
		t.Fatalf("ForceStart: %v", err)
	}

	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("session not active after force start: %s", got.Status)
	}

	present, err := store.GetStudentSession(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("GetStudentSession(10): %v", err)
	}
	if present.Status != model.StudentStatusActive {
		t.Fatalf("logged-in student not activated: %s", present.Status)
	}

	// The registered-but-absent student is skipped: no queue, no activation.
	absent, err := store.GetStudentSession(ctx, session.ID, 11)
	if err != nil {
		t.Fatalf("GetStudentSession(11): %v", err)
	}
	if absent.Status != model.StudentStatusRegistered {
		t.Fatalf("absent student was activated: %s", absent.Status)
	}
	assignments, err := store.ListAssignments(ctx, absent.ID)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(assignments) != 0 {
		t.Fatalf("absent student received %d assignments", len(assignments))
	}
}

func TestForceStartWithoutParticipants(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	err = e.ForceStart(ctx, session.ID)
	wantKind(t, err, apperr.KindPrecondition)
}

func TestStationLifecycle(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 3, 2, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10})
	ssID := ids[10]

	a, s, err := e.StartCurrentStation(ctx, ssID)
	if err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}
	if a.StationOrder != 1 || a.Status != model.AssignmentStatusActive || a.StartedAt == nil {
		t.Fatalf("unexpected started assignment: order=%d status=%s", a.StationOrder, a.Status)
	}
	if s.ID != session.ID {
		t.Fatalf("wrong session returned: %s", s.ID)
	}

	// Starting an already-running station must fail without side effects.
	_, _, err = e.StartCurrentStation(ctx, ssID)
	wantKind(t, err, apperr.KindInvalidState)

	done, err := e.CompleteCurrentStation(ctx, ssID, result(85))
	if err != nil {
		t.Fatalf("CompleteCurrentStation: %v", err)
	}
	if done.IsFinished {
		t.Fatal("finished after the first of two stations")
	}
	if done.NextStationDelay != session.TimeBetweenStations {
		t.Fatalf("expected delay %d, got %d", session.TimeBetweenStations, done.NextStationDelay)
	}
	progress, err := e.StudentStatus(ctx, ssID)
	if err != nil {
		t.Fatalf("StudentStatus: %v", err)
	}
	if progress.Status != model.StudentStatusBetweenStations || progress.CurrentStationOrder != 2 {
		t.Fatalf("pointer did not advance: %s / %d", progress.Status, progress.CurrentStationOrder)
	}
	if progress.CompletedCount != 1 || progress.ProgressPercent != 50 {
		t.Fatalf("unexpected progress: %d completed, %.1f%%", progress.CompletedCount, progress.ProgressPercent)
	}

	// A double submit after the advance observes BETWEEN_STATIONS.
	_, err = e.CompleteCurrentStation(ctx, ssID, result(85))
	wantKind(t, err, apperr.KindInvalidState)

	if _, _, err := e.StartCurrentStation(ctx, ssID); err != nil {
		t.Fatalf("start second station: %v", err)
	}
	done, err = e.CompleteCurrentStation(ctx, ssID, result(95))
	if err != nil {
		t.Fatalf("complete second station: %v", err)
	}
	if !done.IsFinished {
		t.Fatal("last station completion not flagged as finished")
	}

	ss, err := e.Participation(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("Participation: %v", err)
	}
	if ss.Status != model.StudentStatusCompleted || ss.CompletedAt == nil {
		t.Fatalf("student not completed: %s", ss.Status)
	}

	// Sole participant finished, so the session sealed itself.
	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusCompleted {
		t.Fatalf("session not sealed: %s", got.Status)
	}

	score, err := e.Score(ctx, ssID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score.CompletedCount != 2 || score.AverageScore != 90 || score.TotalScore != 180 {
		t.Fatalf("unexpected score summary: %+v", score)
	}
}

func TestSingleStationSoloRun(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Register → login → auto-start (1/1 logged in) → station → done.
	if _, err := e.Register(ctx, session.ID, 10); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ss, err := e.Login(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if ss.Status != model.StudentStatusActive {
		t.Fatalf("auto-start did not fire: %s", ss.Status)
	}
	if _, _, err := e.StartCurrentStation(ctx, ss.ID); err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}
	done, err := e.CompleteCurrentStation(ctx, ss.ID, result(80))
	if err != nil {
		t.Fatalf("CompleteCurrentStation: %v", err)
	}
	if !done.IsFinished {
		t.Fatal("single-station run not finished")
	}

	ss, err = e.Participation(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("Participation: %v", err)
	}
	if ss.Status != model.StudentStatusCompleted {
		t.Fatalf("student not completed: %s", ss.Status)
	}
	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusCompleted {
		t.Fatalf("session not completed: %s", got.Status)
	}

	entries, err := e.Leaderboard(ctx, session.ID)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Rank != 1 || entries[0].AverageScore != 80 {
		t.Fatalf("unexpected leaderboard: %+v", entries)
	}
}

func TestCompleteRequiresResult(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10})
	if _, _, err := e.StartCurrentStation(ctx, ids[10]); err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}

	_, err = e.CompleteCurrentStation(ctx, ids[10], nil)
	wantKind(t, err, apperr.KindValidation)
}

func TestPauseBlocksStartsButNotCompletions(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 2, 2, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10})
	ssID := ids[10]

	if _, _, err := e.StartCurrentStation(ctx, ssID); err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}
	if err := e.Pause(ctx, session.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// The running station may finish while paused.
	if _, err := e.CompleteCurrentStation(ctx, ssID, result(70)); err != nil {
		t.Fatalf("complete while paused: %v", err)
	}

	// But no new station may begin.
	_, _, err = e.StartCurrentStation(ctx, ssID)
	wantKind(t, err, apperr.KindPrecondition)

	if err := e.Resume(ctx, session.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, _, err := e.StartCurrentStation(ctx, ssID); err != nil {
		t.Fatalf("start after resume: %v", err)
	}
}

func TestPauseResumeStateGuards(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	wantKind(t, e.Pause(ctx, session.ID), apperr.KindInvalidState)
	wantKind(t, e.Resume(ctx, session.ID), apperr.KindInvalidState)
}

func TestRandomizedDrawSeededAndDistinct(t *testing.T) {
	// draws runs a fresh session with the given seed and returns each
	// student's queue as bank indices, so two runs with distinct case UUIDs
	// stay comparable.
	draws := func(seed int64) [][]int {
		e, store := newTestEngine(WithRandSeed(seed))
		ctx := context.Background()

		req := sessionRequest([]int{10, 11, 12}, 6, 3, true)
		session, err := e.CreateSession(ctx, 1, req)
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		bankIndex := make(map[uuid.UUID]int, len(req.CaseIDs))
		for i, caseID := range req.CaseIDs {
			bankIndex[caseID] = i
		}
		joinAll(t, e, session.ID, []int{10, 11, 12})

		var out [][]int
		for _, id := range []int{10, 11, 12} {
			ss, err := store.GetStudentSession(ctx, session.ID, id)
			if err != nil {
				t.Fatalf("GetStudentSession(%d): %v", id, err)
			}
			assignments, err := store.ListAssignments(ctx, ss.ID)
			if err != nil {
				t.Fatalf("ListAssignments(%d): %v", id, err)
			}
			queue := make([]int, len(assignments))
			for i, a := range assignments {
				queue[i] = bankIndex[a.CaseID]
			}
			out = append(out, queue)
		}
		return out
	}

	first := draws(42)
	for _, queue := range first {
		if len(queue) != 3 {
			t.Fatalf("expected queue of 3, got %d", len(queue))
		}
		seen := make(map[int]struct{}, len(queue))
		for _, idx := range queue {
			if _, dup := seen[idx]; dup {
				t.Fatalf("bank entry %d drawn twice for one student", idx)
			}
			seen[idx] = struct{}{}
		}
	}

	// Same seed, same bank order: the index sequences must be identical
	// across runs.
	second := draws(42)
	for s := range first {
		for i := range first[s] {
			if first[s][i] != second[s][i] {
				t.Fatalf("student %d station %d: draw not reproducible (%d vs %d)",
					s, i+1, first[s][i], second[s][i])
			}
		}
	}
}

func TestNonRandomizedDrawUsesInsertionOrder(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()

	req := sessionRequest([]int{10}, 4, 2, false)
	session, err := e.CreateSession(ctx, 1, req)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10})

	assignments, err := store.ListAssignments(ctx, ids[10])
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	for i, a := range assignments {
		if a.CaseID != req.CaseIDs[i] {
			t.Fatalf("station %d: expected case %s (insertion order), got %s", i+1, req.CaseIDs[i], a.CaseID)
		}
	}
}

func TestLeaderboardRanksSequentially(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11, 12}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10, 11, 12})

	// Student 10 and 11 tie on average; 10 finishes first and outranks 11.
	finish := func(studentID int, pct float64) {
		t.Helper()
		if _, _, err := e.StartCurrentStation(ctx, ids[studentID]); err != nil {
			t.Fatalf("start station for %d: %v", studentID, err)
		}
		if _, err := e.CompleteCurrentStation(ctx, ids[studentID], result(pct)); err != nil {
			t.Fatalf("complete station for %d: %v", studentID, err)
		}
		time.Sleep(time.Millisecond)
	}
	finish(10, 90)
	finish(11, 90)
	finish(12, 70)

	entries, err := e.Leaderboard(ctx, session.ID)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	want := []struct {
		rank    int
		student int
		avg     float64
	}{
		{1, 10, 90},
		{2, 11, 90},
		{3, 12, 70},
	}
	for i, w := range want {
		got := entries[i]
		if got.Rank != w.rank || got.StudentID != w.student || got.AverageScore != w.avg {
			t.Fatalf("entry %d: got rank=%d student=%d avg=%.1f, want rank=%d student=%d avg=%.1f",
				i, got.Rank, got.StudentID, got.AverageScore, w.rank, w.student, w.avg)
		}
	}
}

func TestLeaderboardSkipsUnfinished(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10, 11})

	if _, _, err := e.StartCurrentStation(ctx, ids[10]); err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}
	if _, err := e.CompleteCurrentStation(ctx, ids[10], result(80)); err != nil {
		t.Fatalf("CompleteCurrentStation: %v", err)
	}

	entries, err := e.Leaderboard(ctx, session.ID)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].StudentID != 10 {
		t.Fatalf("expected only the finished student, got %+v", entries)
	}
}

func TestSessionSealsWhenLastStudentFinishes(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10, 11})

	if _, _, err := e.StartCurrentStation(ctx, ids[10]); err != nil {
		t.Fatalf("StartCurrentStation(10): %v", err)
	}
	if _, err := e.CompleteCurrentStation(ctx, ids[10], result(88)); err != nil {
		t.Fatalf("CompleteCurrentStation(10): %v", err)
	}

	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusActive {
		t.Fatalf("session sealed with a student still running: %s", got.Status)
	}

	if _, _, err := e.StartCurrentStation(ctx, ids[11]); err != nil {
		t.Fatalf("StartCurrentStation(11): %v", err)
	}
	if _, err := e.CompleteCurrentStation(ctx, ids[11], result(92)); err != nil {
		t.Fatalf("CompleteCurrentStation(11): %v", err)
	}

	got, err = e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusCompleted {
		t.Fatalf("session not sealed after last finisher: %s", got.Status)
	}
}

func TestEndForceCompletesStragglers(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 2, 2, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10, 11})

	// Student 10 is mid-station when the operator pulls the plug.
	if _, _, err := e.StartCurrentStation(ctx, ids[10]); err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}

	if err := e.End(ctx, session.ID); err != nil {
		t.Fatalf("End: %v", err)
	}

	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusCompleted {
		t.Fatalf("session not completed by End: %s", got.Status)
	}
	for _, id := range []int{10, 11} {
		ss, err := store.GetStudentSession(ctx, session.ID, id)
		if err != nil {
			t.Fatalf("GetStudentSession(%d): %v", id, err)
		}
		if ss.Status != model.StudentStatusCompleted || ss.CompletedAt == nil {
			t.Fatalf("student %d not force-completed: %s", id, ss.Status)
		}
	}

	// Unfinished assignments keep their state; only the student flips.
	assignments, err := store.ListAssignments(ctx, ids[10])
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if assignments[0].Status != model.AssignmentStatusActive {
		t.Fatalf("End touched the running assignment: %s", assignments[0].Status)
	}

	wantKind(t, e.End(ctx, session.ID), apperr.KindInvalidState)
}

func TestDeleteBlockedWhileMidExam(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	joinAll(t, e, session.ID, []int{10})

	wantKind(t, e.DeleteSession(ctx, session.ID), apperr.KindConflict)

	if err := e.End(ctx, session.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := e.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession after End: %v", err)
	}
	_, err = e.GetSession(ctx, session.ID)
	wantKind(t, err, apperr.KindNotFound)
}

func TestCancelOnlyScheduled(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := e.CancelSession(ctx, session.ID); err != nil {
		t.Fatalf("CancelSession: %v", err)
	}
	got, err := e.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.SessionStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}

	wantKind(t, e.CancelSession(ctx, session.ID), apperr.KindInvalidState)
}

func TestEditSessionGuards(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Raising the station count past the existing bank is rejected.
	five := 5
	_, err = e.EditSession(ctx, session.ID, &model.UpdateSessionRequest{StationsPerSession: &five})
	wantKind(t, err, apperr.KindValidation)

	two := 2
	updated, err := e.EditSession(ctx, session.ID, &model.UpdateSessionRequest{
		Name:               "Surgery Finals",
		StationsPerSession: &two,
	})
	if err != nil {
		t.Fatalf("EditSession: %v", err)
	}
	if updated.Name != "Surgery Finals" || updated.StationsPerSession != 2 {
		t.Fatalf("patch not applied: %+v", updated)
	}

	joinAll(t, e, session.ID, []int{10})
	_, err = e.EditSession(ctx, session.ID, &model.UpdateSessionRequest{Name: "Too Late"})
	wantKind(t, err, apperr.KindInvalidState)
}

func TestReplaceRosterDiscardsStudentSessions(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := e.Register(ctx, session.ID, 10); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = e.EditSession(ctx, session.ID, &model.UpdateSessionRequest{ParticipantIDs: []int{11, 12}})
	if err != nil {
		t.Fatalf("EditSession: %v", err)
	}

	_, err = e.Participation(ctx, session.ID, 10)
	wantKind(t, err, apperr.KindNotFound)

	roster, err := e.Roster(ctx, session.ID)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected roster of 2, got %d", len(roster))
	}
}

func TestEditSessionRejectsEmptyReplacements(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 2, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// An empty replacement wipes the roster or bank. Absent fields mean
	// "keep"; an explicit empty list is rejected.
	_, err = e.EditSession(ctx, session.ID, &model.UpdateSessionRequest{ParticipantIDs: []int{}})
	wantKind(t, err, apperr.KindValidation)

	_, err = e.EditSession(ctx, session.ID, &model.UpdateSessionRequest{CaseIDs: []uuid.UUID{}})
	wantKind(t, err, apperr.KindValidation)

	roster, err := e.Roster(ctx, session.ID)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster was modified by a rejected edit, got %d members", len(roster))
	}
}

func TestResetParticipant(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10}, 2, 2, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ids := joinAll(t, e, session.ID, []int{10})
	if _, _, err := e.StartCurrentStation(ctx, ids[10]); err != nil {
		t.Fatalf("StartCurrentStation: %v", err)
	}

	ss, err := e.ResetParticipant(ctx, session.ID, 10)
	if err != nil {
		t.Fatalf("ResetParticipant: %v", err)
	}
	if ss.Status != model.StudentStatusRegistered || ss.CurrentStationOrder != 0 {
		t.Fatalf("student not reset: %s / %d", ss.Status, ss.CurrentStationOrder)
	}
	if ss.LoggedInAt != nil || ss.StartedAt != nil || ss.CompletedAt != nil {
		t.Fatal("reset kept stale timestamps")
	}
	assignments, err := store.ListAssignments(ctx, ids[10])
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(assignments) != 0 {
		t.Fatalf("reset kept %d assignments", len(assignments))
	}

	_, err = e.ResetParticipant(ctx, session.ID, 99)
	wantKind(t, err, apperr.KindNotFound)
}

func TestOverviewIncludesRosterWithoutSessions(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()

	store.names[10] = "Amara Okafor"
	store.names[11] = "Wei Chen"

	session, err := e.CreateSession(ctx, 1, sessionRequest([]int{10, 11}, 1, 1, false))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := e.Register(ctx, session.ID, 10); err != nil {
		t.Fatalf("Register: %v", err)
	}

	overview, err := e.Overview(ctx, session.ID)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(overview) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(overview))
	}
	for _, row := range overview {
		if row.Status != model.StudentStatusRegistered {
			t.Fatalf("student %d: expected REGISTERED, got %s", row.StudentID, row.Status)
		}
	}
	if overview[0].Name != "Amara Okafor" {
		t.Fatalf("roster name not joined: %q", overview[0].Name)
	}
}
