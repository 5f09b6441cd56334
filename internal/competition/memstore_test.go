package competition

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/oscelab/osce-backend/internal/model"
)

// memStore is an in-memory Store used by the engine tests. It mirrors the
// database semantics the engine relies on: copies in and out (no aliasing),
// conditional updates that report ErrStateChanged, and atomic aggregates.
type memStore struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]model.CompetitionSession
	participants map[uuid.UUID][]model.Participant
	bank         map[uuid.UUID][]model.StationBankEntry
	students     map[uuid.UUID]model.StudentSession
	assignments  map[uuid.UUID][]model.StationAssignment

	// names backs ListParticipants' join against the students table.
	names map[int]string
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     make(map[uuid.UUID]model.CompetitionSession),
		participants: make(map[uuid.UUID][]model.Participant),
		bank:         make(map[uuid.UUID][]model.StationBankEntry),
		students:     make(map[uuid.UUID]model.StudentSession),
		assignments:  make(map[uuid.UUID][]model.StationAssignment),
		names:        make(map[int]string),
	}
}

func (m *memStore) CreateSession(_ context.Context, s *model.CompetitionSession, participantIDs []int, caseIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	m.setParticipants(s.ID, participantIDs)
	m.setBank(s.ID, caseIDs)
	return nil
}

func (m *memStore) setParticipants(sessionID uuid.UUID, studentIDs []int) {
	roster := make([]model.Participant, 0, len(studentIDs))
	for _, id := range studentIDs {
		roster = append(roster, model.Participant{SessionID: sessionID, StudentID: id, Name: m.names[id]})
	}
	m.participants[sessionID] = roster
}

func (m *memStore) setBank(sessionID uuid.UUID, caseIDs []uuid.UUID) {
	entries := make([]model.StationBankEntry, 0, len(caseIDs))
	for i, id := range caseIDs {
		entries = append(entries, model.StationBankEntry{SessionID: sessionID, CaseID: id, Position: i + 1})
	}
	m.bank[sessionID] = entries
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*model.CompetitionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *memStore) ListSessions(_ context.Context) ([]model.CompetitionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CompetitionSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m *memStore) ListSessionsForStudent(_ context.Context, studentID int) ([]model.CompetitionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CompetitionSession
	for id, roster := range m.participants {
		for _, p := range roster {
			if p.StudentID == studentID {
				out = append(out, m.sessions[id])
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m *memStore) UpdateSession(_ context.Context, s *model.CompetitionSession, participantIDs []int, caseIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	if participantIDs != nil {
		for ssID, ss := range m.students {
			if ss.SessionID == s.ID {
				delete(m.students, ssID)
				delete(m.assignments, ssID)
			}
		}
		m.setParticipants(s.ID, participantIDs)
	}
	if caseIDs != nil {
		m.setBank(s.ID, caseIDs)
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) UpdateSessionStatus(_ context.Context, id uuid.UUID, to model.SessionStatus, from ...model.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	for _, f := range from {
		if s.Status == f {
			s.Status = to
			m.sessions[id] = s
			return nil
		}
	}
	return ErrStateChanged
}

func (m *memStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.participants, id)
	delete(m.bank, id)
	for ssID, ss := range m.students {
		if ss.SessionID == id {
			delete(m.students, ssID)
			delete(m.assignments, ssID)
		}
	}
	return nil
}

func (m *memStore) ListParticipants(_ context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Participant(nil), m.participants[sessionID]...), nil
}

func (m *memStore) ListBank(_ context.Context, sessionID uuid.UUID) ([]model.StationBankEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StationBankEntry(nil), m.bank[sessionID]...), nil
}

func (m *memStore) CreateStudentSession(_ context.Context, ss *model.StudentSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.SessionID == ss.SessionID && existing.StudentID == ss.StudentID {
			return false, nil
		}
	}
	m.students[ss.ID] = *ss
	return true, nil
}

func (m *memStore) GetStudentSession(_ context.Context, sessionID uuid.UUID, studentID int) (*model.StudentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ss := range m.students {
		if ss.SessionID == sessionID && ss.StudentID == studentID {
			out := ss
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) GetStudentSessionByID(_ context.Context, id uuid.UUID) (*model.StudentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, ok := m.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ss, nil
}

func (m *memStore) ListStudentSessions(_ context.Context, sessionID uuid.UUID) ([]model.StudentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StudentSession
	for _, ss := range m.students {
		if ss.SessionID == sessionID {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (m *memStore) UpdateStudentSession(_ context.Context, ss *model.StudentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[ss.ID]; !ok {
		return ErrNotFound
	}
	m.students[ss.ID] = *ss
	return nil
}

func (m *memStore) ResetStudentSession(_ context.Context, ss *model.StudentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[ss.ID]; !ok {
		return ErrNotFound
	}
	m.students[ss.ID] = *ss
	delete(m.assignments, ss.ID)
	return nil
}

func (m *memStore) ListAssignments(_ context.Context, studentSessionID uuid.UUID) ([]model.StationAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.StationAssignment(nil), m.assignments[studentSessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].StationOrder < out[j].StationOrder })
	return out, nil
}

func (m *memStore) GetAssignmentByOrder(_ context.Context, studentSessionID uuid.UUID, order int) (*model.StationAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments[studentSessionID] {
		if a.StationOrder == order {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) StartAssignment(_ context.Context, a *model.StationAssignment) error {
	return m.transitionAssignment(a, model.AssignmentStatusPending)
}

func (m *memStore) CompleteAssignment(_ context.Context, a *model.StationAssignment) error {
	return m.transitionAssignment(a, model.AssignmentStatusActive)
}

func (m *memStore) transitionAssignment(a *model.StationAssignment, expect model.AssignmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.assignments[a.StudentSessionID]
	for i := range list {
		if list[i].ID == a.ID {
			if list[i].Status != expect {
				return ErrStateChanged
			}
			list[i] = *a
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) StartCompetition(_ context.Context, s *model.CompetitionSession, students []model.StudentSession, assignments []model.StationAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != model.SessionStatusScheduled {
		return ErrStateChanged
	}
	m.sessions[s.ID] = *s
	for _, ss := range students {
		m.students[ss.ID] = ss
	}
	for _, a := range assignments {
		m.assignments[a.StudentSessionID] = append(m.assignments[a.StudentSessionID], a)
	}
	return nil
}

func (m *memStore) EndCompetition(_ context.Context, s *model.CompetitionSession, students []model.StudentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != model.SessionStatusActive && existing.Status != model.SessionStatusPaused {
		return ErrStateChanged
	}
	m.sessions[s.ID] = *s
	for _, ss := range students {
		m.students[ss.ID] = ss
	}
	return nil
}
