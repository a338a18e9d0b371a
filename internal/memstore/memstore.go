// Package memstore is an in-process implementation of the student,
// attendance and identity stores. It backs STORE_BACKEND=memory and the
// HTTP tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtside/internal/apperr"
	"courtside/internal/attendance"
	"courtside/internal/auth"
	"courtside/internal/students"
)

type refreshToken struct {
	accountID string
	expiresAt time.Time
	revoked   bool
}

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	students    map[string]students.Student
	purchases   map[string]students.Purchase
	attendances map[string]attendance.Attendance
	accounts    map[string]auth.Account
	profiles    map[string]auth.Profile
	tokens      map[string]refreshToken
	writes      int

	// DenyProfileWrites makes InsertProfile fail with
	// apperr.ErrPermissionDenied, like a row-level security policy would.
	DenyProfileWrites bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:         time.Now,
		students:    make(map[string]students.Student),
		purchases:   make(map[string]students.Purchase),
		attendances: make(map[string]attendance.Attendance),
		accounts:    make(map[string]auth.Account),
		profiles:    make(map[string]auth.Profile),
		tokens:      make(map[string]refreshToken),
	}
}

// Writes counts successful mutations of students, purchases and attendance.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) InsertStudent(_ context.Context, st students.Student) (students.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.CreatedAt = s.now().UTC()
	s.students[st.ID] = st
	s.writes++
	return st, nil
}

func (s *Store) UpdateStudent(_ context.Context, st students.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.students[st.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	st.CreatedAt = cur.CreatedAt
	s.students[st.ID] = st
	s.writes++
	return nil
}

func (s *Store) GetStudent(_ context.Context, id string) (*students.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *Store) ListStudents(_ context.Context) ([]students.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]students.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteStudentCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return apperr.ErrNotFound
	}
	for aid, a := range s.attendances {
		if a.StudentID == id {
			delete(s.attendances, aid)
		}
	}
	for pid, p := range s.purchases {
		if p.StudentID == id {
			delete(s.purchases, pid)
		}
	}
	delete(s.students, id)
	s.writes++
	return nil
}

func (s *Store) InsertPurchase(_ context.Context, p students.Purchase) (students.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[p.StudentID]; !ok {
		return students.Purchase{}, apperr.ErrNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.purchases[p.ID] = p
	s.writes++
	return p, nil
}

func (s *Store) PurchasesByStudent(_ context.Context, studentID string) ([]students.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []students.Purchase
	for _, p := range s.purchases {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchaseDate.After(out[j].PurchaseDate) })
	return out, nil
}

func (s *Store) InsertAttendance(_ context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[a.StudentID]; !ok {
		return attendance.Attendance{}, apperr.ErrNotFound
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AttendanceDate.IsZero() {
		a.AttendanceDate = s.now().UTC()
	}
	if a.TimeIn == nil {
		t := a.AttendanceDate
		a.TimeIn = &t
	}
	a.Version = 1
	s.attendances[a.ID] = a
	s.writes++
	return a, nil
}

func (s *Store) GetAttendance(_ context.Context, id string) (*attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attendances[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) AttendancesByStudent(_ context.Context, studentID string) ([]attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []attendance.Attendance
	for _, a := range s.attendances {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	sortByDate(out, func(a attendance.Attendance) time.Time { return a.AttendanceDate })
	return out, nil
}

func (s *Store) AttendancesWithStudents(_ context.Context, studentID string, limit int) ([]attendance.WithStudent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []attendance.WithStudent
	for _, a := range s.attendances {
		if studentID != "" && a.StudentID != studentID {
			continue
		}
		st, ok := s.students[a.StudentID]
		if !ok {
			continue
		}
		out = append(out, attendance.WithStudent{Attendance: a, StudentName: st.Name, StudentEmail: st.Email})
	}
	sortByDate(out, func(w attendance.WithStudent) time.Time { return w.AttendanceDate })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateAttendance(_ context.Context, id string, ch attendance.Changes, expectedVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendances[id]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	if expectedVersion > 0 && a.Version != expectedVersion {
		return 0, apperr.ErrConflict
	}
	if ch.Empty() {
		return a.Version, nil
	}
	a = ch.Apply(a)
	a.Version++
	s.attendances[id] = a
	s.writes++
	return a.Version, nil
}

func (s *Store) DeleteAttendance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attendances[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.attendances, id)
	s.writes++
	return nil
}

func (s *Store) InsertAccount(_ context.Context, a auth.Account) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Email = strings.ToLower(a.Email)
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return auth.Account{}, apperr.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = s.now().UTC()
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) AccountByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, a := range s.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) AccountByID(_ context.Context, id string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) UpdatePassword(_ context.Context, accountID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return apperr.ErrNotFound
	}
	a.PasswordHash = hash
	s.accounts[accountID] = a
	return nil
}

func (s *Store) InsertProfile(_ context.Context, p auth.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DenyProfileWrites {
		return apperr.ErrPermissionDenied
	}
	if _, ok := s.profiles[p.AccountID]; ok {
		return apperr.ErrConflict
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	s.profiles[p.AccountID] = p
	return nil
}

func (s *Store) GetProfile(_ context.Context, accountID string) (*auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[accountID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) SaveRefreshToken(_ context.Context, accountID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = refreshToken{accountID: accountID, expiresAt: expiresAt}
	return nil
}

func (s *Store) RefreshTokenActive(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[token]
	return ok && !t.revoked && t.expiresAt.After(s.now()), nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		t.revoked = true
		s.tokens[token] = t
	}
	return nil
}

func sortByDate[T any](items []T, date func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool { return date(items[i]).After(date(items[j])) })
}
