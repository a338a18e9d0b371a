package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courtside/internal/apperr"
	"courtside/internal/metrics"
)

// BalanceReader reports a student's remaining classes. found is false when
// the student does not exist.
type BalanceReader interface {
	Remaining(ctx context.Context, studentID string) (remaining int, found bool, err error)
}

// ReminderChecker is told about every balance transition caused by a new
// attendance and decides whether to send a reminder.
type ReminderChecker interface {
	Check(ctx context.Context, studentID string, before, after int) (bool, error)
}

// RecordInput is what the sign-in form submits. TimeOut is an optional HH:MM
// clock on the current day.
type RecordInput struct {
	StudentID string `json:"student_id"`
	TimeOut   string `json:"time_out"`
	ClassName string `json:"class_name"`
	Location  string `json:"location"`
	Coach     string `json:"coach"`
	Notes     string `json:"notes"`
}

// RecordResult is a new attendance with the balance it left behind.
type RecordResult struct {
	Attendance       Attendance `json:"attendance"`
	RemainingClasses int        `json:"remaining_classes"`
	ReminderSent     bool       `json:"reminder_sent"`
	ReminderError    string     `json:"reminder_error,omitempty"`
}

// OutcomeStatus describes what an edit did.
type OutcomeStatus string

const (
	OutcomeApplied   OutcomeStatus = "applied"
	OutcomeNoChanges OutcomeStatus = "no_changes"
	OutcomePending   OutcomeStatus = "pending_confirmation"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// Outcome is the result of proposing, confirming or cancelling an edit.
type Outcome struct {
	Status     OutcomeStatus `json:"status"`
	Attendance *Attendance   `json:"attendance,omitempty"`
	Fields     []string      `json:"fields,omitempty"`
	Session    *EditSession  `json:"session,omitempty"`
}

// Service records and edits attendance.
type Service struct {
	store    Store
	sessions SessionStore
	editor   *Editor
	balance  BalanceReader
	reminder ReminderChecker
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the attendance workflows. reminder may be nil.
func NewService(store Store, sessions SessionStore, editor *Editor, balance BalanceReader, reminder ReminderChecker, logger *zap.Logger) *Service {
	if editor == nil {
		editor = NewEditor(time.UTC)
	}
	return &Service{
		store:    store,
		sessions: sessions,
		editor:   editor,
		balance:  balance,
		reminder: reminder,
		logger:   logger,
		now:      time.Now,
	}
}

// Editor exposes the form helper used by the service.
func (s *Service) Editor() *Editor { return s.editor }

// Record signs a student in to a class at the current time. Students without
// remaining classes are refused.
func (s *Service) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	in.StudentID = strings.TrimSpace(in.StudentID)
	if in.StudentID == "" {
		verr := &apperr.ValidationError{}
		verr.Add("student_id", "is required")
		return RecordResult{}, verr
	}

	before, found, err := s.balance.Remaining(ctx, in.StudentID)
	if err != nil {
		return RecordResult{}, err
	}
	if !found {
		return RecordResult{}, apperr.ErrNotFound
	}
	if before <= 0 {
		return RecordResult{}, apperr.ErrNoRemainingClasses
	}

	now := s.now().In(s.editor.Location()).Truncate(time.Second)
	a := Attendance{
		StudentID:      in.StudentID,
		AttendanceDate: now,
		TimeIn:         &now,
		ClassName:      textPtr(strings.TrimSpace(in.ClassName)),
		Location:       textPtr(strings.TrimSpace(in.Location)),
		Coach:          textPtr(strings.TrimSpace(in.Coach)),
		Notes:          textPtr(strings.TrimSpace(in.Notes)),
	}
	if in.TimeOut != "" {
		c, err := ParseClock(in.TimeOut)
		if err != nil {
			return RecordResult{}, fmt.Errorf("time out: %w", err)
		}
		out := c.On(now)
		if !out.After(now) {
			return RecordResult{}, apperr.ErrTimeOrder
		}
		a.TimeOut = &out
	}

	created, err := s.store.InsertAttendance(ctx, a)
	if err != nil {
		return RecordResult{}, err
	}
	metrics.AttendanceRecorded.Inc()
	s.logger.Info("attendance recorded",
		zap.String("attendance_id", created.ID),
		zap.String("student_id", created.StudentID),
	)

	res := RecordResult{Attendance: created}
	after, _, err := s.balance.Remaining(ctx, in.StudentID)
	if err != nil {
		// The record is written; report the balance we can infer.
		s.logger.Warn("balance refresh failed", zap.String("student_id", in.StudentID), zap.Error(err))
		after = before - 1
	}
	res.RemainingClasses = after

	if s.reminder != nil {
		sent, err := s.reminder.Check(ctx, in.StudentID, before, after)
		res.ReminderSent = sent
		if err != nil {
			res.ReminderError = err.Error()
		}
	}
	return res, nil
}

// Get returns one attendance or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Attendance, error) {
	a, err := s.store.GetAttendance(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	if a == nil {
		return Attendance{}, apperr.ErrNotFound
	}
	return *a, nil
}

// ListByStudent returns a student's attendance, most recent first.
func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]Attendance, error) {
	return s.store.AttendancesByStudent(ctx, studentID)
}

// ListWithStudents returns attendance joined with student names. An empty
// studentID lists all students.
func (s *Service) ListWithStudents(ctx context.Context, studentID string, limit int) ([]WithStudent, error) {
	return s.store.AttendancesWithStudents(ctx, studentID, limit)
}

// Propose diffs patch against the stored record. Same-day edits are written
// at once; a date change is parked in an edit session until confirmed. A
// positive expectedVersion must match the stored version.
func (s *Service) Propose(ctx context.Context, id string, patch Patch, expectedVersion int) (Outcome, error) {
	if err := patch.Validate(); err != nil {
		metrics.AttendanceEdits.WithLabelValues("failed").Inc()
		return Outcome{}, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if expectedVersion > 0 && current.Version != expectedVersion {
		metrics.AttendanceEdits.WithLabelValues("conflict").Inc()
		return Outcome{}, apperr.ErrConflict
	}

	plan, err := s.editor.Plan(current, s.editor.Form(current).With(patch))
	if err != nil {
		metrics.AttendanceEdits.WithLabelValues("failed").Inc()
		return Outcome{}, err
	}
	if plan.Changes.Empty() {
		metrics.AttendanceEdits.WithLabelValues(string(OutcomeNoChanges)).Inc()
		return Outcome{Status: OutcomeNoChanges, Attendance: &current}, nil
	}

	if plan.RequiresConfirmation {
		sess := EditSession{
			ID:              uuid.NewString(),
			AttendanceID:    current.ID,
			State:           StatePendingDateConfirmation,
			Changes:         plan.Changes,
			Original:        current,
			ExpectedVersion: current.Version,
			CreatedAt:       s.now().UTC(),
		}
		if err := s.sessions.Save(ctx, sess); err != nil {
			return Outcome{}, fmt.Errorf("save edit session: %w", err)
		}
		metrics.AttendanceEdits.WithLabelValues("pending").Inc()
		s.logger.Info("attendance date change pending",
			zap.String("attendance_id", current.ID),
			zap.String("session_id", sess.ID),
		)
		return Outcome{Status: OutcomePending, Fields: plan.Changes.Fields(), Session: &sess}, nil
	}

	updated, err := s.write(ctx, current, plan.Changes, expectedVersion)
	if err != nil {
		return Outcome{}, err
	}
	metrics.AttendanceEdits.WithLabelValues(string(OutcomeApplied)).Inc()
	return Outcome{Status: OutcomeApplied, Attendance: &updated, Fields: plan.Changes.Fields()}, nil
}

// Confirm writes the change set held by a pending session. On failure the
// session stays pending so the user can retry or cancel.
func (s *Service) Confirm(ctx context.Context, sessionID string) (Outcome, error) {
	sess, err := s.pending(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	updated, err := s.write(ctx, sess.Original, sess.Changes, sess.ExpectedVersion)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		s.logger.Warn("edit session cleanup failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	sess.State = StateApplied
	metrics.AttendanceEdits.WithLabelValues("confirmed").Inc()
	return Outcome{Status: OutcomeApplied, Attendance: &updated, Fields: sess.Changes.Fields(), Session: sess}, nil
}

// Cancel discards a pending session without writing anything.
func (s *Service) Cancel(ctx context.Context, sessionID string) (Outcome, error) {
	sess, err := s.pending(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return Outcome{}, fmt.Errorf("delete edit session: %w", err)
	}
	sess.State = StateCancelled
	metrics.AttendanceEdits.WithLabelValues("cancelled").Inc()
	return Outcome{Status: OutcomeCancelled, Attendance: &sess.Original, Session: sess}, nil
}

// Delete removes a single attendance record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteAttendance(ctx, id); err != nil {
		return err
	}
	s.logger.Info("attendance deleted", zap.String("attendance_id", id))
	return nil
}

func (s *Service) pending(ctx context.Context, sessionID string) (*EditSession, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load edit session: %w", err)
	}
	if sess == nil || sess.State != StatePendingDateConfirmation {
		return nil, apperr.ErrNotFound
	}
	return sess, nil
}

func (s *Service) write(ctx context.Context, current Attendance, ch Changes, expectedVersion int) (Attendance, error) {
	version, err := s.store.UpdateAttendance(ctx, current.ID, ch, expectedVersion)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			metrics.AttendanceEdits.WithLabelValues("conflict").Inc()
		} else {
			metrics.AttendanceEdits.WithLabelValues("failed").Inc()
		}
		return Attendance{}, err
	}
	s.logger.Info("attendance updated",
		zap.String("attendance_id", current.ID),
		zap.Strings("fields", ch.Fields()),
		zap.Int("version", version),
	)
	if fresh, err := s.store.GetAttendance(ctx, current.ID); err == nil && fresh != nil {
		return *fresh, nil
	}
	updated := ch.Apply(current)
	updated.Version = version
	return updated, nil
}
