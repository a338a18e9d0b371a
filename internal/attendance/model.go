package attendance

import (
	"context"
	"time"
)

// Attendance is one class a student signed in to.
type Attendance struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	AttendanceDate time.Time  `json:"attendance_date"`
	TimeIn         *time.Time `json:"time_in"`
	TimeOut        *time.Time `json:"time_out"`
	ClassName      *string    `json:"class_name"`
	Location       *string    `json:"location"`
	Coach          *string    `json:"coach"`
	Notes          *string    `json:"notes"`
	Version        int        `json:"version"`
}

// EffectiveTimeIn is the stored time-in, or the attendance date when none
// was recorded.
func (a Attendance) EffectiveTimeIn() time.Time {
	if a.TimeIn != nil {
		return *a.TimeIn
	}
	return a.AttendanceDate
}

// WithStudent is an attendance joined with the student's name and email.
type WithStudent struct {
	Attendance
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email,omitempty"`
}

// Store persists attendance records.
//
// GetAttendance returns nil, nil when no record has the id. UpdateAttendance
// applies only the fields present in ch; when expectedVersion is positive the
// update only succeeds if the stored version still matches. It returns the
// new version.
type Store interface {
	InsertAttendance(ctx context.Context, a Attendance) (Attendance, error)
	GetAttendance(ctx context.Context, id string) (*Attendance, error)
	AttendancesByStudent(ctx context.Context, studentID string) ([]Attendance, error)
	AttendancesWithStudents(ctx context.Context, studentID string, limit int) ([]WithStudent, error)
	UpdateAttendance(ctx context.Context, id string, ch Changes, expectedVersion int) (int, error)
	DeleteAttendance(ctx context.Context, id string) error
}

func textPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
