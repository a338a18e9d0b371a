// Package balance derives remaining class counts from purchases and
// attendance. Balances are never stored; every read recomputes them.
package balance

import (
	"context"
	"fmt"
	"sort"

	"courtside/internal/attendance"
	"courtside/internal/students"
)

// Summary is the class arithmetic for one student.
type Summary struct {
	TotalPurchased   int `json:"total_purchased"`
	TotalAttended    int `json:"total_attended"`
	RemainingClasses int `json:"remaining_classes"`
}

// StudentWithClasses is a student together with its balance.
type StudentWithClasses struct {
	students.Student
	Summary
}

// Compute sums purchased classes and counts attendance.
func Compute(purchases []students.Purchase, attendances []attendance.Attendance) Summary {
	var s Summary
	for _, p := range purchases {
		s.TotalPurchased += p.ClassesPurchased
	}
	s.TotalAttended = len(attendances)
	s.RemainingClasses = s.TotalPurchased - s.TotalAttended
	return s
}

// StudentSource is the part of the student store the calculator reads.
type StudentSource interface {
	GetStudent(ctx context.Context, id string) (*students.Student, error)
	ListStudents(ctx context.Context) ([]students.Student, error)
	PurchasesByStudent(ctx context.Context, studentID string) ([]students.Purchase, error)
}

// AttendanceSource is the part of the attendance store the calculator reads.
type AttendanceSource interface {
	AttendancesByStudent(ctx context.Context, studentID string) ([]attendance.Attendance, error)
}

// Calculator reads the inputs of a balance from the stores.
type Calculator struct {
	students   StudentSource
	attendance AttendanceSource
}

// NewCalculator creates a calculator over the given stores.
func NewCalculator(st StudentSource, att AttendanceSource) *Calculator {
	return &Calculator{students: st, attendance: att}
}

// ForStudent returns the student's balance, or nil, nil when the student
// does not exist.
func (c *Calculator) ForStudent(ctx context.Context, studentID string) (*StudentWithClasses, error) {
	st, err := c.students.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}
	if st == nil {
		return nil, nil
	}
	sum, err := c.summary(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	return &StudentWithClasses{Student: *st, Summary: sum}, nil
}

// All returns every student with its balance, ordered by name.
func (c *Calculator) All(ctx context.Context) ([]StudentWithClasses, error) {
	all, err := c.students.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	out := make([]StudentWithClasses, 0, len(all))
	for _, st := range all {
		sum, err := c.summary(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, StudentWithClasses{Student: st, Summary: sum})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remaining satisfies attendance.BalanceReader.
func (c *Calculator) Remaining(ctx context.Context, studentID string) (int, bool, error) {
	sw, err := c.ForStudent(ctx, studentID)
	if err != nil || sw == nil {
		return 0, false, err
	}
	return sw.RemainingClasses, true, nil
}

func (c *Calculator) summary(ctx context.Context, studentID string) (Summary, error) {
	purchases, err := c.students.PurchasesByStudent(ctx, studentID)
	if err != nil {
		return Summary{}, fmt.Errorf("load purchases: %w", err)
	}
	atts, err := c.attendance.AttendancesByStudent(ctx, studentID)
	if err != nil {
		return Summary{}, fmt.Errorf("load attendance: %w", err)
	}
	return Compute(purchases, atts), nil
}
