package balance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/apperr"
	"courtside/internal/attendance"
	"courtside/internal/students"
)

type fakeStudents struct {
	byID      map[string]students.Student
	purchases map[string][]students.Purchase
	err       error
}

func (f *fakeStudents) GetStudent(_ context.Context, id string) (*students.Student, error) {
	st, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (f *fakeStudents) ListStudents(_ context.Context) ([]students.Student, error) {
	var out []students.Student
	for _, st := range f.byID {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeStudents) PurchasesByStudent(_ context.Context, id string) ([]students.Purchase, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.purchases[id], nil
}

type fakeAttendance map[string][]attendance.Attendance

func (f fakeAttendance) AttendancesByStudent(_ context.Context, id string) ([]attendance.Attendance, error) {
	return f[id], nil
}

func TestCompute(t *testing.T) {
	s := Compute(
		[]students.Purchase{{ClassesPurchased: 10}, {ClassesPurchased: 5}},
		make([]attendance.Attendance, 4),
	)
	assert.Equal(t, Summary{TotalPurchased: 15, TotalAttended: 4, RemainingClasses: 11}, s)
	assert.Equal(t, s.TotalPurchased-s.TotalAttended, s.RemainingClasses)

	assert.Equal(t, Summary{}, Compute(nil, nil))
}

func TestForStudent(t *testing.T) {
	ctx := context.Background()
	st := &fakeStudents{
		byID:      map[string]students.Student{"s1": {ID: "s1", Name: "Sam"}},
		purchases: map[string][]students.Purchase{"s1": {{ClassesPurchased: 10}}},
	}
	att := fakeAttendance{"s1": make([]attendance.Attendance, 3)}
	c := NewCalculator(st, att)

	first, err := c.ForStudent(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 7, first.RemainingClasses)

	again, err := c.ForStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	missing, err := c.ForStudent(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, found, err := c.Remaining(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, n)

	_, found, err = c.Remaining(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForStudentPropagatesDataAccess(t *testing.T) {
	st := &fakeStudents{
		byID: map[string]students.Student{"s1": {ID: "s1"}},
		err:  fmt.Errorf("list purchases: %w", apperr.ErrDataAccess),
	}
	got, err := NewCalculator(st, fakeAttendance{}).ForStudent(context.Background(), "s1")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperr.ErrDataAccess))
}

func TestAllOrdersByName(t *testing.T) {
	st := &fakeStudents{byID: map[string]students.Student{
		"b": {ID: "b", Name: "Bea"},
		"a": {ID: "a", Name: "Ann"},
		"c": {ID: "c", Name: "Cal"},
	}}
	all, err := NewCalculator(st, fakeAttendance{}).All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Ann", "Bea", "Cal"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestClassify(t *testing.T) {
	assert.Equal(t, LevelNone, Classify(-1))
	assert.Equal(t, LevelNone, Classify(0))
	assert.Equal(t, LevelLow, Classify(1))
	assert.Equal(t, LevelLow, Classify(2))
	assert.Equal(t, LevelOK, Classify(3))
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []StudentWithClasses
	for i, remaining := range []int{0, 1, 2, 5, 8, -1, 3} {
		all = append(all, StudentWithClasses{
			Student: students.Student{ID: fmt.Sprint(i), CreatedAt: base.AddDate(0, 0, i)},
			Summary: Summary{RemainingClasses: remaining},
		})
	}
	o := Summarize(all)
	assert.Equal(t, 7, o.TotalStudents)
	assert.Equal(t, 2, o.NoClasses)
	assert.Equal(t, 2, o.LowClasses)
	require.Len(t, o.RecentStudents, 5)
	assert.Equal(t, "6", o.RecentStudents[0].ID)
	assert.Equal(t, "2", o.RecentStudents[4].ID)

	empty := Summarize(nil)
	assert.NotNil(t, empty.RecentStudents)
	assert.Empty(t, empty.RecentStudents)
}
