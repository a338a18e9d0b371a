package attendance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/internal/apperr"
)

func strp(s string) *string { return &s }

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func sample() Attendance {
	in := at(2024, 3, 5, 16, 0)
	out := at(2024, 3, 5, 17, 30)
	return Attendance{
		ID:             "a1",
		StudentID:      "s1",
		AttendanceDate: in,
		TimeIn:         &in,
		TimeOut:        &out,
		ClassName:      strp("Beginner"),
		Location:       strp("Court 1"),
		Version:        1,
	}
}

func TestFormPrefill(t *testing.T) {
	p := NewEditor(time.UTC).Form(sample())
	assert.Equal(t, Proposal{
		ClassName:      "Beginner",
		Location:       "Court 1",
		AttendanceDate: "2024-03-05",
		TimeIn:         "16:00",
		TimeOut:        "17:30",
	}, p)
}

func TestPlanUnchangedFormIsEmpty(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	plan, err := e.Plan(cur, e.Form(cur))
	require.NoError(t, err)
	assert.True(t, plan.Changes.Empty())
	assert.False(t, plan.RequiresConfirmation)
}

func TestPlanLocationOnly(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{Location: strp("Court 3")}))
	require.NoError(t, err)
	assert.Equal(t, []string{FieldLocation}, plan.Changes.Fields())
	assert.Equal(t, "Court 3", *plan.Changes.Location.Value)
	assert.False(t, plan.RequiresConfirmation)
}

func TestPlanEmptyTextClearsField(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{ClassName: strp("")}))
	require.NoError(t, err)
	require.True(t, plan.Changes.ClassName.Set)
	assert.Nil(t, plan.Changes.ClassName.Value)
}

func TestPlanNilTextEqualsEmpty(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	cur.Coach = nil
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{Coach: strp("")}))
	require.NoError(t, err)
	assert.True(t, plan.Changes.Empty())
}

func TestPlanDateChangeKeepsClock(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	cur.TimeOut = nil
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{AttendanceDate: strp("2024-03-07")}))
	require.NoError(t, err)
	assert.True(t, plan.RequiresConfirmation)
	assert.Equal(t, []string{FieldAttendanceDate}, plan.Changes.Fields())
	assert.Equal(t, at(2024, 3, 7, 16, 0), plan.Changes.AttendanceDate.Value)
}

func TestPlanDateChangeMovesTimes(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{
		AttendanceDate: strp("2024-03-07"),
		TimeIn:         strp("18:00"),
		TimeOut:        strp("19:15"),
	}))
	require.NoError(t, err)
	assert.True(t, plan.RequiresConfirmation)
	assert.ElementsMatch(t, []string{FieldAttendanceDate, FieldTimeIn, FieldTimeOut}, plan.Changes.Fields())
	assert.Equal(t, at(2024, 3, 7, 16, 0), plan.Changes.AttendanceDate.Value)
	assert.Equal(t, at(2024, 3, 7, 18, 0), *plan.Changes.TimeIn.Value)
	assert.Equal(t, at(2024, 3, 7, 19, 15), *plan.Changes.TimeOut.Value)
}

func TestPlanDateChangeWithEmptyTimeOutClearsIt(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{AttendanceDate: strp("2024-03-07"), TimeOut: strp("")}))
	require.NoError(t, err)
	require.True(t, plan.Changes.TimeOut.Set)
	assert.Nil(t, plan.Changes.TimeOut.Value)
}

func TestPlanSameDayTimeEdits(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	plan, err := e.Plan(cur, e.Form(cur).With(Patch{TimeIn: strp("15:45"), TimeOut: strp("")}))
	require.NoError(t, err)
	assert.False(t, plan.RequiresConfirmation)
	assert.Equal(t, at(2024, 3, 5, 15, 45), *plan.Changes.TimeIn.Value)
	require.True(t, plan.Changes.TimeOut.Set)
	assert.Nil(t, plan.Changes.TimeOut.Value)
}

func TestPlanFallsBackToAttendanceDateForTimeIn(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	cur.TimeIn = nil
	form := e.Form(cur)
	assert.Equal(t, "16:00", form.TimeIn)

	plan, err := e.Plan(cur, form)
	require.NoError(t, err)
	assert.True(t, plan.Changes.Empty())
}

func TestPlanRejectsBadClock(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	for _, v := range []string{"25:99", "9:00", "12:60", "ab:cd", "12:00:00"} {
		_, err := e.Plan(cur, e.Form(cur).With(Patch{TimeIn: strp(v), Location: strp("elsewhere")}))
		assert.ErrorIs(t, err, apperr.ErrInvalidTimeFormat, v)

		_, err = e.Plan(cur, e.Form(cur).With(Patch{TimeOut: strp(v)}))
		assert.ErrorIs(t, err, apperr.ErrInvalidTimeFormat, v)
	}
}

func TestPlanRejectsBadDate(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()
	for _, v := range []string{"2024-13-01", "03/07/2024", "2024-02-30"} {
		_, err := e.Plan(cur, e.Form(cur).With(Patch{AttendanceDate: strp(v)}))
		assert.ErrorIs(t, err, apperr.ErrInvalidDateFormat, v)
	}
}

func TestPlanTimeOrder(t *testing.T) {
	e := NewEditor(time.UTC)
	cur := sample()

	_, err := e.Plan(cur, e.Form(cur).With(Patch{TimeOut: strp("15:00")}))
	assert.ErrorIs(t, err, apperr.ErrTimeOrder)

	_, err = e.Plan(cur, e.Form(cur).With(Patch{TimeIn: strp("18:00")}))
	assert.ErrorIs(t, err, apperr.ErrTimeOrder)

	_, err = e.Plan(cur, e.Form(cur).With(Patch{TimeOut: strp("16:00")}))
	assert.ErrorIs(t, err, apperr.ErrTimeOrder)
}

func TestPlanOrdersClocksOnMovedDay(t *testing.T) {
	e := NewEditor(time.UTC)
	in := at(2024, 1, 5, 10, 0)
	out := at(2024, 1, 5, 11, 0)
	cur := Attendance{ID: "a1", AttendanceDate: in, TimeIn: &in, TimeOut: &out, Version: 1}

	back, err := e.Plan(cur, e.Form(cur).With(Patch{AttendanceDate: strp("2024-01-04")}))
	require.NoError(t, err)
	moved := back.Changes.Apply(cur)
	assert.Equal(t, "2024-01-04", moved.AttendanceDate.Format(dateLayout))

	plan, err := e.Plan(moved, e.Form(moved).With(Patch{TimeOut: strp("12:00")}))
	require.NoError(t, err)
	assert.Equal(t, []string{FieldTimeOut}, plan.Changes.Fields())

	_, err = e.Plan(moved, e.Form(moved).With(Patch{TimeOut: strp("09:30")}))
	assert.ErrorIs(t, err, apperr.ErrTimeOrder)

	fwd, err := e.Plan(cur, e.Form(cur).With(Patch{AttendanceDate: strp("2024-01-06")}))
	require.NoError(t, err)
	moved = fwd.Changes.Apply(cur)

	_, err = e.Plan(moved, e.Form(moved).With(Patch{TimeOut: strp("09:30")}))
	assert.ErrorIs(t, err, apperr.ErrTimeOrder)
}

func TestPatchRejectsEmptyDate(t *testing.T) {
	assert.ErrorIs(t, Patch{AttendanceDate: strp(" ")}.Validate(), apperr.ErrInvalidDateFormat)
	assert.NoError(t, Patch{Location: strp("")}.Validate())
	assert.NoError(t, Patch{AttendanceDate: strp("2024-01-04")}.Validate())
}

func TestPlanUsesEditorLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	e := NewEditor(loc)
	in := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC) // 07:30 on the 6th in UTC+8
	cur := Attendance{ID: "a1", AttendanceDate: in, TimeIn: &in}

	form := e.Form(cur)
	assert.Equal(t, "2024-03-06", form.AttendanceDate)
	assert.Equal(t, "07:30", form.TimeIn)

	plan, err := e.Plan(cur, form.With(Patch{TimeOut: strp("09:00")}))
	require.NoError(t, err)
	assert.False(t, plan.RequiresConfirmation)
	assert.True(t, plan.Changes.TimeOut.Value.Equal(time.Date(2024, 3, 6, 9, 0, 0, 0, loc)))
}

func TestChangesApplyAndJSON(t *testing.T) {
	cur := sample()
	day := at(2024, 3, 9, 16, 0)
	ch := Changes{
		Notes:          set(strp("good footwork")),
		AttendanceDate: set(day),
		TimeOut:        set[*time.Time](nil),
	}

	got := ch.Apply(cur)
	assert.Equal(t, "good footwork", *got.Notes)
	assert.Equal(t, day, got.AttendanceDate)
	assert.Nil(t, got.TimeOut)
	assert.Equal(t, cur.Location, got.Location)

	data, err := json.Marshal(ch)
	require.NoError(t, err)
	var back Changes
	require.NoError(t, json.Unmarshal(data, &back))
	assert.ElementsMatch(t, ch.Fields(), back.Fields())
	assert.True(t, back.TimeOut.Set)
	assert.Nil(t, back.TimeOut.Value)
	assert.True(t, back.AttendanceDate.Value.Equal(day))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 5}, c)
	assert.Equal(t, "09:05", c.String())
	assert.Equal(t, at(2024, 1, 2, 9, 5), c.On(at(2024, 1, 2, 23, 59)))
}
