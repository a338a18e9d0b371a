package attendance

import (
	"encoding/json"
	"fmt"
	"time"
)

// Column names of the editable attendance fields.
const (
	FieldClassName      = "class_name"
	FieldLocation       = "location"
	FieldCoach          = "coach"
	FieldNotes          = "notes"
	FieldAttendanceDate = "attendance_date"
	FieldTimeIn         = "time_in"
	FieldTimeOut        = "time_out"
)

// Change is a pending value for one field. Unset changes are left alone.
type Change[T any] struct {
	Set   bool
	Value T
}

func set[T any](v T) Change[T] { return Change[T]{Set: true, Value: v} }

// Changes is a partial update of an attendance record. A nil pointer value
// clears the column.
type Changes struct {
	ClassName      Change[*string]
	Location       Change[*string]
	Coach          Change[*string]
	Notes          Change[*string]
	AttendanceDate Change[time.Time]
	TimeIn         Change[*time.Time]
	TimeOut        Change[*time.Time]
}

type assignment struct {
	column string
	value  any
}

func (c Changes) assignments() []assignment {
	var out []assignment
	text := func(col string, ch Change[*string]) {
		if !ch.Set {
			return
		}
		var v any
		if ch.Value != nil {
			v = *ch.Value
		}
		out = append(out, assignment{col, v})
	}
	clock := func(col string, ch Change[*time.Time]) {
		if !ch.Set {
			return
		}
		var v any
		if ch.Value != nil {
			v = *ch.Value
		}
		out = append(out, assignment{col, v})
	}
	text(FieldClassName, c.ClassName)
	text(FieldLocation, c.Location)
	text(FieldCoach, c.Coach)
	text(FieldNotes, c.Notes)
	if c.AttendanceDate.Set {
		out = append(out, assignment{FieldAttendanceDate, c.AttendanceDate.Value})
	}
	clock(FieldTimeIn, c.TimeIn)
	clock(FieldTimeOut, c.TimeOut)
	return out
}

// Fields lists the changed columns in a stable order.
func (c Changes) Fields() []string {
	as := c.assignments()
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.column
	}
	return out
}

// Empty reports whether nothing would be written.
func (c Changes) Empty() bool {
	return len(c.assignments()) == 0
}

// Apply returns a copy of a with the changes patched in.
func (c Changes) Apply(a Attendance) Attendance {
	if c.ClassName.Set {
		a.ClassName = c.ClassName.Value
	}
	if c.Location.Set {
		a.Location = c.Location.Value
	}
	if c.Coach.Set {
		a.Coach = c.Coach.Value
	}
	if c.Notes.Set {
		a.Notes = c.Notes.Value
	}
	if c.AttendanceDate.Set {
		a.AttendanceDate = c.AttendanceDate.Value
	}
	if c.TimeIn.Set {
		a.TimeIn = c.TimeIn.Value
	}
	if c.TimeOut.Set {
		a.TimeOut = c.TimeOut.Value
	}
	return a
}

// MarshalJSON encodes only the changed fields.
func (c Changes) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	for _, a := range c.assignments() {
		m[a.column] = a.value
	}
	return json.Marshal(m)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Changes) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Changes{}
	for key, val := range raw {
		var err error
		switch key {
		case FieldClassName:
			c.ClassName, err = decodeText(val)
		case FieldLocation:
			c.Location, err = decodeText(val)
		case FieldCoach:
			c.Coach, err = decodeText(val)
		case FieldNotes:
			c.Notes, err = decodeText(val)
		case FieldAttendanceDate:
			var t time.Time
			err = json.Unmarshal(val, &t)
			c.AttendanceDate = set(t)
		case FieldTimeIn:
			c.TimeIn, err = decodeClock(val)
		case FieldTimeOut:
			c.TimeOut, err = decodeClock(val)
		default:
			err = fmt.Errorf("unknown attendance field %q", key)
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return nil
}

func decodeText(raw json.RawMessage) (Change[*string], error) {
	var v *string
	err := json.Unmarshal(raw, &v)
	return set(v), err
}

func decodeClock(raw json.RawMessage) (Change[*time.Time], error) {
	var v *time.Time
	err := json.Unmarshal(raw, &v)
	return set(v), err
}
