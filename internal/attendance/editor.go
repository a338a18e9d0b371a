package attendance

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"courtside/internal/apperr"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Proposal holds the edit form values for one attendance record. Dates are
// YYYY-MM-DD and clocks HH:MM. An empty TimeIn keeps the current time-in;
// an empty TimeOut clears the time-out.
type Proposal struct {
	ClassName      string `json:"class_name"`
	Location       string `json:"location"`
	Coach          string `json:"coach"`
	Notes          string `json:"notes"`
	AttendanceDate string `json:"attendance_date"`
	TimeIn         string `json:"time_in"`
	TimeOut        string `json:"time_out"`
}

// Patch is a sparse Proposal: nil fields keep the form's current value.
type Patch struct {
	ClassName      *string `json:"class_name"`
	Location       *string `json:"location"`
	Coach          *string `json:"coach"`
	Notes          *string `json:"notes"`
	AttendanceDate *string `json:"attendance_date"`
	TimeIn         *string `json:"time_in"`
	TimeOut        *string `json:"time_out"`
}

// Validate rejects a patch that explicitly blanks the attendance date.
func (p Patch) Validate() error {
	if p.AttendanceDate != nil && strings.TrimSpace(*p.AttendanceDate) == "" {
		return fmt.Errorf("%w: attendance date cannot be empty", apperr.ErrInvalidDateFormat)
	}
	return nil
}

// With overlays the non-nil fields of patch on p.
func (p Proposal) With(patch Patch) Proposal {
	pick := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	pick(&p.ClassName, patch.ClassName)
	pick(&p.Location, patch.Location)
	pick(&p.Coach, patch.Coach)
	pick(&p.Notes, patch.Notes)
	pick(&p.AttendanceDate, patch.AttendanceDate)
	pick(&p.TimeIn, patch.TimeIn)
	pick(&p.TimeOut, patch.TimeOut)
	return p
}

// Plan is the outcome of diffing a proposal against the stored record.
type Plan struct {
	Changes Changes
	// RequiresConfirmation is set when the attendance date moves.
	RequiresConfirmation bool
}

// Editor turns edit form values into partial updates. Calendar days and
// clock times are interpreted in loc.
type Editor struct {
	loc *time.Location
}

// NewEditor returns an editor for the given time zone; nil means UTC.
func NewEditor(loc *time.Location) *Editor {
	if loc == nil {
		loc = time.UTC
	}
	return &Editor{loc: loc}
}

// Location is the editor's time zone.
func (e *Editor) Location() *time.Location { return e.loc }

// Form returns the edit form pre-filled from a.
func (e *Editor) Form(a Attendance) Proposal {
	p := Proposal{
		ClassName:      deref(a.ClassName),
		Location:       deref(a.Location),
		Coach:          deref(a.Coach),
		Notes:          deref(a.Notes),
		AttendanceDate: a.AttendanceDate.In(e.loc).Format(dateLayout),
		TimeIn:         a.EffectiveTimeIn().In(e.loc).Format(clockLayout),
	}
	if a.TimeOut != nil {
		p.TimeOut = a.TimeOut.In(e.loc).Format(clockLayout)
	}
	return p
}

// Plan computes the fields of current that p changes. Malformed dates or
// clocks abort the whole plan.
func (e *Editor) Plan(current Attendance, p Proposal) (Plan, error) {
	var plan Plan
	ch := &plan.Changes

	ch.ClassName = diffText(current.ClassName, p.ClassName)
	ch.Location = diffText(current.Location, p.Location)
	ch.Coach = diffText(current.Coach, p.Coach)
	ch.Notes = diffText(current.Notes, p.Notes)

	var inClock, outClock Clock
	var err error
	if p.TimeIn != "" {
		if inClock, err = ParseClock(p.TimeIn); err != nil {
			return Plan{}, fmt.Errorf("time in: %w", err)
		}
	}
	if p.TimeOut != "" {
		if outClock, err = ParseClock(p.TimeOut); err != nil {
			return Plan{}, fmt.Errorf("time out: %w", err)
		}
	}

	origIn := current.EffectiveTimeIn().In(e.loc)
	origDay := current.AttendanceDate.In(e.loc)
	origOut := ""
	if current.TimeOut != nil {
		origOut = current.TimeOut.In(e.loc).Format(clockLayout)
	}
	timeInEdited := p.TimeIn != "" && p.TimeIn != origIn.Format(clockLayout)

	if p.AttendanceDate != "" && p.AttendanceDate != origDay.Format(dateLayout) {
		day, err := ParseDate(p.AttendanceDate, e.loc)
		if err != nil {
			return Plan{}, err
		}
		plan.RequiresConfirmation = true
		ch.AttendanceDate = set(ClockOf(origIn).On(day))
		if timeInEdited {
			t := inClock.On(day)
			ch.TimeIn = set(&t)
		}
		if p.TimeOut != "" {
			t := outClock.On(day)
			ch.TimeOut = set(&t)
		} else if current.TimeOut != nil {
			ch.TimeOut = set[*time.Time](nil)
		}
	} else {
		if timeInEdited {
			t := inClock.On(origDay)
			ch.TimeIn = set(&t)
		}
		if p.TimeOut != origOut {
			if p.TimeOut == "" {
				ch.TimeOut = set[*time.Time](nil)
			} else {
				t := outClock.On(origDay)
				ch.TimeOut = set(&t)
			}
		}
	}

	if err := e.checkOrder(current, *ch); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// checkOrder rejects a time-out that does not follow the time-in once the
// changes are applied. Both clocks are placed on the effective attendance
// day, so a time-in left on the previous date still orders correctly.
// Records whose times are untouched are not checked.
func (e *Editor) checkOrder(current Attendance, ch Changes) error {
	if !ch.TimeIn.Set && !ch.TimeOut.Set && !ch.AttendanceDate.Set {
		return nil
	}
	day := current.AttendanceDate
	if ch.AttendanceDate.Set {
		day = ch.AttendanceDate.Value
	}
	in := current.EffectiveTimeIn()
	if ch.TimeIn.Set && ch.TimeIn.Value != nil {
		in = *ch.TimeIn.Value
	}
	out := current.TimeOut
	if ch.TimeOut.Set {
		out = ch.TimeOut.Value
	}
	if out == nil {
		return nil
	}
	day = day.In(e.loc)
	if !ClockOf(out.In(e.loc)).On(day).After(ClockOf(in.In(e.loc)).On(day)) {
		return apperr.ErrTimeOrder
	}
	return nil
}

func diffText(current *string, proposed string) Change[*string] {
	if proposed == deref(current) {
		return Change[*string]{}
	}
	return set(textPtr(proposed))
}

// Clock is an hour and minute of the day.
type Clock struct {
	Hour, Minute int
}

// ParseClock parses a two-digit HH:MM clock.
func ParseClock(s string) (Clock, error) {
	if !clockPattern.MatchString(s) {
		return Clock{}, apperr.ErrInvalidTimeFormat
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if h > 23 || m > 59 {
		return Clock{}, apperr.ErrInvalidTimeFormat
	}
	return Clock{Hour: h, Minute: m}, nil
}

// ClockOf returns the hour and minute of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// On returns the instant at c on day's calendar date, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", apperr.ErrInvalidDateFormat, s)
	}
	return day, nil
}
