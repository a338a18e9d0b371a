// Package export renders attendance history for download and printing.
package export

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"time"

	"courtside/internal/attendance"
)

const notSpecified = "Not specified"

var whitespace = regexp.MustCompile(`\s+`)

// Sanitize makes a value safe for the unquoted CSV layout: commas become
// semicolons and newlines become spaces.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, ",", ";")
	return strings.ReplaceAll(s, "\n", " ")
}

// TimeRange formats the sign-in clock, followed by the sign-out clock when
// one was recorded.
func TimeRange(a attendance.Attendance, loc *time.Location) string {
	start := a.EffectiveTimeIn().In(loc).Format("3:04 PM")
	if a.TimeOut == nil {
		return start
	}
	return start + " - " + a.TimeOut.In(loc).Format("3:04 PM")
}

// CSV writes rows as comma separated lines without quoting. withStudent
// adds the Student and Email columns.
func CSV(w io.Writer, rows []attendance.WithStudent, withStudent bool, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	bw := bufio.NewWriter(w)

	headers := []string{"Date", "Time Range", "Class", "Location", "Coach", "Notes"}
	if withStudent {
		headers = append([]string{"Student", "Email"}, headers...)
	}
	lines := []string{strings.Join(headers, ",")}

	for _, r := range rows {
		cells := []string{
			r.AttendanceDate.In(loc).Format("2006-01-02"),
			TimeRange(r.Attendance, loc),
			orNotSpecified(r.ClassName),
			orNotSpecified(r.Location),
			orNotSpecified(r.Coach),
			Sanitize(value(r.Notes)),
		}
		if withStudent {
			cells = append([]string{Sanitize(r.StudentName), Sanitize(r.StudentEmail)}, cells...)
		}
		lines = append(lines, strings.Join(cells, ","))
	}

	if _, err := bw.WriteString(strings.Join(lines, "\n")); err != nil {
		return err
	}
	return bw.Flush()
}

// Filename is the download name for an export. An empty studentName means
// the export covers everyone.
func Filename(studentName string, now time.Time) string {
	name := "all_students"
	if s := strings.TrimSpace(studentName); s != "" {
		name = whitespace.ReplaceAllString(s, "_")
	}
	return "attendance_history_" + name + "_" + now.UTC().Format("2006-01-02") + ".csv"
}

func orNotSpecified(s *string) string {
	if v := value(s); v != "" {
		return Sanitize(v)
	}
	return notSpecified
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
