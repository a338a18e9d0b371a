package export

import (
	"html/template"
	"io"
	"time"

	"courtside/internal/attendance"
)

var printPage = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Attendance History</title>
<style>
  table { border-collapse: collapse; width: 100%; }
  th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
  th { background-color: #f2f2f2; }
  .print-header { text-align: center; margin-bottom: 20px; }
  @media print { body { margin: 0; padding: 20px; } }
</style>
</head>
<body onload="window.print()">
<div class="print-header">
  <h1>Attendance History - {{.Title}}</h1>
  <p>Printed on {{.Printed}}</p>
</div>
<table>
  <thead>
    <tr>{{if .WithStudent}}<th>Student</th><th>Email</th>{{end}}<th>Date</th><th>Time</th><th>Class</th><th>Location</th><th>Coach</th><th>Notes</th></tr>
  </thead>
  <tbody>
  {{- range .Rows}}
    <tr>{{if $.WithStudent}}<td>{{.Student}}</td><td>{{.Email}}</td>{{end}}<td>{{.Date}}</td><td>{{.Time}}</td><td>{{.Class}}</td><td>{{.Location}}</td><td>{{.Coach}}</td><td>{{.Notes}}</td></tr>
  {{- else}}
    <tr><td colspan="{{if .WithStudent}}8{{else}}6{{end}}">No attendance records found</td></tr>
  {{- end}}
  </tbody>
</table>
</body>
</html>
`))

type printRow struct {
	Student, Email, Date, Time, Class, Location, Coach, Notes string
}

// PrintHTML writes a standalone page that opens the print dialog on load.
// An empty title prints as "All Students".
func PrintHTML(w io.Writer, title string, rows []attendance.WithStudent, withStudent bool, loc *time.Location, now time.Time) error {
	if loc == nil {
		loc = time.UTC
	}
	if title == "" {
		title = "All Students"
	}
	data := struct {
		Title       string
		Printed     string
		WithStudent bool
		Rows        []printRow
	}{
		Title:       title,
		Printed:     now.In(loc).Format("Jan 2, 2006"),
		WithStudent: withStudent,
	}
	for _, r := range rows {
		data.Rows = append(data.Rows, printRow{
			Student:  r.StudentName,
			Email:    r.StudentEmail,
			Date:     r.AttendanceDate.In(loc).Format("Jan 2, 2006"),
			Time:     TimeRange(r.Attendance, loc),
			Class:    display(r.ClassName),
			Location: display(r.Location),
			Coach:    display(r.Coach),
			Notes:    value(r.Notes),
		})
	}
	return printPage.Execute(w, data)
}

func display(s *string) string {
	if v := value(s); v != "" {
		return v
	}
	return notSpecified
}
