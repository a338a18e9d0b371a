package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"courtside/internal/apperr"
	"courtside/internal/store"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const attendanceColumns = `a.id, a.student_id, a.attendance_date, a.time_in, a.time_out, a.class_name, a.location, a.coach, a.notes, a.version`

type scanner interface {
	Scan(dest ...any) error
}

func scanAttendance(row scanner, extra ...any) (Attendance, error) {
	var a Attendance
	var timeIn, timeOut sql.NullTime
	var className, location, coach, notes sql.NullString
	dest := []any{&a.ID, &a.StudentID, &a.AttendanceDate, &timeIn, &timeOut, &className, &location, &coach, &notes, &a.Version}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Attendance{}, err
	}
	if timeIn.Valid {
		a.TimeIn = &timeIn.Time
	}
	if timeOut.Valid {
		a.TimeOut = &timeOut.Time
	}
	a.ClassName = nullText(className)
	a.Location = nullText(location)
	a.Coach = nullText(coach)
	a.Notes = nullText(notes)
	return a, nil
}

func nullText(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return &ns.String
}

// InsertAttendance writes a new record. A missing time-in defaults to now.
func (r *Repository) InsertAttendance(ctx context.Context, a Attendance) (Attendance, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AttendanceDate.IsZero() {
		a.AttendanceDate = time.Now().UTC()
	}
	if a.TimeIn == nil {
		t := a.AttendanceDate
		a.TimeIn = &t
	}
	a.Version = 1
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendances (id, student_id, attendance_date, time_in, time_out, class_name, location, coach, notes, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.StudentID, a.AttendanceDate, a.TimeIn, a.TimeOut, a.ClassName, a.Location, a.Coach, a.Notes, a.Version)
	if err != nil {
		return Attendance{}, store.Wrap("insert attendance", err)
	}
	return a, nil
}

// GetAttendance returns a single record by id.
func (r *Repository) GetAttendance(ctx context.Context, id string) (*Attendance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+attendanceColumns+` FROM attendances a WHERE a.id = $1`, id)
	a, err := scanAttendance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("get attendance", err)
	}
	return &a, nil
}

// AttendancesByStudent returns a student's records, most recent first.
func (r *Repository) AttendancesByStudent(ctx context.Context, studentID string) ([]Attendance, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendances a
		WHERE a.student_id = $1
		ORDER BY a.attendance_date DESC
	`, studentID)
	if err != nil {
		return nil, store.Wrap("list attendances", err)
	}
	defer rows.Close()

	var res []Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, store.Wrap("scan attendance", err)
		}
		res = append(res, a)
	}
	return res, store.Wrap("list attendances", rows.Err())
}

// AttendancesWithStudents joins records with student names. An empty
// studentID lists everyone; a non-positive limit means no limit.
func (r *Repository) AttendancesWithStudents(ctx context.Context, studentID string, limit int) ([]WithStudent, error) {
	query := `SELECT ` + attendanceColumns + `, s.name, COALESCE(s.email, '')
		FROM attendances a
		JOIN students s ON s.id = a.student_id`
	var args []any
	if studentID != "" {
		if _, err := uuid.Parse(studentID); err != nil {
			return nil, nil
		}
		args = append(args, studentID)
		query += " WHERE a.student_id = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY a.attendance_date DESC"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("list attendances with students", err)
	}
	defer rows.Close()

	var res []WithStudent
	for rows.Next() {
		var w WithStudent
		a, err := scanAttendance(rows, &w.StudentName, &w.StudentEmail)
		if err != nil {
			return nil, store.Wrap("scan attendance", err)
		}
		w.Attendance = a
		res = append(res, w)
	}
	return res, store.Wrap("list attendances with students", rows.Err())
}

// UpdateAttendance writes the changed columns in a single statement and
// bumps the version.
func (r *Repository) UpdateAttendance(ctx context.Context, id string, ch Changes, expectedVersion int) (int, error) {
	if _, err := uuid.Parse(id); err != nil {
		return 0, apperr.ErrNotFound
	}
	assigns := ch.assignments()
	if len(assigns) == 0 {
		return expectedVersion, nil
	}

	args := []any{id}
	sets := make([]string, 0, len(assigns)+1)
	for _, a := range assigns {
		args = append(args, a.value)
		sets = append(sets, a.column+" = $"+strconv.Itoa(len(args)))
	}
	sets = append(sets, "version = version + 1")
	query := "UPDATE attendances SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if expectedVersion > 0 {
		args = append(args, expectedVersion)
		query += " AND version = $" + strconv.Itoa(len(args))
	}
	query += " RETURNING version"

	var version int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, store.Wrap("update attendance", err)
		}
		if expectedVersion > 0 {
			if existing, gerr := r.GetAttendance(ctx, id); gerr == nil && existing != nil {
				return 0, apperr.ErrConflict
			}
		}
		return 0, apperr.ErrNotFound
	}
	return version, nil
}

// DeleteAttendance removes one record.
func (r *Repository) DeleteAttendance(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendances WHERE id = $1`, id)
	if err != nil {
		return store.Wrap("delete attendance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
