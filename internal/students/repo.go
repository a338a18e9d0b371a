package students

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"courtside/internal/apperr"
	"courtside/internal/store"
)

// Repository persists students and purchases in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const studentColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), notification_email, created_at`

// InsertStudent writes a new student; the database assigns created_at.
func (r *Repository) InsertStudent(ctx context.Context, st Student) (Student, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, email, phone, notification_email)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
		RETURNING created_at
	`, st.ID, st.Name, st.Email, st.Phone, st.NotificationEmail)
	if err := row.Scan(&st.CreatedAt); err != nil {
		return Student{}, store.Wrap("insert student", err)
	}
	return st, nil
}

// UpdateStudent overwrites the mutable student fields.
func (r *Repository) UpdateStudent(ctx context.Context, st Student) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET name = $2, email = NULLIF($3, ''), phone = NULLIF($4, ''), notification_email = $5
		WHERE id = $1
	`, st.ID, st.Name, st.Email, st.Phone, st.NotificationEmail)
	if err != nil {
		return store.Wrap("update student", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// GetStudent returns a single student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	var st Student
	if err := row.Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &st.NotificationEmail, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("get student", err)
	}
	return &st, nil
}

// ListStudents returns every student ordered by name.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY name`)
	if err != nil {
		return nil, store.Wrap("list students", err)
	}
	defer rows.Close()

	var res []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &st.NotificationEmail, &st.CreatedAt); err != nil {
			return nil, store.Wrap("scan student", err)
		}
		res = append(res, st)
	}
	return res, store.Wrap("list students", rows.Err())
}

// DeleteStudentCascade removes the student together with its attendances and
// purchases in one transaction.
func (r *Repository) DeleteStudentCascade(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("begin delete student", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendances WHERE student_id = $1`, id); err != nil {
		return store.Wrap("delete student attendances", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE student_id = $1`, id); err != nil {
		return store.Wrap("delete student purchases", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return store.Wrap("delete student", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return store.Wrap("commit delete student", tx.Commit())
}

// InsertPurchase writes a new purchase.
func (r *Repository) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases (id, student_id, classes_purchased, purchase_date, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.StudentID, p.ClassesPurchased, p.PurchaseDate, p.Notes)
	if err != nil {
		return Purchase{}, store.Wrap("insert purchase", err)
	}
	return p, nil
}

// PurchasesByStudent returns a student's purchases, newest first.
func (r *Repository) PurchasesByStudent(ctx context.Context, studentID string) ([]Purchase, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, classes_purchased, purchase_date, notes
		FROM purchases
		WHERE student_id = $1
		ORDER BY purchase_date DESC
	`, studentID)
	if err != nil {
		return nil, store.Wrap("list purchases", err)
	}
	defer rows.Close()

	var res []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.StudentID, &p.ClassesPurchased, &p.PurchaseDate, &p.Notes); err != nil {
			return nil, store.Wrap("scan purchase", err)
		}
		res = append(res, p)
	}
	return res, store.Wrap("list purchases", rows.Err())
}
