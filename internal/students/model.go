package students

import (
	"context"
	"time"
)

// Student is a coached player who buys class packages.
type Student struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	NotificationEmail string    `json:"notification_email"`
	CreatedAt         time.Time `json:"created_at"`
}

// Purchase is a package of classes bought by a student. Purchases are never
// edited after they are recorded.
type Purchase struct {
	ID               string    `json:"id"`
	StudentID        string    `json:"student_id"`
	ClassesPurchased int       `json:"classes_purchased"`
	PurchaseDate     time.Time `json:"purchase_date"`
	Notes            string    `json:"notes,omitempty"`
}

// Store persists students and their purchases.
//
// GetStudent returns nil, nil when no student has the id.
type Store interface {
	InsertStudent(ctx context.Context, st Student) (Student, error)
	UpdateStudent(ctx context.Context, st Student) error
	GetStudent(ctx context.Context, id string) (*Student, error)
	ListStudents(ctx context.Context) ([]Student, error)
	DeleteStudentCascade(ctx context.Context, id string) error
	InsertPurchase(ctx context.Context, p Purchase) (Purchase, error)
	PurchasesByStudent(ctx context.Context, studentID string) ([]Purchase, error)
}
