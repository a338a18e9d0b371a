package students

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"courtside/internal/apperr"
)

// Input is the editable part of a student, as submitted by the add and
// edit forms.
type Input struct {
	Name                     string `json:"name" validate:"required"`
	Email                    string `json:"email" validate:"omitempty,email"`
	Phone                    string `json:"phone"`
	NotificationEmail        string `json:"notification_email" validate:"omitempty,email"`
	UseEmailForNotifications bool   `json:"use_email_for_notifications"`
}

// PurchaseInput records a package purchase.
type PurchaseInput struct {
	StudentID        string    `json:"student_id" validate:"required"`
	ClassesPurchased int       `json:"classes_purchased" validate:"gt=0"`
	PurchaseDate     time.Time `json:"purchase_date"`
	Notes            string    `json:"notes"`
}

// Service validates student and purchase changes before they reach the store.
type Service struct {
	store    Store
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, logger *zap.Logger) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Service{store: store, validate: v, logger: logger, now: time.Now}
}

// Create adds a student. When UseEmailForNotifications is set the primary
// email doubles as the notification address.
func (s *Service) Create(ctx context.Context, in Input) (Student, error) {
	st, err := s.normalize(in)
	if err != nil {
		return Student{}, err
	}
	created, err := s.store.InsertStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	s.logger.Info("student created", zap.String("student_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// Update replaces the editable fields of an existing student.
func (s *Service) Update(ctx context.Context, id string, in Input) (Student, error) {
	current, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if current == nil {
		return Student{}, apperr.ErrNotFound
	}
	st, err := s.normalize(in)
	if err != nil {
		return Student{}, err
	}
	st.ID = current.ID
	st.CreatedAt = current.CreatedAt
	if err := s.store.UpdateStudent(ctx, st); err != nil {
		return Student{}, err
	}
	s.logger.Info("student updated", zap.String("student_id", st.ID))
	return st, nil
}

// Get returns the student or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if st == nil {
		return Student{}, apperr.ErrNotFound
	}
	return *st, nil
}

// List returns students ordered by name, optionally filtered by a
// case-insensitive match on name or email.
func (s *Service) List(ctx context.Context, query string) ([]Student, error) {
	all, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, query), nil
}

// Filter keeps students whose name or email contains query.
func Filter(all []Student, query string) []Student {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all
	}
	out := make([]Student, 0, len(all))
	for _, st := range all {
		if strings.Contains(strings.ToLower(st.Name), q) || strings.Contains(strings.ToLower(st.Email), q) {
			out = append(out, st)
		}
	}
	return out
}

// Delete removes a student and everything recorded against it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteStudentCascade(ctx, id); err != nil {
		return err
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// AddPurchase records a class package for an existing student.
func (s *Service) AddPurchase(ctx context.Context, in PurchaseInput) (Purchase, error) {
	if err := s.check(in); err != nil {
		return Purchase{}, err
	}
	st, err := s.store.GetStudent(ctx, in.StudentID)
	if err != nil {
		return Purchase{}, err
	}
	if st == nil {
		return Purchase{}, apperr.ErrNotFound
	}
	date := in.PurchaseDate
	if date.IsZero() {
		date = s.now()
	}
	p, err := s.store.InsertPurchase(ctx, Purchase{
		StudentID:        st.ID,
		ClassesPurchased: in.ClassesPurchased,
		PurchaseDate:     date.UTC(),
		Notes:            strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return Purchase{}, err
	}
	s.logger.Info("purchase recorded",
		zap.String("purchase_id", p.ID),
		zap.String("student_id", p.StudentID),
		zap.Int("classes", p.ClassesPurchased),
	)
	return p, nil
}

// Purchases lists a student's purchases, newest first.
func (s *Service) Purchases(ctx context.Context, studentID string) ([]Purchase, error) {
	return s.store.PurchasesByStudent(ctx, studentID)
}

func (s *Service) normalize(in Input) (Student, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.NotificationEmail = strings.TrimSpace(in.NotificationEmail)

	verr := &apperr.ValidationError{}
	if err := s.check(in); err != nil {
		if !errors.As(err, &verr) {
			return Student{}, err
		}
	}

	notify := in.NotificationEmail
	if in.UseEmailForNotifications {
		if in.Email == "" {
			verr.Add("email", "email is required when using it for notifications")
		}
		notify = in.Email
	} else if notify == "" {
		verr.Add("notification_email", "notification email is required")
	}
	if err := verr.OrNil(); err != nil {
		return Student{}, err
	}

	return Student{
		Name:              in.Name,
		Email:             in.Email,
		Phone:             in.Phone,
		NotificationEmail: notify,
	}, nil
}

func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describe(fe))
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}
