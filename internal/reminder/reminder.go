// Package reminder emails students when their balance drops to one class.
package reminder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"courtside/internal/mailer"
	"courtside/internal/metrics"
	"courtside/internal/students"
)

// ShouldFire reports whether a balance change crosses from two remaining
// classes to one. Only that exact edge sends a reminder.
func ShouldFire(before, after int) bool {
	return before == 2 && after == 1
}

// StudentLookup finds the recipient of a reminder.
type StudentLookup interface {
	GetStudent(ctx context.Context, id string) (*students.Student, error)
}

// Notifier sends reminders for qualifying balance transitions.
type Notifier struct {
	students StudentLookup
	sender   mailer.Sender
	mode     string
	logger   *zap.Logger
}

// NewNotifier creates a notifier. mode labels metrics, e.g. "sync" or "queue".
func NewNotifier(st StudentLookup, sender mailer.Sender, mode string, logger *zap.Logger) *Notifier {
	if mode == "" {
		mode = "sync"
	}
	return &Notifier{students: st, sender: sender, mode: mode, logger: logger}
}

// Check sends a reminder when the transition qualifies. A missing student
// is not an error. Failures are returned but never undo the attendance that
// caused the transition.
func (n *Notifier) Check(ctx context.Context, studentID string, before, after int) (bool, error) {
	if !ShouldFire(before, after) {
		return false, nil
	}
	st, err := n.students.GetStudent(ctx, studentID)
	if err != nil {
		n.fail(studentID, err)
		return false, fmt.Errorf("reminder lookup: %w", err)
	}
	if st == nil {
		metrics.Reminders.WithLabelValues(n.mode, "skipped").Inc()
		return false, nil
	}

	msg, err := Compose(*st)
	if err != nil {
		n.fail(studentID, err)
		return false, err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.fail(studentID, err)
		return false, fmt.Errorf("send reminder: %w", err)
	}
	metrics.Reminders.WithLabelValues(n.mode, "sent").Inc()
	n.logger.Info("reminder sent",
		zap.String("student_id", st.ID),
		zap.String("to", st.NotificationEmail),
		zap.String("delivery", n.mode),
	)
	return true, nil
}

func (n *Notifier) fail(studentID string, err error) {
	metrics.Reminders.WithLabelValues(n.mode, "failed").Inc()
	n.logger.Error("reminder failed", zap.String("student_id", studentID), zap.Error(err))
}
