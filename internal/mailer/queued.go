package mailer

import (
	"context"
	"fmt"

	"courtside/internal/queue"
)

// JobType tags queue messages that carry a Message for the worker.
const JobType = "email"

// QueueSender hands messages to the worker instead of sending them inline.
type QueueSender struct {
	q queue.Queue
}

// NewQueueSender creates a sender that publishes to q.
func NewQueueSender(q queue.Queue) *QueueSender {
	return &QueueSender{q: q}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	job, err := queue.NewMessage(JobType, msg)
	if err != nil {
		return err
	}
	if err := s.q.Publish(ctx, job); err != nil {
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// Deliver decodes an email job and sends it through sender.
func Deliver(ctx context.Context, sender Sender, job queue.Message) error {
	if job.Type != JobType {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	var msg Message
	if err := job.Decode(&msg); err != nil {
		return fmt.Errorf("decode email job: %w", err)
	}
	return sender.Send(ctx, msg)
}
