package mailer

import (
	"context"

	"go.uber.org/zap"

	"courtside/internal/metrics"
	"courtside/internal/queue"
)

// Run delivers email jobs from q until ctx is cancelled or the queue closes.
// Failed jobs are logged and dropped.
func Run(ctx context.Context, q queue.Queue, sender Sender, logger *zap.Logger) error {
	jobs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for job := range jobs {
		if job.Type != JobType {
			metrics.QueueJobs.WithLabelValues(job.Type, "skipped").Inc()
			logger.Warn("unknown job type", zap.String("type", job.Type), zap.String("job_id", job.ID))
			continue
		}
		if err := Deliver(ctx, sender, job); err != nil {
			metrics.QueueJobs.WithLabelValues(job.Type, "failed").Inc()
			logger.Error("email delivery failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		metrics.QueueJobs.WithLabelValues(job.Type, "sent").Inc()
		logger.Info("email delivered", zap.String("job_id", job.ID))
	}
	return ctx.Err()
}
