package mailer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courtside/internal/queue"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func TestQueueSenderAndDeliver(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(2)
	msg := Message{To: "sam@example.com", Subject: "Reminder", Text: "hi"}
	require.NoError(t, NewQueueSender(q).Send(ctx, msg))

	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	var job queue.Message
	select {
	case job = <-jobs:
	case <-time.After(time.Second):
		t.Fatal("job not published")
	}
	assert.Equal(t, JobType, job.Type)

	rec := &recordingSender{}
	require.NoError(t, Deliver(ctx, rec, job))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, msg, rec.sent[0])
}

func TestDeliverRejectsOtherJobs(t *testing.T) {
	err := Deliver(context.Background(), &recordingSender{}, queue.Message{Type: "other"})
	require.Error(t, err)
}

func TestRunDeliversUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemory(4)
	require.NoError(t, NewQueueSender(q).Send(ctx, Message{To: "a@example.com", Subject: "one"}))
	require.NoError(t, q.Publish(ctx, queue.Message{ID: "x", Type: "other"}))
	require.NoError(t, NewQueueSender(q).Send(ctx, Message{To: "b@example.com", Subject: "two"}))

	rec := &recordingSender{}
	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, rec, zap.NewNop()) }()

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sent) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewPicksBackend(t *testing.T) {
	logger := zap.NewNop()

	s, err := New("", "", "", "", logger)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	s, err = New(BackendFunction, "", "", "http://localhost:9999/send", logger)
	require.NoError(t, err)
	assert.IsType(t, &FunctionSender{}, s)

	_, err = New(BackendResend, "", "coach@example.com", "", logger)
	assert.Error(t, err)

	_, err = New("carrier-pigeon", "", "", "", logger)
	assert.Error(t, err)
}
