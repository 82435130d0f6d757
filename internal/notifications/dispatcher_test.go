package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"forum/internal/mailer"
	"forum/internal/service"
	"forum/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	tasks []*tasks.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t *tasks.Task) error {
	q.tasks = append(q.tasks, t)
	return q.err
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func TestDispatcher_PasswordResetEnqueuesEmail(t *testing.T) {
	q := &recordingQueue{}
	d := NewDispatcher(q, "http://localhost:3000/reset-password")

	err := d.Publish(context.Background(), service.PasswordResetRequested{
		UserID: 1, Email: "ada@x.com", FirstName: "Ada", Token: "k3y",
	})
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskSendEmail, q.tasks[0].Type)

	var msg mailer.Message
	require.NoError(t, q.tasks[0].Decode(&msg))
	assert.Equal(t, []string{"ada@x.com"}, msg.To)
	assert.Equal(t, "Password Reset", msg.Subject)
	assert.Contains(t, msg.Text, "http://localhost:3000/reset-password/?token=k3y")
}

func TestDispatcher_ReportsQueueErrors(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis down")}
	d := NewDispatcher(q, "http://f")
	err := d.Publish(context.Background(), &service.PasswordResetRequested{Email: "a@x.com", Token: "t"})
	assert.Error(t, err)
}

func TestDispatcher_EndToEndThroughInlineQueue(t *testing.T) {
	mux := tasks.NewMux()
	sender := &recordingSender{}
	RegisterHandlers(mux, sender)
	q := tasks.NewInlineQueue(mux, 0)

	d := NewDispatcher(q, "http://f")
	require.NoError(t, d.Publish(context.Background(), service.PasswordResetRequested{Email: "b@x.com", Token: "abc"}))
	q.Wait()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"b@x.com"}, sender.sent[0].To)
	assert.Contains(t, sender.sent[0].HTML, "http://f/?token=abc")
}
