// Package tasks runs background work (outbound email) through a Redis list or in-process.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTask is returned when no handler is registered for a task type.
var ErrUnknownTask = errors.New("tasks: no handler registered")

// Task is the envelope stored on the queue.
type Task struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// NewTask wraps payload in an envelope with a fresh id.
func NewTask(taskType string, payload interface{}) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	return &Task{ID: uuid.NewString(), Type: taskType, Payload: raw}, nil
}

// Decode unmarshals the payload into dest.
func (t *Task) Decode(dest interface{}) error {
	if err := json.Unmarshal(t.Payload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type, err)
	}
	return nil
}

// Handler executes one task. A returned error makes the task eligible for retry.
type Handler func(ctx context.Context, t *Task) error

// Mux routes tasks to handlers by type.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers h for taskType, replacing any previous handler.
func (m *Mux) Handle(taskType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[taskType] = h
}

// Process runs the handler registered for t.Type.
func (m *Mux) Process(ctx context.Context, t *Task) error {
	m.mu.RLock()
	h, ok := m.handlers[t.Type]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for %q", ErrUnknownTask, t.Type)
	}
	return h(ctx, t)
}

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, t *Task) error
}
