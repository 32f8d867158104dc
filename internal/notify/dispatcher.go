// Package notify decouples the quote workflow from notification delivery.
// Services hand a Notification to a Dispatcher; the asynq-backed dispatcher
// enqueues it for the background worker, and tests swap in a recording double.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/hibiken/asynq"

	"makerhub/b2b/internal/utils"
)

// TypeNotificationDeliver is the asynq task type for notification delivery.
const TypeNotificationDeliver = "notification:deliver"

// Notification is a single message addressed to one user. Data carries
// event-specific fields (quote id, status, counterparty name) for templating.
type Notification struct {
	UserID   utils.ShortID     `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	EventKey string            `json:"event_key"`
	Data     map[string]string `json:"data,omitempty"`
}

// Dispatcher delivers notifications. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Enqueuer is the slice of the asynq client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type asynqDispatcher struct {
	client Enqueuer
}

// NewAsynqDispatcher returns a Dispatcher that enqueues notifications for the
// background worker.
func NewAsynqDispatcher(client Enqueuer) Dispatcher {
	return &asynqDispatcher{client: client}
}

func (d *asynqDispatcher) Dispatch(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	task := asynq.NewTask(TypeNotificationDeliver, payload)
	info, err := d.client.EnqueueContext(ctx, task, asynq.Queue("notifications"))
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	log.Printf("Enqueued notification task %s for user %s (event %s)", info.ID, n.UserID, n.EventKey)
	return nil
}

// RecordingDispatcher captures dispatched notifications instead of delivering
// them. Intended for tests.
type RecordingDispatcher struct {
	mu   sync.Mutex
	sent []Notification
}

func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

func (d *RecordingDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

// Sent returns a copy of everything dispatched so far.
func (d *RecordingDispatcher) Sent() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notification, len(d.sent))
	copy(out, d.sent)
	return out
}

// Reset clears the recorded notifications.
func (d *RecordingDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = nil
}
