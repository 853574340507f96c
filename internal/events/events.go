// Package events publishes domain events after commit.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	BatchSubmitted       = "batch.submitted"
	ItemApproved         = "item.approved"
	ItemRejected         = "item.rejected"
	BatchClaimed         = "batch.claimed"
	ItemReturned         = "item.returned"
	BatchCancelled       = "batch.cancelled"
	ReservationActivated = "reservation.activated"
	ItemExpired          = "item.expired"
	ItemOverdue          = "item.overdue"
)

// Event is the envelope written to the topic
type Event struct {
	ID         string            `json:"event_id"`
	Type       string            `json:"event_type"`
	BatchID    uuid.UUID         `json:"batch_id"`
	ItemID     *uuid.UUID        `json:"request_item_id,omitempty"`
	ActorID    *uuid.UUID        `json:"actor_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// New builds an event for batchID
func New(eventType string, batchID uuid.UUID, at time.Time) Event {
	return Event{ID: uuid.NewString(), Type: eventType, BatchID: batchID, Timestamp: at}
}

// Publisher delivers events. Failures never affect the command that produced them.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }
func (Nop) Close() error                            { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, events...)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types lists the recorded event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
