package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"resourcehive/pkg/logger"
)

// ErrDeliveryBacklog is returned when the background buffer is full
var ErrDeliveryBacklog = errors.New("notification delivery backlog is full")

// ErrDispatcherClosed is returned after Close
var ErrDispatcherClosed = errors.New("notification dispatcher is closed")

const backgroundSendTimeout = 30 * time.Second

// BackgroundDispatcher delivers through next on its own workers, so callers
// return as soon as the message is buffered. It serves the direct senders when
// the asynq queue is not configured.
type BackgroundDispatcher struct {
	next    Dispatcher
	pending chan Message
	workers errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func NewBackgroundDispatcher(next Dispatcher, workers, buffer int) *BackgroundDispatcher {
	if workers < 1 {
		workers = 1
	}
	if buffer < workers {
		buffer = workers
	}
	d := &BackgroundDispatcher{next: next, pending: make(chan Message, buffer)}
	for i := 0; i < workers; i++ {
		d.workers.Go(d.work)
	}
	return d
}

func (d *BackgroundDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.pending <- msg:
		return nil
	default:
		return ErrDeliveryBacklog
	}
}

func (d *BackgroundDispatcher) work() error {
	for msg := range d.pending {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundSendTimeout)
		if err := d.next.Dispatch(ctx, msg); err != nil {
			logger.Warn(ctx).Err(err).Str("channel", string(msg.Channel)).Str("user_id", msg.UserID.String()).
				Msg("background notification delivery failed")
		}
		cancel()
	}
	return nil
}

// Close stops accepting messages and waits for buffered ones to be sent
func (d *BackgroundDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.pending)
	d.mu.Unlock()
	return d.workers.Wait()
}
