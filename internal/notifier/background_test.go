package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resourcehive/internal/metrics"
)

// gatedDispatcher blocks every send until release is closed
type gatedDispatcher struct {
	release chan struct{}
	mu      sync.Mutex
	sent    []Message
}

func (d *gatedDispatcher) Dispatch(_ context.Context, msg Message) error {
	<-d.release
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

func (d *gatedDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func TestBackgroundDispatcher_FlushDoesNotWaitForSenders(t *testing.T) {
	gate := &gatedDispatcher{release: make(chan struct{})}
	bg := NewBackgroundDispatcher(gate, 2, 8)
	n := New(nil, bg, metrics.Nop())

	msgs := []Message{
		{Channel: ChannelEmail, UserID: uuid.New(), To: "ana@example.com"},
		{Channel: ChannelSMS, UserID: uuid.New(), To: "+639170000000"},
	}
	done := make(chan struct{})
	go func() {
		n.Flush(context.Background(), msgs)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush blocked on a slow sender")
	}
	assert.Equal(t, 0, gate.count())

	close(gate.release)
	require.NoError(t, bg.Close())
	assert.Equal(t, 2, gate.count())
}

func TestBackgroundDispatcher_BacklogAndClose(t *testing.T) {
	gate := &gatedDispatcher{release: make(chan struct{})}
	bg := NewBackgroundDispatcher(gate, 1, 1)
	ctx := context.Background()

	// one message held by the worker, one buffered, then the buffer is full
	require.NoError(t, bg.Dispatch(ctx, Message{Channel: ChannelEmail}))
	require.Eventually(t, func() bool { return len(bg.pending) == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, bg.Dispatch(ctx, Message{Channel: ChannelEmail}))
	assert.ErrorIs(t, bg.Dispatch(ctx, Message{Channel: ChannelEmail}), ErrDeliveryBacklog)

	close(gate.release)
	require.NoError(t, bg.Close())
	assert.Equal(t, 2, gate.count())
	assert.ErrorIs(t, bg.Dispatch(ctx, Message{Channel: ChannelSMS}), ErrDispatcherClosed)
	assert.NoError(t, bg.Close())
}
