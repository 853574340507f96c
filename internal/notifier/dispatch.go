package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types handled by the delivery worker
const (
	TypeDeliverEmail = "notification:email"
	TypeDeliverSMS   = "notification:sms"

	DeliveryQueue = "notifications"
)

// Dispatcher hands a message to its sink
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DirectDispatcher delivers in the calling goroutine
type DirectDispatcher struct {
	Email EmailSender
	SMS   SMSSender
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, msg Message) error {
	switch msg.Channel {
	case ChannelEmail:
		return d.Email.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
	case ChannelSMS:
		return d.SMS.SendSMS(ctx, msg.To, msg.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", msg.Channel)
	}
}

// Enqueuer is satisfied by *asynq.Client
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher hands messages to the asynq delivery worker
type QueueDispatcher struct {
	client Enqueuer
}

func NewQueueDispatcher(client Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	task, err := NewDeliveryTask(msg)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// NewDeliveryTask wraps msg in an asynq task
func NewDeliveryTask(msg Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	taskType := TypeDeliverEmail
	if msg.Channel == ChannelSMS {
		taskType = TypeDeliverSMS
	}
	return asynq.NewTask(taskType, data, asynq.MaxRetry(3), asynq.Queue(DeliveryQueue)), nil
}

// ParseDeliveryTask decodes the message carried by a delivery task
func ParseDeliveryTask(t *asynq.Task) (Message, error) {
	var msg Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal delivery payload: %w", err)
	}
	return msg, nil
}
