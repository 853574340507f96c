package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"resourcehive/internal/notifier"
	"resourcehive/pkg/logger"
)

// DeliveryHandler sends the email and SMS messages queued by the API process.
// The notifier it wraps must dispatch directly to the senders.
type DeliveryHandler struct {
	notifier *notifier.Notifier
}

func NewDeliveryHandler(n *notifier.Notifier) *DeliveryHandler {
	return &DeliveryHandler{notifier: n}
}

// Register binds the delivery task types on mux
func (h *DeliveryHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(notifier.TypeDeliverEmail, h.HandleDelivery)
	mux.HandleFunc(notifier.TypeDeliverSMS, h.HandleDelivery)
}

// HandleDelivery sends one queued message. A malformed payload is not retried.
func (h *DeliveryHandler) HandleDelivery(ctx context.Context, t *asynq.Task) error {
	msg, err := notifier.ParseDeliveryTask(t)
	if err != nil {
		logger.Error(ctx).Err(err).Str("task_type", t.Type()).Msg("dropping malformed delivery task")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if msg.To == "" {
		return fmt.Errorf("delivery task has no recipient: %w", asynq.SkipRetry)
	}
	return h.notifier.Deliver(ctx, msg)
}

// NewDeliveryServer builds the asynq worker that drains the notification queue
func NewDeliveryServer(redisOpt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{notifier.DeliveryQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			ev := logger.Warn(ctx)
			if retried >= maxRetry {
				ev = logger.Error(ctx)
			}
			ev.Err(err).Str("task_type", task.Type()).Int("retried", retried).Msg("delivery task failed")
		}),
	})
}
