package notifier

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"resourcehive/internal/metrics"
	"resourcehive/internal/models"
	"resourcehive/internal/repositories"
	"resourcehive/pkg/logger"
)

type Notifier struct {
	templates  *Templates
	dispatcher Dispatcher
	metrics    *metrics.Metrics
}

func New(templates *Templates, dispatcher Dispatcher, m *metrics.Metrics) *Notifier {
	if templates == nil {
		templates = NewTemplates(nil)
	}
	return &Notifier{templates: templates, dispatcher: dispatcher, metrics: m}
}

// Outbox collects the notifications of one transaction. In-app rows are
// written through the transaction; email and SMS wait for Flush.
type Outbox struct {
	n       *Notifier
	repo    repositories.NotificationRepository
	now     time.Time
	pending []Message
}

func (n *Notifier) Outbox(repo repositories.NotificationRepository, now time.Time) *Outbox {
	return &Outbox{n: n, repo: repo, now: now}
}

// InApp writes the notification row inside the current transaction
func (o *Outbox) InApp(ctx context.Context, userID uuid.UUID, message string, remarks *string) error {
	return o.repo.Create(ctx, &models.Notification{
		UserID:    userID,
		Message:   message,
		Remarks:   remarks,
		CreatedAt: o.now,
	})
}

// Email renders the template and queues it. Users without an address are skipped.
func (o *Outbox) Email(ctx context.Context, user *models.User, templateName string, data TemplateData) {
	msg, ok := o.n.EmailMessage(ctx, user, templateName, data)
	if ok {
		o.pending = append(o.pending, msg)
	}
}

// SMS queues a text message. It reports false when the user has no phone.
func (o *Outbox) SMS(user *models.User, body string) bool {
	msg, ok := o.n.SMSMessage(user, body)
	if ok {
		o.pending = append(o.pending, msg)
	}
	return ok
}

// Pending returns the queued email and SMS messages
func (o *Outbox) Pending() []Message {
	return o.pending
}

// EmailMessage renders an email for user. ok is false when nothing should be sent.
func (n *Notifier) EmailMessage(ctx context.Context, user *models.User, templateName string, data TemplateData) (Message, bool) {
	if user == nil || user.Email == nil || strings.TrimSpace(*user.Email) == "" {
		return Message{}, false
	}
	if data.Name == "" {
		data.Name = user.GreetingName()
	}
	subject, body, err := n.templates.Render(ctx, templateName, data)
	if err != nil {
		logger.Error(ctx).Err(err).Str("template", templateName).Msg("failed to render email")
		return Message{}, false
	}
	return Message{Channel: ChannelEmail, UserID: user.ID, To: *user.Email, Subject: subject, Body: body}, true
}

// SMSMessage builds an SMS for user. ok is false when the user has no phone.
func (n *Notifier) SMSMessage(user *models.User, body string) (Message, bool) {
	if user == nil || user.Phone == nil || strings.TrimSpace(*user.Phone) == "" {
		return Message{}, false
	}
	return Message{Channel: ChannelSMS, UserID: user.ID, To: *user.Phone, Body: body}, true
}

// Deliver dispatches one message and reports the outcome
func (n *Notifier) Deliver(ctx context.Context, msg Message) error {
	err := n.dispatcher.Dispatch(ctx, msg)
	n.metrics.Notification(string(msg.Channel), err)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("channel", string(msg.Channel)).Str("user_id", msg.UserID.String()).
			Msg("notification delivery failed")
	}
	return err
}

// Flush delivers messages collected before a commit. Failures are logged only.
func (n *Notifier) Flush(ctx context.Context, msgs []Message) {
	for _, msg := range msgs {
		_ = n.Deliver(ctx, msg)
	}
}
