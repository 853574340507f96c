// Package notifier fans user-visible events out to in-app records, email and SMS.
package notifier

import "github.com/google/uuid"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one outbound email or SMS
type Message struct {
	Channel Channel   `json:"channel"`
	UserID  uuid.UUID `json:"user_id"`
	To      string    `json:"to"`
	Subject string    `json:"subject,omitempty"`
	Body    string    `json:"body"`
}
