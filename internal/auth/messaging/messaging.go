// Package messaging hands OTP messages to the delivery pipeline. Transport
// and templating happen downstream; a send only has to be accepted.
package messaging

import (
	"context"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
)

type SmsMessage struct {
	ID          string          `json:"id"`
	Profile     string          `json:"profile"`
	Priority    domain.Priority `json:"priority"`
	PhoneNumber string          `json:"phoneNumber"`
	Message     string          `json:"message"`
}

type EmailMessage struct {
	ID       string          `json:"id"`
	Profile  string          `json:"profile"`
	Priority domain.Priority `json:"priority"`
	From     string          `json:"from"`
	To       []string        `json:"to"`
	Subject  string          `json:"subject"`
	Body     string          `json:"body"`
}

// Messenger delivers a message or returns why it could not.
type Messenger interface {
	SendSms(ctx context.Context, msg SmsMessage) error
	SendEmail(ctx context.Context, msg EmailMessage) error
}
