package messaging

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// LogMessenger writes messages to the log instead of delivering them.
// Development only: the log line contains the code.
type LogMessenger struct{}

var _ Messenger = LogMessenger{}

func (LogMessenger) SendSms(ctx context.Context, msg SmsMessage) error {
	slogx.FromContext(ctx).Info("sms message",
		slog.String("message_id", msg.ID),
		slog.String("profile", msg.Profile),
		slog.String("priority", string(msg.Priority)),
		slog.String("phone_number", msg.PhoneNumber),
		slog.String("message", msg.Message),
	)
	return nil
}

func (LogMessenger) SendEmail(ctx context.Context, msg EmailMessage) error {
	slogx.FromContext(ctx).Info("email message",
		slog.String("message_id", msg.ID),
		slog.String("profile", msg.Profile),
		slog.String("priority", string(msg.Priority)),
		slog.String("from", msg.From),
		slog.Any("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}
