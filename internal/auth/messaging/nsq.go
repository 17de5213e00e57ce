package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/warden/pkg/slogx"
	"github.com/nsqio/go-nsq"
)

const (
	DefaultSmsTopic   = "messaging.sms"
	DefaultEmailTopic = "messaging.email"
)

// Publisher is the part of *nsq.Producer the messenger needs.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Topics names where each kind of message is published.
type Topics struct {
	Sms   string
	Email string
}

// NSQMessenger publishes messages as JSON to nsqd. Publish waits for the
// daemon's acknowledgement, so an error means the message was not queued.
type NSQMessenger struct {
	pub    Publisher
	topics Topics
}

var _ Messenger = (*NSQMessenger)(nil)

// NewNSQMessenger wraps an existing publisher.
func NewNSQMessenger(pub Publisher, topics Topics) *NSQMessenger {
	if topics.Sms == "" {
		topics.Sms = DefaultSmsTopic
	}
	if topics.Email == "" {
		topics.Email = DefaultEmailTopic
	}
	return &NSQMessenger{pub: pub, topics: topics}
}

// NewProducer dials nsqd and pings it so a bad address fails at startup.
func NewProducer(addr string) (*nsq.Producer, error) {
	cfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ producer: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelWarning)

	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("failed to ping nsqd %s: %w", addr, err)
	}
	return producer, nil
}

func (m *NSQMessenger) SendSms(ctx context.Context, msg SmsMessage) error {
	return m.publish(ctx, m.topics.Sms, msg.ID, msg)
}

func (m *NSQMessenger) SendEmail(ctx context.Context, msg EmailMessage) error {
	return m.publish(ctx, m.topics.Email, msg.ID, msg)
}

func (m *NSQMessenger) publish(ctx context.Context, topic, id string, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := m.pub.Publish(topic, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	slogx.FromContext(ctx).Debug("message published", slog.String("topic", topic), slog.String("message_id", id))
	return nil
}
