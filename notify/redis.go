package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client from a URL such as
// redis://localhost:6379/0.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Subscriber receives push messages from a Redis pub/sub channel named
// after the topic and hands them to a Bridge.
type Subscriber struct {
	client redis.UniversalClient
	topic  string
	bridge *Bridge
	logger *slog.Logger
}

// SubscriberOption configures a Subscriber.
type SubscriberOption func(*Subscriber)

// WithSubscriberLogger sets the subscriber logger.
func WithSubscriberLogger(logger *slog.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubscriber creates a Subscriber for topic.
func NewSubscriber(client redis.UniversalClient, topic string, bridge *Bridge, opts ...SubscriberOption) *Subscriber {
	if topic == "" {
		topic = DefaultTopic
	}
	s := &Subscriber{
		client: client,
		topic:  topic,
		bridge: bridge,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topic returns the subscribed topic.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Run subscribes to the topic and delivers messages until ctx is done.
// The subscription outcome is logged; a failed subscription is also
// returned so the caller can stop waiting for messages.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.topic)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		s.logger.Warn("failed to subscribe to topic", "topic", s.topic, "error", err)
		return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("subscribed to topic", "topic", s.topic)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.deliver(ctx, msg)
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, msg *redis.Message) {
	data, err := DecodePayload([]byte(msg.Payload))
	if err != nil {
		// Still navigate with empty fields.
		s.logger.Warn("undecodable push payload", "topic", msg.Channel, "error", err)
	}

	if s.bridge == nil {
		s.logger.Error("error handling push payload", "topic", msg.Channel, "error", "no bridge configured")
		return
	}

	s.bridge.HandleMessage(ctx, Message{
		Topic:      msg.Channel,
		Data:       data,
		ReceivedAt: time.Now(),
	})
}

// Publisher sends push messages to a topic.
type Publisher struct {
	client redis.UniversalClient
}

// NewPublisher creates a Publisher.
func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// Publish sends data to topic and returns the number of subscribers that
// received it.
func (p *Publisher) Publish(ctx context.Context, topic string, data map[string]string) (int64, error) {
	if topic == "" {
		return 0, errors.New("topic is required")
	}

	body, err := EncodePayload(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode push payload: %w", err)
	}

	receivers, err := p.client.Publish(ctx, topic, body).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return receivers, nil
}
