// Package notify turns push messages on the news topic into navigation
// requests for the article detail view.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robertmeta/news-cli/model"
)

// DefaultTopic is the broadcast topic the client subscribes to.
const DefaultTopic = "news"

// Payload keys read from a push message.
const (
	KeyHeadline = "headline"
	KeyURL      = "url"
)

// Navigator opens the article detail view.
type Navigator interface {
	Navigate(ctx context.Context, req model.NavigationRequest) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, req model.NavigationRequest) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, req model.NavigationRequest) error {
	return f(ctx, req)
}

// Recorder keeps a history of delivered notifications.
type Recorder interface {
	SaveNotification(ctx context.Context, n *model.Notification) error
}

// Message is one push message as delivered by the messaging service.
type Message struct {
	Topic      string
	Data       map[string]string
	ReceivedAt time.Time
}

// Bridge handles push messages. A failing message is logged and dropped;
// HandleMessage never panics and never returns an error to the caller.
type Bridge struct {
	navigator Navigator
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithRecorder records every handled message before navigating.
func WithRecorder(r Recorder) BridgeOption {
	return func(b *Bridge) {
		b.recorder = r
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a Bridge that hands navigation requests to nav.
func NewBridge(nav Navigator, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		navigator: nav,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NavigationFromPayload builds a navigation request from a push payload.
// Absent keys become empty strings.
func NavigationFromPayload(data map[string]string) model.NavigationRequest {
	// Indexing a nil map yields "".
	return model.NavigationRequest{
		Headline: data[KeyHeadline],
		URL:      data[KeyURL],
	}
}

// HandleMessage builds the navigation request for msg and hands it to the
// navigator. It reports whether navigation succeeded.
func (b *Bridge) HandleMessage(ctx context.Context, msg Message) (req model.NavigationRequest, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("error handling push payload",
				"topic", msg.Topic,
				"error", fmt.Sprint(r),
			)
			ok = false
		}
	}()

	req = NavigationFromPayload(msg.Data)

	if b.recorder != nil {
		receivedAt := msg.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = b.now()
		}
		topic := msg.Topic
		if topic == "" {
			topic = DefaultTopic
		}
		if err := b.recorder.SaveNotification(ctx, model.NewNotification(topic, req, receivedAt)); err != nil {
			b.logger.Warn("failed to record notification", "error", err)
		}
	}

	if b.navigator == nil {
		b.logger.Error("error handling push payload", "topic", msg.Topic, "error", "no navigator")
		return req, false
	}

	if err := b.navigator.Navigate(ctx, req); err != nil {
		b.logger.Error("error handling push payload",
			"topic", msg.Topic,
			"error", err,
		)
		return req, false
	}

	b.logger.Debug("navigated from push message", "topic", msg.Topic, "url", req.URL)
	return req, true
}

// DecodePayload extracts the string data map from a raw message body. Both
// {"data": {...}} envelopes and bare objects are accepted. Non-string values
// are ignored. On error the returned map is empty, never nil.
func DecodePayload(body []byte) (map[string]string, error) {
	data := map[string]string{}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return data, fmt.Errorf("failed to decode push payload: %w", err)
	}
	if top == nil {
		return data, errors.New("failed to decode push payload: not an object")
	}

	fields := top
	if raw, ok := top["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil && inner != nil {
			fields = inner
		}
	}

	for key, raw := range fields {
		var value string
		if err := json.Unmarshal(raw, &value); err == nil {
			data[key] = value
		}
	}

	return data, nil
}

// EncodePayload wraps data in the {"data": {...}} envelope.
func EncodePayload(data map[string]string) ([]byte, error) {
	if data == nil {
		data = map[string]string{}
	}
	return json.Marshal(struct {
		Data map[string]string `json:"data"`
	}{Data: data})
}

// JSONNavigator writes each navigation request as one JSON line. It is used
// when no interactive screen is attached.
type JSONNavigator struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONNavigator creates a JSONNavigator writing to w.
func NewJSONNavigator(w io.Writer) *JSONNavigator {
	return &JSONNavigator{w: w}
}

// Navigate writes req to the underlying writer.
func (n *JSONNavigator) Navigate(_ context.Context, req model.NavigationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return json.NewEncoder(n.w).Encode(req)
}
