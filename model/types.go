// Package model defines the core data structures for news-cli.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PublishedLayout is the timestamp format used by the news feed
// (yyyy-MM-dd HH:mm:ss, no zone).
const PublishedLayout = "2006-01-02 15:04:05"

// RawArticleRecord is one element of the feed as it arrives on the wire.
// Fields are pointers so a missing key can be told apart from an empty value.
type RawArticleRecord struct {
	Headline    *FieldValue `json:"headline"`
	URL         *FieldValue `json:"url"`
	PublishedAt *FieldValue `json:"publishedAt"`
}

// FieldValue is a scalar record field. Numbers and booleans are kept as
// their literal JSON text; objects and arrays are rejected.
type FieldValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty field value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FieldValue(s)
	case '{', '[':
		return fmt.Errorf("field value must be a scalar, got %s", data[:1])
	default:
		*v = FieldValue(data)
	}
	return nil
}

// Article is a single news item. It is a value type and is not modified
// after it has been parsed.
type Article struct {
	Headline    string    `json:"headline"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Age returns how long ago the article was published.
func (a Article) Age() time.Duration {
	return time.Since(a.PublishedAt)
}

// NavigationRequest is the payload handed to the article detail view.
type NavigationRequest struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
}

// Notification is a delivered push message as kept in the archive.
type Notification struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Headline   string    `json:"headline"`
	URL        string    `json:"url"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewNotification creates a Notification for a navigation request received
// on topic.
func NewNotification(topic string, req NavigationRequest, receivedAt time.Time) *Notification {
	return &Notification{
		ID:         uuid.NewString(),
		Topic:      topic,
		Headline:   req.Headline,
		URL:        req.URL,
		ReceivedAt: receivedAt,
	}
}

// Validate checks if the notification has required fields.
// Headline and URL may legitimately be empty.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return errors.New("notification ID is required")
	}
	if n.Topic == "" {
		return errors.New("notification topic is required")
	}
	return nil
}
