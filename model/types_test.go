package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishedLayout(t *testing.T) {
	ts, err := time.Parse(PublishedLayout, "2023-01-02 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, 2023, ts.Year())
	assert.Equal(t, time.January, ts.Month())
	assert.Equal(t, 2, ts.Day())
	assert.Equal(t, 10, ts.Hour())

	_, err = time.Parse(PublishedLayout, "2023-01-02T10:00:00Z")
	assert.Error(t, err, "ISO 8601 form should not match the feed layout")
}

func TestArticle_Age(t *testing.T) {
	a := Article{PublishedAt: time.Now().Add(-2 * time.Hour)}
	age := a.Age()
	assert.GreaterOrEqual(t, age, 2*time.Hour)
	assert.Less(t, age, 3*time.Hour)
}

func TestNewNotification(t *testing.T) {
	now := time.Now()
	n := NewNotification("news", NavigationRequest{Headline: "A", URL: "u1"}, now)

	_, err := uuid.Parse(n.ID)
	require.NoError(t, err, "ID should be a UUID")
	assert.Equal(t, "news", n.Topic)
	assert.Equal(t, "A", n.Headline)
	assert.Equal(t, "u1", n.URL)
	assert.Equal(t, now, n.ReceivedAt)

	other := NewNotification("news", NavigationRequest{}, now)
	assert.NotEqual(t, n.ID, other.ID, "IDs should be unique")
}

func TestNotification_Validate(t *testing.T) {
	tests := []struct {
		name    string
		n       Notification
		wantErr bool
	}{
		{
			name: "valid notification",
			n:    Notification{ID: "id-1", Topic: "news", Headline: "A", URL: "u1"},
		},
		{
			name: "empty payload is still valid",
			n:    Notification{ID: "id-1", Topic: "news"},
		},
		{
			name:    "missing ID",
			n:       Notification{Topic: "news"},
			wantErr: true,
		},
		{
			name:    "missing topic",
			n:       Notification{ID: "id-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.n.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFieldValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    FieldValue
		wantErr bool
	}{
		{input: `"2023-01-02 10:00:00"`, want: "2023-01-02 10:00:00"},
		{input: `""`, want: ""},
		{input: `20230101`, want: "20230101"},
		{input: `1.5`, want: "1.5"},
		{input: `false`, want: "false"},
		{input: `{"a":1}`, wantErr: true},
		{input: `[1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got FieldValue
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
