package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/robertmeta/news-cli/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	requests []model.NavigationRequest
	err      error
}

func (n *recordingNavigator) Navigate(_ context.Context, req model.NavigationRequest) error {
	n.requests = append(n.requests, req)
	return n.err
}

type memoryRecorder struct {
	saved []*model.Notification
	err   error
}

func (r *memoryRecorder) SaveNotification(_ context.Context, n *model.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, n)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestNavigationFromPayload(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
		want model.NavigationRequest
	}{
		{
			name: "both keys",
			data: map[string]string{"headline": "A", "url": "u1"},
			want: model.NavigationRequest{Headline: "A", URL: "u1"},
		},
		{
			name: "empty payload",
			data: map[string]string{},
			want: model.NavigationRequest{Headline: "", URL: ""},
		},
		{
			name: "nil payload",
			data: nil,
			want: model.NavigationRequest{},
		},
		{
			name: "only url",
			data: map[string]string{"url": "u1"},
			want: model.NavigationRequest{URL: "u1"},
		},
		{
			name: "extra keys ignored",
			data: map[string]string{"headline": "A", "url": "u1", "body": "x"},
			want: model.NavigationRequest{Headline: "A", URL: "u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NavigationFromPayload(tt.data))
		})
	}
}

func TestBridge_EmptyPayloadNavigatesWithEmptyStrings(t *testing.T) {
	nav := &recordingNavigator{}
	b := NewBridge(nav, WithLogger(discardLogger()))

	req, ok := b.HandleMessage(context.Background(), Message{Topic: "news", Data: map[string]string{}})
	assert.True(t, ok)
	assert.Equal(t, model.NavigationRequest{Headline: "", URL: ""}, req)
	require.Len(t, nav.requests, 1)
	assert.Equal(t, model.NavigationRequest{}, nav.requests[0])
}

func TestBridge_NavigatorErrorIsLoggedNotReturned(t *testing.T) {
	var logs bytes.Buffer
	nav := &recordingNavigator{err: errors.New("detail view unavailable")}
	b := NewBridge(nav, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	_, ok := b.HandleMessage(context.Background(), Message{Topic: "news", Data: map[string]string{"headline": "A"}})
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "error handling push payload")
	assert.Contains(t, logs.String(), "detail view unavailable")
}

func TestBridge_NavigatorPanicIsRecovered(t *testing.T) {
	var logs bytes.Buffer
	nav := NavigatorFunc(func(context.Context, model.NavigationRequest) error {
		panic("boom")
	})
	b := NewBridge(nav, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	assert.NotPanics(t, func() {
		_, ok := b.HandleMessage(context.Background(), Message{Topic: "news"})
		assert.False(t, ok)
	})
	assert.Contains(t, logs.String(), "boom")
}

func TestBridge_NilNavigator(t *testing.T) {
	b := NewBridge(nil, WithLogger(discardLogger()))
	_, ok := b.HandleMessage(context.Background(), Message{Topic: "news"})
	assert.False(t, ok)
}

func TestBridge_RecordsNotification(t *testing.T) {
	nav := &recordingNavigator{}
	rec := &memoryRecorder{}
	b := NewBridge(nav, WithRecorder(rec), WithLogger(discardLogger()))
	received := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)

	b.HandleMessage(context.Background(), Message{
		Topic:      "news",
		Data:       map[string]string{"headline": "A", "url": "u1"},
		ReceivedAt: received,
	})

	require.Len(t, rec.saved, 1)
	assert.Equal(t, "news", rec.saved[0].Topic)
	assert.Equal(t, "A", rec.saved[0].Headline)
	assert.Equal(t, "u1", rec.saved[0].URL)
	assert.Equal(t, received, rec.saved[0].ReceivedAt)
}

func TestBridge_RecorderFailureDoesNotBlockNavigation(t *testing.T) {
	nav := &recordingNavigator{}
	rec := &memoryRecorder{err: errors.New("disk full")}
	b := NewBridge(nav, WithRecorder(rec), WithLogger(discardLogger()))

	_, ok := b.HandleMessage(context.Background(), Message{Data: map[string]string{"url": "u1"}})
	assert.True(t, ok)
	require.Len(t, nav.requests, 1)
	assert.Equal(t, "u1", nav.requests[0].URL)
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "data envelope",
			body: `{"data":{"headline":"A","url":"u1"}}`,
			want: map[string]string{"headline": "A", "url": "u1"},
		},
		{
			name: "bare object",
			body: `{"headline":"A","url":"u1"}`,
			want: map[string]string{"headline": "A", "url": "u1"},
		},
		{
			name: "empty object",
			body: `{}`,
			want: map[string]string{},
		},
		{
			name: "non-string values ignored",
			body: `{"data":{"headline":7,"url":"u1"}}`,
			want: map[string]string{"url": "u1"},
		},
		{
			name: "unicode",
			body: `{"headline":"Überschrift – ニュース","url":"u1"}`,
			want: map[string]string{"headline": "Überschrift – ニュース", "url": "u1"},
		},
		{
			name:    "not JSON",
			body:    `hello`,
			want:    map[string]string{},
			wantErr: true,
		},
		{
			name:    "null",
			body:    `null`,
			want:    map[string]string{},
			wantErr: true,
		},
		{
			name:    "array",
			body:    `[1,2]`,
			want:    map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodePayload(t *testing.T) {
	body, err := EncodePayload(map[string]string{"headline": "A", "url": "u1"})
	require.NoError(t, err)

	data, err := DecodePayload(body)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"headline": "A", "url": "u1"}, data)

	body, err = EncodePayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{}}`, string(body))
}

func TestJSONNavigator(t *testing.T) {
	var out bytes.Buffer
	nav := NewJSONNavigator(&out)

	require.NoError(t, nav.Navigate(context.Background(), model.NavigationRequest{Headline: "A", URL: "u1"}))
	require.NoError(t, nav.Navigate(context.Background(), model.NavigationRequest{}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"headline":"A","url":"u1"}`, lines[0])
	assert.JSONEq(t, `{"headline":"","url":""}`, lines[1])
}
