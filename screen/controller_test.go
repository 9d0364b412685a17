package screen

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertmeta/news-cli/feed"
	"github.com/robertmeta/news-cli/model"
	"github.com/robertmeta/news-cli/notify"
	"github.com/robertmeta/news-cli/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioFeed = `[{"headline":"A","url":"u1","publishedAt":"2023-01-02 10:00:00"},{"headline":"B","url":"u2","publishedAt":"bad-date"},{"headline":"C","url":"u3","publishedAt":"2023-01-01 09:00:00"}]`

type fakePresenter struct {
	mu      sync.Mutex
	renders [][]model.Article
	errs    []error
}

func (p *fakePresenter) Render(articles []model.Article) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renders = append(p.renders, articles)
}

func (p *fakePresenter) ShowError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *fakePresenter) last() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.renders) == 0 {
		return nil
	}
	return headlines(p.renders[len(p.renders)-1])
}

type staticSource struct {
	body  string
	err   error
	calls atomic.Int32
}

func (s *staticSource) Fetch(context.Context) (string, error) {
	s.calls.Add(1)
	return s.body, s.err
}

type fakeArchive struct {
	loads [][]model.Article
	err   error
}

func (a *fakeArchive) SaveLoad(_ context.Context, _ string, articles []model.Article, _ time.Time) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.loads = append(a.loads, articles)
	return int64(len(a.loads)), nil
}

func headlines(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Headline
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newController(src Source, p Presenter, opts ...Option) *Controller {
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithDecoder(feed.NewParser(feed.WithLocation(time.UTC), feed.WithLogger(quietLogger()))),
	}, opts...)
	return NewController(src, store.NewArticles(), p, opts...)
}

func TestController_Scenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scenarioFeed))
	}))
	defer srv.Close()

	p := &fakePresenter{}
	c := newController(feed.NewFetcher(srv.URL), p)

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []string{"A", "C"}, p.last(), "B should be dropped")

	c.SortOldestFirst()
	assert.Equal(t, []string{"C", "A"}, p.last())
	assert.Equal(t, []string{"C", "A"}, headlines(c.Articles()))

	c.SortNewestFirst()
	assert.Equal(t, []string{"A", "C"}, p.last())
}

func TestController_Sort(t *testing.T) {
	p := &fakePresenter{}
	c := newController(&staticSource{body: scenarioFeed}, p)
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, store.FeedOrder, c.Order())

	c.Sort(store.OldestFirst)
	assert.Equal(t, []string{"C", "A"}, p.last())
	assert.Equal(t, store.OldestFirst, c.Order())
	c.Sort(store.NewestFirst)
	assert.Equal(t, []string{"A", "C"}, p.last())
	assert.Equal(t, store.NewestFirst, c.Order())

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, store.FeedOrder, c.Order(), "Reload resets to feed order")
}

func TestController_TransportErrorKeepsPreviousList(t *testing.T) {
	p := &fakePresenter{}
	src := &staticSource{body: scenarioFeed}
	c := newController(src, p)
	require.NoError(t, c.Load(context.Background()))

	src.err = &feed.TransportError{URL: "u", Err: errors.New("connection refused")}
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, feed.IsTransport(err))

	require.Len(t, p.errs, 1, "Failure should be surfaced to the presenter")
	assert.True(t, feed.IsTransport(p.errs[0]))
	assert.Equal(t, []string{"A", "C"}, headlines(c.Articles()))
	assert.Len(t, p.renders, 1, "No rerender on failure")
}

func TestController_MalformedFeed(t *testing.T) {
	p := &fakePresenter{}
	c := newController(&staticSource{body: `{"not":"an array"}`}, p)

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, feed.IsMalformed(err))
	require.Len(t, p.errs, 1)
	assert.Empty(t, c.Articles())
	assert.Empty(t, p.renders)
}

func TestController_EmptyFeed(t *testing.T) {
	p := &fakePresenter{}
	c := newController(&staticSource{body: `[]`}, p)

	require.NoError(t, c.Load(context.Background()))
	require.Len(t, p.renders, 1)
	assert.Empty(t, p.renders[0])
	assert.Empty(t, p.errs)
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (s *blockingSource) Fetch(ctx context.Context) (string, error) {
	if s.calls.Add(1) == 1 {
		close(s.started)
	}
	select {
	case <-s.release:
		return scenarioFeed, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestController_ConcurrentLoadsShareOneFetch(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	p := &fakePresenter{}
	c := newController(src, p)

	var wg sync.WaitGroup
	errs := make(chan error, 5)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- c.Load(context.Background())
	}()
	<-src.started

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Load(context.Background())
		}()
	}

	// Give the followers time to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, src.calls.Load(), int32(2))
	assert.Equal(t, []string{"A", "C"}, headlines(c.Articles()))
}

func TestController_SortDuringLoadNeverTears(t *testing.T) {
	p := &fakePresenter{}
	c := newController(&staticSource{body: scenarioFeed}, p)
	require.NoError(t, c.Load(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); _ = c.Load(context.Background()) }()
		go func() { defer wg.Done(); c.SortOldestFirst() }()
		go func() { defer wg.Done(); c.SortNewestFirst() }()
	}
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.renders {
		assert.Len(t, r, 2)
	}
}

func TestController_ArchivesSuccessfulLoads(t *testing.T) {
	archive := &fakeArchive{}
	src := &staticSource{body: scenarioFeed}
	c := newController(src, &fakePresenter{}, WithArchive(archive, "https://example.com/feed.json"))

	require.NoError(t, c.Load(context.Background()))
	require.Len(t, archive.loads, 1)
	assert.Equal(t, []string{"A", "C"}, headlines(archive.loads[0]))

	src.err = errors.New("offline")
	require.Error(t, c.Load(context.Background()))
	assert.Len(t, archive.loads, 1, "Failed loads are not archived")
}

func TestController_ArchiveFailureDoesNotFailLoad(t *testing.T) {
	archive := &fakeArchive{err: errors.New("read-only")}
	c := newController(&staticSource{body: scenarioFeed}, &fakePresenter{}, WithArchive(archive, "u"))

	assert.NoError(t, c.Load(context.Background()))
	assert.Len(t, c.Articles(), 2)
}

func TestController_NilPresenter(t *testing.T) {
	c := newController(&staticSource{body: scenarioFeed}, nil)
	require.NoError(t, c.Load(context.Background()))
	c.SortOldestFirst()
	assert.Equal(t, []string{"C", "A"}, headlines(c.Articles()))
}

func TestController_HandlePush(t *testing.T) {
	var got []model.NavigationRequest
	nav := notify.NavigatorFunc(func(_ context.Context, req model.NavigationRequest) error {
		got = append(got, req)
		return nil
	})
	c := newController(&staticSource{body: "[]"}, &fakePresenter{},
		WithBridge(notify.NewBridge(nav, notify.WithLogger(quietLogger()))))

	req, ok := c.HandlePush(context.Background(), "news", map[string]string{})
	assert.True(t, ok)
	assert.Equal(t, model.NavigationRequest{Headline: "", URL: ""}, req)

	req, ok = c.HandlePush(context.Background(), "news", map[string]string{"headline": "A", "url": "u1"})
	assert.True(t, ok)
	assert.Equal(t, model.NavigationRequest{Headline: "A", URL: "u1"}, req)

	require.Len(t, got, 2)
}

func TestController_HandlePushWithoutBridge(t *testing.T) {
	c := newController(&staticSource{body: "[]"}, &fakePresenter{})

	assert.NotPanics(t, func() {
		req, ok := c.HandlePush(context.Background(), "news", map[string]string{"url": "u1"})
		assert.False(t, ok)
		assert.Equal(t, "u1", req.URL)
	})
}
