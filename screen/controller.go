// Package screen wires the news list screen: it loads the feed into the
// article list, applies the sort toggles and routes push messages to the
// bridge. One Controller exists per screen instance.
package screen

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/robertmeta/news-cli/feed"
	"github.com/robertmeta/news-cli/model"
	"github.com/robertmeta/news-cli/notify"
	"github.com/robertmeta/news-cli/store"
)

// Source returns the raw feed body.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// Decoder turns a feed body into articles.
type Decoder interface {
	Parse(body string) ([]model.Article, error)
}

// Presenter shows the article list. Render receives a snapshot after every
// change to the list; ShowError receives load failures.
type Presenter interface {
	Render(articles []model.Article)
	ShowError(err error)
}

// Archiver keeps a history of successful loads.
type Archiver interface {
	SaveLoad(ctx context.Context, sourceURL string, articles []model.Article, fetchedAt time.Time) (int64, error)
}

// Controller orchestrates the screen.
type Controller struct {
	source    Source
	decoder   Decoder
	articles  *store.Articles
	presenter Presenter
	bridge    *notify.Bridge
	archive   Archiver
	sourceURL string
	logger    *slog.Logger
	loads     singleflight.Group
}

// Option configures a Controller.
type Option func(*Controller)

// WithDecoder replaces the default JSON feed parser.
func WithDecoder(d Decoder) Option {
	return func(c *Controller) {
		c.decoder = d
	}
}

// WithBridge routes push messages through b.
func WithBridge(b *notify.Bridge) Option {
	return func(c *Controller) {
		c.bridge = b
	}
}

// WithArchive records every successful load from sourceURL.
func WithArchive(a Archiver, sourceURL string) Option {
	return func(c *Controller) {
		c.archive = a
		c.sourceURL = sourceURL
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a Controller. The presenter is subscribed to the
// article list and rerenders after each load or sort.
func NewController(source Source, articles *store.Articles, presenter Presenter, opts ...Option) *Controller {
	c := &Controller{
		source:    source,
		decoder:   feed.NewParser(),
		articles:  articles,
		presenter: presenter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.presenter == nil {
		c.presenter = nopPresenter{}
	}
	c.articles.OnChange(c.presenter.Render)
	return c
}

// Load fetches and parses the feed and replaces the article list. Calls that
// overlap an in-flight load wait for it and share its result. On failure the
// previous list is kept and the presenter is shown the error.
func (c *Controller) Load(ctx context.Context) error {
	_, err, shared := c.loads.Do("load", func() (interface{}, error) {
		return nil, c.load(ctx)
	})
	if shared {
		c.logger.Debug("joined in-flight feed load")
	}
	return err
}

func (c *Controller) load(ctx context.Context) error {
	start := time.Now()

	body, err := c.source.Fetch(ctx)
	if err != nil {
		c.logger.Error("failed to fetch feed", "error", err)
		c.presenter.ShowError(err)
		return err
	}

	articles, err := c.decoder.Parse(body)
	if err != nil {
		c.logger.Error("failed to parse feed", "error", err)
		c.presenter.ShowError(err)
		return err
	}

	c.articles.Replace(articles)
	c.logger.Info("feed loaded",
		"articles", len(articles),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if c.archive != nil {
		if _, err := c.archive.SaveLoad(ctx, c.sourceURL, articles, time.Now()); err != nil {
			c.logger.Warn("failed to archive feed load", "error", err)
		}
	}

	return nil
}

// SortOldestFirst handles the oldest-first control.
func (c *Controller) SortOldestFirst() {
	c.articles.SortAscending()
}

// SortNewestFirst handles the newest-first control.
func (c *Controller) SortNewestFirst() {
	c.articles.SortDescending()
}

// Sort applies order; FeedOrder leaves the list unchanged.
func (c *Controller) Sort(order store.SortOrder) {
	c.articles.Sort(order)
}

// Order returns the order the list is currently in.
func (c *Controller) Order() store.SortOrder {
	return c.articles.Order()
}

// Articles returns the list as currently shown.
func (c *Controller) Articles() []model.Article {
	return c.articles.Snapshot()
}

// HandlePush handles a push message payload received on topic.
func (c *Controller) HandlePush(ctx context.Context, topic string, data map[string]string) (model.NavigationRequest, bool) {
	if c.bridge == nil {
		req := notify.NavigationFromPayload(data)
		c.logger.Error("error handling push payload", "topic", topic, "error", "no bridge configured")
		return req, false
	}
	return c.bridge.HandleMessage(ctx, notify.Message{
		Topic:      topic,
		Data:       data,
		ReceivedAt: time.Now(),
	})
}

type nopPresenter struct{}

func (nopPresenter) Render([]model.Article) {}
func (nopPresenter) ShowError(error)        {}
