package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/robertmeta/news-cli/config"
	"github.com/robertmeta/news-cli/feed"
	"github.com/robertmeta/news-cli/logger"
	"github.com/robertmeta/news-cli/model"
	"github.com/robertmeta/news-cli/notify"
	"github.com/robertmeta/news-cli/opml"
	"github.com/robertmeta/news-cli/screen"
	"github.com/robertmeta/news-cli/store"
	"github.com/robertmeta/news-cli/tui"
)

const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitUsageError     = 2
	ExitDataError      = 3
	ExitTransportError = 4
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func newApp() *cli.App {
	defaults := config.NewConfig()
	dbDefault := defaults.DBPath
	if dbDefault == "" {
		dbDefault = getDefaultDBPath()
	}

	return &cli.App{
		Name:    "news-cli",
		Usage:   "Read the news feed, sort it and follow push notifications",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "feed-url",
				Value:   defaults.FeedURL,
				Usage:   "News feed URL",
				EnvVars: []string{config.EnvFeedURL},
			},
			&cli.StringFlag{
				Name:    "format",
				Value:   defaults.FeedFormat,
				Usage:   "Feed format: json or rss",
				EnvVars: []string{config.EnvFeedFormat},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   defaults.FetchTimeout,
				Usage:   "Feed fetch timeout",
				EnvVars: []string{config.EnvFetchTimeout},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Value:   defaults.RedisURL,
				Usage:   "Push message server URL, empty to disable",
				EnvVars: []string{config.EnvRedisURL},
			},
			&cli.StringFlag{
				Name:    "topic",
				Value:   defaults.Topic,
				Usage:   "Push topic",
				EnvVars: []string{config.EnvTopic},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   dbDefault,
				Usage:   "Archive database path, empty to disable",
				EnvVars: []string{config.EnvDBPath},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   defaults.LogLevel,
				Usage:   "Log level: debug, info, warn, error",
				EnvVars: []string{config.EnvLogLevel},
			},
			&cli.StringFlag{
				Name:    "tz",
				Value:   defaults.Timezone,
				Usage:   "Timezone of feed timestamps",
				EnvVars: []string{config.EnvTimezone},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), ExitUsageError)
			}
			logger.Init(os.Stderr, cfg.LogLevel)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Fetch the feed and print the articles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "sort",
						Aliases: []string{"s"},
						Value:   "feed",
						Usage:   "Order: feed, oldest or newest",
					},
					&cli.StringFlag{
						Name:  "from-opml",
						Usage: "Read articles from an exported OPML file instead of fetching",
					},
				},
				Action: listArticles,
			},
			{
				Name:  "ui",
				Usage: "Open the interactive news list",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Write logs to this file while the screen is open",
					},
				},
				Action: runUI,
			},
			{
				Name:   "listen",
				Usage:  "Subscribe to the push topic and print navigation requests",
				Action: listen,
			},
			{
				Name:  "push",
				Usage: "Publish a push message on the topic",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "headline", Usage: "Article headline"},
					&cli.StringFlag{Name: "url", Usage: "Article URL"},
				},
				Action: push,
			},
			{
				Name:  "history",
				Usage: "List received push notifications",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "id",
						Usage: "Show a single notification by ID",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of notifications to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Usage:   "Offset for pagination",
					},
					&cli.StringFlag{
						Name:    "since",
						Aliases: []string{"s"},
						Usage:   "Show notifications since duration (e.g., 12h, 7d, 2w)",
					},
				},
				Action: history,
			},
			{
				Name:  "export",
				Usage: "Export the articles to OPML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
					&cli.StringFlag{
						Name:    "sort",
						Aliases: []string{"s"},
						Value:   "feed",
						Usage:   "Order: feed, oldest or newest",
					},
					&cli.BoolFlag{
						Name:  "archived",
						Usage: "Export the last archived load instead of fetching",
					},
				},
				Action: exportOPML,
			},
		},
	}
}

func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "news-cli.db"
	}
	return filepath.Join(home, ".config", "news-cli", "news-cli.db")
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		FeedURL:      c.String("feed-url"),
		FeedFormat:   c.String("format"),
		FetchTimeout: c.Duration("timeout"),
		RedisURL:     c.String("redis-url"),
		Topic:        c.String("topic"),
		DBPath:       c.String("db"),
		LogLevel:     c.String("log-level"),
		Timezone:     c.String("tz"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getArchive(cfg *config.Config) (*store.Archive, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	a, err := store.NewArchive(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return a, nil
}

func parseSortOrder(s string) (store.SortOrder, error) {
	switch s {
	case "", "feed":
		return store.FeedOrder, nil
	case "oldest", "asc":
		return store.OldestFirst, nil
	case "newest", "desc":
		return store.NewestFirst, nil
	default:
		return store.FeedOrder, fmt.Errorf("invalid sort order: %s (expected feed, oldest or newest)", s)
	}
}

// newController builds the controller shared by every command that loads the
// feed. A nil archive disables load history.
func newController(cfg *config.Config, archive *store.Archive, presenter screen.Presenter, opts ...screen.Option) (*screen.Controller, error) {
	format, err := feed.ParseFormat(cfg.FeedFormat)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewFetcher(cfg.FeedURL, feed.WithTimeout(cfg.FetchTimeout))
	parser := feed.NewParser(feed.WithFormat(format), feed.WithLocation(loc))

	opts = append([]screen.Option{screen.WithDecoder(parser)}, opts...)
	if archive != nil {
		opts = append(opts, screen.WithArchive(archive, fetcher.URL()))
	}
	return screen.NewController(fetcher, store.NewArticles(), presenter, opts...), nil
}

// readOPMLFile loads the articles of a file written by export.
func readOPMLFile(path string) ([]model.Article, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OPML file: %w", err)
	}
	defer file.Close()

	return opml.Parse(file)
}

func loadExitCode(err error) int {
	switch {
	case feed.IsTransport(err):
		return ExitTransportError
	case feed.IsMalformed(err):
		return ExitDataError
	default:
		return ExitGeneralError
	}
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func listArticles(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	order, err := parseSortOrder(c.String("sort"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	if path := c.String("from-opml"); path != "" {
		loaded, err := readOPMLFile(path)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		articles := store.NewArticles()
		articles.Replace(loaded)
		articles.Sort(order)

		snapshot := articles.Snapshot()
		return outputJSON(map[string]interface{}{
			"count":    len(snapshot),
			"order":    articles.Order().String(),
			"articles": snapshot,
		})
	}

	archive, err := getArchive(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	if archive != nil {
		defer archive.Close()
	}

	controller, err := newController(cfg, archive, nil)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	if err := controller.Load(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load feed: %v", err), loadExitCode(err))
	}
	controller.Sort(order)

	articles := controller.Articles()
	return outputJSON(map[string]interface{}{
		"count":    len(articles),
		"order":    order.String(),
		"articles": articles,
	})
}

func runUI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	// The screen owns the terminal; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if path := c.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to open log file: %v", err), ExitDataError)
		}
		defer f.Close()
		logOut = f
	}
	log := logger.Init(logOut, cfg.LogLevel)

	ctx, cancel := signalContext()
	defer cancel()

	presenter := tui.NewPresenter()

	archive, err := getArchive(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	bridgeOpts := []notify.BridgeOption{notify.WithLogger(log)}
	if archive != nil {
		defer archive.Close()
		bridgeOpts = append(bridgeOpts, notify.WithRecorder(archive))
	}
	bridge := notify.NewBridge(presenter, bridgeOpts...)

	controller, err := newController(cfg, archive, presenter, screen.WithBridge(bridge), screen.WithLogger(log))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	if cfg.RedisURL != "" {
		client, err := notify.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return cli.Exit(err.Error(), ExitUsageError)
		}
		defer client.Close()

		sub := notify.NewSubscriber(client, cfg.Topic, bridge, notify.WithSubscriberLogger(log))
		go func() {
			// The outcome is logged by the subscriber; the screen keeps working without pushes.
			_ = sub.Run(ctx)
		}()
	}

	program := tea.NewProgram(tui.New(ctx, controller, presenter), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return cli.Exit(fmt.Sprintf("Screen failed: %v", err), ExitGeneralError)
	}
	return nil
}

func listen(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	if cfg.RedisURL == "" {
		return cli.Exit("listen requires --redis-url", ExitUsageError)
	}

	ctx, cancel := signalContext()
	defer cancel()

	archive, err := getArchive(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	var bridgeOpts []notify.BridgeOption
	if archive != nil {
		defer archive.Close()
		bridgeOpts = append(bridgeOpts, notify.WithRecorder(archive))
	}

	client, err := notify.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	defer client.Close()

	bridge := notify.NewBridge(notify.NewJSONNavigator(os.Stdout), bridgeOpts...)
	sub := notify.NewSubscriber(client, cfg.Topic, bridge)
	if err := sub.Run(ctx); err != nil {
		return cli.Exit(err.Error(), ExitTransportError)
	}
	return nil
}

func push(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	if cfg.RedisURL == "" {
		return cli.Exit("push requires --redis-url", ExitUsageError)
	}

	client, err := notify.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	defer client.Close()

	// Only flags actually given end up in the payload.
	data := map[string]string{}
	if c.IsSet("headline") {
		data[notify.KeyHeadline] = c.String("headline")
	}
	if c.IsSet("url") {
		data[notify.KeyURL] = c.String("url")
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	receivers, err := notify.NewPublisher(client).Publish(ctx, cfg.Topic, data)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to publish: %v", err), ExitTransportError)
	}

	return outputJSON(map[string]interface{}{
		"success":   true,
		"topic":     cfg.Topic,
		"receivers": receivers,
		"data":      data,
	})
}

func history(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	opts, err := store.BuildQueryOptions(c.Int("limit"), c.Int("offset"), c.String("since"), cfg.Topic)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	archive, err := getArchive(cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	if archive == nil {
		return cli.Exit("history requires --db", ExitUsageError)
	}
	defer archive.Close()

	if id := c.String("id"); id != "" {
		n, err := archive.GetNotification(c.Context, id)
		if errors.Is(err, store.ErrNotFound) {
			return cli.Exit(fmt.Sprintf("Notification %s not found", id), ExitDataError)
		}
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to get notification: %v", err), ExitDataError)
		}
		return outputJSON(n)
	}

	notifications, err := archive.GetNotifications(c.Context, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get notifications: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"count":         len(notifications),
		"limit":         opts.Limit,
		"offset":        opts.Offset,
		"notifications": notifications,
	})
}

func exportOPML(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	order, err := parseSortOrder(c.String("sort"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	articles := store.NewArticles()
	if c.Bool("archived") {
		archive, err := getArchive(cfg)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		if archive == nil {
			return cli.Exit("export --archived requires --db", ExitUsageError)
		}
		defer archive.Close()

		load, err := archive.LatestLoad(c.Context)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to read archive: %v", err), ExitDataError)
		}
		articles.Replace(load.Articles)
	} else {
		controller, err := newController(cfg, nil, nil)
		if err != nil {
			return cli.Exit(err.Error(), ExitUsageError)
		}

		if err := controller.Load(c.Context); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to load feed: %v", err), loadExitCode(err))
		}
		articles.Replace(controller.Articles())
	}
	articles.Sort(order)

	outputPath := c.String("output")
	var writer io.Writer

	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		writer = file
	}

	if err := opml.Generate(writer, "news-cli articles", articles.Snapshot(), time.Now()); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	if outputPath != "" {
		return outputJSON(map[string]interface{}{
			"success": true,
			"file":    outputPath,
			"count":   articles.Len(),
		})
	}

	return nil
}
