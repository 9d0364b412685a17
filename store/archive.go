package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robertmeta/news-cli/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Archive records loaded article lists and delivered notifications in SQLite.
// It is history only; the screen never falls back to it when a load fails.
type Archive struct {
	db *sql.DB
}

// QueryOptions specifies how to query notifications.
type QueryOptions struct {
	Limit     int
	Offset    int
	Topic     string
	SinceTime *int64 // Unix timestamp
}

// Load is one archived feed load.
type Load struct {
	ID        int64           `json:"id"`
	SourceURL string          `json:"source_url"`
	FetchedAt time.Time       `json:"fetched_at"`
	Articles  []model.Article `json:"articles"`
}

// NewArchive opens the archive at dbPath.
// Use ":memory:" for an in-memory database (useful for testing).
func NewArchive(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	a := &Archive{db: db}

	if err := a.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createSchema() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS loads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		load_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		headline TEXT NOT NULL,
		url TEXT NOT NULL,
		published INTEGER NOT NULL,
		FOREIGN KEY (load_id) REFERENCES loads(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		headline TEXT NOT NULL,
		url TEXT NOT NULL,
		received_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_load_id ON articles(load_id, position);
	CREATE INDEX IF NOT EXISTS idx_notifications_received_at ON notifications(received_at DESC);
	`

	_, err := a.db.Exec(schema)
	return err
}

// SaveLoad records one successful feed load in feed order.
func (a *Archive) SaveLoad(ctx context.Context, sourceURL string, articles []model.Article, fetchedAt time.Time) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO loads (source_url, fetched_at) VALUES (?, ?)",
		sourceURL, fetchedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert load: %w", err)
	}

	loadID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	for i, article := range articles {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO articles (load_id, position, headline, url, published) VALUES (?, ?, ?, ?, ?)",
			loadID, i, article.Headline, article.URL, article.PublishedAt.Unix(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert article: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit load: %w", err)
	}

	return loadID, nil
}

// LatestLoad returns the most recent archived load.
func (a *Archive) LatestLoad(ctx context.Context) (*Load, error) {
	load := &Load{}
	var fetchedUnix int64

	err := a.db.QueryRowContext(ctx,
		"SELECT id, source_url, fetched_at FROM loads ORDER BY id DESC LIMIT 1",
	).Scan(&load.ID, &load.SourceURL, &fetchedUnix)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("load %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get load: %w", err)
	}
	load.FetchedAt = unixToTime(fetchedUnix)

	rows, err := a.db.QueryContext(ctx,
		"SELECT headline, url, published FROM articles WHERE load_id = ? ORDER BY position",
		load.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	load.Articles = []model.Article{}
	for rows.Next() {
		var article model.Article
		var publishedUnix int64
		if err := rows.Scan(&article.Headline, &article.URL, &publishedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		article.PublishedAt = unixToTime(publishedUnix)
		load.Articles = append(load.Articles, article)
	}

	return load, rows.Err()
}

// SaveNotification records a delivered push message.
func (a *Archive) SaveNotification(ctx context.Context, n *model.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	_, err := a.db.ExecContext(ctx,
		"INSERT INTO notifications (id, topic, headline, url, received_at) VALUES (?, ?, ?, ?, ?)",
		n.ID, n.Topic, n.Headline, n.URL, n.ReceivedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetNotification retrieves a notification by ID.
func (a *Archive) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	n := &model.Notification{}
	var receivedUnix int64

	err := a.db.QueryRowContext(ctx,
		"SELECT id, topic, headline, url, received_at FROM notifications WHERE id = ?",
		id,
	).Scan(&n.ID, &n.Topic, &n.Headline, &n.URL, &receivedUnix)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	n.ReceivedAt = unixToTime(receivedUnix)
	return n, nil
}

// GetNotifications retrieves notifications newest first with optional
// filtering and pagination.
func (a *Archive) GetNotifications(ctx context.Context, opts QueryOptions) ([]*model.Notification, error) {
	query := "SELECT id, topic, headline, url, received_at FROM notifications WHERE 1=1"
	args := []interface{}{}

	if opts.Topic != "" {
		query += " AND topic = ?"
		args = append(args, opts.Topic)
	}

	if opts.SinceTime != nil {
		query += " AND received_at >= ?"
		args = append(args, *opts.SinceTime)
	}

	query += " ORDER BY received_at DESC, rowid DESC"

	// SQLite requires LIMIT when OFFSET is used.
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*model.Notification{}
	for rows.Next() {
		n := &model.Notification{}
		var receivedUnix int64

		if err := rows.Scan(&n.ID, &n.Topic, &n.Headline, &n.URL, &receivedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		n.ReceivedAt = unixToTime(receivedUnix)
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// Helper to convert Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}
