package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robertmeta/news-cli/model"
)

// Format selects how a feed body is decoded.
type Format string

const (
	// FormatJSON is the native news feed: a JSON array of article records.
	FormatJSON Format = "json"
	// FormatSyndication covers RSS, Atom and JSON Feed documents.
	FormatSyndication Format = "rss"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatSyndication, "atom":
		return FormatSyndication, nil
	default:
		return "", fmt.Errorf("unknown feed format: %s (expected json or rss)", s)
	}
}

var errMissingField = errors.New("missing field")

// Parser turns a feed body into articles.
type Parser struct {
	format   Format
	location *time.Location
	logger   *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithFormat sets the body format. The default is FormatJSON.
func WithFormat(format Format) ParserOption {
	return func(p *Parser) {
		p.format = format
	}
}

// WithLocation sets the zone used for zone-less timestamps.
func WithLocation(loc *time.Location) ParserOption {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithLogger sets the logger used for dropped records.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a new Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		format:   FormatJSON,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes body with the package defaults (JSON format, local time).
func Parse(body string) ([]model.Article, error) {
	return NewParser().Parse(body)
}

// Parse decodes body according to the parser's format.
func (p *Parser) Parse(body string) ([]model.Article, error) {
	if p.format == FormatSyndication {
		return p.parseSyndication(body)
	}
	return p.parseJSON(body)
}

// parseJSON decodes a JSON array of article records. A body that is not an
// array of objects, or a field holding an object or array, fails the whole
// load with a *MalformedFeedError. Scalar fields are read as text. Records
// with a missing field or a bad publishedAt are logged and skipped.
func (p *Parser) parseJSON(body string) ([]model.Article, error) {
	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 {
		return nil, &MalformedFeedError{Reason: "feed content is empty"}
	}
	if trimmed[0] != '[' {
		return nil, &MalformedFeedError{Reason: "top-level value is not an array"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, &MalformedFeedError{Reason: "invalid JSON", Err: err}
	}

	records := make([]model.RawArticleRecord, len(elements))
	for i, raw := range elements {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return nil, &MalformedFeedError{Reason: fmt.Sprintf("element %d is not an object", i)}
		}
		if err := json.Unmarshal(raw, &records[i]); err != nil {
			return nil, &MalformedFeedError{Reason: fmt.Sprintf("element %d has unexpected field types", i), Err: err}
		}
	}

	articles := make([]model.Article, 0, len(records))
	for i, rec := range records {
		article, err := p.convertRecord(rec)
		if err != nil {
			p.logger.Warn("skipping feed record",
				"index", i,
				"error", err,
			)
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// convertRecord builds an Article from one record. Missing fields are not
// defaulted.
func (p *Parser) convertRecord(rec model.RawArticleRecord) (model.Article, error) {
	switch {
	case rec.Headline == nil:
		return model.Article{}, fmt.Errorf("%w: headline", errMissingField)
	case rec.URL == nil:
		return model.Article{}, fmt.Errorf("%w: url", errMissingField)
	case rec.PublishedAt == nil:
		return model.Article{}, fmt.Errorf("%w: publishedAt", errMissingField)
	}

	raw := string(*rec.PublishedAt)
	published, err := time.ParseInLocation(model.PublishedLayout, raw, p.location)
	if err != nil {
		return model.Article{}, fmt.Errorf("failed to parse publishedAt %q: %w", raw, err)
	}

	return model.Article{
		Headline:    string(*rec.Headline),
		URL:         string(*rec.URL),
		PublishedAt: published,
	}, nil
}
