package feed

import (
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/robertmeta/news-cli/model"
)

var errNoDate = errors.New("item has no published or updated date")

// ParseSyndication decodes an RSS, Atom or JSON Feed document with the
// package defaults.
func ParseSyndication(body string) ([]model.Article, error) {
	return NewParser(WithFormat(FormatSyndication)).Parse(body)
}

// parseSyndication converts a syndication document into articles. Items
// without a date are dropped rather than stamped with the current time.
func (p *Parser) parseSyndication(body string) ([]model.Article, error) {
	if body == "" {
		return nil, &MalformedFeedError{Reason: "feed content is empty"}
	}

	parsedFeed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, &MalformedFeedError{Reason: "failed to parse syndication feed", Err: err}
	}

	articles := make([]model.Article, 0, len(parsedFeed.Items))
	for i, item := range parsedFeed.Items {
		article, err := p.convertItem(item)
		if err != nil {
			p.logger.Warn("skipping feed item",
				"index", i,
				"error", err,
			)
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// convertItem converts a gofeed.Item to a model.Article.
func (p *Parser) convertItem(item *gofeed.Item) (model.Article, error) {
	if item.Title == "" {
		return model.Article{}, fmt.Errorf("%w: title", errMissingField)
	}
	if item.Link == "" {
		return model.Article{}, fmt.Errorf("%w: link", errMissingField)
	}

	article := model.Article{
		Headline: item.Title,
		URL:      item.Link,
	}

	switch {
	case item.PublishedParsed != nil:
		article.PublishedAt = item.PublishedParsed.In(p.location)
	case item.UpdatedParsed != nil:
		article.PublishedAt = item.UpdatedParsed.In(p.location)
	default:
		return model.Article{}, errNoDate
	}

	return article, nil
}
