// Package opml exports article lists as OPML 2.0 link outlines and reads
// them back.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/robertmeta/news-cli/model"
)

// dateLayout is the RFC 822 form OPML uses for dates.
const dateLayout = time.RFC1123Z

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is one article (type "link") or a grouping node.
type Outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	URL      string    `xml:"url,attr,omitempty"`
	Created  string    `xml:"created,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML document and returns its link outlines as articles,
// in document order. Outlines without a readable created date are skipped.
func Parse(r io.Reader) ([]model.Article, error) {
	var doc OPML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	return extractArticles(doc.Body.Outlines), nil
}

// extractArticles walks outlines depth first.
func extractArticles(outlines []Outline) []model.Article {
	articles := []model.Article{}
	for _, outline := range outlines {
		if outline.Type == "link" && outline.URL != "" {
			if created, err := time.Parse(dateLayout, outline.Created); err == nil {
				articles = append(articles, model.Article{
					Headline:    outline.Text,
					URL:         outline.URL,
					PublishedAt: created,
				})
			}
		}

		if len(outline.Outlines) > 0 {
			articles = append(articles, extractArticles(outline.Outlines)...)
		}
	}
	return articles
}

// Generate writes articles, in the given order, as an OPML document.
func Generate(w io.Writer, title string, articles []model.Article, now time.Time) error {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: now.Format(dateLayout),
		},
		Body: Body{
			Outlines: make([]Outline, 0, len(articles)),
		},
	}

	for _, a := range articles {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:    a.Headline,
			Type:    "link",
			URL:     a.URL,
			Created: a.PublishedAt.Format(dateLayout),
		})
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}
