// Package store holds the article list shown on screen and the SQLite
// archive of past loads and notifications.
package store

import (
	"slices"
	"sync"

	"github.com/robertmeta/news-cli/model"
)

// SortOrder records the last ordering applied to the list.
type SortOrder int

const (
	// FeedOrder is the order the articles arrived in.
	FeedOrder SortOrder = iota
	// OldestFirst orders by publish time ascending.
	OldestFirst
	// NewestFirst orders by publish time descending.
	NewestFirst
)

func (o SortOrder) String() string {
	switch o {
	case OldestFirst:
		return "oldest"
	case NewestFirst:
		return "newest"
	default:
		return "feed"
	}
}

// Listener receives a copy of the list after every change. Listeners run
// with the list locked and must not call back into it.
type Listener func(articles []model.Article)

// Articles is the in-memory, ordered article list owned by one screen.
// All mutations are serialized; listeners are handed snapshots, never the
// backing slice.
type Articles struct {
	mu        sync.Mutex
	items     []model.Article
	order     SortOrder
	listeners []Listener
}

// NewArticles creates an empty list.
func NewArticles() *Articles {
	return &Articles{}
}

// OnChange registers a listener called after each mutation.
func (s *Articles) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Replace swaps in a freshly loaded collection in feed order.
func (s *Articles) Replace(articles []model.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = slices.Clone(articles)
	s.order = FeedOrder
	s.notifyLocked()
}

// SortAscending orders the list oldest first. Ties keep their relative order.
func (s *Articles) SortAscending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slices.SortStableFunc(s.items, func(a, b model.Article) int {
		return a.PublishedAt.Compare(b.PublishedAt)
	})
	s.order = OldestFirst
	s.notifyLocked()
}

// SortDescending orders the list newest first. Ties keep their relative order.
func (s *Articles) SortDescending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slices.SortStableFunc(s.items, func(a, b model.Article) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	s.order = NewestFirst
	s.notifyLocked()
}

// Sort applies order. FeedOrder is a no-op.
func (s *Articles) Sort(order SortOrder) {
	switch order {
	case OldestFirst:
		s.SortAscending()
	case NewestFirst:
		s.SortDescending()
	}
}

// Snapshot returns a copy of the current list.
func (s *Articles) Snapshot() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of articles.
func (s *Articles) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Order returns the last ordering applied.
func (s *Articles) Order() SortOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

func (s *Articles) snapshotLocked() []model.Article {
	out := make([]model.Article, len(s.items))
	copy(out, s.items)
	return out
}

// notifyLocked runs listeners while the lock is held so that they observe
// mutations in the order they were applied.
func (s *Articles) notifyLocked() {
	for _, l := range s.listeners {
		l(s.snapshotLocked())
	}
}
