// Package tui is the terminal list screen for news-cli.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/robertmeta/news-cli/model"
)

// RenderMsg carries a new snapshot of the article list.
type RenderMsg struct {
	Articles []model.Article
}

// ErrorMsg carries a failed load.
type ErrorMsg struct {
	Err error
}

// NavigateMsg opens the detail view for a push message.
type NavigateMsg struct {
	Request model.NavigationRequest
}

// Presenter forwards list changes, errors and navigation requests into the
// bubbletea event loop. Senders never block. Only the latest list snapshot
// is kept; errors and navigation requests are queued and delivered in order.
type Presenter struct {
	mu     sync.Mutex
	render *RenderMsg
	events []tea.Msg
	ready  chan struct{}
}

// NewPresenter creates a Presenter.
func NewPresenter() *Presenter {
	return &Presenter{ready: make(chan struct{}, 1)}
}

// Render implements screen.Presenter.
func (p *Presenter) Render(articles []model.Article) {
	p.mu.Lock()
	p.render = &RenderMsg{Articles: articles}
	p.mu.Unlock()
	p.signal()
}

// ShowError implements screen.Presenter.
func (p *Presenter) ShowError(err error) {
	p.enqueue(ErrorMsg{Err: err})
}

// Navigate implements notify.Navigator.
func (p *Presenter) Navigate(_ context.Context, req model.NavigationRequest) error {
	p.enqueue(NavigateMsg{Request: req})
	return nil
}

// Wait returns a command that delivers the next pending update.
func (p *Presenter) Wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if msg, ok := p.next(); ok {
				return msg
			}
			<-p.ready
		}
	}
}

func (p *Presenter) enqueue(msg tea.Msg) {
	p.mu.Lock()
	p.events = append(p.events, msg)
	p.mu.Unlock()
	p.signal()
}

func (p *Presenter) signal() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}

// next pops a pending update without blocking.
func (p *Presenter) next() (tea.Msg, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.events) > 0 {
		msg := p.events[0]
		p.events = p.events[1:]
		return msg, true
	}
	if p.render != nil {
		msg := *p.render
		p.render = nil
		return msg, true
	}
	return nil, false
}
