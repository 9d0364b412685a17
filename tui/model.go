package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robertmeta/news-cli/model"
	"github.com/robertmeta/news-cli/screen"
	"github.com/robertmeta/news-cli/store"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	detailStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

const dateLayout = "2006-01-02 15:04"

type loadDoneMsg struct {
	err error
}

// Model is the bubbletea model for the list screen.
type Model struct {
	ctx        context.Context
	controller *screen.Controller
	presenter  *Presenter

	articles []model.Article
	order    store.SortOrder
	cursor   int
	offset   int
	loading  bool
	err      error
	detail   *model.NavigationRequest
	height   int
}

// New creates the screen model. presenter must be the one the controller
// renders to.
func New(ctx context.Context, controller *screen.Controller, presenter *Presenter) Model {
	return Model{
		ctx:        ctx,
		controller: controller,
		presenter:  presenter,
		loading:    true,
		height:     24,
	}
}

// Init starts the first load and begins listening for updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.presenter.Wait())
}

// load runs the fetch on a command goroutine; the list itself arrives via
// the presenter.
func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadDoneMsg{err: m.controller.Load(m.ctx)}
	}
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RenderMsg:
		m.articles = msg.Articles
		m.order = m.controller.Order()
		m.clampCursor()
		return m, m.presenter.Wait()

	case ErrorMsg:
		m.err = msg.Err
		return m, m.presenter.Wait()

	case NavigateMsg:
		req := msg.Request
		m.detail = &req
		return m, m.presenter.Wait()

	case loadDoneMsg:
		m.loading = false
		if msg.err == nil {
			m.err = nil
		}
		m.order = m.controller.Order()
		return m, nil

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detail != nil {
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc", "enter", "backspace":
			m.detail = nil
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "o":
		m.controller.SortOldestFirst()
	case "n":
		m.controller.SortNewestFirst()
	case "r":
		if !m.loading {
			m.loading = true
			return m, m.load()
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.clampCursor()
	case "down", "j":
		if m.cursor < len(m.articles)-1 {
			m.cursor++
		}
		m.clampCursor()
	case "enter":
		if len(m.articles) > 0 {
			a := m.articles[m.cursor]
			m.detail = &model.NavigationRequest{Headline: a.Headline, URL: a.URL}
		}
	}
	return m, nil
}

func (m *Model) visibleRows() int {
	// Title, blank, status and help lines.
	rows := m.height - 4
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.articles) {
		m.cursor = len(m.articles) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View renders the screen.
func (m Model) View() string {
	if m.detail != nil {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("News (%d) · order: %s", len(m.articles), m.order)))
	b.WriteString("\n\n")

	if len(m.articles) == 0 && !m.loading && m.err == nil {
		b.WriteString("No articles.\n")
	}

	end := m.offset + m.visibleRows()
	if end > len(m.articles) {
		end = len(m.articles)
	}
	for i := m.offset; i < end; i++ {
		a := m.articles[i]
		stamp := a.PublishedAt.Format(dateLayout) + " " + formatAge(a.Age())
		line := fmt.Sprintf("%s  %s", dateStyle.Render(stamp), a.Headline)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	switch {
	case m.loading:
		b.WriteString("Loading…\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("o oldest first · n newest first · r reload · enter open · q quit"))
	return b.String()
}

func (m Model) detailView() string {
	headline := m.detail.Headline
	if headline == "" {
		headline = "(no headline)"
	}
	url := m.detail.URL
	if url == "" {
		url = "(no link)"
	}

	body := titleStyle.Render(headline) + "\n\n" + url
	return detailStyle.Render(body) + "\n" + helpStyle.Render("esc back · q quit")
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "(now)"
	case d < time.Hour:
		return fmt.Sprintf("(%dm)", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("(%dh)", int(d.Hours()))
	default:
		return fmt.Sprintf("(%dd)", int(d.Hours()/24))
	}
}
