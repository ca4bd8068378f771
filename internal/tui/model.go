// Package tui provides the Bubble Tea review screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/srs"
)

// Grader applies a grade to the current card of a session.
type Grader interface {
	Grade(ctx context.Context, s *review.Session, q srs.Quality) (domain.Deck, error)
}

// Model implements the Bubble Tea review UI.
type Model struct {
	ctx     context.Context
	grader  Grader
	session *review.Session

	keys keyMap
	help help.Model

	width  int
	height int

	graded  int
	counts  map[srs.Quality]int
	warning string
	err     error
}

var (
	frontStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	backStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	contextStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#8C8C8C"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6E6E6E")).
			Padding(1, 3)
)

type keyMap struct {
	Reveal key.Binding
	Hard   key.Binding
	Good   key.Binding
	Easy   key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Reveal: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "reveal")),
		Hard:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "hard")),
		Good:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "good")),
		Easy:   key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "easy")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reveal, k.Hard, k.Good, k.Easy, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// NewModel constructs a review model over an already started session.
func NewModel(ctx context.Context, grader Grader, session *review.Session) *Model {
	return &Model{
		ctx:     ctx,
		grader:  grader,
		session: session,
		keys:    defaultKeyMap(),
		help:    help.New(),
		counts:  make(map[srs.Quality]int),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.session.Done() {
		return tea.Quit
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.session.End()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reveal):
			m.session.Reveal()
			return m, nil
		case key.Matches(msg, m.keys.Hard):
			return m, m.grade(srs.Hard)
		case key.Matches(msg, m.keys.Good):
			return m, m.grade(srs.Good)
		case key.Matches(msg, m.keys.Easy):
			return m, m.grade(srs.Easy)
		}
	}
	return m, nil
}

func (m *Model) grade(q srs.Quality) tea.Cmd {
	m.warning = ""
	_, err := m.grader.Grade(m.ctx, m.session, q)
	switch {
	case err == nil:
		m.graded++
		m.counts[q]++
	case errors.Is(err, domain.ErrPersistence):
		// The grade stands in memory; only the write failed.
		m.graded++
		m.counts[q]++
		m.warning = "could not save progress: " + err.Error()
	case errors.Is(err, review.ErrCardNotFound):
		m.warning = "card was removed from the deck, skipped"
	default:
		m.err = err
		return tea.Quit
	}
	if m.session.Done() {
		return tea.Quit
	}
	return nil
}

// Graded returns how many cards were graded.
func (m *Model) Graded() int { return m.graded }

// Err returns the error that stopped the session early, if any.
func (m *Model) Err() error { return m.err }

// Summary describes the finished session in one line.
func (m *Model) Summary() string {
	if m.graded == 0 {
		return "No cards reviewed."
	}
	return fmt.Sprintf("Reviewed %d card(s): %d hard, %d good, %d easy.",
		m.graded, m.counts[srs.Hard], m.counts[srs.Good], m.counts[srs.Easy])
}

// View implements tea.Model.
func (m *Model) View() string {
	card, ok := m.session.Current()
	if !ok {
		return m.Summary() + "\n"
	}

	content := m.renderCard(card)
	footer := m.renderFooter()
	if m.width == 0 || m.height < 3 {
		return content + "\n" + footer + "\n"
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderCard(card domain.Card) string {
	var b strings.Builder
	b.WriteString(frontStyle.Render(card.Front))
	if m.session.Revealed() {
		b.WriteString("\n\n")
		b.WriteString(backStyle.Render(card.Back))
		if card.Context != "" {
			b.WriteString("\n\n")
			b.WriteString(contextStyle.Render(card.Context))
		}
	}
	style := cardStyle
	if m.width > 0 {
		style = style.Width(max(m.width*7/10, 20))
	}
	out := style.Render(b.String())
	if m.warning != "" {
		out += "\n" + warningStyle.Render(m.warning)
	}
	return out
}

func (m *Model) renderFooter() string {
	if m.session.Revealed() {
		m.keys.Reveal.SetHelp("space", "hide")
	} else {
		m.keys.Reveal.SetHelp("space", "reveal")
	}
	progress := footerStyle.Render(fmt.Sprintf("Card %d/%d", m.session.Position(), m.session.Len()))
	return progress + "  " + m.help.View(m.keys)
}
