// Package tui is a terminal browser for the review queue.
package tui

import (
	"fmt"
	"strings"

	"curator/internal/artifact"
	"curator/internal/review"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Queue is the part of the review queue the browser drives.
type Queue interface {
	List() ([]review.Item, error)
	Approve(slug string) (review.Result, error)
	Reject(slug string) (review.Result, error)
	Clean(slug string) (review.Result, error)
	PublishApproved() (*review.PublishReport, error)
}

type itemsLoadedMsg struct {
	items []review.Item
	err   error
}

type actionDoneMsg struct {
	status string
	err    error
}

// model holds the queue listing and the selection
type model struct {
	queue       Queue
	items       []review.Item
	selectedIdx int
	status      string // Result of the last action
	err         error
	width       int
	height      int
	quitting    bool
}

func newModel(q Queue) model {
	return model{queue: q, width: 100, height: 30}
}

// Init loads the queue.
func (m model) Init() tea.Cmd {
	return m.load
}

func (m model) load() tea.Msg {
	items, err := m.queue.List()
	return itemsLoadedMsg{items: items, err: err}
}

// act runs one transition on the selected slug and reloads afterwards
func (m model) act(name string, fn func(string) (review.Result, error)) tea.Cmd {
	if len(m.items) == 0 {
		return nil
	}
	slug := m.items[m.selectedIdx].Doc.Slug
	return func() tea.Msg {
		res, err := fn(slug)
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("%s %s: %w", name, slug, err)}
		}
		status := fmt.Sprintf("%s %s: %s", name, slug, res.Outcome)
		if res.Message != "" {
			status += " (" + res.Message + ")"
		}
		return actionDoneMsg{status: status}
	}
}

func (m model) publishAll() tea.Msg {
	report, err := m.queue.PublishApproved()
	if err != nil {
		return actionDoneMsg{err: err}
	}
	return actionDoneMsg{status: fmt.Sprintf("published %d, skipped %d", len(report.Published), len(report.Skipped))}
}

// Update handles messages and updates the model accordingly.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case itemsLoadedMsg:
		m.items = msg.items
		if msg.err != nil {
			m.err = msg.err
		}
		if m.selectedIdx >= len(m.items) {
			m.selectedIdx = max(len(m.items)-1, 0)
		}

	case actionDoneMsg:
		m.status = msg.status
		m.err = msg.err
		return m, m.load

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < len(m.items)-1 {
				m.selectedIdx++
			}
		case "a":
			return m, m.act("approve", m.queue.Approve)
		case "x":
			return m, m.act("reject", m.queue.Reject)
		case "c":
			return m, m.act("clean", m.queue.Clean)
		case "P":
			return m, m.publishAll
		case "r":
			return m, m.load
		}
	}

	return m, nil
}

var (
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
	paneStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
)

// View renders the TUI.
func (m model) View() string {
	if m.quitting {
		return "Quitting...\n"
	}

	paneWidth := max(m.width/2-5, 20)

	var list strings.Builder
	list.WriteString(titleStyle.Render(fmt.Sprintf("Review queue (%d)", len(m.items))) + "\n\n")
	if len(m.items) == 0 {
		list.WriteString(mutedStyle.Render("Nothing to review."))
	}
	for i, it := range m.items {
		cursor := "  "
		if i == m.selectedIdx {
			cursor = cursorStyle.Render("> ")
		}
		mark := okStyle.Render("ok ")
		if !it.Verdict.IsValid {
			mark = errStyle.Render("err")
		}
		fmt.Fprintf(&list, "%s%s %-8s %s\n", cursor, mark, it.Doc.Artifact.Status, it.Doc.Slug)
	}

	leftPane := paneStyle.Width(paneWidth).Render(list.String())
	rightPane := paneStyle.Width(paneWidth).Render(m.detail(paneWidth))
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	footer := "\n"
	if m.err != nil {
		footer += errStyle.Render("error: "+m.err.Error()) + "\n"
	} else if m.status != "" {
		footer += m.status + "\n"
	}
	footer += mutedStyle.Render("[↑/k ↓/j] Move | [a] Approve | [x] Reject | [c] Clean | [P] Publish approved | [r] Reload | [q] Quit")

	return docStyle.Render(mainContent + footer)
}

func (m model) detail(width int) string {
	if len(m.items) == 0 {
		return mutedStyle.Render("No selection.")
	}
	it := m.items[m.selectedIdx]
	a := it.Doc.Artifact

	var b strings.Builder
	if it.Doc.ParseErr != nil {
		b.WriteString(errStyle.Render(it.Doc.ParseErr.Error()) + "\n")
		return b.String()
	}
	b.WriteString(titleStyle.Render(a.Title) + "\n")
	fmt.Fprintf(&b, "%s · %s · %s · %d words\n", a.Date, a.Kind, a.Category, artifact.WordCount(a.Body))
	if a.SourceName != "" {
		b.WriteString(mutedStyle.Render("from "+a.SourceName) + "\n")
	}
	b.WriteString("\n")

	for _, e := range it.Verdict.Errors {
		b.WriteString(errStyle.Render("✗ "+e) + "\n")
	}
	for _, w := range it.Verdict.Warnings {
		b.WriteString(mutedStyle.Render("! "+w) + "\n")
	}
	if len(it.Verdict.Errors)+len(it.Verdict.Warnings) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(excerpt(a.Body, max(m.height-16, 5), width))
	return b.String()
}

// excerpt returns the first lines of body, each cut to width
func excerpt(body string, lines, width int) string {
	out := strings.Split(strings.TrimSpace(body), "\n")
	if len(out) > lines {
		out = append(out[:lines], "…")
	}
	for i, l := range out {
		if r := []rune(l); len(r) > width {
			out[i] = string(r[:width-1]) + "…"
		}
	}
	return strings.Join(out, "\n")
}

// Run starts the queue browser and blocks until the user quits.
func Run(q Queue) error {
	p := tea.NewProgram(newModel(q), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
