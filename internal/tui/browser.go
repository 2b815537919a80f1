// Package tui is the interactive session browser: a list of a project's
// sessions with their chain status, and a findings view per session. It is a
// thin caller of the core operations; no repair or cleanup happens here.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sessionctl/internal/chain"
	"sessionctl/internal/project"
	"sessionctl/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9FAFB")).Background(lipgloss.Color("#4C1D95"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	badStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Inspect key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k")),
		Down:    key.NewBinding(key.WithKeys("down", "j")),
		Inspect: key.NewBinding(key.WithKeys("enter")),
		Back:    key.NewBinding(key.WithKeys("esc")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
	}
}

type Browser struct {
	store    *session.Store
	projectN string
	infos    []project.SessionInfo
	cursor   int
	detail   bool
	viewport viewport.Model
	keys     keyMap
	width    int
	height   int
}

func NewBrowser(store *session.Store, projectName string, infos []project.SessionInfo) *Browser {
	return &Browser{
		store:    store,
		projectN: projectName,
		infos:    infos,
		keys:     newKeyMap(),
		width:    100,
		height:   30,
	}
}

func (b *Browser) Init() tea.Cmd { return nil }

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.viewport = viewport.New(msg.Width-4, msg.Height-6)
		if b.detail {
			b.viewport.SetContent(b.renderFindings())
		}
		return b, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, b.keys.Quit):
			return b, tea.Quit
		case key.Matches(msg, b.keys.Back):
			if b.detail {
				b.detail = false
				return b, nil
			}
			return b, tea.Quit
		case key.Matches(msg, b.keys.Up):
			if !b.detail && b.cursor > 0 {
				b.cursor--
			}
		case key.Matches(msg, b.keys.Down):
			if !b.detail && b.cursor < len(b.infos)-1 {
				b.cursor++
			}
		case key.Matches(msg, b.keys.Inspect):
			if !b.detail && len(b.infos) > 0 {
				b.detail = true
				b.viewport = viewport.New(b.width-4, b.height-6)
				b.viewport.SetContent(b.renderFindings())
				return b, nil
			}
		}
	}

	if b.detail {
		var cmd tea.Cmd
		b.viewport, cmd = b.viewport.Update(msg)
		return b, cmd
	}
	return b, nil
}

func (b *Browser) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("sessions · "+b.projectN) + "\n\n")

	if b.detail {
		sb.WriteString(b.viewport.View())
		sb.WriteString("\n" + footerStyle.Render("esc back · q quit"))
		return sb.String()
	}

	if len(b.infos) == 0 {
		sb.WriteString(mutedStyle.Render("no sessions found"))
		return sb.String()
	}
	for i, info := range b.infos {
		status := okStyle.Render("ok")
		if info.Findings > 0 {
			status = badStyle.Render(fmt.Sprintf("%d findings", info.Findings))
		}
		line := fmt.Sprintf("%-38s %5d records  %s", info.SessionID, info.Records, status)
		if summary := info.Summary; summary != "" {
			if len(summary) > 40 {
				summary = summary[:37] + "..."
			}
			line += mutedStyle.Render("  " + summary)
		}
		if i == b.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n" + footerStyle.Render("enter inspect · j/k move · q quit"))
	return sb.String()
}

func (b *Browser) renderFindings() string {
	info := b.infos[b.cursor]
	records, err := b.store.ReadLogLenient(b.store.SessionPath(b.projectN, info.SessionID))
	if err != nil {
		return badStyle.Render("read failed: " + err.Error())
	}
	report := chain.Validate(records)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(info.SessionID) + "\n")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%d records", len(records))) + "\n\n")
	if report.Valid {
		sb.WriteString(okStyle.Render("chain is intact") + "\n")
		return sb.String()
	}
	for _, f := range report.Findings {
		sb.WriteString(renderFinding(f) + "\n")
	}
	return sb.String()
}

func renderFinding(f chain.Finding) string {
	detail := ""
	switch f.Type {
	case chain.FindingOrphanParent:
		detail = "parent " + f.Parent
	case chain.FindingOrphanToolResult:
		detail = "tool_use " + f.Parent
	case chain.FindingUnwantedProgress:
		detail = "event " + f.Event
	}
	line := fmt.Sprintf("line %-5d %-20s %s", f.Line, f.Type, f.UUID)
	if detail != "" {
		line += "  " + mutedStyle.Render(detail)
	}
	return badStyle.Render("✗ ") + line
}

// Run starts the browser and blocks until quit.
func Run(store *session.Store, projectName string, infos []project.SessionInfo) error {
	p := tea.NewProgram(NewBrowser(store, projectName, infos), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
