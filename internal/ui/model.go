// Package ui is the interactive terminal front-end of the mixer.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/liuscraft/noizee/internal/mixer"
	"github.com/liuscraft/noizee/internal/player"
	"github.com/liuscraft/noizee/internal/session"
)

const (
	refreshInterval = 200 * time.Millisecond
	volumeStep      = 0.05
	barWidth        = 20
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	playingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))  // Green
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226")) // Yellow
	erroredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Bright red
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // Gray
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	globalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Mixer is what the front-end drives. *session.Session implements it.
type Mixer interface {
	View() session.View
	Toggle(id string) bool
	SetVolume(id string, v float64) bool
	ToggleGlobal()
	Stop()
}

type tickMsg time.Time

type model struct {
	mixer  Mixer
	view   session.View
	cursor int
	width  int
}

func newModel(m Mixer) model {
	return model{mixer: m, view: m.View()}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m = m.refresh()
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.view.Tracks)-1 {
				m.cursor++
			}
		case " ", "space", "enter":
			if tr, ok := m.selected(); ok {
				m.mixer.Toggle(tr.ID)
			}
		case "left", "-":
			m.nudge(-volumeStep)
		case "right", "+", "=":
			m.nudge(volumeStep)
		case "p":
			m.mixer.ToggleGlobal()
		case "s":
			m.mixer.Stop()
		}
		return m.refresh(), nil
	}
	return m, nil
}

func (m model) refresh() model {
	m.view = m.mixer.View()
	if m.cursor >= len(m.view.Tracks) {
		m.cursor = max(0, len(m.view.Tracks)-1)
	}
	return m
}

func (m model) selected() (session.Track, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Tracks) {
		return session.Track{}, false
	}
	return m.view.Tracks[m.cursor], true
}

func (m model) nudge(delta float64) {
	tr, ok := m.selected()
	if !ok {
		return
	}
	// round to the step so repeated nudges land on clean values
	v := float64(int((tr.Volume+delta)*100+0.5)) / 100
	m.mixer.SetVolume(tr.ID, v)
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(titleStyle.Render("noizee"))
	if g := globalLabel(m.view.Indicator); g != "" {
		b.WriteString("   ")
		b.WriteString(globalStyle.Render(g))
	}
	b.WriteString("\n\n")

	if len(m.view.Tracks) == 0 {
		b.WriteString(helpStyle.Render("  no sounds available"))
		b.WriteString("\n")
	}

	nameWidth := 0
	for _, tr := range m.view.Tracks {
		nameWidth = max(nameWidth, lipgloss.Width(displayName(tr)))
	}
	for i, tr := range m.view.Tracks {
		name := fmt.Sprintf("%-*s", nameWidth, displayName(tr))
		if i == m.cursor {
			name = selectedStyle.Render(name)
		}
		status := statusStyle(tr.Status).Render(fmt.Sprintf("%-8s", tr.Status))
		fmt.Fprintf(&b, "  %s  %s  %s %3d%%\n", name, status, volumeBar(tr.Volume), int(tr.Volume*100+0.5))
	}

	b.WriteString("\n")
	help := "space toggle • ←/→ volume • p pause/resume all • s stop • q quit"
	if len(m.view.Bridges) > 0 {
		help += " • media keys: " + strings.Join(m.view.Bridges, ", ")
	}
	b.WriteString(helpStyle.Render("  " + help))
	b.WriteString("\n")
	return b.String()
}

func displayName(tr session.Track) string {
	if tr.Name != "" {
		return tr.Name
	}
	return tr.ID
}

func globalLabel(i mixer.Indicator) string {
	switch i {
	case mixer.ShowMuted:
		return "🔇 muted"
	case mixer.ShowPause:
		return "⏸ pause all"
	case mixer.ShowResume:
		return "▶ resume"
	default:
		return ""
	}
}

func statusStyle(s player.Status) lipgloss.Style {
	switch s {
	case player.Playing:
		return playingStyle
	case player.Loading:
		return loadingStyle
	case player.Errored:
		return erroredStyle
	default:
		return idleStyle
	}
}

func volumeBar(v float64) string {
	filled := int(v*barWidth + 0.5)
	filled = min(max(filled, 0), barWidth)
	return barStyle.Render(strings.Repeat("█", filled)) + helpStyle.Render(strings.Repeat("░", barWidth-filled))
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Mixer) error {
	p := tea.NewProgram(newModel(m), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
