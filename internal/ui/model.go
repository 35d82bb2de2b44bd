// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Session header plus one row per remote track with mix controls
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jamsync/jamsync-go/internal/version"
	"github.com/jamsync/jamsync-go/pkg/jam"
	"github.com/jamsync/jamsync-go/pkg/mixer"
)

const (
	gainStep = 0.1
	gainMax  = 2.0
	panStep  = 0.5
	volStep  = 5
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff00")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00ff00")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffff00"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

// Model represents the TUI state
type Model struct {
	status   jam.Status
	selected int
	ctrl     *TrackControl

	// Dimensions
	width  int
	height int
}

// StatusMsg replaces the displayed session state
type StatusMsg jam.Status

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = jam.Status(msg)
		m.clampSelection()
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(version.String()))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(m.renderHeader()))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(m.renderTracks()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Select  m:Mute  +/-:Gain  ←/→:Pan  [/]:Volume  M:Master mute  q:Quit"))
	b.WriteString("\n")
	return b.String()
}

// renderHeader renders the session line, tempo and beat position
func (m Model) renderHeader() string {
	s := m.status
	conn := "Disconnected"
	if s.Connected {
		conn = fmt.Sprintf("Connected to %s as %s", s.Server, s.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", conn)
	beat := s.Beat + 1
	if s.Bpi == 0 {
		beat = 0
	}
	fmt.Fprintf(&b, "Tempo:  %d bpm / %d bpi   beat %2d/%d [%s]\n",
		s.Bpm, s.Bpi, beat, s.Bpi, renderBar(s.Progress, 16))
	if s.Topic != "" {
		fmt.Fprintf(&b, "Topic:  %s\n", truncate(s.Topic, 60))
	}

	users := fmt.Sprintf("Users:  %d", len(s.Users))
	if s.ContainsBotOnly {
		users += " (bot only)"
	}
	b.WriteString(users + "\n")

	mute := ""
	if s.Muted {
		mute = " (muted)"
	}
	fmt.Fprintf(&b, "Volume: [%s] %d%%%s", renderBar(float64(s.Volume)/100, 10), s.Volume, mute)
	return b.String()
}

// renderTracks renders one row per track
func (m Model) renderTracks() string {
	if len(m.status.Tracks) == 0 {
		return "No tracks"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-24s %3s  %-10s %5s %5s  %s", "USER", "CH", "STATE", "GAIN", "PAN", "LEVEL")))
	for i, t := range m.status.Tracks {
		row := fmt.Sprintf("%-24s %3d  %-10s %5.2f %5s  %s",
			truncate(t.Key.User, 24), t.Key.Channel, trackState(t),
			t.Settings.Gain, formatPan(t.Settings.Pan), renderBar(t.Peak, 10))
		b.WriteString("\n")
		switch {
		case i == m.selected:
			b.WriteString(selectedStyle.Render("> " + row))
		case t.Settings.Muted:
			b.WriteString(mutedStyle.Render("  " + row))
		default:
			b.WriteString("  " + row)
		}
	}
	return b.String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.status.Tracks)-1 {
			m.selected++
		}
	case "m":
		m.adjust(func(s *mixer.Settings) { s.Muted = !s.Muted })
	case "+", "=":
		m.adjust(func(s *mixer.Settings) { s.Gain = min(s.Gain+gainStep, gainMax) })
	case "-":
		m.adjust(func(s *mixer.Settings) { s.Gain = max(s.Gain-gainStep, 0) })
	case "left":
		m.adjust(func(s *mixer.Settings) { s.Pan = max(s.Pan-panStep, -mixer.PanMax) })
	case "right":
		m.adjust(func(s *mixer.Settings) { s.Pan = min(s.Pan+panStep, mixer.PanMax) })
	case "[":
		m.setVolume(m.status.Volume-volStep, m.status.Muted)
	case "]":
		m.setVolume(m.status.Volume+volStep, m.status.Muted)
	case "M":
		m.setVolume(m.status.Volume, !m.status.Muted)
	}

	return m, nil
}

// adjust edits the selected track's settings and sends the change
func (m *Model) adjust(edit func(*mixer.Settings)) {
	if m.selected >= len(m.status.Tracks) {
		return
	}

	// Copy so the status received from the client is never aliased
	tracks := append([]mixer.StripState(nil), m.status.Tracks...)
	t := &tracks[m.selected]
	edit(&t.Settings)
	m.status.Tracks = tracks

	if m.ctrl != nil {
		select {
		case m.ctrl.Changes <- TrackChangeMsg{Key: t.Key, Settings: t.Settings}:
		default:
		}
	}
}

// setVolume updates the master volume and sends the change
func (m *Model) setVolume(volume int, muted bool) {
	volume = max(0, min(volume, 100))
	m.status.Volume = volume
	m.status.Muted = muted

	if m.ctrl != nil {
		select {
		case m.ctrl.Volume <- VolumeChangeMsg{Volume: volume, Muted: muted}:
		default:
		}
	}
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.status.Tracks) {
		m.selected = len(m.status.Tracks) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// trackState summarizes what a track is doing
func trackState(t mixer.StripState) string {
	switch {
	case t.Settings.Muted:
		return "muted"
	case t.Playing:
		return "playing"
	case t.Underruns > 0:
		return fmt.Sprintf("wait(%d)", t.Underruns)
	default:
		return "idle"
	}
}

// formatPan renders pan as C, L<n> or R<n>
func formatPan(pan float64) string {
	switch {
	case pan < 0:
		return fmt.Sprintf("L%.1f", -pan)
	case pan > 0:
		return fmt.Sprintf("R%.1f", pan)
	default:
		return "C"
	}
}

// Utility functions
func renderBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
