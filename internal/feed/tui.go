// ABOUTME: Feed server TUI for displaying the session and connected clients
// ABOUTME: Real-time status display using bubbletea, with tempo keys
package feed

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status holds server state for the TUI
type Status struct {
	Name         string
	Port         int
	Bpm          int
	Bpi          int
	Intervals    int64
	Participants []string
	Clients      []ClientInfo
}

// Status returns the current session state
func (s *Server) Status() Status {
	bpm, bpi := s.Tempo()
	status := Status{
		Name:      s.config.Name,
		Port:      s.config.Port,
		Bpm:       bpm,
		Bpi:       bpi,
		Intervals: s.Intervals(),
		Clients:   s.Clients(),
	}
	for _, p := range s.participants {
		status.Participants = append(status.Participants, fmt.Sprintf("%s (%s)", p.user.FullName(), p.label))
	}
	return status
}

// Tempo is a tempo change requested from the TUI
type Tempo struct {
	Bpm int
	Bpi int
}

// TUI manages the feed server TUI
type TUI struct {
	program  *tea.Program
	updates  chan Status
	tempo    chan Tempo
	quitChan chan struct{}
}

// tuiModel is the bubbletea model for the feed TUI
type tuiModel struct {
	status    Status
	startTime time.Time
	quitting  bool
	tempo     chan Tempo
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg Status

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case "+", "=":
			m.requestTempo(m.status.Bpm+5, m.status.Bpi)
		case "-":
			m.requestTempo(m.status.Bpm-5, m.status.Bpi)
		case "]":
			m.requestTempo(m.status.Bpm, m.status.Bpi+1)
		case "[":
			m.requestTempo(m.status.Bpm, m.status.Bpi-1)
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = Status(msg)
		return m, nil
	}

	return m, nil
}

// requestTempo forwards a tempo change; the server validates it
func (m tuiModel) requestTempo(bpm, bpi int) {
	select {
	case m.tempo <- Tempo{Bpm: bpm, Bpi: bpi}:
	default:
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	clientHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("JamSync Feed"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	field("Server", m.status.Name)
	field("Port", fmt.Sprintf("%d", m.status.Port))
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	field("Tempo", fmt.Sprintf("%d bpm / %d bpi", m.status.Bpm, m.status.Bpi))
	field("Intervals", fmt.Sprintf("%d", m.status.Intervals))
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Participants (%d)", len(m.status.Participants))))
	b.WriteString("\n")
	for _, p := range m.status.Participants {
		b.WriteString(fmt.Sprintf("  • %s\n", p))
	}
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	} else {
		for _, client := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", client.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s)", client.Address)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("+/-: bpm  [/]: bpi  q: quit"))

	return b.String()
}

// NewTUI creates a feed TUI showing status until the first update
func NewTUI(status Status) *TUI {
	t := &TUI{
		updates:  make(chan Status, 10),
		tempo:    make(chan Tempo, 10),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(tuiModel{
		status:    status,
		startTime: time.Now(),
		tempo:     t.tempo,
		quitChan:  t.quitChan,
	}, tea.WithAltScreen())
	return t
}

// Start runs the TUI until the user quits
func (t *TUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *TUI) Update(status Status) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}

// TempoChanges returns tempo requests made from the TUI
func (t *TUI) TempoChanges() <-chan Tempo {
	return t.tempo
}

// QuitChan returns the channel that signals when user wants to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
