// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for player UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jamsync/jamsync-go/pkg/mixer"
	"github.com/jamsync/jamsync-go/pkg/track"
)

// TrackChangeMsg carries new settings for one track
type TrackChangeMsg struct {
	Key      track.Key
	Settings mixer.Settings
}

// VolumeChangeMsg carries the master volume
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg is sent when the user quits
type QuitMsg struct{}

// TrackControl holds channels for mix control communication
type TrackControl struct {
	Changes chan TrackChangeMsg
	Volume  chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewTrackControl creates a new control handler
func NewTrackControl() *TrackControl {
	return &TrackControl{
		Changes: make(chan TrackChangeMsg, 10),
		Volume:  make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *TrackControl) Model {
	m := Model{ctrl: ctrl}
	m.status.Volume = 100
	return m
}

// Run creates the TUI program
func Run(ctrl *TrackControl) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
