// ABOUTME: Entry point for the JamSync player
// ABOUTME: Parses CLI flags, joins a jam session and runs the TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jamsync/jamsync-go/internal/cache"
	"github.com/jamsync/jamsync-go/internal/discovery"
	"github.com/jamsync/jamsync-go/internal/ui"
	"github.com/jamsync/jamsync-go/pkg/jam"
)

var (
	serverAddr   = flag.String("server", "", "Manual server address (skip mDNS)")
	name         = flag.String("name", "", "User name announced to the session (default: hostname)")
	sampleRate   = flag.Int("sample-rate", 48000, "Local render sample rate")
	outputName   = flag.String("output", "malgo", "Audio output backend: malgo, oto or null")
	cachePath    = flag.String("cache", "jamsync-cache.db", "Track settings cache (empty to disable)")
	logFile      = flag.String("log-file", "jamsync-player.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	discoverWait = flag.Duration("discover-timeout", 10*time.Second, "How long to browse for a server")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	userName := *name
	if userName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "listener"
		}
		userName = hostname
	}

	log.Printf("Starting JamSync Player: %s", userName)

	var store *cache.Store
	if *cachePath != "" {
		store, err = cache.Open(*cachePath)
		if err != nil {
			log.Fatalf("Failed to open cache: %v", err)
		}
		defer store.Close()
		log.Printf("Loaded %d cached track settings from %s", store.Len(), *cachePath)
	}

	address := *serverAddr
	if address == "" {
		address, err = discover(*discoverWait)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	client, err := jam.NewClient(jam.Config{
		ServerAddr: address,
		Name:       userName,
		SampleRate: *sampleRate,
		Output:     *outputName,
		Cache:      store,
		OnError: func(err error) {
			log.Printf("Client error: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		ctrl := ui.NewTrackControl()
		prog, err := ui.Run(ctrl)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}

		go handleControls(client, ctrl)
		go statusLoop(client, prog)
		go func() {
			if _, err := prog.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			select {
			case ctrl.Quit <- ui.QuitMsg{}:
			default:
			}
		}()

		select {
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
		}
		prog.Quit()
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	if err := client.Close(); err != nil {
		log.Printf("Error closing client: %v", err)
	}

	log.Printf("Player stopped")
}

// discover browses mDNS for the first jam server
func discover(timeout time.Duration) (string, error) {
	log.Printf("Starting server discovery...")
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()

	if err := disc.Browse(); err != nil {
		return "", fmt.Errorf("discovery failed: %w", err)
	}

	select {
	case server := <-disc.Servers():
		log.Printf("Discovered server %s at %s", server.Name, server.Addr())
		return server.Addr(), nil
	case <-time.After(timeout):
		return "", fmt.Errorf("no server found after %v", timeout)
	}
}

// handleControls applies mix changes from the TUI
func handleControls(client *jam.Client, ctrl *ui.TrackControl) {
	for {
		select {
		case change := <-ctrl.Changes:
			if _, err := client.SetTrackSettings(change.Key, change.Settings); err != nil {
				log.Printf("Track %s: %v", change.Key, err)
			}
		case vol := <-ctrl.Volume:
			log.Printf("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			client.SetVolume(vol.Volume)
			client.SetMuted(vol.Muted)
		}
	}
}

// statusLoop pushes session state to the TUI
func statusLoop(client *jam.Client, prog *tea.Program) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		prog.Send(ui.StatusMsg(client.Snapshot()))
	}
}
