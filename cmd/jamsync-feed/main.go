// ABOUTME: Entry point for the JamSync feed server
// ABOUTME: Parses CLI flags and serves a synthetic jam session
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamsync/jamsync-go/internal/feed"
)

var (
	port    = flag.Int("port", feed.DefaultPort, "WebSocket server port")
	name    = flag.String("name", "", "Server friendly name (default: hostname-jamsync-feed)")
	topic   = flag.String("topic", "", "Session topic")
	bpm     = flag.Int("bpm", 120, "Beats per minute")
	bpi     = flag.Int("bpi", 16, "Beats per interval")
	users   = flag.Int("users", feed.DefaultUsers, "Number of virtual participants")
	bot     = flag.Bool("bot", false, "List a ninbot user")
	audio   = flag.String("audio", "", "Audio file looped by an extra participant (ogg, flac, mp3)")
	codec   = flag.String("codec", feed.DefaultCodec, "Interval codec: opus or pcm")
	logFile = flag.String("log-file", "jamsync-feed.log", "Log file path")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	mdns    = flag.Bool("mdns", true, "Advertise the session via mDNS")
	noTUI   = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *noTUI {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		log.SetOutput(f)
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-jamsync-feed", hostname)
	}

	log.Printf("Starting JamSync Feed: %s on port %d", serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	srv, err := feed.NewServer(feed.Config{
		Port:       *port,
		Name:       serverName,
		Topic:      *topic,
		Bpm:        *bpm,
		Bpi:        *bpi,
		Users:      *users,
		Bot:        *bot,
		AudioFile:  *audio,
		Codec:      *codec,
		EnableMDNS: *mdns,
		Debug:      *debug,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if !*noTUI {
		tui := feed.NewTUI(srv.Status())
		go runTUI(srv, tui)
		go func() {
			select {
			case <-tui.QuitChan():
			case <-sigChan:
				tui.Stop()
			}
			srv.Stop()
		}()
	} else {
		go func() {
			sig := <-sigChan
			log.Printf("Received %v signal, shutting down gracefully...", sig)
			srv.Stop()
		}()
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runTUI drives the TUI from server state and applies tempo requests
func runTUI(srv *feed.Server, tui *feed.TUI) {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tui.Update(srv.Status())
			case t := <-tui.TempoChanges():
				if err := srv.SetTempo(t.Bpm, t.Bpi); err != nil {
					log.Printf("Tempo change rejected: %v", err)
				}
			}
		}
	}()

	if err := tui.Start(); err != nil {
		log.Printf("TUI error: %v", err)
	}
}
