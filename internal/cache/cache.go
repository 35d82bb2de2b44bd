// ABOUTME: Per-participant mixer settings cache
// ABOUTME: Remembers gain, pan, boost and mute per (address, name, channel) in SQLite
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jamsync/jamsync-go/pkg/mixer"
	_ "modernc.org/sqlite"
)

var ErrClosed = errors.New("cache closed")

// ipPrefix keeps the first three octets; servers mask the last one
var ipPrefix = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}`)

// Entry is the remembered state of one remote channel
type Entry struct {
	IP       string
	Name     string
	Channel  uint8
	Settings mixer.Settings
}

// Store keeps entries in memory and mirrors every update to SQLite
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	entries map[string]Entry
}

// Open opens (or creates) the cache database at path and loads it
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// One connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure cache: %w", err)
		}
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS channels (
		ip      TEXT NOT NULL,
		name    TEXT NOT NULL,
		channel INTEGER NOT NULL,
		muted   INTEGER NOT NULL DEFAULT 0,
		gain    REAL NOT NULL DEFAULT 1.0,
		pan     REAL NOT NULL DEFAULT 0.0,
		boost   REAL NOT NULL DEFAULT 1.0,
		PRIMARY KEY (ip, name, channel)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	s := &Store{db: db, entries: make(map[string]Entry)}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT ip, name, channel, muted, gain, pan, boost FROM channels`)
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.IP, &e.Name, &e.Channel, &e.Settings.Muted,
			&e.Settings.Gain, &e.Settings.Pan, &e.Settings.Boost); err != nil {
			return fmt.Errorf("failed to read cache row: %w", err)
		}
		e.Settings = e.Settings.Normalize()
		s.entries[key(e.IP, e.Name, e.Channel)] = e
	}
	return rows.Err()
}

// NormalizeIP reduces an address to its first three IPv4 octets
func NormalizeIP(ip string) string {
	if m := ipPrefix.FindString(ip); m != "" {
		return m
	}
	return ip
}

// NormalizeName strips the address qualifier from a user name
func NormalizeName(name string) string {
	if i := strings.IndexByte(name, '@'); i >= 0 {
		return name[:i]
	}
	return name
}

func key(ip, name string, channel uint8) string {
	return fmt.Sprintf("%s|%s|%d", NormalizeIP(ip), NormalizeName(name), channel)
}

// Lookup returns the remembered settings, or defaults when the channel is
// not cached yet
func (s *Store) Lookup(ip, name string, channel uint8) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key(ip, name, channel)]; ok {
		return e
	}
	return Entry{
		IP:       NormalizeIP(ip),
		Name:     NormalizeName(name),
		Channel:  channel,
		Settings: mixer.DefaultSettings(),
	}
}

// Update stores e, replacing any previous entry for the same key
func (s *Store) Update(e Entry) error {
	e.IP = NormalizeIP(e.IP)
	e.Name = NormalizeName(e.Name)
	e.Settings = e.Settings.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec(`INSERT INTO channels (ip, name, channel, muted, gain, pan, boost)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip, name, channel) DO UPDATE SET
			muted=excluded.muted,
			gain=excluded.gain,
			pan=excluded.pan,
			boost=excluded.boost`,
		e.IP, e.Name, e.Channel, e.Settings.Muted, e.Settings.Gain, e.Settings.Pan, e.Settings.Boost)
	if err != nil {
		return fmt.Errorf("failed to store %s/%s/%d: %w", e.IP, e.Name, e.Channel, err)
	}

	s.entries[key(e.IP, e.Name, e.Channel)] = e
	return nil
}

// Len returns the number of cached channels
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close closes the database. Lookups keep answering from memory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
