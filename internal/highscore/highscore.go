// Package highscore keeps the ranked table of the best BAC results and
// persists it as text, one "DD/MM/YYYY 0.00" record per line.
package highscore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of ranked slots.
const DefaultCapacity = 10

// Unused marks an empty slot.
const Unused = -1.0

// Date is a calendar day.
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date{Day: t.Day(), Month: int(t.Month()), Year: t.Year()}
}

// String formats the date as DD/MM/YYYY.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

// ParseDate parses DD/MM/YYYY.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[0]) != 2 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		v[i] = n
	}
	d := Date{Day: v[0], Month: v[1], Year: v[2]}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// Entry is one ranked slot.
type Entry struct {
	Date  Date
	Score float64
}

// Used reports whether the slot holds a result.
func (e Entry) Used() bool {
	return e.Score != Unused
}

// Store is a fixed-capacity table ordered by descending score.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	slots []Entry
}

// New creates an empty store with capacity slots.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{slots: make([]Entry, capacity)}
	s.clear()
	return s
}

func (s *Store) clear() {
	for i := range s.slots {
		s.slots[i] = Entry{Score: Unused}
	}
}

// Capacity returns the number of slots.
func (s *Store) Capacity() int {
	return len(s.slots)
}

// Insert places score at the first slot it beats and shifts the lower
// entries down, evicting the last. It returns false when score does not
// make the table.
func (s *Store) Insert(date Date, score float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(date, score)
}

func (s *Store) insert(date Date, score float64) bool {
	for i := range s.slots {
		if score > s.slots[i].Score {
			copy(s.slots[i+1:], s.slots[i:len(s.slots)-1])
			s.slots[i] = Entry{Date: date, Score: score}
			return true
		}
	}
	return false
}

// Slots returns a copy of every slot, including unused ones.
func (s *Store) Slots() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.slots))
	copy(out, s.slots)
	return out
}

// Entries returns the used slots in rank order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.slots {
		if e.Used() {
			out = append(out, e)
		}
	}
	return out
}

// Snapshot returns the table state for a later Restore.
func (s *Store) Snapshot() []Entry {
	return s.Slots()
}

// Restore replaces the table with a snapshot taken from this store.
func (s *Store) Restore(snap []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	copy(s.slots, snap)
}

// Load replaces the table with the records in path. A missing file leaves
// the table empty. A file with any malformed line is treated as corrupt and
// also leaves the table empty; only an unreadable file is an error.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("highscore: %s not found, starting empty", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open highscores: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			log.Printf("highscore: %s line %d corrupt (%v), discarding table", path, lineNo, err)
			return nil
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("highscore: %s unreadable (%v), discarding table", path, err)
		return nil
	}

	for _, e := range entries {
		s.insert(e.Date, e.Score)
	}
	return nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Entry{}, fmt.Errorf("want 2 fields, got %d", len(fields))
	}
	date, err := ParseDate(fields[0])
	if err != nil {
		return Entry{}, err
	}
	score, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid score %q", fields[1])
	}
	// Scores below 0.005 are written as "0.00".
	if score < 0 {
		return Entry{}, fmt.Errorf("score %q out of range", fields[1])
	}
	return Entry{Date: date, Score: score}, nil
}

// Format renders the persisted form: one line per slot with a positive score.
func (s *Store) Format() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for _, e := range s.slots {
		if e.Score > 0 {
			fmt.Fprintf(&b, "%s %.2f\n", e.Date, e.Score)
		}
	}
	return b.String()
}

// Save writes the table to path. The file is replaced atomically.
func (s *Store) Save(path string) error {
	data := s.Format()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".highscores-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write highscores: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close highscores: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename highscores: %w", err)
	}
	return nil
}

// Display logs the ranked table.
func (s *Store) Display() {
	entries := s.Entries()
	if len(entries) == 0 {
		log.Printf("highscore: table empty")
		return
	}
	for i, e := range entries {
		log.Printf("highscore: #%d %s %.2f", i+1, e.Date, e.Score)
	}
}

// JSONEntry is the export form of one entry.
type JSONEntry struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// ToJSONList returns the used entries in rank order for the HTTP surface.
func (s *Store) ToJSONList() []JSONEntry {
	entries := s.Entries()
	out := make([]JSONEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, JSONEntry{Date: e.Date.String(), Score: e.Score})
	}
	return out
}

// MarshalJSON encodes the table as the ToJSONList array.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToJSONList())
}
