// Package logstore buffers measurement log lines in memory and appends them
// to the log file in one write.
package logstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of lines held before a forced flush.
const DefaultCapacity = 100

// ErrFull is returned by Append when the buffer is full and could not be
// flushed to make room. The line is dropped.
var ErrFull = errors.New("log buffer full")

// Store is a bounded line buffer bound to one file. It is safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	path     string
	capacity int
	lines    []string

	open func(path string) (io.WriteCloser, error)
}

func appendFile(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// New creates a Store that flushes to path.
func New(path string, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{path: path, capacity: capacity, lines: make([]string, 0, capacity), open: appendFile}
}

// FormatLine renders one measurement line.
func FormatLine(t time.Time, ppm, bac float64) string {
	return fmt.Sprintf("%s - PPM: %.2f, BAC: %.3f\n", t.Format("02/01/2006 15:04:05"), ppm, bac)
}

// Append buffers one measurement. A full buffer is flushed first.
func (s *Store) Append(t time.Time, ppm, bac float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) >= s.capacity {
		if err := s.flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrFull, err)
		}
	}
	s.lines = append(s.lines, FormatLine(t, ppm, bac))
	return nil
}

// Flush appends the buffered lines to the file with a single write. The
// buffer is cleared once the write succeeds, even if closing the file then
// fails, so no line is written twice.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *Store) flush() error {
	if len(s.lines) == 0 {
		return nil
	}
	f, err := s.open(s.path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	data := strings.Join(s.lines, "")
	if _, err := f.Write([]byte(data)); err != nil {
		f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	s.lines = s.lines[:0]
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return nil
}

// Len returns the number of buffered lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Lines returns a copy of the buffered lines.
func (s *Store) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Path returns the file the store flushes to.
func (s *Store) Path() string {
	return s.path
}
