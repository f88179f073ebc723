// Package history keeps a persistent log of handled pastes.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry represents one handled paste.
type Entry struct {
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Title  string    `json:"title,omitempty"`
	Kind   string    `json:"kind"`
	Format string    `json:"format,omitempty"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// Store manages the history collection. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	limit   int
	Entries []Entry `json:"entries"`
}

// Load reads history from path. A missing file gives an empty store.
// limit caps the number of entries kept (0 = unlimited).
func Load(path string, limit int) (*Store, error) {
	store := &Store{path: path, limit: limit}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// No history yet, return empty store
		return store, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, store); err != nil {
		return nil, err
	}
	store.trim()
	return store, nil
}

// Save writes history to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Add appends an entry, filling in ID and time when unset, and drops the
// oldest entries past the limit. It returns the stored entry.
func (s *Store) Add(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, e)
	s.trim()
	return e
}

func (s *Store) trim() {
	if s.limit > 0 && len(s.Entries) > s.limit {
		s.Entries = append([]Entry(nil), s.Entries[len(s.Entries)-s.limit:]...)
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.Entries) {
		n = len(s.Entries)
	}
	out := make([]Entry, 0, n)
	for i := len(s.Entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.Entries[i])
	}
	return out
}

// Remove removes an entry by ID.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.Entries {
		if e.ID == id {
			s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = nil
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Entries)
}
