// Package vault is the note store that templates can write to.
//
// A *Vault is bound into template environments (as "app" by default) so a
// format can create a note as a side effect and render nothing in its place.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrExists is returned when a note with the same name is already present.
	ErrExists = errors.New("note already exists")
	// ErrOutside is returned for names that would land outside the vault.
	ErrOutside = errors.New("note path is outside the vault")
)

// Vault is a directory of notes.
type Vault struct {
	Dir string
}

// New returns a vault rooted at dir.
func New(dir string) *Vault {
	return &Vault{Dir: dir}
}

// Path resolves a note name to a file path inside the vault.
func (v *Vault) Path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty note name")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrOutside, name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutside, name)
	}
	return filepath.Join(v.Dir, clean), nil
}

// CreateNote writes a new note. It fails if the note already exists.
// The empty string it returns lets a placeholder that only creates a note
// render as nothing.
func (v *Vault) CreateNote(name, content string) (string, error) {
	path, err := v.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating note folder: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, name)
		}
		return "", fmt.Errorf("creating note: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("writing note: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing note: %w", err)
	}
	return "", nil
}

// ReadNote returns the content of an existing note.
func (v *Vault) ReadNote(name string) (string, error) {
	path, err := v.Path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
