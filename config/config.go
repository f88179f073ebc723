// Package config provides configuration loading for linkpaste using TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

var (
	ErrEmptyName     = errors.New("format name is empty")
	ErrDuplicateName = errors.New("format name already used")
	ErrLastFormat    = errors.New("cannot delete the last format")
	ErrUnknownFormat = errors.New("unknown format")
)

// Message returns the sentence shown to a user for a format editing error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateName):
		return "This name is already used."
	case errors.Is(err, ErrLastFormat):
		return "You cannot delete the last format."
	case errors.Is(err, ErrEmptyName):
		return "The format name cannot be empty."
	}
	return err.Error()
}

// Format is a named output template.
type Format struct {
	Name         string `toml:"name" json:"name"`
	Template     string `toml:"template" json:"template"`
	RequireFetch bool   `toml:"requireFetch" json:"requireFetch"` // Fetch the page title before rendering
}

// HTTP fetching settings
type Fetcher struct {
	UserAgent       string `toml:"userAgent"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	BrowserFallback bool   `toml:"browserFallback"` // Retry blocked pages in headless Chrome
	ChromePath      string `toml:"chromePath"`
}

// Vault settings
type Vault struct {
	Dir string `toml:"dir"` // Where notes created by templates are written
}

// Log settings
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "simple", "verbose" or "json"
}

// Server settings
type Server struct {
	Addr string `toml:"addr"`
}

// History settings
type History struct {
	Limit int `toml:"limit"`
}

// Settings is the main configuration struct. A loaded Settings value is
// treated as immutable; edit a Clone.
type Settings struct {
	HandleHighlightURLOnly bool     `toml:"handleHighlightUrlOnly"`
	NoticeWhileFetching    bool     `toml:"noticeWhileFetching"`
	FormatIndex            int      `toml:"formatIndex"`
	Formats                []Format `toml:"formats"`
	Fetcher                Fetcher  `toml:"fetcher"`
	Vault                  Vault    `toml:"vault"`
	Log                    Log      `toml:"log"`
	Server                 Server   `toml:"server"`
	History                History  `toml:"history"`
}

// DefaultFormats returns the built-in formats.
func DefaultFormats() []Format {
	return []Format{
		{
			Name:         "Quote",
			Template:     "> [{{title}}]({{url}})\n> {{text}}\n",
			RequireFetch: true,
		},
		{
			Name:         "Link only",
			Template:     "[{{title}}]({{url}})",
			RequireFetch: true,
		},
		{
			Name:         "Callout",
			Template:     "> [!QUOTE] [{{title}}]({{url}})\n> {{text}}\n",
			RequireFetch: true,
		},
		{
			Name:         "Quote in callout",
			Template:     "> [!QUOTE] [{{title}}]({{url}})\n> > {{text}}\n> \n> ",
			RequireFetch: true,
		},
		{
			Name:         "Create new note",
			Template:     `{{ app.CreateNote(text + ".md", "[" + title + "](" + url + ")") }}`,
			RequireFetch: true,
		},
	}
}

// Default returns the default configuration.
func Default() *Settings {
	return &Settings{
		HandleHighlightURLOnly: true,
		NoticeWhileFetching:    true,
		FormatIndex:            0,
		Formats:                DefaultFormats(),
		Fetcher: Fetcher{
			UserAgent:      "Mozilla/5.0 (compatible; linkpaste/1.0)",
			TimeoutSeconds: 30,
		},
		Vault: Vault{
			Dir: ".",
		},
		Log: Log{
			Level:  "warn",
			Format: "simple",
		},
		Server: Server{
			Addr: "127.0.0.1:7464",
		},
		History: History{
			Limit: 200,
		},
	}
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "linkpaste"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "linkpaste"), nil
}

// Path returns the path to the user's config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads configuration from path, layering it on top of defaults.
// An empty path means the default location. Returns the default config if
// the file does not exist.
func Load(path string) (*Settings, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default(), nil // Return defaults if we can't determine path
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	s, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes TOML on top of the defaults, normalizes and validates it.
func Parse(data string) (*Settings, error) {
	s := Default()
	// Formats given in the file replace the built-in list rather than
	// merging into it.
	s.Formats = nil

	md, err := toml.Decode(data, s)
	if err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if !md.IsDefined("formats") {
		s.Formats = DefaultFormats()
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Normalize drops formats missing a name or template and clamps the
// selected index. If nothing is left, the built-in formats are restored.
func (s *Settings) Normalize() {
	kept := s.Formats[:0:0]
	for _, f := range s.Formats {
		if f.Name != "" && f.Template != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		kept = DefaultFormats()
	}
	s.Formats = kept
	s.FormatIndex = max(0, min(s.FormatIndex, len(s.Formats)-1))
}

// Validate checks the invariants every loaded configuration must hold.
func (s *Settings) Validate() error {
	var errs []error
	if len(s.Formats) == 0 {
		errs = append(errs, errors.New("at least one format is required"))
	}
	if s.FormatIndex < 0 || s.FormatIndex >= len(s.Formats) {
		errs = append(errs, fmt.Errorf("formatIndex %d out of range", s.FormatIndex))
	}
	seen := make(map[string]bool, len(s.Formats))
	for i, f := range s.Formats {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("format %d: %w", i, ErrEmptyName))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("format %q: %w", f.Name, ErrDuplicateName))
		}
		seen[f.Name] = true
	}
	if s.Fetcher.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("fetcher.timeoutSeconds must not be negative"))
	}
	if s.History.Limit < 0 {
		errs = append(errs, errors.New("history.limit must not be negative"))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Formats = append([]Format(nil), s.Formats...)
	return &c
}

// Active returns the selected format.
func (s *Settings) Active() Format {
	return s.Formats[s.FormatIndex]
}

// FormatByName returns the index of the named format.
func (s *Settings) FormatByName(name string) (int, error) {
	if i := s.indexOf(name); i >= 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

func (s *Settings) indexOf(name string) int {
	for i, f := range s.Formats {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *Settings) checkIndex(index int) error {
	if index < 0 || index >= len(s.Formats) {
		return fmt.Errorf("%w: index %d", ErrUnknownFormat, index)
	}
	return nil
}

// AddFormat appends a format.
func (s *Settings) AddFormat(f Format) error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if s.indexOf(f.Name) >= 0 {
		return ErrDuplicateName
	}
	s.Formats = append(s.Formats, f)
	return nil
}

// RenameFormat changes the name of the format at index.
func (s *Settings) RenameFormat(index int, name string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if i := s.indexOf(name); i >= 0 && i != index {
		return ErrDuplicateName
	}
	s.Formats[index].Name = name
	return nil
}

// SetTemplate replaces the template of the format at index.
func (s *Settings) SetTemplate(index int, tmpl string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.Formats[index].Template = tmpl
	return nil
}

// SetRequireFetch sets whether the format at index needs the page title.
func (s *Settings) SetRequireFetch(index int, v bool) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.Formats[index].RequireFetch = v
	return nil
}

// DeleteFormat removes the format at index. The selection follows the
// format it pointed at, or moves to the previous one when that format is
// the one removed.
func (s *Settings) DeleteFormat(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if len(s.Formats) == 1 {
		return ErrLastFormat
	}
	s.Formats = append(s.Formats[:index:index], s.Formats[index+1:]...)
	if s.FormatIndex >= index && s.FormatIndex > 0 {
		s.FormatIndex--
	}
	return nil
}

// SelectFormat makes the named format active.
func (s *Settings) SelectFormat(name string) error {
	i, err := s.FormatByName(name)
	if err != nil {
		return err
	}
	s.FormatIndex = i
	return nil
}

// Save writes settings to path as TOML. The file is replaced atomically.
func Save(path string, s *Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// DefaultTOML returns a commented default configuration file.
func DefaultTOML() string {
	return `# linkpaste configuration
# Save to ~/.config/linkpaste/config.toml and customize
# Only include settings you want to change from defaults

handleHighlightUrlOnly = true   # Leave plain URLs (no #:~:text=) to the default paste
noticeWhileFetching = true      # Show a notice while the page title is fetched
formatIndex = 0                 # Which of the formats below is active

# Formats. Anything between {{ and }} is an expression over:
#   pageUrl, highlightUrl, url (= highlightUrl), text, title (when requireFetch)
#   app.CreateNote(name, content) creates a note in the vault
[[formats]]
name = "Quote"
template = "> [{{title}}]({{url}})\n> {{text}}\n"
requireFetch = true

[[formats]]
name = "Link only"
template = "[{{title}}]({{url}})"
requireFetch = true

[[formats]]
name = "Callout"
template = "> [!QUOTE] [{{title}}]({{url}})\n> {{text}}\n"
requireFetch = true

[[formats]]
name = "Quote in callout"
template = "> [!QUOTE] [{{title}}]({{url}})\n> > {{text}}\n> \n> "
requireFetch = true

[[formats]]
name = "Create new note"
template = '{{ app.CreateNote(text + ".md", "[" + title + "](" + url + ")") }}'
requireFetch = true

# HTTP fetching settings
[fetcher]
userAgent = "Mozilla/5.0 (compatible; linkpaste/1.0)"
timeoutSeconds = 30
browserFallback = false       # Retry blocked pages in headless Chrome
chromePath = ""               # Path to Chrome/Chromium (empty = auto-detect)

[vault]
dir = "."                     # Notes created by templates go here

[log]
level = "warn"                # debug, info, warn, error
format = "simple"             # simple, verbose, json

[server]
addr = "127.0.0.1:7464"

[history]
limit = 200                   # Pastes kept in history.json
`
}
