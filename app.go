package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"linkpaste/config"
	"linkpaste/editor"
	"linkpaste/fetcher"
	"linkpaste/history"
	"linkpaste/logger"
	"linkpaste/notify"
	"linkpaste/paste"
	"linkpaste/replace"
	"linkpaste/vault"
)

// app holds everything a command needs, built from flags and config.
type app struct {
	configPath string
	settings   *config.Settings
	handler    *paste.Handler
	history    *history.Store
	vault      *vault.Vault
	log        *slog.Logger
}

func (cli *CLI) configPath() (string, error) {
	if cli.Config != "" {
		return cli.Config, nil
	}
	return config.Path()
}

// loadSettings reads the config file and applies the --format override.
func (cli *CLI) loadSettings() (string, *config.Settings, error) {
	path, err := cli.configPath()
	if err != nil {
		return "", nil, fmt.Errorf("locating config: %w", err)
	}
	s, err := config.Load(path)
	if err != nil {
		return "", nil, err
	}
	s, err = withFormat(s, cli.FormatName)
	if err != nil {
		return "", nil, err
	}
	return path, s, nil
}

// withFormat returns s with the named format active. An empty name returns
// s unchanged.
func withFormat(s *config.Settings, name string) (*config.Settings, error) {
	if name == "" {
		return s, nil
	}
	s = s.Clone()
	if err := s.SelectFormat(name); err != nil {
		return nil, err
	}
	return s, nil
}

// followOverride passes reloaded settings on with the --format override
// applied again. A reload that no longer has the format keeps its own
// active format.
func followOverride(ctx context.Context, updates <-chan *config.Settings, name string, log *slog.Logger) <-chan *config.Settings {
	out := make(chan *config.Settings)
	go func() {
		defer close(out)
		for {
			var s *config.Settings
			select {
			case <-ctx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				s = next
			}
			if o, err := withFormat(s, name); err != nil {
				log.Warn("Format override missing from reloaded config", "format", name, "error", err)
			} else {
				s = o
			}
			select {
			case <-ctx.Done():
				return
			case out <- s:
			}
		}
	}()
	return out
}

func (cli *CLI) newApp() (*app, error) {
	path, s, err := cli.loadSettings()
	if err != nil {
		return nil, err
	}

	level, format := s.Log.Level, s.Log.Format
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		format = cli.LogFormat
	}
	log := logger.Init(logger.ParseLevel(level), cli.Stderr, format)

	hist, err := history.Load(filepath.Join(filepath.Dir(path), "history.json"), s.History.Limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	f := fetcher.New(fetcher.Options{
		UserAgent:       s.Fetcher.UserAgent,
		Timeout:         time.Duration(s.Fetcher.TimeoutSeconds) * time.Second,
		ChromePath:      s.Fetcher.ChromePath,
		BrowserFallback: s.Fetcher.BrowserFallback,
	})
	v := vault.New(s.Vault.Dir)

	a := &app{
		configPath: path,
		settings:   s,
		history:    hist,
		vault:      v,
		log:        log,
	}
	a.handler = paste.NewHandler(s, fetcher.NewTitles(f),
		paste.WithNotifier(notify.NewWriter(cli.Stderr)),
		paste.WithLogger(log),
		paste.WithCapability("app", v),
		paste.WithObserver(a.record),
	)
	return a, nil
}

// record stores a finished paste in the history file.
func (a *app) record(r paste.Result) {
	a.history.Add(history.Entry{
		ID:     r.PasteID,
		URL:    r.URL,
		Title:  r.Title,
		Kind:   r.Kind.String(),
		Format: r.Format,
		Output: r.Output,
	})
	if err := a.history.Save(); err != nil {
		a.log.Warn("Failed to save history", "error", err)
	}
}

// pasteInto runs a paste of text into buf. When the handler does not take
// the paste, text is inserted as is, like an editor's default paste.
// It reports whether buf changed.
func (a *app) pasteInto(ctx context.Context, buf *editor.Buffer, text string) (bool, error) {
	op := a.handler.HandlePaste(ctx, paste.NewEvent(text), buf)
	if op == nil {
		buf.ReplaceSelection(text, replace.OriginPaste)
		return true, nil
	}
	return op.Wait()
}

func readFileIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	return string(data), err
}
