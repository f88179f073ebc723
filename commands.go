package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"

	"linkpaste/config"
	"linkpaste/editor"
	"linkpaste/paste"
	"linkpaste/server"
	"linkpaste/template"
	"linkpaste/vault"
)

var errNothingPasted = errors.New("nothing pasted")

// FormatCmd formats one piece of text.
type FormatCmd struct {
	Text string `arg:"" optional:"" help:"Text to paste. Use - for stdin; omit to read the clipboard."`
}

func (c *FormatCmd) Run(cli *CLI) error {
	input, err := readInput(c.Text, cli.Stdin)
	if err != nil {
		return err
	}
	a, err := cli.newApp()
	if err != nil {
		return err
	}

	buf := editor.New("")
	changed, err := a.pasteInto(context.Background(), buf, input)
	if err != nil {
		return err
	}
	if !changed {
		return errNothingPasted
	}
	_, err = io.WriteString(cli.Stdout, buf.Text())
	return err
}

func readInput(arg string, stdin io.Reader) (string, error) {
	switch arg {
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case "":
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("reading clipboard: %w", err)
		}
		return text, nil
	default:
		return arg, nil
	}
}

// ClipCmd replaces the clipboard contents with their formatted form.
type ClipCmd struct{}

func (c *ClipCmd) Run(cli *CLI) error {
	input, err := clipboard.ReadAll()
	if err != nil {
		return fmt.Errorf("reading clipboard: %w", err)
	}
	a, err := cli.newApp()
	if err != nil {
		return err
	}

	buf := editor.New("")
	op := a.handler.HandlePaste(context.Background(), paste.NewEvent(input), buf)
	if op == nil {
		a.log.Info("Clipboard left unchanged")
		return nil
	}
	applied, err := op.Wait()
	if err != nil {
		return err
	}
	if !applied {
		return errNothingPasted
	}
	if err := clipboard.WriteAll(buf.Text()); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	a.log.Info("Clipboard updated", "bytes", len(buf.Text()))
	return nil
}

// AppendCmd pastes into a file.
type AppendCmd struct {
	File string `arg:"" help:"File to paste into. Created if missing." type:"path"`
	Text string `arg:"" optional:"" help:"Text to paste. Use - for stdin; omit to read the clipboard."`
	At   int    `help:"Byte offset to paste at (default: end of file)." default:"-1"`
}

func (c *AppendCmd) Run(cli *CLI) error {
	input, err := readInput(c.Text, cli.Stdin)
	if err != nil {
		return err
	}
	a, err := cli.newApp()
	if err != nil {
		return err
	}

	content, err := readFileIfExists(c.File)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.File, err)
	}
	buf := editor.New(content)
	if c.At >= 0 {
		buf.SetSelections(editor.Cursor(c.At))
	}

	changed, err := a.pasteInto(context.Background(), buf, input)
	if err != nil {
		return err
	}
	if !changed {
		return errNothingPasted
	}
	if err := os.WriteFile(c.File, []byte(buf.Text()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", c.File, err)
	}
	return nil
}

// FormatsCmd manages the configured formats.
type FormatsCmd struct {
	List         FormatsListCmd         `cmd:"" default:"1" help:"List formats and check their templates."`
	Add          FormatsAddCmd          `cmd:"" help:"Add a format."`
	Rename       FormatsRenameCmd       `cmd:"" help:"Rename a format."`
	SetTemplate  FormatsSetTemplateCmd  `cmd:"" name:"set-template" help:"Replace a format's template."`
	RequireFetch FormatsRequireFetchCmd `cmd:"" name:"require-fetch" help:"Set whether a format fetches the page title."`
	Delete       FormatsDeleteCmd       `cmd:"" help:"Delete a format."`
}

// FormatsListCmd lists the configured formats.
type FormatsListCmd struct{}

func (c *FormatsListCmd) Run(cli *CLI) error {
	_, s, err := cli.loadSettings()
	if err != nil {
		return err
	}

	// Every variable a paste can provide, so only real mistakes are flagged.
	env := template.Env{
		"pageUrl":      "",
		"highlightUrl": "",
		"url":          "",
		"text":         "",
		"title":        "",
		"app":          vault.New(s.Vault.Dir),
	}
	engine := template.New()
	for i, f := range s.Formats {
		marker := " "
		if i == s.FormatIndex {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s", marker, f.Name)
		if f.RequireFetch {
			line += " (fetches title)"
		}
		if err := engine.Check(f.Template, env); err != nil {
			line += fmt.Sprintf(" [invalid: %v]", err)
		}
		fmt.Fprintln(cli.Stdout, line)
	}
	return nil
}

type FormatsAddCmd struct {
	Name         string `arg:"" help:"Format name."`
	Template     string `arg:"" help:"Template text."`
	RequireFetch bool   `help:"Fetch the page title before rendering."`
}

func (c *FormatsAddCmd) Run(cli *CLI) error {
	return cli.editSettings(func(s *config.Settings) error {
		return s.AddFormat(config.Format{Name: c.Name, Template: c.Template, RequireFetch: c.RequireFetch})
	})
}

type FormatsRenameCmd struct {
	Name    string `arg:"" help:"Current name."`
	NewName string `arg:"" help:"New name."`
}

func (c *FormatsRenameCmd) Run(cli *CLI) error {
	return cli.editFormat(c.Name, func(s *config.Settings, i int) error {
		return s.RenameFormat(i, c.NewName)
	})
}

type FormatsSetTemplateCmd struct {
	Name     string `arg:"" help:"Format name."`
	Template string `arg:"" help:"Template text."`
}

func (c *FormatsSetTemplateCmd) Run(cli *CLI) error {
	return cli.editFormat(c.Name, func(s *config.Settings, i int) error {
		return s.SetTemplate(i, c.Template)
	})
}

type FormatsRequireFetchCmd struct {
	Name  string `arg:"" help:"Format name."`
	Fetch string `arg:"" enum:"true,false" help:"true or false."`
}

func (c *FormatsRequireFetchCmd) Run(cli *CLI) error {
	return cli.editFormat(c.Name, func(s *config.Settings, i int) error {
		return s.SetRequireFetch(i, c.Fetch == "true")
	})
}

type FormatsDeleteCmd struct {
	Name string `arg:"" help:"Format name."`
}

func (c *FormatsDeleteCmd) Run(cli *CLI) error {
	return cli.editFormat(c.Name, func(s *config.Settings, i int) error {
		return s.DeleteFormat(i)
	})
}

// SelectCmd changes the active format.
type SelectCmd struct {
	Name string `arg:"" help:"Format name."`
}

func (c *SelectCmd) Run(cli *CLI) error {
	if err := cli.editSettings(func(s *config.Settings) error {
		return s.SelectFormat(c.Name)
	}); err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout, "Active format: %s\n", c.Name)
	return nil
}

// editSettings applies fn to the settings in the config file and saves
// them. A running server picks the change up through its file watch.
func (cli *CLI) editSettings(fn func(*config.Settings) error) error {
	path, err := cli.configPath()
	if err != nil {
		return err
	}
	s, err := config.Load(path)
	if err != nil {
		return err
	}
	s = s.Clone()
	if err := fn(s); err != nil {
		return &userError{err}
	}
	return config.Save(path, s)
}

func (cli *CLI) editFormat(name string, fn func(*config.Settings, int) error) error {
	return cli.editSettings(func(s *config.Settings) error {
		i, err := s.FormatByName(name)
		if err != nil {
			return err
		}
		return fn(s, i)
	})
}

// userError prints the sentence a user sees for a settings error.
type userError struct {
	err error
}

func (e *userError) Error() string { return config.Message(e.err) }

func (e *userError) Unwrap() error { return e.err }

// HistoryCmd prints recent pastes.
type HistoryCmd struct {
	Limit  int    `short:"n" help:"Number of entries to show (0 = all)." default:"20"`
	Remove string `help:"Delete the entry whose ID starts with this prefix." placeholder:"ID"`
	Clear  bool   `help:"Delete the history instead."`
}

func (c *HistoryCmd) Run(cli *CLI) error {
	a, err := cli.newApp()
	if err != nil {
		return err
	}
	switch {
	case c.Clear:
		n := a.history.Len()
		a.history.Clear()
		if err := a.history.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cli.Stdout, "Cleared history (%d entries)\n", n)
		return nil
	case c.Remove != "":
		return c.remove(cli, a)
	}

	for _, e := range a.history.Recent(c.Limit) {
		label := e.Title
		if label == "" {
			label = e.URL
		}
		format := e.Format
		if format == "" {
			format = e.Kind
		}
		fmt.Fprintf(cli.Stdout, "%s  %s  %-16s %s\n", shortID(e.ID), e.At.Local().Format("2006-01-02 15:04"), format, label)
	}
	return nil
}

func (c *HistoryCmd) remove(cli *CLI, a *app) error {
	var matches []string
	for _, e := range a.history.Recent(0) {
		if strings.HasPrefix(e.ID, c.Remove) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("no history entry with ID %q", c.Remove)
	case 1:
	default:
		return fmt.Errorf("ID prefix %q matches %d entries", c.Remove, len(matches))
	}
	a.history.Remove(matches[0])
	if err := a.history.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout, "Removed %s\n", shortID(matches[0]))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	Addr  string `help:"Address to listen on (default from config)."`
	Watch bool   `help:"Reload formats and paste options when the config file changes. Fetcher, vault, log and server sections need a restart." default:"true" negatable:""`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := cli.newApp()
	if err != nil {
		return err
	}

	if c.Watch {
		if err := os.MkdirAll(filepath.Dir(a.configPath), 0755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
		updates, err := config.Watch(ctx, a.configPath)
		if err != nil {
			return err
		}
		go a.handler.Follow(ctx, followOverride(ctx, updates, cli.FormatName, a.log))
	}

	addr := c.Addr
	if addr == "" {
		addr = a.settings.Server.Addr
	}
	routes := server.RegisterRoutes(a.handler, server.Options{
		ConfigPath: a.configPath,
		History:    a.history,
		Logger:     a.log,
	})
	return server.Serve(ctx, addr, routes)
}

// InitConfigCmd writes the default config.
type InitConfigCmd struct {
	Force  bool `help:"Overwrite an existing file."`
	Stdout bool `help:"Print the config instead of writing it."`
}

func (c *InitConfigCmd) Run(cli *CLI) error {
	if c.Stdout {
		_, err := io.WriteString(cli.Stdout, config.DefaultTOML())
		return err
	}
	path, err := cli.configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.DefaultTOML()), 0644); err != nil {
		return err
	}
	fmt.Fprintf(cli.Stdout, "Wrote %s\n", path)
	return nil
}
