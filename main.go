// Linkpaste turns links to text highlights into formatted Markdown.
//
// Usage:
//
//	linkpaste format 'https://example.com/#:~:text=hello'
//	linkpaste clip
//	linkpaste append notes.md 'https://example.com/#:~:text=hello'
//	linkpaste serve
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Format     FormatCmd     `cmd:"" help:"Format pasted text and print the result."`
	Clip       ClipCmd       `cmd:"" help:"Format the clipboard in place."`
	Append     AppendCmd     `cmd:"" help:"Paste into a file at an offset."`
	Formats    FormatsCmd    `cmd:"" help:"List, check and edit formats."`
	Select     SelectCmd     `cmd:"" help:"Make a format the active one."`
	History    HistoryCmd    `cmd:"" help:"Show recent pastes."`
	Serve      ServeCmd      `cmd:"" help:"Serve the paste API for editor plugins."`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"Write the default config file."`

	Config     string `short:"c" help:"Path to config file." type:"path"`
	LogLevel   string `help:"Log level (debug, info, warn, error). Overrides the config file."`
	LogFormat  string `help:"Log format (simple, verbose, json). Overrides the config file."`
	FormatName string `name:"format" short:"f" help:"Use this format instead of the active one." placeholder:"NAME"`

	Stdin  io.Reader `kong:"-"`
	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

func main() {
	cli := CLI{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	ctx := kong.Parse(&cli,
		kong.Name("linkpaste"),
		kong.Description("Paste links to text highlights as formatted Markdown."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
