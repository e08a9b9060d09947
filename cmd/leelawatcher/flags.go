package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmmcquay/leelawatcher/internal/config"
	"github.com/dmmcquay/leelawatcher/internal/registry"
)

const usage = `Usage: leelawatcher [flags] [<autogtp command> [<autogtp dir>]]

Runs the training harness and follows the games it plays.

Flags:
`

// options holds command line overrides. Unset values leave the config alone.
type options struct {
	configPath  string
	noSGF       bool
	boardOnly   bool
	mcp         bool
	showVersion bool
	threshold   int
	httpAddr    string
	command     string
	dir         string

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("leelawatcher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&o.configPath, "config", "", "Path to a YAML, JSON or TOML config file")
	fs.BoolVar(&o.noSGF, "no-sgf", false, "Do not write SGF files for finished games")
	fs.BoolVar(&o.boardOnly, "board-only", false, "Do not echo harness output to stdout")
	fs.IntVar(&o.threshold, "t", registry.DefaultPostEndgameThreshold, "Move number after which a game counts as in its endgame")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP listen address (empty string from config disables)")
	fs.BoolVar(&o.mcp, "mcp", false, "Serve MCP tools on stdin/stdout")
	fs.BoolVar(&o.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	rest := fs.Args()
	if len(rest) > 2 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest[2:])
	}
	if len(rest) > 0 {
		o.command = rest[0]
	}
	if len(rest) > 1 {
		o.dir = rest[1]
	}
	return o, nil
}

// apply copies the flags given on the command line onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["no-sgf"] {
		cfg.Viewer.NoSGF = o.noSGF
	}
	if o.set["board-only"] {
		cfg.Viewer.BoardOnly = o.boardOnly
	}
	if o.set["t"] {
		cfg.Viewer.PostEndgameThreshold = max(o.threshold, 1)
	}
	if o.set["http"] {
		cfg.Server.HTTPAddr = o.httpAddr
	}
	if o.set["mcp"] {
		cfg.Server.MCP = o.mcp
	}
	if o.command != "" {
		cfg.Harness.Command = o.command
	}
	if o.dir != "" {
		cfg.Harness.Dir = o.dir
	}
}
