// Package main defines the CLI structure using kong.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/vinayprograms/hekmatica/internal/config"
	"github.com/vinayprograms/hekmatica/internal/setup"
)

// CLI defines the command-line interface.
type CLI struct {
	Ask     AskCmd     `cmd:"" default:"withargs" help:"Research a question (default command)"`
	Setup   SetupCmd   `cmd:"" help:"Interactive setup wizard"`
	Replay  ReplayCmd  `cmd:"" help:"Replay recorded research runs"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// AskCmd researches one question.
type AskCmd struct {
	Question      []string `arg:"" optional:"" help:"Question to research (default: research.default_question)"`
	Clarification string   `short:"c" help:"Answer to any clarifying question; the user is not prompted"`
	MaxAttempts   int      `short:"n" help:"Maximum answer attempts (overrides config)"`
	Config        string   `default:"${config_file}" help:"Config file path"`
	Clients       string   `default:"${clients_file}" help:"Per-operation client mapping"`
	NoRecord      bool     `help:"Do not write a session transcript"`
	Quiet         bool     `short:"q" help:"Suppress progress output"`
}

// SetupCmd runs the interactive setup wizard.
type SetupCmd struct {
	Output string `short:"o" default:"${config_file}" help:"Config file to write"`
}

// ReplayCmd replays recorded runs.
type ReplayCmd struct {
	Sessions []string `arg:"" help:"Session files or run IDs (supports glob patterns)"`
	Verbose  int      `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	Config   string   `default:"${config_file}" help:"Config file path (locates recorded sessions)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// Run prints the version.
func (c *VersionCmd) Run() error {
	fmt.Printf("hekmatica version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// Run starts the wizard.
func (c *SetupCmd) Run() error {
	return setup.Run(c.Output)
}

// kongVars returns variables for kong (version info, default paths).
func kongVars() kong.Vars {
	return kong.Vars{
		"version":      version,
		"config_file":  config.DefaultFile,
		"clients_file": config.DefaultClientsFile,
	}
}
