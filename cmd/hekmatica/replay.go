package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinayprograms/hekmatica/internal/config"
	"github.com/vinayprograms/hekmatica/internal/replay"
	"github.com/vinayprograms/hekmatica/internal/session"
)

// Run replays each named transcript.
func (c *ReplayCmd) Run() error {
	paths, err := c.resolve()
	if err != nil {
		return err
	}
	return replay.New(os.Stdout, c.Verbose).ReplayFiles(paths)
}

// resolve expands globs and maps bare run IDs into the sessions directory.
func (c *ReplayCmd) resolve() ([]string, error) {
	var sessionsDir string
	var paths []string

	for _, arg := range c.Sessions {
		if strings.ContainsAny(arg, "*?[") {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no sessions match %q", arg)
			}
			paths = append(paths, matches...)
			continue
		}
		if _, err := os.Stat(arg); err == nil || strings.ContainsRune(arg, filepath.Separator) {
			paths = append(paths, arg)
			continue
		}

		if sessionsDir == "" {
			cfg, err := config.LoadOrDefault(c.Config)
			if err != nil {
				return nil, fmt.Errorf("loading config: %w", err)
			}
			sessionsDir = cfg.SessionsDir()
		}
		paths = append(paths, session.FilePath(sessionsDir, strings.TrimSuffix(arg, ".jsonl")))
	}
	return paths, nil
}
