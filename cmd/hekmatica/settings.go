// Package main provides configuration loading.
package main

import (
	"fmt"

	"github.com/vinayprograms/hekmatica/internal/config"
)

// settings handles the configuration phase of a run.
type settings struct {
	// Parsed from CLI
	configPath  string
	clientsPath string
	maxAttempts int
	noRecord    bool

	// Loaded artifacts
	cfg     *config.Config
	clients *config.Clients
}

func newSettings(c *AskCmd) *settings {
	return &settings{
		configPath:  c.Config,
		clientsPath: c.Clients,
		maxAttempts: c.MaxAttempts,
		noRecord:    c.NoRecord,
	}
}

// load loads the config and client mapping and applies CLI overrides.
func (s *settings) load() error {
	if err := s.loadConfig(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := s.loadClients(); err != nil {
		return fmt.Errorf("loading clients: %w", err)
	}
	return nil
}

func (s *settings) loadConfig() error {
	cfg, err := config.LoadOrDefault(s.configPath)
	if err != nil {
		return err
	}
	if s.maxAttempts < 0 {
		return fmt.Errorf("--max-attempts must not be negative")
	}
	if s.maxAttempts > 0 {
		cfg.Research.MaxAttempts = s.maxAttempts
	}
	if s.noRecord {
		cfg.Storage.RecordSessions = false
	}
	s.cfg = cfg
	return nil
}

func (s *settings) loadClients() error {
	clients, err := config.LoadClients(s.clientsPath)
	if err != nil {
		return err
	}
	if err := clients.Validate(s.cfg); err != nil {
		return err
	}
	s.clients = clients
	return nil
}

// question picks the question from args, falling back to the configured default.
func (s *settings) question(args []string) string {
	q := joinArgs(args)
	if q == "" {
		q = s.cfg.Research.DefaultQuestion
	}
	return q
}
