package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultClientsFile is the optional per-operation client mapping.
const DefaultClientsFile = "clients.yaml"

// ErrUnknownOperation is returned for a clients.yaml entry that names no
// reasoning operation.
var ErrUnknownOperation = errors.New("unknown reasoning operation")

// Operations lists the reasoning operations a client can be assigned to.
var Operations = []string{"clarify", "subqueries", "plan", "rank", "answer", "critique"}

// Clients maps reasoning operations to profile names.
//
//	clients:
//	  rank: fast
//	  critique: strong
type Clients struct {
	Clients map[string]string `yaml:"clients"`
}

// LoadClients reads a clients file. A missing file yields an empty mapping.
func LoadClients(path string) (*Clients, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Clients{Clients: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("failed to read clients: %w", err)
	}
	return ParseClients(data)
}

// ParseClients decodes and validates a clients mapping.
func ParseClients(data []byte) (*Clients, error) {
	var c Clients
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse clients: %w", err)
	}
	if c.Clients == nil {
		c.Clients = map[string]string{}
	}
	for op := range c.Clients {
		if !isOperation(op) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
		}
	}
	return &c, nil
}

// Validate checks every mapped profile exists in cfg.
func (c *Clients) Validate(cfg *Config) error {
	for _, op := range c.Ops() {
		profile := c.Clients[op]
		if !cfg.HasProfile(profile) {
			return fmt.Errorf("clients.%s: profile %q not defined in config", op, profile)
		}
	}
	return nil
}

// Profile returns the profile for op, or "" for the default LLM.
func (c *Clients) Profile(op string) string {
	return c.Clients[op]
}

// Ops returns the mapped operations in sorted order.
func (c *Clients) Ops() []string {
	ops := make([]string, 0, len(c.Clients))
	for op := range c.Clients {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func isOperation(op string) bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}
