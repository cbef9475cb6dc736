// Package config loads instance configuration from YAML into a defaults
// struct, validating the tick-timing and role invariants before an instance
// ever starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TickTiming bounds how long a scheduler tick's dt may span: a starting
// tick counter, a floor and ceiling on dt, and the default dt handed to
// Invoke when nothing overrides it.
type TickTiming struct {
	StartingTick uint64        `yaml:"startingTick"`
	MinDt        time.Duration `yaml:"minDt"`
	MaxDt        time.Duration `yaml:"maxDt"`
	DefaultDt    time.Duration `yaml:"defaultDt"`
}

// DefaultTickTiming is a conservative baseline: a 1ms floor, a 250ms
// ceiling, and a 10ms default tick.
var DefaultTickTiming = TickTiming{
	StartingTick: 1,
	MinDt:        time.Millisecond,
	MaxDt:        250 * time.Millisecond,
	DefaultDt:    10 * time.Millisecond,
}

// SessionConfig bounds the framed/compressed session transport.
type SessionConfig struct {
	MessageSizeLimit int `yaml:"messageSizeLimit"`
}

// DefaultSessionConfig is a conservative ceiling (16 MiB decoded) large
// enough for a batch of chunk partial-sync messages.
var DefaultSessionConfig = SessionConfig{MessageSizeLimit: 16 << 20}

// Role selects which side of the client/server split an instance runs.
type Role string

const (
	RoleClient  Role = "client"
	RoleServer  Role = "server"
	RoleUnified Role = "unified"
)

// InstanceConfig is the top-level configuration for one running instance.
type InstanceConfig struct {
	Role       Role          `yaml:"role"`
	ListenAddr string        `yaml:"listenAddr,omitempty"`
	ConnectTo  string        `yaml:"connectTo,omitempty"`
	Workers    int           `yaml:"workers"`
	TickTiming TickTiming    `yaml:"tickTiming"`
	Session    SessionConfig `yaml:"session"`
}

// Default returns an InstanceConfig with sane baseline values.
func Default() InstanceConfig {
	return InstanceConfig{
		Role:       RoleUnified,
		Workers:    4,
		TickTiming: DefaultTickTiming,
		Session:    DefaultSessionConfig,
	}
}

// Validate checks the tick-timing and role invariants an instance needs to
// start safely.
func (c InstanceConfig) Validate() error {
	switch c.Role {
	case RoleClient, RoleServer, RoleUnified:
	default:
		return fmt.Errorf("config: unknown role %q", c.Role)
	}
	if c.TickTiming.StartingTick == 0 {
		return fmt.Errorf("config: startingTick must be > 0")
	}
	if c.TickTiming.MinDt <= 0 {
		return fmt.Errorf("config: minDt must be > 0")
	}
	if c.TickTiming.MaxDt < c.TickTiming.MinDt {
		return fmt.Errorf("config: maxDt must be >= minDt")
	}
	if c.TickTiming.DefaultDt < c.TickTiming.MinDt || c.TickTiming.DefaultDt > c.TickTiming.MaxDt {
		return fmt.Errorf("config: defaultDt must be within [minDt, maxDt]")
	}
	if c.Session.MessageSizeLimit <= 0 {
		return fmt.Errorf("config: session.messageSizeLimit must be > 0")
	}
	return nil
}

// Load reads and parses an InstanceConfig from a YAML file on top of
// Default(): a field the file omits keeps its baseline value, while a field
// the file sets explicitly, even to zero, is taken as written.
func Load(path string) (InstanceConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return InstanceConfig{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return InstanceConfig{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return InstanceConfig{}, err
	}
	return cfg, nil
}
