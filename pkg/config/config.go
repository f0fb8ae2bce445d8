// Package config loads server settings from defaults, an optional TOML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
)

// Config holds the complete server configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Session SessionConfig `toml:"session"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	GRPCPort int    `toml:"grpc_port"`
}

// SessionConfig holds evaluation settings.
type SessionConfig struct {
	MaxLineLength int    `toml:"max_line_length"`
	ScriptsDir    string `toml:"scripts_dir"`
	SeedFile      string `toml:"seed_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8787,
			GRPCPort: 8788,
		},
		Session: SessionConfig{
			MaxLineLength: runtime.DefaultMaxLineLength,
		},
	}
}

// Load builds the configuration from the defaults, the TOML file at path
// (skipped when path is empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the settings present in a TOML file. Unknown keys are
// rejected.
func (c *Config) LoadFile(path string) error {
	path = os.ExpandEnv(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	c.Session.ScriptsDir = os.ExpandEnv(c.Session.ScriptsDir)
	c.Session.SeedFile = os.ExpandEnv(c.Session.SeedFile)
	return nil
}

// ApplyEnv overlays settings from environment variables: HOST, PORT,
// GRPC_PORT, SCRIPTS_DIR, SEED_FILE and MAX_LINE_LENGTH.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("HOST"); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup("SCRIPTS_DIR"); ok && v != "" {
		c.Session.ScriptsDir = v
	}
	if v, ok := lookup("SEED_FILE"); ok && v != "" {
		c.Session.SeedFile = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"PORT", &c.Server.Port},
		{"GRPC_PORT", &c.Server.GRPCPort},
		{"MAX_LINE_LENGTH", &c.Session.MaxLineLength},
	}
	for _, e := range ints {
		v, ok := lookup(e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", e.name, v, err)
		}
		*e.dst = n
	}
	return nil
}

// Validate checks that the configuration can be served.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if err := validPort("port", c.Server.Port); err != nil {
		return err
	}
	if err := validPort("grpc_port", c.Server.GRPCPort); err != nil {
		return err
	}
	if c.Server.Port == c.Server.GRPCPort {
		return fmt.Errorf("port and grpc_port must differ (both %d)", c.Server.Port)
	}
	if c.Session.MaxLineLength <= 0 {
		return fmt.Errorf("max_line_length must be positive, got %d", c.Session.MaxLineLength)
	}
	if dir := c.Session.ScriptsDir; dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("scripts_dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("scripts_dir %s is not a directory", dir)
		}
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// HTTPAddr returns the REST listener address.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GRPCAddr returns the gRPC listener address.
func (c *Config) GRPCAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.GRPCPort))
}
