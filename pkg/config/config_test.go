package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exprcalc.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.HTTPAddr() != "0.0.0.0:8787" || cfg.GRPCAddr() != "0.0.0.0:8788" {
		t.Errorf("unexpected addresses %s %s", cfg.HTTPAddr(), cfg.GRPCAddr())
	}
	if cfg.Session.MaxLineLength != 400 {
		t.Errorf("max line length = %d", cfg.Session.MaxLineLength)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000

[session]
max_line_length = 120
scripts_dir = "`+dir+`"
`)

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.GRPCPort != 8788 {
		t.Errorf("unset key overwrote default: %d", cfg.Server.GRPCPort)
	}
	if cfg.Session.MaxLineLength != 120 || cfg.Session.ScriptsDir != dir {
		t.Errorf("session = %+v", cfg.Session)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "[server]\nportt = 1\n", "unknown config keys"},
		{"bad syntax", "[server\n", "failed to parse config"},
		{"wrong type", "[server]\nport = \"x\"\n", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default().LoadFile(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if err := Default().LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"HOST":            "localhost",
		"PORT":            "1234",
		"GRPC_PORT":       "",
		"MAX_LINE_LENGTH": "80",
		"SEED_FILE":       "seed.yaml",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr() != "localhost:1234" || cfg.Server.GRPCPort != 8788 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Session.MaxLineLength != 80 || cfg.Session.SeedFile != "seed.yaml" {
		t.Errorf("session = %+v", cfg.Session)
	}

	if err := Default().ApplyEnv(envMap(map[string]string{"PORT": "eighty"})); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

func TestValidate(t *testing.T) {
	file := writeConfig(t, "")
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty host", func(c *Config) { c.Server.Host = "" }, "host"},
		{"port range", func(c *Config) { c.Server.Port = 70000 }, "port must be between"},
		{"grpc port range", func(c *Config) { c.Server.GRPCPort = 0 }, "grpc_port"},
		{"same ports", func(c *Config) { c.Server.GRPCPort = c.Server.Port }, "must differ"},
		{"line length", func(c *Config) { c.Session.MaxLineLength = 0 }, "max_line_length"},
		{"scripts dir missing", func(c *Config) { c.Session.ScriptsDir = file + ".nope" }, "scripts_dir"},
		{"scripts dir is file", func(c *Config) { c.Session.ScriptsDir = file }, "not a directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
