// Package config layers the engine's configuration the way the
// teacher layers its own: flags override environment, environment
// overrides a config file, a config file overrides built-in defaults.
// Flags are pflag (for cobra integration), the file format is YAML,
// and a .env file is loaded before environment variables are read so
// they can come from either the real environment or a checked-in dev
// file. Because cobra parses flags before any PersistentPreRunE hook
// runs, the caller applies these layers out of precedence order
// (file, then env) and must reapply any explicitly-passed flag
// afterward -- see cmd/canvas-sync's root command.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables cmd/canvas-sync exposes.
type Config struct {
	WorkspaceRoot string   `yaml:"workspaceRoot"`
	Transport     string   `yaml:"transport"` // "stdio" or "http"
	Port          int      `yaml:"port"`
	ExcludeGlobs  []string `yaml:"excludeGlobs"`
	LogFormat     string   `yaml:"logFormat"` // "text" or "json"
	LogLevel      string   `yaml:"logLevel"`
	GitAuditTrail bool     `yaml:"gitAuditTrail"`
	HistoryDBPath string   `yaml:"historyDbPath"`
	ReconcileCron string   `yaml:"reconcileCron"` // robfig/cron expression, "" disables
}

// Default returns the built-in defaults, the lowest layer.
func Default() *Config {
	return &Config{
		Transport:     "stdio",
		Port:          8080,
		LogFormat:     "text",
		LogLevel:      "info",
		HistoryDBPath: ".canvas-history.db",
		ReconcileCron: "*/10 * * * *",
	}
}

// LoadFile merges a YAML config file on top of cfg, in place. A
// missing file is not an error; the caller gets the lower layers
// untouched.
func LoadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads a .env file into the process environment, if
// present, before flags/env are read. A missing file is silently
// ignored.
func LoadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: failed to load .env file", "component", "config", "path", path, "error", err)
	}
}

// LoadEnv overlays cfg with CANVAS_-prefixed environment variables,
// for every variable that is actually set. It sits between the file
// layer and the flag layer: call it after LoadFile, and re-apply any
// explicitly-passed flag afterward (cmd/canvas-sync's PersistentPreRunE
// does this, since cobra parses flags before that hook runs).
func LoadEnv(cfg *Config) {
	if v, ok := os.LookupEnv("CANVAS_WORKSPACE_ROOT"); ok {
		cfg.WorkspaceRoot = v
	}
	if v, ok := os.LookupEnv("CANVAS_TRANSPORT"); ok {
		cfg.Transport = v
	}
	if v, ok := os.LookupEnv("CANVAS_PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("config: invalid CANVAS_PORT", "component", "config", "value", v)
		} else {
			cfg.Port = p
		}
	}
	if v, ok := os.LookupEnv("CANVAS_EXCLUDE"); ok {
		cfg.ExcludeGlobs = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("CANVAS_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv("CANVAS_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("CANVAS_GIT_AUDIT_TRAIL"); ok {
		cfg.GitAuditTrail = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("CANVAS_HISTORY_DB"); ok {
		cfg.HistoryDBPath = v
	}
	if v, ok := os.LookupEnv("CANVAS_RECONCILE_CRON"); ok {
		cfg.ReconcileCron = v
	}
}

// BindFlags registers cfg's fields on fs, seeded from cfg's current
// values (i.e. whatever file/env layering already produced), so the
// flag layer only overrides what the user actually passes.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.WorkspaceRoot, "workspace-root", cfg.WorkspaceRoot, "canvas workspace root directory")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: stdio or http")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP transport port")
	fs.StringSliceVar(&cfg.ExcludeGlobs, "exclude", cfg.ExcludeGlobs, "glob patterns to exclude from watching")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.GitAuditTrail, "git-audit-trail", cfg.GitAuditTrail, "initialize a git repository and .gitignore in the workspace (no commits are made automatically)")
	fs.StringVar(&cfg.HistoryDBPath, "history-db", cfg.HistoryDBPath, "path to the sqlite event history database")
	fs.StringVar(&cfg.ReconcileCron, "reconcile-cron", cfg.ReconcileCron, "cron expression for the periodic reconciliation safety net, empty disables it")
}

// Validate checks the fields that have no safe default.
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("config: workspace-root is required")
	}
	if c.Transport != "stdio" && c.Transport != "http" {
		return fmt.Errorf("config: transport must be 'stdio' or 'http', got %q", c.Transport)
	}
	return nil
}
