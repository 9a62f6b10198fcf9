// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultBackendURL is used when no backend base URL is configured.
const DefaultBackendURL = "http://127.0.0.1:8000"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/letterbox-gateway/config.toml",
	"configs/config.toml",
}

// reservedPrefixes are inbound paths the metrics endpoint must not shadow.
var reservedPrefixes = []string{"/api", "/healthz", "/gateway/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML or YAML config file.',env='CONFIG_PATH'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendURL string `kong:"name='backend-url',help='Backend base URL (overrides config).',env='BACKEND_API_URL'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Backend BackendConfig `toml:"backend" yaml:"backend"`
	Log     LogConfig     `toml:"log" yaml:"log"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
	Routes  []RouteConfig `toml:"routes" yaml:"routes"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host" yaml:"host"`
	Port         int    `toml:"port" yaml:"port"` // 0 means "use default" (3000)
	BodyMaxBytes int64  `toml:"body_max_bytes" yaml:"body_max_bytes"`
}

// BackendConfig holds settings for the internal service the gateway forwards to.
type BackendConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url"`
	// TimeoutSeconds bounds a whole upstream exchange; 0 leaves it unbounded.
	TimeoutSeconds  int `toml:"timeout_seconds" yaml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections" yaml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// RouteConfig overrides one entry of the built-in route table.
type RouteConfig struct {
	Name           string   `toml:"name" yaml:"name"`
	Prefix         string   `toml:"prefix" yaml:"prefix"`
	UpstreamPath   string   `toml:"upstream_path" yaml:"upstream_path"`
	Methods        []string `toml:"methods" yaml:"methods"`
	BodyMode       string   `toml:"body_mode" yaml:"body_mode"`
	Wildcard       bool     `toml:"wildcard" yaml:"wildcard"`
	FailureMessage string   `toml:"failure_message" yaml:"failure_message"`
}

// Load reads the config file, if any, and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/letterbox-gateway/config.toml then configs/config.toml. Running without
// any config file is allowed; every setting has a default.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// decodeFile picks the decoder from the file extension.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendURL != "" {
		c.Backend.BaseURL = cli.BackendURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil {
			return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend.base_url must use http or https; got %q", c.Backend.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("backend.base_url must include a host; got %q", c.Backend.BaseURL)
		}
		if u.RawQuery != "" || u.Fragment != "" {
			return fmt.Errorf("backend.base_url must not carry a query or fragment; got %q", c.Backend.BaseURL)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must be non-negative; got %d", c.Backend.TimeoutSeconds)
	}
	if c.Backend.IdleConnections < 0 {
		return fmt.Errorf("backend.idle_connections must be non-negative; got %d", c.Backend.IdleConnections)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedPrefixes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// Zero means "unset" for integer fields because TOML cannot distinguish an
// explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBackendURL
	}
	if c.Backend.IdleConnections == 0 {
		c.Backend.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
