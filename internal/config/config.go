// Package config loads docidx configuration from defaults, YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".docidx.yaml"

// Backend names accepted by index.backend.
const (
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
)

// Config represents the complete docidx configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Server  ServerConfig `yaml:"server" json:"server"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
	Ingest  IngestConfig `yaml:"ingest" json:"ingest"`
}

// IndexConfig configures where and how the index is stored.
type IndexConfig struct {
	// Dir is the index directory. Relative paths resolve against the
	// directory the configuration was loaded from.
	Dir string `yaml:"dir" json:"dir"`

	// Backend selects the engine: "bleve" (default) or "sqlite" (FTS5).
	Backend string `yaml:"backend" json:"backend"`

	// LookupCacheSize is the per-reader LRU size for id lookups. 0 disables it.
	LookupCacheSize int `yaml:"lookup_cache_size" json:"lookup_cache_size"`
}

// SearchConfig configures result limits.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k" json:"max_top_k"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport   string `yaml:"transport" json:"transport"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// WatchConfig configures directory watching.
type WatchConfig struct {
	// Include are doublestar globs, relative to the watched root.
	Include []string `yaml:"include" json:"include"`
	// Exclude globs win over Include.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// Debounce is the quiet period before a batch is committed (e.g. "500ms").
	Debounce string `yaml:"debounce" json:"debounce"`
}

// IngestConfig configures the Kafka ingest loop.
type IngestConfig struct {
	Brokers       []string `yaml:"brokers" json:"brokers"`
	Topic         string   `yaml:"topic" json:"topic"`
	GroupID       string   `yaml:"group_id" json:"group_id"`
	BatchSize     int      `yaml:"batch_size" json:"batch_size"`
	FlushInterval string   `yaml:"flush_interval" json:"flush_interval"`
}

var defaultWatchExclude = []string{
	"**/.git/**",
	"**/.docidx/**",
	"**/node_modules/**",
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Dir:             filepath.Join(".docidx", "index"),
			Backend:         BackendBleve,
			LookupCacheSize: 1024,
		},
		Search: SearchConfig{
			DefaultTopK: 10,
			MaxTopK:     100,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Watch: WatchConfig{
			Include:  []string{"**/*.txt", "**/*.md"},
			Exclude:  append([]string{}, defaultWatchExclude...),
			Debounce: "500ms",
		},
		Ingest: IngestConfig{
			Topic:         "docidx-documents",
			GroupID:       "docidx",
			BatchSize:     100,
			FlushInterval: "1s",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/docidx/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docidx/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docidx", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docidx", "config.yaml")
	}
	return filepath.Join(home, ".config", "docidx", "config.yaml")
}

// Load loads configuration for the given directory.
// Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/docidx/config.yaml)
//  3. Project config (.docidx.yaml in dir)
//  4. Environment variables (DOCIDX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, dxerrors.ConfigError("failed to load user config", err).
				WithDetail("path", userPath)
		}
	}

	projectPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, dxerrors.ConfigError("failed to load project config", err).
				WithDetail("path", projectPath)
		}
	}

	cfg.applyEnvOverrides()

	if !filepath.IsAbs(cfg.Index.Dir) {
		cfg.Index.Dir = filepath.Join(dir, cfg.Index.Dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, dxerrors.ConfigError("invalid configuration", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Dir != "" {
		c.Index.Dir = other.Index.Dir
	}
	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
	}
	if other.Index.LookupCacheSize != 0 {
		c.Index.LookupCacheSize = other.Index.LookupCacheSize
	}

	if other.Search.DefaultTopK != 0 {
		c.Search.DefaultTopK = other.Search.DefaultTopK
	}
	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}

	if len(other.Watch.Include) > 0 {
		c.Watch.Include = other.Watch.Include
	}
	if len(other.Watch.Exclude) > 0 {
		// extend the defaults rather than replace them
		c.Watch.Exclude = append(c.Watch.Exclude, other.Watch.Exclude...)
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if len(other.Ingest.Brokers) > 0 {
		c.Ingest.Brokers = other.Ingest.Brokers
	}
	if other.Ingest.Topic != "" {
		c.Ingest.Topic = other.Ingest.Topic
	}
	if other.Ingest.GroupID != "" {
		c.Ingest.GroupID = other.Ingest.GroupID
	}
	if other.Ingest.BatchSize != 0 {
		c.Ingest.BatchSize = other.Ingest.BatchSize
	}
	if other.Ingest.FlushInterval != "" {
		c.Ingest.FlushInterval = other.Ingest.FlushInterval
	}
}

// applyEnvOverrides applies DOCIDX_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCIDX_INDEX_DIR"); v != "" {
		c.Index.Dir = v
	}
	if v := os.Getenv("DOCIDX_BACKEND"); v != "" {
		c.Index.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DOCIDX_LOOKUP_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Index.LookupCacheSize = n
		}
	}
	if v := os.Getenv("DOCIDX_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultTopK = n
		}
	}
	if v := os.Getenv("DOCIDX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DOCIDX_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := os.Getenv("DOCIDX_KAFKA_BROKERS"); v != "" {
		c.Ingest.Brokers = splitList(v)
	}
	if v := os.Getenv("DOCIDX_KAFKA_TOPIC"); v != "" {
		c.Ingest.Topic = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case BackendBleve, BackendSQLite:
	default:
		return fmt.Errorf("index.backend must be 'bleve' or 'sqlite', got %q", c.Index.Backend)
	}
	if c.Index.Dir == "" {
		return fmt.Errorf("index.dir must not be empty")
	}
	if c.Index.LookupCacheSize < 0 {
		return fmt.Errorf("index.lookup_cache_size must be non-negative, got %d", c.Index.LookupCacheSize)
	}

	if c.Search.DefaultTopK < 1 {
		return fmt.Errorf("search.default_top_k must be at least 1, got %d", c.Search.DefaultTopK)
	}
	if c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search.max_top_k (%d) must be >= search.default_top_k (%d)", c.Search.MaxTopK, c.Search.DefaultTopK)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if _, err := c.WatchDebounce(); err != nil {
		return err
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if _, err := c.IngestFlushInterval(); err != nil {
		return err
	}

	return nil
}

// WatchDebounce parses watch.debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("watch.debounce must be a positive duration, got %q", c.Watch.Debounce)
	}
	return d, nil
}

// IngestFlushInterval parses ingest.flush_interval.
func (c *Config) IngestFlushInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Ingest.FlushInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("ingest.flush_interval must be a positive duration, got %q", c.Ingest.FlushInterval)
	}
	return d, nil
}

// ClampTopK applies the configured default and ceiling to a requested limit.
// Zero or negative requests use the default.
func (c *Config) ClampTopK(requested int) int {
	if requested <= 0 {
		return c.Search.DefaultTopK
	}
	if requested > c.Search.MaxTopK {
		return c.Search.MaxTopK
	}
	return requested
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
