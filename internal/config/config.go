// internal/config/config.go
//
// This package handles configuration and the .evaluator directory structure.
// Every project directory the client runs from gets a .evaluator/ folder
// holding the config file, the local state database, logs and downloads.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ClientDir is the name of the directory we create in each project
	ClientDir = ".evaluator"

	// Environment overrides, applied after .env and config.yaml.
	EnvAPIURL   = "EVALUATOR_API_URL"
	EnvLogLevel = "EVALUATOR_LOG_LEVEL"

	defaultBaseURL   = "http://localhost:8000/api"
	defaultUserAgent = "report-evaluator/1"
	defaultLogLevel  = "info"
	defaultMethod    = "manual"
)

const defaultClientConfigYAML = `# report evaluator client configuration
version: 1

api:
  # Root of the evaluation REST API, including the /api prefix.
  base_url: http://localhost:8000/api
  user_agent: report-evaluator/1

log:
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3
  max_age_days: 28

ui:
  # manual, llm or rule-based
  default_method: manual
`

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent,omitempty"`
}

// LogConfig controls the logbook file and its rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// UIConfig captures interactive preferences.
type UIConfig struct {
	DefaultMethod string `yaml:"default_method"`
}

// ClientConfig models .evaluator/config.yaml.
type ClientConfig struct {
	Version int       `yaml:"version"`
	API     APIConfig `yaml:"api"`
	Log     LogConfig `yaml:"log"`
	UI      UIConfig  `yaml:"ui"`
}

// Config holds the runtime configuration for the client.
type Config struct {
	// ProjectDir is the directory the client was started from
	ProjectDir string

	// ClientProjectDir is ProjectDir/.evaluator
	ClientProjectDir string

	Client ClientConfig
}

// InitClientDir creates the .evaluator directory structure in the given
// project directory and writes a default config.yaml if none exists.
//
// Structure created:
// .evaluator/
// ├── config.yaml
// ├── logs/      <- rotated client log
// ├── reports/   <- downloaded html/pdf reports
// └── state.db   <- created by the session store
func InitClientDir(projectDir string) error {
	clientDir := filepath.Join(projectDir, ClientDir)
	dirs := []string{
		clientDir,
		filepath.Join(clientDir, "logs"),
		filepath.Join(clientDir, "reports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureClientConfig(filepath.Join(clientDir, "config.yaml"))
}

// NewConfig loads ProjectDir/.env, then .evaluator/config.yaml, then the
// environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectDir:       projectDir,
		ClientProjectDir: filepath.Join(projectDir, ClientDir),
		Client:           defaultClientConfig(),
	}
	if err := cfg.loadClientConfig(); err != nil {
		return nil, err
	}
	cfg.Client.applyEnv(os.Getenv)
	if err := cfg.Client.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ClientProjectDir, "logs")
}

// LogFile returns the path of the client log
func (c *Config) LogFile() string {
	return filepath.Join(c.LogsDir(), "evaluator.log")
}

// ReportsDir returns where downloaded reports are written
func (c *Config) ReportsDir() string {
	return filepath.Join(c.ClientProjectDir, "reports")
}

// StatePath returns the session store database path
func (c *Config) StatePath() string {
	return filepath.Join(c.ClientProjectDir, "state.db")
}

// ClientConfigPath returns the on-disk location for the config file.
func (c *Config) ClientConfigPath() string {
	return filepath.Join(c.ClientProjectDir, "config.yaml")
}

// BaseURL returns the API root.
func (c *Config) BaseURL() string {
	return c.Client.API.BaseURL
}

// UserAgent returns the User-Agent sent with every request.
func (c *Config) UserAgent() string {
	return c.Client.API.UserAgent
}

// DefaultMethod returns the evaluation method preselected in step 2.
func (c *Config) DefaultMethod() string {
	return c.Client.UI.DefaultMethod
}

// SetDefaultMethod updates the preselected method and persists it back to
// .evaluator/config.yaml.
func (c *Config) SetDefaultMethod(method string) error {
	method = strings.ToLower(strings.TrimSpace(method))
	if !validMethod(method) {
		return fmt.Errorf("config: unknown evaluation method %q", method)
	}
	c.Client.UI.DefaultMethod = method
	return c.saveClientConfig()
}

func (c *Config) loadClientConfig() error {
	path := c.ClientConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ClientConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Client = parsed
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	// Load never overrides variables already present in the environment.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func defaultClientConfig() ClientConfig {
	cc := ClientConfig{}
	cc.applyDefaults()
	return cc
}

func (cc *ClientConfig) applyDefaults() {
	if cc.Version == 0 {
		cc.Version = 1
	}
	if strings.TrimSpace(cc.API.BaseURL) == "" {
		cc.API.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cc.API.UserAgent) == "" {
		cc.API.UserAgent = defaultUserAgent
	}
	if strings.TrimSpace(cc.Log.Level) == "" {
		cc.Log.Level = defaultLogLevel
	}
	if cc.Log.MaxSizeMB == 0 {
		cc.Log.MaxSizeMB = 10
	}
	if cc.Log.MaxBackups == 0 {
		cc.Log.MaxBackups = 3
	}
	if cc.Log.MaxAgeDays == 0 {
		cc.Log.MaxAgeDays = 28
	}
	if strings.TrimSpace(cc.UI.DefaultMethod) == "" {
		cc.UI.DefaultMethod = defaultMethod
	}
}

func (cc *ClientConfig) normalize() {
	cc.API.BaseURL = strings.TrimRight(strings.TrimSpace(cc.API.BaseURL), "/")
	cc.API.UserAgent = strings.TrimSpace(cc.API.UserAgent)
	cc.Log.Level = strings.ToLower(strings.TrimSpace(cc.Log.Level))
	cc.UI.DefaultMethod = strings.ToLower(strings.TrimSpace(cc.UI.DefaultMethod))
}

func (cc *ClientConfig) applyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		cc.API.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cc.Log.Level = v
	}
	cc.normalize()
}

func (cc *ClientConfig) validate() error {
	if cc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	u, err := url.Parse(cc.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", cc.API.BaseURL)
	}
	switch cc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cc.Log.MaxSizeMB < 0 || cc.Log.MaxBackups < 0 || cc.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if !validMethod(cc.UI.DefaultMethod) {
		return fmt.Errorf("ui.default_method must be manual, llm or rule-based")
	}
	return nil
}

func validMethod(method string) bool {
	switch method {
	case "manual", "llm", "rule-based":
		return true
	default:
		return false
	}
}

func ensureClientConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultClientConfigYAML), 0644)
}

func (c *Config) saveClientConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Client.applyDefaults()
	c.Client.normalize()
	if err := c.Client.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.ClientProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure client dir: %w", err)
	}
	data, err := yaml.Marshal(c.Client)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ClientConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write client config: %w", err)
	}
	return nil
}
