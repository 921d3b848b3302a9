package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, projectDir, body string) {
	t.Helper()
	clientDir := filepath.Join(projectDir, ClientDir)
	if err := os.MkdirAll(clientDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(clientDir, "config.yaml"), []byte(strings.TrimSpace(body)), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	projectDir := t.TempDir()

	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Client.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Client.Version)
	}
	if c.BaseURL() != defaultBaseURL {
		t.Fatalf("expected default base url %q, got %q", defaultBaseURL, c.BaseURL())
	}
	if c.DefaultMethod() != "manual" {
		t.Fatalf("expected manual default method, got %q", c.DefaultMethod())
	}
	if c.StatePath() != filepath.Join(projectDir, ".evaluator", "state.db") {
		t.Fatalf("unexpected state path %s", c.StatePath())
	}
}

func TestInitClientDirWritesParsableDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	projectDir := t.TempDir()
	if err := InitClientDir(projectDir); err != nil {
		t.Fatalf("InitClientDir: %v", err)
	}
	for _, dir := range []string{"logs", "reports"} {
		if info, err := os.Stat(filepath.Join(projectDir, ClientDir, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory, err=%v", dir, err)
		}
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("default config should load: %v", err)
	}
	if c.Client.Log.MaxBackups != 3 {
		t.Fatalf("expected 3 backups, got %d", c.Client.Log.MaxBackups)
	}

	// A second init must not clobber user edits.
	writeConfig(t, projectDir, "version: 1\nui:\n  default_method: llm\n")
	if err := InitClientDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err = NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if c.DefaultMethod() != "llm" {
		t.Fatalf("expected preserved llm method, got %q", c.DefaultMethod())
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
api:
  base_url: " https://eval.example.org/api/ "
log:
  level: DEBUG
  max_size_mb: 5
ui:
  default_method: Rule-Based
`)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.BaseURL() != "https://eval.example.org/api" {
		t.Fatalf("base url not normalized: %q", c.BaseURL())
	}
	if c.Client.Log.Level != "debug" || c.Client.Log.MaxSizeMB != 5 {
		t.Fatalf("unexpected log config %+v", c.Client.Log)
	}
	if c.DefaultMethod() != "rule-based" {
		t.Fatalf("unexpected method %q", c.DefaultMethod())
	}
	if c.UserAgent() != defaultUserAgent {
		t.Fatalf("expected default user agent, got %q", c.UserAgent())
	}
}

func TestNewConfigValidation(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	cases := map[string]string{
		"relative url": "api:\n  base_url: /api\n",
		"bad level":    "log:\n  level: loud\n",
		"bad method":   "ui:\n  default_method: crowd\n",
		"negative":     "log:\n  max_backups: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			writeConfig(t, projectDir, body)
			_, err := NewConfig(projectDir)
			if err == nil {
				t.Fatalf("expected validation error but got none")
			}
			if !strings.HasPrefix(err.Error(), "config:") {
				t.Fatalf("expected config: prefix, got %v", err)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, "api:\n  base_url: http://file.example/api\n")
	t.Setenv(EnvAPIURL, "http://env.example:9000/api/")
	t.Setenv(EnvLogLevel, "warn")

	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != "http://env.example:9000/api" {
		t.Fatalf("env override not applied: %q", c.BaseURL())
	}
	if c.Client.Log.Level != "warn" {
		t.Fatalf("log level override not applied: %q", c.Client.Log.Level)
	}
}

func TestDotEnvFeedsOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(EnvAPIURL+"=http://dotenv.example/api\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// Register for cleanup; godotenv only sets variables that are unset.
	t.Setenv(EnvAPIURL, "")
	os.Unsetenv(EnvAPIURL)

	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != "http://dotenv.example/api" {
		t.Fatalf(".env value not applied: %q", c.BaseURL())
	}
}

func TestSetDefaultMethodPersists(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvLogLevel, "")
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetDefaultMethod("bogus"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
	if err := c.SetDefaultMethod("LLM"); err != nil {
		t.Fatal(err)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.DefaultMethod() != "llm" {
		t.Fatalf("expected persisted llm, got %q", reloaded.DefaultMethod())
	}
}
