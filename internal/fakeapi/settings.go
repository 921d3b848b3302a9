package fakeapi

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultPort matches the port the real backend listens on.
	DefaultPort = 8000
	// DefaultTokenTTL is how long issued access tokens stay valid.
	DefaultTokenTTL = 30 * time.Minute
	// DefaultUsername and DefaultPassword seed the development account.
	DefaultUsername = "admin"
	DefaultPassword = "admin123"
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 15 * time.Second

	defaultSecret = "development-secret-change-me"
)

// Settings captures runtime configuration for the development backend.
type Settings struct {
	Host         string
	Port         int
	Secret       string
	TokenTTL     time.Duration
	Username     string
	Email        string
	Password     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SettingsFromEnv builds Settings from defaults and FAKEAPI_* overrides.
func SettingsFromEnv() Settings {
	settings := Settings{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Secret:   defaultSecret,
		TokenTTL: DefaultTokenTTL,
		Username: DefaultUsername,
		Email:    "admin@example.com",
		Password: DefaultPassword,
	}
	settings.applyEnvOverrides(os.Getenv)
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides(getenv func(string) string) {
	if s == nil {
		return
	}
	if host := strings.TrimSpace(getenv("FAKEAPI_HOST")); host != "" {
		s.Host = host
	}
	if port := strings.TrimSpace(getenv("FAKEAPI_PORT")); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && isValidPort(parsed) {
			s.Port = parsed
		}
	}
	if secret := getenv("FAKEAPI_SECRET"); secret != "" {
		s.Secret = secret
	}
	if ttl := strings.TrimSpace(getenv("FAKEAPI_TOKEN_TTL")); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil && parsed > 0 {
			s.TokenTTL = parsed
		}
	}
	if user := strings.TrimSpace(getenv("FAKEAPI_USERNAME")); user != "" {
		s.Username = user
	}
	if password := getenv("FAKEAPI_PASSWORD"); password != "" {
		s.Password = password
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port != 0 && !isValidPort(s.Port) {
		s.Port = DefaultPort
	}
	if s.Secret == "" {
		s.Secret = defaultSecret
	}
	if s.TokenTTL <= 0 {
		s.TokenTTL = DefaultTokenTTL
	}
	if s.Username == "" {
		s.Username = DefaultUsername
	}
	if s.Password == "" {
		s.Password = DefaultPassword
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
}

// Address returns the TCP bind address in host:port form. Port 0 binds an
// ephemeral port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port > 0 && port <= 65535
}
