package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// DefaultPort is the listen port used when none (or an invalid one) is configured.
const DefaultPort = 5001

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel    string            `toml:"log_level"`
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Auth        AuthConfig        `toml:"auth"`
	Client      ClientConfig      `toml:"client"`
	Credentials CredentialsConfig `toml:"credentials"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	MaxPortAttempts int    `toml:"max_port_attempts"`
}

// DatabaseConfig contains database connection settings.
//
// An empty Path runs the server without persistence.
type DatabaseConfig struct {
	Path                  string `toml:"path"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	MaxOpenConns          int    `toml:"max_open_conns"`
	MaxIdleConns          int    `toml:"max_idle_conns"`
}

// ConnectTimeout returns the bound on the single database connection attempt.
func (d DatabaseConfig) ConnectTimeout() time.Duration {
	if d.ConnectTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(d.ConnectTimeoutSeconds) * time.Second
}

// AuthConfig contains session token signing settings.
type AuthConfig struct {
	TokenSecret   string `toml:"token_secret"`
	TokenTTLHours int    `toml:"token_ttl_hours"`
}

// TokenTTL returns how long issued session tokens stay valid.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.TokenTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// ClientConfig contains settings for the API client used by CLI commands.
type ClientConfig struct {
	BaseURL        string  `toml:"base_url"`
	SessionPath    string  `toml:"session_path"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
}

// Timeout returns the HTTP client timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolvedSessionPath returns the session file location, defaulting to ~/.nutrivision/session.json.
func (c ClientConfig) ResolvedSessionPath() string {
	if c.SessionPath != "" {
		return c.SessionPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".nutrivision", "session.json")
	}
	return filepath.Join(home, ".nutrivision", "session.json")
}

// CredentialsConfig contains identity provider credentials.
type CredentialsConfig struct {
	Google GoogleConfig `toml:"google"`
	Apple  AppleConfig  `toml:"apple"`
}

// GoogleConfig contains Google OAuth client settings.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// AppleConfig contains Sign in with Apple client settings.
type AppleConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from environment variables.
//
// getenv is usually [os.Getenv]. Every valid override is applied. A PORT that is not a
// positive number leaves the configured port in place and is reported in the returned
// error, which callers treat as a warning.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err != nil || port <= 0 {
			errs = append(errs, fmt.Errorf("%w: PORT=%q, keeping port %d", ErrInvalidConfig, v, c.Server.Port))
		} else {
			c.Server.Port = port
		}
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := getenv("DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		c.Auth.TokenSecret = v
	}
	if v := getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.Credentials.Google.ClientID = v
	}
	if v := getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Credentials.Google.ClientSecret = v
	}
	if v := getenv("APPLE_CLIENT_ID"); v != "" {
		c.Credentials.Apple.ClientID = v
	}
	if v := getenv("NUTRIVISION_BACKEND_URL"); v != "" {
		c.Client.BaseURL = strings.TrimRight(v, "/") + "/api"
	}
	return errors.Join(errs...)
}
