package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/spotcanvas/internal/canvas"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Canvas      CanvasConfig      `toml:"canvas"`
	HTTP        HTTPConfig        `toml:"http"`
	Database    DatabaseConfig    `toml:"database"`
	Batch       BatchConfig       `toml:"batch"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains the tokens sent to Pathfinder.
type SpotifyConfig struct {
	AccessToken          string `toml:"access_token"`
	ClientToken          string `toml:"client_token"`
	ClientTokenExpiresAt int64  `toml:"client_token_expires_at"`
}

// CanvasConfig locates the Pathfinder canvas query.
type CanvasConfig struct {
	EndpointURL    string `toml:"endpoint_url"`
	OperationName  string `toml:"operation_name"`
	QueryHash      string `toml:"query_hash"`
	ClientTokenURL string `toml:"client_token_url"`
}

// HTTPConfig contains transport settings.
type HTTPConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// BatchConfig contains defaults for batch fetches.
type BatchConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
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

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML. The file holds tokens, so it is only readable by the owner.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Query converts the canvas section to a [canvas.Config].
func (c CanvasConfig) Query() canvas.Config {
	return canvas.Config{
		EndpointURL:   c.EndpointURL,
		OperationName: c.OperationName,
		QueryHash:     c.QueryHash,
	}
}

// Timeout returns the HTTP client timeout, defaulting to 30 seconds.
func (h HTTPConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// ResolveAccessToken picks the first non-empty token of flag, the SPOTIFY_TOKEN environment variable and the config file.
func (c *Config) ResolveAccessToken(flag string) (string, error) {
	for _, token := range []string{flag, os.Getenv("SPOTIFY_TOKEN"), c.Credentials.Spotify.AccessToken} {
		if token = trimBearer(token); token != "" {
			return token, nil
		}
	}
	return "", canvas.ErrMissingAccessToken
}

// ClientTokenTTL returns the seconds the saved client-token has left at now.
// ok is false when no token is saved, its expiry is unknown, or it has already expired.
func (s SpotifyConfig) ClientTokenTTL(now time.Time) (seconds int64, ok bool) {
	if s.ClientToken == "" || s.ClientTokenExpiresAt <= 0 {
		return 0, false
	}
	seconds = s.ClientTokenExpiresAt - now.Unix()
	return seconds, seconds > 0
}

// trimBearer strips a pasted "Bearer " prefix.
func trimBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
