package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables that override config.toml.
const (
	EnvAPIURL      = "DEALROOM_API_URL"
	EnvSocketURL   = "DEALROOM_SOCKET_URL"
	EnvSession     = "DEALROOM_SESSION"
	EnvMetricsAddr = "DEALROOM_METRICS_ADDR"
)

// Config represents the global ~/.dealroom/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session" validate:"omitempty,max=64"`

	APIURL string `toml:"api_url" validate:"required,url"`
	// SocketURL defaults to APIURL when empty.
	SocketURL string `toml:"socket_url" validate:"omitempty,url"`

	TypingDebounce Duration `toml:"typing_debounce" validate:"gt=0"`
	PresenceTTL    Duration `toml:"presence_ttl" validate:"gt=0"`
	TypingGrace    Duration `toml:"typing_grace" validate:"gte=0"`
	ReconnectMin   Duration `toml:"reconnect_min" validate:"gt=0"`
	ReconnectMax   Duration `toml:"reconnect_max" validate:"gtefield=ReconnectMin"`
	RequestTimeout Duration `toml:"request_timeout" validate:"gte=0"`

	MetricsAddr string `toml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// Duration is a time.Duration stored in TOML as a string such as "2s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.APIURL == "" {
		cfg.APIURL = "http://localhost:5000"
	}
	if cfg.TypingDebounce == 0 {
		cfg.TypingDebounce = Duration(2 * time.Second)
	}
	if cfg.PresenceTTL == 0 {
		cfg.PresenceTTL = Duration(6 * time.Second)
	}
	if cfg.TypingGrace == 0 {
		cfg.TypingGrace = Duration(time.Second)
	}
	if cfg.ReconnectMin == 0 {
		cfg.ReconnectMin = Duration(time.Second)
	}
	if cfg.ReconnectMax == 0 {
		cfg.ReconnectMax = Duration(30 * time.Second)
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve builds the effective configuration: the file at path (optional),
// defaults for unset keys, then environment overrides. envFile, when set,
// is loaded with godotenv first; a missing env file is not an error.
func Resolve(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		cfg = &Config{}
	}
	setDefaults(cfg)
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvSocketURL); v != "" {
		cfg.SocketURL = v
	}
	if v := os.Getenv(EnvSession); v != "" {
		cfg.DefaultSession = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RealtimeURL returns the socket URL, falling back to the API URL.
func (c *Config) RealtimeURL() string {
	if c.SocketURL != "" {
		return c.SocketURL
	}
	return c.APIURL
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
