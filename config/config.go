package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API         APIConfig         `yaml:"api"`
	Audio       AudioConfig       `yaml:"audio"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Notify      NotifyConfig      `yaml:"notify"`
	Pushover    PushoverConfig    `yaml:"pushover"`
	Control     ControlConfig     `yaml:"control"`
	Log         LogConfig         `yaml:"log"`
}

type APIConfig struct {
	BaseURL             string `yaml:"base_url"`
	ConnectPath         string `yaml:"connect_path"`
	SchemaPath          string `yaml:"schema_path"`
	QueryPath           string `yaml:"query_path"`
	SpeechPath          string `yaml:"speech_path"`
	Timeout             string `yaml:"timeout"`
	EnableHTTP2         bool   `yaml:"enable_http2"`
	SpeechProviderField bool   `yaml:"speech_provider_field"`
}

type AudioConfig struct {
	Source     string   `yaml:"source"`
	File       string   `yaml:"file"`
	SampleRate int      `yaml:"sample_rate"`
	Channels   int      `yaml:"channels"`
	ChunkSize  int      `yaml:"chunk_size"`
	Encodings  []string `yaml:"encodings"`
}

type PreferencesConfig struct {
	Path string `yaml:"path"`
}

type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type ControlConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
	RateLimit int    `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads the YAML file at path, expanding ${VAR} references from the
// environment. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000/api/v1"
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")
	if c.API.ConnectPath == "" {
		c.API.ConnectPath = "/connection/connect"
	}
	if c.API.SchemaPath == "" {
		c.API.SchemaPath = "/query/schema"
	}
	if c.API.QueryPath == "" {
		c.API.QueryPath = "/query/query"
	}
	if c.API.SpeechPath == "" {
		c.API.SpeechPath = "/query/speech-to-text"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "60s"
	}
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.ChunkSize == 0 {
		c.Audio.ChunkSize = 32 * 1024
	}
	if len(c.Audio.Encodings) == 0 {
		c.Audio.Encodings = []string{"audio/webm", "audio/ogg", "audio/wav"}
	}
	if c.Preferences.Path == "" {
		c.Preferences.Path = defaultPreferencesPath()
	}
	if c.Control.Addr == "" {
		c.Control.Addr = "127.0.0.1:8089"
	}
	if c.Control.RateLimit == 0 {
		c.Control.RateLimit = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must start with http:// or https://, got %q", c.API.BaseURL)
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	switch c.Audio.Source {
	case "microphone":
	case "file":
		if c.Audio.File == "" {
			return fmt.Errorf("audio.file is required when audio.source is file")
		}
	default:
		return fmt.Errorf("unknown audio.source %q", c.Audio.Source)
	}
	if c.Audio.SampleRate < 0 || c.Audio.Channels < 0 || c.Audio.ChunkSize < 0 {
		return fmt.Errorf("audio sample_rate, channels and chunk_size must be positive")
	}
	if c.Pushover.Enabled && (c.Pushover.Token == "" || c.Pushover.UserKey == "") {
		return fmt.Errorf("pushover.token and pushover.user_key are required when pushover is enabled")
	}
	return nil
}

func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing api.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("api.timeout must not be negative")
	}
	return d, nil
}

func defaultPreferencesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "easyquery-preferences.json"
	}
	return filepath.Join(dir, "easyquery", "preferences.json")
}
