package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the bot's runtime configuration. Values are layered: defaults,
// then the config file, then RTMBOT_* environment variables, then flags.
type Config struct {
	Token        string        `toml:"token" yaml:"token" json:"token" env:"RTMBOT_TOKEN" validate:"required"`
	APIEndpoint  string        `toml:"api_endpoint" yaml:"api_endpoint" json:"api_endpoint" env:"RTMBOT_API_ENDPOINT" validate:"omitempty,url"`
	LogLevel     string        `toml:"log_level" yaml:"log_level" json:"log_level" env:"RTMBOT_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Compression  bool          `toml:"compression" yaml:"compression" json:"compression" env:"RTMBOT_COMPRESSION"`
	Prefix       string        `toml:"prefix" yaml:"prefix" json:"prefix" env:"RTMBOT_PREFIX" validate:"required"`
	PingInterval time.Duration `toml:"-" yaml:"-" json:"-" env:"RTMBOT_PING_INTERVAL" validate:"gte=0"`

	// PingEvery is the file form of PingInterval ("30s", "1m").
	PingEvery string `toml:"ping_interval" yaml:"ping_interval" json:"ping_interval"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:     "info",
		Prefix:       "!",
		PingInterval: 30 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// loadConfig builds a Config from path (optional) and environ.
func loadConfig(path string, environ []string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
		if s := strings.TrimSpace(cfg.PingEvery); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return Config{}, fmt.Errorf("parse ping_interval: %w", err)
			}
			cfg.PingInterval = d
		}
	}

	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("environment config: %w", err)
	}

	return cfg, nil
}

// decodeFile decodes path into cfg by extension. Keys absent from the file
// keep their current value; unknown keys are rejected.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level maps LogLevel onto slog.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
