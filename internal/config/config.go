// Package config loads service configuration from config.yaml and SIM_
// environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: SIM_MODEL__API_KEY sets model.api_key.
const EnvPrefix = "SIM_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Model      ModelConfig      `koanf:"model"`
	Personas   PersonasConfig   `koanf:"personas"`
	Storage    StorageConfig    `koanf:"storage"`
	Simulation SimulationConfig `koanf:"simulation"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// UploadDir receives media posted to the upload endpoint.
	UploadDir      string `koanf:"upload_dir"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
}

// ModelConfig configures the model provider and its call discipline.
type ModelConfig struct {
	Provider  string `koanf:"provider"` // gemini, offline
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	FastModel string `koanf:"fast_model"`
	LiteModel string `koanf:"lite_model"`

	// MaxConcurrent caps outstanding model calls across the whole process.
	MaxConcurrent int64         `koanf:"max_concurrent"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxRetries    int           `koanf:"max_retries"`
	BaseDelay     time.Duration `koanf:"base_delay"`
	MaxDelay      time.Duration `koanf:"max_delay"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	MediaTimeout  time.Duration `koanf:"media_timeout"`
}

type PersonasConfig struct {
	Dir   string `koanf:"dir"`
	Watch bool   `koanf:"watch"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type SimulationConfig struct {
	MaxEvents         int `koanf:"max_events"`
	EventsPerPersona  int `koanf:"events_per_persona"`
	PromptTokenBudget int `koanf:"prompt_token_budget"`
}

type TelemetryConfig struct {
	Tracing     bool    `koanf:"tracing"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

var defaults = map[string]any{
	"server.port":                    8000,
	"server.request_timeout":         "10m",
	"server.upload_dir":              "videos",
	"server.max_upload_bytes":        512 << 20,
	"model.provider":                 "gemini",
	"model.model":                    "gemini-2.5-flash",
	"model.fast_model":               "gemini-2.0-flash",
	"model.lite_model":               "gemini-2.0-flash-lite",
	"model.max_concurrent":           50,
	"model.timeout":                  "60s",
	"model.max_retries":              3,
	"model.base_delay":               "1s",
	"model.max_delay":                "8s",
	"model.poll_interval":            "2s",
	"model.media_timeout":            "60s",
	"personas.dir":                   "data/personas",
	"storage.type":                   "memory",
	"storage.sqlite.path":            "audiencesim.db",
	"simulation.max_events":          500,
	"simulation.events_per_persona":  10,
	"simulation.prompt_token_budget": 6000,
	"telemetry.service_name":         "audiencesim",
	"telemetry.sample_ratio":         1.0,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath (if present) and environment overrides.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path (if present) and environment overrides.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Model.APIKey = substituteEnvVars(cfg.Model.APIKey)
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Model.MaxConcurrent < 1 {
		return fmt.Errorf("model.max_concurrent must be at least 1, got %d", c.Model.MaxConcurrent)
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max_retries must not be negative")
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1], got %v", r)
	}
	switch c.Storage.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage type %q (want memory or sqlite)", c.Storage.Type)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
