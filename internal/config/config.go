package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override the YAML file.
// Nested keys are separated by a double underscore, e.g. TPSERVER_STORAGE__DSN.
const EnvPrefix = "TPSERVER_"

var ErrInvalidConfig = errors.New("invalid config")

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen      string      `yaml:"listen"`
	Logger      Logger      `yaml:"logger"`
	Storage     Storage     `yaml:"storage"`
	Admin       Admin       `yaml:"admin"`
	CORS        CORS        `yaml:"cors"`
	Leaderboard Leaderboard `yaml:"leaderboard"`
	Metrics     Metrics     `yaml:"metrics"`
	Jobs        Jobs        `yaml:"jobs"`
}

type Logger struct {
	Level string `yaml:"level"`
}

type Storage struct {
	// Driver is either "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Admin struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Leaderboard holds the default and maximum row counts for list endpoints.
type Leaderboard struct {
	BeatmapLimit    int `yaml:"beatmap_limit"`
	GlobalLimit     int `yaml:"global_limit"`
	UserScoresLimit int `yaml:"user_scores_limit"`
	MaxLimit        int `yaml:"max_limit"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled"`
	// LatencyBuckets are the request latency histogram bounds in
	// milliseconds. Empty keeps the built-in buckets.
	LatencyBuckets []float64 `yaml:"latency_buckets"`
}

type Jobs struct {
	TotalsInterval time.Duration `yaml:"totals_interval"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Listen: ":8000",
		Logger: Logger{Level: "info"},
		Storage: Storage{
			Driver: "sqlite",
			DSN:    "data/tpserver.db",
		},
		Admin: Admin{
			Enabled: false,
			Listen:  "127.0.0.1:8001",
		},
		CORS: CORS{AllowedOrigins: []string{"*"}},
		Leaderboard: Leaderboard{
			BeatmapLimit:    50,
			GlobalLimit:     100,
			UserScoresLimit: 100,
			MaxLimit:        1000,
		},
		Metrics: Metrics{Enabled: true},
		Jobs:    Jobs{TotalsInterval: 30 * time.Second},
	}
}

// Load layers defaults, the YAML file at path (if it exists) and TPSERVER_*
// environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	provider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key == "cors.allowed_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"})
	if err != nil {
		return fmt.Errorf("apply env: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("%w: storage dsn is empty", ErrInvalidConfig)
	}
	lb := c.Leaderboard
	if lb.MaxLimit <= 0 || lb.BeatmapLimit <= 0 || lb.GlobalLimit <= 0 || lb.UserScoresLimit <= 0 {
		return fmt.Errorf("%w: leaderboard limits must be positive", ErrInvalidConfig)
	}
	if lb.BeatmapLimit > lb.MaxLimit || lb.GlobalLimit > lb.MaxLimit || lb.UserScoresLimit > lb.MaxLimit {
		return fmt.Errorf("%w: default leaderboard limit exceeds max_limit %d", ErrInvalidConfig, lb.MaxLimit)
	}
	if c.Admin.Enabled && c.Admin.Listen == "" {
		return fmt.Errorf("%w: admin enabled without listen address", ErrInvalidConfig)
	}
	for i := 1; i < len(c.Metrics.LatencyBuckets); i++ {
		if c.Metrics.LatencyBuckets[i] <= c.Metrics.LatencyBuckets[i-1] {
			return fmt.Errorf("%w: metrics.latency_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	if c.Jobs.TotalsInterval <= 0 {
		return fmt.Errorf("%w: jobs.totals_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
