// Package config loads process configuration from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"APP_ENV"`
	Port        int    `mapstructure:"PORT"`
	DataDir     string `mapstructure:"DATA_DIR"`
	WSPath      string `mapstructure:"WS_PATH"`
	CorsOrigins string `mapstructure:"CORS_ORIGINS"`

	MaxConcurrentSources int           `mapstructure:"MAX_CONCURRENT_SOURCES"`
	MaxPagesPerSource    int           `mapstructure:"MAX_PAGES_PER_SOURCE"`
	CommentsPerPost      int           `mapstructure:"COMMENTS_PER_POST"`
	ScrollsPerPage       int           `mapstructure:"SCROLLS_PER_PAGE"`
	MaxPostAge           time.Duration `mapstructure:"MAX_POST_AGE"`
	WallBudget           time.Duration `mapstructure:"WALL_BUDGET"`

	DebounceWindow    time.Duration `mapstructure:"DEBOUNCE_WINDOW"`
	EnrichParallelism int           `mapstructure:"ENRICH_PARALLELISM"`
	ProviderCooldown  time.Duration `mapstructure:"PROVIDER_COOLDOWN"`

	BirdeyeAPIKey  string `mapstructure:"BIRDEYE_API_KEY"`
	JupiterBaseURL string `mapstructure:"JUPITER_BASE_URL"`
	TokenOracleURL string `mapstructure:"TOKEN_ORACLE_URL"`
	TokenOracleKey string `mapstructure:"TOKEN_ORACLE_KEY"`

	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

// Load reads configPath (an .env-formatted file, tolerated if absent) and
// the process environment into a Config, applying defaults for anything
// left unset.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	// AutomaticEnv only answers keys viper already knows, so bind every
	// field's key for Unmarshal to see process-environment values.
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("mapstructure"); key != "" {
			if err := viper.BindEnv(key); err != nil {
				return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
			}
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.WSPath == "" {
		cfg.WSPath = "/ws"
	}
	if cfg.MaxConcurrentSources == 0 {
		cfg.MaxConcurrentSources = 3
	}
	if cfg.MaxPagesPerSource == 0 {
		cfg.MaxPagesPerSource = 5
	}
	if cfg.CommentsPerPost == 0 {
		cfg.CommentsPerPost = 10
	}
	if cfg.ScrollsPerPage == 0 {
		cfg.ScrollsPerPage = 5
	}
	if cfg.MaxPostAge == 0 {
		cfg.MaxPostAge = 14 * 24 * time.Hour
	}
	if cfg.WallBudget == 0 {
		cfg.WallBudget = 3 * time.Minute
	}
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = 3 * time.Second
	}
	if cfg.EnrichParallelism == 0 {
		cfg.EnrichParallelism = 4
	}
	if cfg.ProviderCooldown == 0 {
		cfg.ProviderCooldown = 30 * time.Second
	}
	if cfg.JupiterBaseURL == "" {
		cfg.JupiterBaseURL = "https://price.jup.ag/v6"
	}
}
