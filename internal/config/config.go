// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// process start and passed by reference into the pipeline constructor.
type Config struct {
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PlacesConfig holds Google Geocoding/Places API settings.
type PlacesConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	RadiusMeters  int     `yaml:"radius_meters" mapstructure:"radius_meters"`
	PageDelaySecs int     `yaml:"page_delay_secs" mapstructure:"page_delay_secs"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures discovery and classification behavior.
type PipelineConfig struct {
	MaxResults      int    `yaml:"max_results" mapstructure:"max_results"`
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchPauseSecs  int    `yaml:"batch_pause_secs" mapstructure:"batch_pause_secs"`
	SnippetMaxChars int    `yaml:"snippet_max_chars" mapstructure:"snippet_max_chars"`
	OutputDir       string `yaml:"output_dir" mapstructure:"output_dir"`
	TextFilename    string `yaml:"text_filename" mapstructure:"text_filename"`
	CSVFilename     string `yaml:"csv_filename" mapstructure:"csv_filename"`
}

// ServerConfig configures the analyze webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NOSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so the env-only keys are known to
	// viper at unmarshal time.
	v.SetDefault("places.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("places.radius_meters", 5000)
	v.SetDefault("places.page_delay_secs", 2)
	v.SetDefault("places.rate_limit_rps", 10.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("pipeline.max_results", 50)
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.batch_pause_secs", 2)
	v.SetDefault("pipeline.snippet_max_chars", 500)
	v.SetDefault("pipeline.output_dir", ".")
	v.SetDefault("pipeline.text_filename", "places_businesses_without_websites.txt")
	v.SetDefault("pipeline.csv_filename", "places_businesses_without_websites.csv")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
