package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Suggest  SuggestConfig  `yaml:"suggest" mapstructure:"suggest"`
	Validate ValidateConfig `yaml:"validate" mapstructure:"validate"`
	Quality  QualityConfig  `yaml:"quality" mapstructure:"quality"`
	Jobs     JobsConfig     `yaml:"jobs" mapstructure:"jobs"`
	Scorer   ScorerConfig   `yaml:"scorer" mapstructure:"scorer"`
	Scan     ScanConfig     `yaml:"scan" mapstructure:"scan"`
}

// ScanConfig selects the default scan adapter and configures the CSV one.
type ScanConfig struct {
	// Adapter is the scan adapter used when a request does not name one.
	Adapter string `yaml:"adapter" mapstructure:"adapter"`
	// CSVDir is the directory the csv adapter reads source files from.
	CSVDir string `yaml:"csv_dir" mapstructure:"csv_dir"`
	// Latin1 decodes CSV files as ISO 8859-1 instead of UTF-8.
	Latin1 bool `yaml:"latin1" mapstructure:"latin1"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SuggestConfig configures the mapping suggestion engine.
type SuggestConfig struct {
	// MinScore is the cutoff below which candidate pairs are dropped.
	MinScore float64 `yaml:"min_score" mapstructure:"min_score"`
	// EnhancedTimeoutSecs bounds a single enhanced-scorer call.
	EnhancedTimeoutSecs int `yaml:"enhanced_timeout_secs" mapstructure:"enhanced_timeout_secs"`
	// EnhancedRatePerSec throttles enhanced-scorer calls.
	EnhancedRatePerSec float64 `yaml:"enhanced_rate_per_sec" mapstructure:"enhanced_rate_per_sec"`
}

// ValidateConfig configures the mapping validator.
type ValidateConfig struct {
	SampleSize int `yaml:"sample_size" mapstructure:"sample_size"`
	// ConfidenceThreshold gates the pending/proposed -> validated transition.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	// ValidationWeight is the blend weight given to the validation-time
	// confidence over the suggestion-time confidence.
	ValidationWeight float64 `yaml:"validation_weight" mapstructure:"validation_weight"`
}

// QualityConfig configures quality checks and fix application.
type QualityConfig struct {
	NullRateThreshold      float64 `yaml:"null_rate_threshold" mapstructure:"null_rate_threshold"`
	DuplicateRateThreshold float64 `yaml:"duplicate_rate_threshold" mapstructure:"duplicate_rate_threshold"`
	FormatFailureThreshold float64 `yaml:"format_failure_threshold" mapstructure:"format_failure_threshold"`
	StaleSLAHours          int     `yaml:"stale_sla_hours" mapstructure:"stale_sla_hours"`
	FixMaxAttempts         int     `yaml:"fix_max_attempts" mapstructure:"fix_max_attempts"`
}

// JobsConfig configures the job orchestrator.
type JobsConfig struct {
	// Concurrency bounds how many source systems run jobs in parallel.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// QueueCapacity bounds the pending submissions channel.
	QueueCapacity int `yaml:"queue_capacity" mapstructure:"queue_capacity"`
	// SchedulerIntervalSecs is how often the scheduled-job loop wakes up.
	SchedulerIntervalSecs int `yaml:"scheduler_interval_secs" mapstructure:"scheduler_interval_secs"`
}

// ScorerConfig holds settings for the optional enhanced confidence scorer.
type ScorerConfig struct {
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model        string `yaml:"model" mapstructure:"model"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("C360")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "c360.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("suggest.min_score", 0.3)
	v.SetDefault("suggest.enhanced_timeout_secs", 10)
	v.SetDefault("suggest.enhanced_rate_per_sec", 2.0)
	v.SetDefault("validate.sample_size", 100)
	v.SetDefault("validate.confidence_threshold", 0.8)
	v.SetDefault("validate.validation_weight", 0.7)
	v.SetDefault("quality.null_rate_threshold", 0.05)
	v.SetDefault("quality.duplicate_rate_threshold", 0.02)
	v.SetDefault("quality.format_failure_threshold", 0.05)
	v.SetDefault("quality.stale_sla_hours", 48)
	v.SetDefault("quality.fix_max_attempts", 3)
	v.SetDefault("jobs.concurrency", 4)
	v.SetDefault("jobs.queue_capacity", 256)
	v.SetDefault("jobs.scheduler_interval_secs", 60)
	v.SetDefault("scorer.model", "claude-haiku-4-5-20251001")
	v.SetDefault("scan.adapter", "csv")
	v.SetDefault("scan.csv_dir", "data")

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
