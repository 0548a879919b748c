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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Roster RosterConfig `yaml:"roster" mapstructure:"roster"`
	Stats  StatsConfig  `yaml:"stats" mapstructure:"stats"`
	Rank   RankConfig   `yaml:"rank" mapstructure:"rank"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver               string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL          string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns             int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns             int    `yaml:"min_conns" mapstructure:"min_conns"`
	StatementTimeoutSecs int    `yaml:"statement_timeout_secs" mapstructure:"statement_timeout_secs"`
	HistoryQueryQPS      int    `yaml:"history_query_qps" mapstructure:"history_query_qps"`
}

// RosterConfig configures the buyer roster cache.
type RosterConfig struct {
	TTLHours            int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	DegradedConcurrency int `yaml:"degraded_concurrency" mapstructure:"degraded_concurrency"`
}

// StatsConfig configures the market statistics cache.
type StatsConfig struct {
	TTLHours int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// RankConfig configures the ranking engine.
type RankConfig struct {
	// BandsFile optionally points to a YAML scoring-band override file.
	// Empty means the built-in bands.
	BandsFile string `yaml:"bands_file" mapstructure:"bands_file"`
}

// ServerConfig configures the ranking HTTP server.
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
	v.SetEnvPrefix("BUYERMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.statement_timeout_secs", 30)
	v.SetDefault("store.history_query_qps", 25)
	v.SetDefault("roster.ttl_hours", 12)
	v.SetDefault("roster.degraded_concurrency", 2)
	v.SetDefault("stats.ttl_hours", 12)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

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
