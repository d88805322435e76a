// Package config provides configuration management for the recorder using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort         = 8080
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 10
	defaultConnMaxIdleTime    = 30 * time.Minute
	defaultSegmentDuration    = 60
	defaultMaxStreams         = 64
	defaultMaxPrebufferFrames = 750
	defaultSourceRetryDelay   = 5 * time.Second
	defaultSourceRetryLimit   = 5
	defaultDedupCapacity      = 32
	defaultRetentionPeriod    = 30 * 24 * time.Hour
)

// Config holds all configuration for the recorder process.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Retention RetentionConfig `mapstructure:"retention"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds on-disk layout configuration: recordings land
// under <root>/<stream>/<epoch>.mp4, manifests under
// <root>/timeline_manifests/.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// RecordingsPath returns the directory recordings are written under.
func (c *StorageConfig) RecordingsPath() string {
	return c.Root
}

// ManifestsPath returns the directory generated HLS manifests are written under.
func (c *StorageConfig) ManifestsPath() string {
	return fmt.Sprintf("%s/timeline_manifests", c.Root)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// RecorderConfig holds engine-wide recording defaults and limits.
type RecorderConfig struct {
	// MaxStreams bounds the number of concurrently active recorders.
	// Operational cap, not a fixed table size.
	MaxStreams int `mapstructure:"max_streams"`

	// DefaultSegmentDuration is used when a stream config omits one.
	DefaultSegmentDuration int `mapstructure:"default_segment_duration"`

	// MaxPrebufferFrames bounds the ring buffer capacity clamp.
	MaxPrebufferFrames int `mapstructure:"max_prebuffer_frames"`

	// SourceRetryDelay is the backoff between transient source read retries.
	SourceRetryDelay time.Duration `mapstructure:"source_retry_delay"`

	// SourceRetryLimit bounds consecutive transient-error retries before a
	// recorder transitions to stopping.
	SourceRetryLimit int `mapstructure:"source_retry_limit"`
}

// RetentionConfig holds the catalog retention sweep schedule.
type RetentionConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Cron    string   `mapstructure:"cron"`
	MaxAge  Duration `mapstructure:"max_age"`

	// MaxTotalSize caps the catalog's total recorded bytes; the sweep
	// trims oldest segments until back under it. Zero disables the cap.
	MaxTotalSize ByteSize `mapstructure:"max_total_size"`
}

// DedupConfig holds the playback request deduplicator's bound.
type DedupConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with RECORDERD_ and use underscores for nesting.
// Example: RECORDERD_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/recorderd")
		v.AddConfigPath("$HOME/.recorderd")
	}

	v.SetEnvPrefix("RECORDERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "recorderd.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.root", "./recordings")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("recorder.max_streams", defaultMaxStreams)
	v.SetDefault("recorder.default_segment_duration", defaultSegmentDuration)
	v.SetDefault("recorder.max_prebuffer_frames", defaultMaxPrebufferFrames)
	v.SetDefault("recorder.source_retry_delay", defaultSourceRetryDelay)
	v.SetDefault("recorder.source_retry_limit", defaultSourceRetryLimit)

	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.cron", "0 0 3 * * *") // daily at 3 AM (6-field cron)
	v.SetDefault("retention.max_age", defaultRetentionPeriod.String())
	v.SetDefault("retention.max_total_size", "0")

	v.SetDefault("dedup.capacity", defaultDedupCapacity)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Recorder.MaxStreams < 1 {
		return fmt.Errorf("recorder.max_streams must be at least 1")
	}
	if c.Recorder.DefaultSegmentDuration < 1 {
		return fmt.Errorf("recorder.default_segment_duration must be at least 1")
	}
	if c.Recorder.MaxPrebufferFrames < 1 {
		return fmt.Errorf("recorder.max_prebuffer_frames must be at least 1")
	}

	if c.Dedup.Capacity < 1 {
		return fmt.Errorf("dedup.capacity must be at least 1")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
