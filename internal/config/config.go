package config

import (
	"errors"
	"fmt"
	"math/bits"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/eternalApril/moonwire/internal/resp"
)

// EnvPrefix is prepended to every environment override, e.g. MOONWIRE_SERVER_PORT
const EnvPrefix = "MOONWIRE"

// Config represents the root configuration structure for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	GC       GCConfig       `mapstructure:"gc"`
	Log      LogConfig      `mapstructure:"log"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReusePort       bool          `mapstructure:"reuseport"`        // listen with SO_REUSEPORT
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`     // 0 waits for clients forever
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // how long to wait for connections on shutdown
	ReadBuffer      int           `mapstructure:"read_buffer"`      // minimum bytes offered to each socket read
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// StorageConfig defines the internal structure of the storage engine
type StorageConfig struct {
	Shards uint `mapstructure:"shards"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// ProtocolConfig bounds what a client may send
type ProtocolConfig struct {
	MaxBulkLen  int `mapstructure:"max_bulk_len"`
	MaxArrayLen int `mapstructure:"max_array_len"`
	MaxDepth    int `mapstructure:"max_depth"`
}

// Limits converts the settings for the parser
func (p ProtocolConfig) Limits() resp.Limits {
	return resp.Limits{
		MaxBulkLen:  p.MaxBulkLen,
		MaxArrayLen: p.MaxArrayLen,
		MaxDepth:    p.MaxDepth,
	}
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load reads the configuration from a file in path and overrides it with environment variables.
// A .env file next to the config, if present, is loaded into the environment first.
// A missing config file is not an error
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(path, ".env")); err != nil {
		return nil, err
	}

	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv never overrides variables that are already set
func loadDotEnv(file string) error {
	err := godotenv.Load(file)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", file, err)
}

// SetDefaults populates viper with fallback values if they are not provided via file or ENV
func SetDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "6380")
	v.SetDefault("server.reuseport", false)
	v.SetDefault("server.idle_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.read_buffer", resp.DefaultReadSize)

	// Storage
	v.SetDefault("storage.shards", 32)

	// GC
	gc := DefaultGCConfig()
	v.SetDefault("gc.enabled", gc.Enabled)
	v.SetDefault("gc.interval", gc.Interval)
	v.SetDefault("gc.samples_per_check", gc.SamplesPerCheck)
	v.SetDefault("gc.match_threshold", gc.MatchThreshold)
	v.SetDefault("gc.max_rounds", gc.MaxRounds)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Protocol
	v.SetDefault("protocol.max_bulk_len", resp.DefaultLimits.MaxBulkLen)
	v.SetDefault("protocol.max_array_len", resp.DefaultLimits.MaxArrayLen)
	v.SetDefault("protocol.max_depth", resp.DefaultLimits.MaxDepth)

	// Metrics
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9121")
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var err error

	if c.Server.Port == "" {
		err = multierr.Append(err, errors.New("server.port must be set"))
	}
	if c.Server.IdleTimeout < 0 {
		err = multierr.Append(err, errors.New("server.idle_timeout must not be negative"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		err = multierr.Append(err, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.ReadBuffer < 0 {
		err = multierr.Append(err, errors.New("server.read_buffer must not be negative"))
	}

	if s := c.Storage.Shards; bits.OnesCount(s) != 1 || s > 64 {
		err = multierr.Append(err, fmt.Errorf("storage.shards must be a power of 2 up to 64, got %d", s))
	}

	if c.GC.Enabled {
		if c.GC.Interval <= 0 || c.GC.SamplesPerCheck <= 0 || c.GC.MaxRounds <= 0 {
			err = multierr.Append(err, errors.New("gc.interval, gc.samples_per_check and gc.max_rounds must be positive"))
		}
		if c.GC.MatchThreshold < 0 || c.GC.MatchThreshold > 1 {
			err = multierr.Append(err, fmt.Errorf("gc.match_threshold must be within [0, 1], got %v", c.GC.MatchThreshold))
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	if c.Protocol.MaxBulkLen <= 0 || c.Protocol.MaxArrayLen <= 0 || c.Protocol.MaxDepth <= 0 {
		err = multierr.Append(err, errors.New("protocol limits must be positive"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		err = multierr.Append(err, errors.New("metrics.address must be set when metrics are enabled"))
	}

	return err
}
