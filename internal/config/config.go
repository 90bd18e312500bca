// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/lineup.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultMigrationsPath            = "file://migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultCatalogPath               = "./config/backends.yaml"
	defaultBackendQueryTimeout       = 10 * time.Second
	defaultBackendFailureThreshold   = 3
	defaultBackendResetTimeout       = 30 * time.Second
	defaultBackendRefreshInterval    = 5 * time.Minute
	defaultEventsChannelPrefix       = "lineup"
	defaultEventsBufferSize          = 64
	defaultTVGroupName               = "All channels"
	defaultRadioGroupName            = "All radio channels"
	envPrefix                        = "LINEUP"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Backends BackendsConfig
	Events   EventsConfig
	PVR      PVRConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// BackendsConfig holds backend catalog and query configuration
type BackendsConfig struct {
	CatalogPath      string
	QueryTimeout     time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
	// RefreshInterval of 0 disables periodic reconciliation
	RefreshInterval  time.Duration
}

// EventsConfig holds group event publishing configuration.
// An empty RedisURL keeps events in process.
type EventsConfig struct {
	RedisURL      string
	ChannelPrefix string
	BufferSize    int
}

// PVRConfig holds the channel numbering policy defaults and internal group names
type PVRConfig struct {
	SyncChannelGroups               bool
	BackendChannelOrder             bool
	UseBackendChannelNumbers        bool
	UseBackendChannelNumbersAlways  bool
	StartGroupChannelNumbersFromOne bool
	TVGroupName                     string
	RadioGroupName                  string
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	cfg, _, err := LoadViper("")
	return cfg, err
}

// LoadViper works like Load and also returns the viper instance the
// configuration was read from. A non-empty configFile replaces the search paths.
func LoadViper(configFile string) (*Config, *viper.Viper, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/lineup")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, v, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Backend defaults
	v.SetDefault("backends.catalogpath", defaultCatalogPath)
	v.SetDefault("backends.querytimeout", defaultBackendQueryTimeout)
	v.SetDefault("backends.failurethreshold", defaultBackendFailureThreshold)
	v.SetDefault("backends.resettimeout", defaultBackendResetTimeout)
	v.SetDefault("backends.refreshinterval", defaultBackendRefreshInterval)

	// Event defaults
	v.SetDefault("events.redisurl", "")
	v.SetDefault("events.channelprefix", defaultEventsChannelPrefix)
	v.SetDefault("events.buffersize", defaultEventsBufferSize)

	// Numbering policy defaults
	v.SetDefault("pvr.syncchannelgroups", true)
	v.SetDefault("pvr.backendchannelorder", true)
	v.SetDefault("pvr.usebackendchannelnumbers", false)
	v.SetDefault("pvr.usebackendchannelnumbersalways", false)
	v.SetDefault("pvr.startgroupchannelnumbersfromone", false)
	v.SetDefault("pvr.tvgroupname", defaultTVGroupName)
	v.SetDefault("pvr.radiogroupname", defaultRadioGroupName)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	// Validate timeout durations
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	// Validate backend query settings
	if c.Backends.QueryTimeout <= 0 {
		return fmt.Errorf("invalid backend query timeout: %v (must be > 0)", c.Backends.QueryTimeout)
	}
	if c.Backends.FailureThreshold < 1 {
		return fmt.Errorf("invalid backend failure threshold: %d (must be >= 1)", c.Backends.FailureThreshold)
	}
	if c.Backends.ResetTimeout <= 0 {
		return fmt.Errorf("invalid backend reset timeout: %v (must be > 0)", c.Backends.ResetTimeout)
	}
	if c.Backends.RefreshInterval < 0 {
		return fmt.Errorf("invalid backend refresh interval: %v (must be >= 0)", c.Backends.RefreshInterval)
	}

	if c.Events.ChannelPrefix == "" {
		return errors.New("events channel prefix must not be empty")
	}
	if c.Events.BufferSize < 1 {
		return fmt.Errorf("invalid events buffer size: %d (must be >= 1)", c.Events.BufferSize)
	}

	if c.PVR.TVGroupName == "" || c.PVR.RadioGroupName == "" {
		return errors.New("internal group names must not be empty")
	}

	// Database path validation will be done when opening DB
	return nil
}
