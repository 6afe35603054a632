package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/agonych/udp-chat/pkg/store"
)

// Config represents the UDPChat server configuration.
//
// This structure captures the static configuration of the chat server:
//   - UDP server settings (bind address, buffer, session lifecycle, retry)
//   - Database connection (SQLite or PostgreSQL)
//   - Key storage for the server's RSA identity
//   - Password hashing scheme
//   - AI responder settings (Ollama or OpenAI)
//   - HTTP API (health and Prometheus metrics)
//   - Logging and telemetry
//
// Configuration sources (in order of precedence):
//  1. Environment variables (UDPCHAT_* plus the legacy aliases below)
//  2. Configuration file (YAML)
//  3. Default values
//
// Legacy environment aliases are honored for drop-in compatibility with
// existing deployments: SERVER_IP, SERVER_PORT, BUFFER_SIZE, DEBUG,
// DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, AI_MODE,
// OPENAI_API_KEY and METRICS_PORT.
type Config struct {
	// Server configures the UDP listener and session lifecycle
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Database configures the persistent store (SQLite or PostgreSQL)
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Keys configures where the server's RSA identity lives
	Keys KeysConfig `mapstructure:"keys" yaml:"keys"`

	// Auth configures credential handling
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// AI configures the chat assistant backend
	AI AIConfig `mapstructure:"ai" yaml:"ai"`

	// API configures the HTTP health/metrics endpoint
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// ServerConfig configures the UDP listener and session lifecycle.
type ServerConfig struct {
	// Host is the address the UDP socket binds to
	// Default: 127.0.0.1
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the UDP port
	// Default: 9999
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// BufferSize is the datagram read buffer in bytes. Datagrams larger
	// than this are truncated by the OS, so it bounds packet size.
	// Default: 8192
	BufferSize int `mapstructure:"buffer_size" validate:"omitempty,min=512" yaml:"buffer_size"`

	// SessionTimeout is how long a session may stay idle before the
	// sweeper evicts it and the purger deletes its row
	// Default: 60s
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	// SweepInterval is how often idle sessions are swept
	// Default: 10s
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// CleanupCycles is the number of sweep cycles between database
	// purges of expired session rows
	// Default: 6 (a purge every minute at the default sweep interval)
	CleanupCycles int `mapstructure:"cleanup_cycles" yaml:"cleanup_cycles"`

	// RetryInterval is how long to wait for an ACK before resending a
	// reliable packet
	// Default: 2s
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`

	// MaxRetries is the number of transmissions (initial send included)
	// before a reliable packet is dropped
	// Default: 5
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// QueueSize caps the retry dispatcher queue; the oldest entry is
	// dropped when full
	// Default: 4096
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// DatabaseConfig configures the persistent store.
type DatabaseConfig struct {
	// Type selects the backend
	// Valid values: sqlite, postgres
	Type string `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres" yaml:"type"`

	// SQLite contains SQLite-specific settings
	SQLite SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`

	// Postgres contains PostgreSQL-specific settings
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the database file path
	// Default: storage/udpchat.db
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig contains PostgreSQL-specific settings.
type PostgresConfig struct {
	// Host is the database server hostname
	// Default: localhost
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the database server port
	// Default: 5432
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Database is the database name
	// Default: udpchat
	Database string `mapstructure:"database" yaml:"database"`

	// User is the database user
	// Default: udpchat_user
	User string `mapstructure:"user" yaml:"user"`

	// Password is the database password
	// Default: udpchat_password
	Password string `mapstructure:"password" yaml:"password"`

	// SSLMode controls TLS to the database
	// Valid values: disable, require, verify-ca, verify-full
	SSLMode string `mapstructure:"sslmode" yaml:"sslmode"`

	// MaxOpenConns caps open connections to the database
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns caps idle connections in the pool
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// ToStoreConfig converts the configuration section into the store's
// native config type.
func (c *DatabaseConfig) ToStoreConfig() *store.Config {
	return &store.Config{
		Type: store.DatabaseType(c.Type),
		SQLite: store.SQLiteConfig{
			Path: c.SQLite.Path,
		},
		Postgres: store.PostgresConfig{
			Host:         c.Postgres.Host,
			Port:         c.Postgres.Port,
			Database:     c.Postgres.Database,
			User:         c.Postgres.User,
			Password:     c.Postgres.Password,
			SSLMode:      c.Postgres.SSLMode,
			MaxOpenConns: c.Postgres.MaxOpenConns,
			MaxIdleConns: c.Postgres.MaxIdleConns,
		},
	}
}

// KeysConfig configures the server's RSA identity storage.
type KeysConfig struct {
	// Dir is the directory holding server_private_key.pem and
	// server_public_key.pem. Both are generated on first start.
	// Default: storage/keys
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AuthConfig configures credential handling.
type AuthConfig struct {
	// PasswordHash selects the password hash scheme for new hashes.
	// Valid values: md5 (compatible with existing databases), bcrypt
	// Default: md5
	PasswordHash string `mapstructure:"password_hash" validate:"omitempty,oneof=md5 bcrypt" yaml:"password_hash"`
}

// AIConfig configures the chat assistant backend.
type AIConfig struct {
	// Mode selects the backend
	// Valid values: ollama (local models), gpt (OpenAI API), off
	// Default: ollama
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=ollama gpt off" yaml:"mode"`

	// Model overrides the backend's default model
	// (mistral for ollama, gpt-3.5-turbo for gpt)
	Model string `mapstructure:"model" yaml:"model,omitempty"`

	// APIKey is the OpenAI API key (gpt mode)
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// OllamaHost is the Ollama server base URL (ollama mode)
	// Default: http://localhost:11434
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// OpenAIBaseURL is the OpenAI-compatible API base URL (gpt mode)
	// Default: https://api.openai.com
	OpenAIBaseURL string `mapstructure:"openai_base_url" yaml:"openai_base_url"`

	// Timeout bounds a single generation request
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// APIConfig configures the HTTP endpoint serving health checks and
// Prometheus metrics.
type APIConfig struct {
	// Enabled controls whether the HTTP endpoint is started
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Host is the address the HTTP server binds to
	// Default: 127.0.0.1
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP port
	// Default: 8000
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout bounds reading a request
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds writing a response
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// APIEnabled reports whether the HTTP endpoint should start, applying
// the default when the field was never set.
func (c *APIConfig) APIEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// MetricsConfig controls Prometheus metrics collection.
// When disabled, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed
	// Default: true
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsEnabled reports whether metrics collection is on, applying the
// default when the field was never set.
func (c *MetricsConfig) MetricsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope server
// for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (UDPCHAT_* and legacy aliases)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configFileFound {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Legacy aliases win over the file, matching the old deployment
	// behavior where the environment was the only configuration source.
	applyLegacyEnv(v, &cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  udpchat init\n\n"+
				"Or specify a custom config file:\n"+
				"  udpchat <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  udpchat init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files may contain credentials (database password, API key),
	// so keep them owner-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the UDPCHAT_ prefix and underscores
	// Example: UDPCHAT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("UDPCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/udpchat/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// applyLegacyEnv overlays the environment variables understood by older
// deployments onto the loaded configuration. DB_* variables imply a
// PostgreSQL backend unless the file pinned a type explicitly.
func applyLegacyEnv(v *viper.Viper, cfg *Config) {
	legacyDB := false

	if val := os.Getenv("SERVER_IP"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("BUFFER_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.Server.BufferSize = size
		}
	}
	if isTruthy(os.Getenv("DEBUG")) {
		cfg.Logging.Level = "DEBUG"
	}

	if val := os.Getenv("DB_HOST"); val != "" {
		cfg.Database.Postgres.Host = val
		legacyDB = true
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Database.Postgres.Port = port
			legacyDB = true
		}
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		cfg.Database.Postgres.Database = val
		legacyDB = true
	}
	if val := os.Getenv("DB_USER"); val != "" {
		cfg.Database.Postgres.User = val
		legacyDB = true
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		cfg.Database.Postgres.Password = val
		legacyDB = true
	}
	if legacyDB && !v.IsSet("database.type") {
		cfg.Database.Type = string(store.DatabaseTypePostgres)
	}

	if val := os.Getenv("AI_MODE"); val != "" {
		cfg.AI.Mode = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		cfg.AI.APIKey = val
	}
	if val := os.Getenv("METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.API.Port = port
		}
	}
}

// isTruthy mirrors the boolean parsing of earlier deployments.
func isTruthy(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "t", "yes", "y":
		return true
	default:
		return false
	}
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "udpchat")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "udpchat")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
