package config

import (
	"encoding/json"
	"time"
)

// Config represents the main kaiwa configuration
type Config struct {
	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Ledger storage
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Idle-session sweeper
	Sweeper SweeperConfig `json:"sweeper" mapstructure:"sweeper"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// StorageConfig holds ledger database configuration
type StorageConfig struct {
	// Path is the SQLite database file; ":memory:" gives an ephemeral store.
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `json:"level" mapstructure:"level"`
	File     string `json:"file" mapstructure:"file"`
	Audit    string `json:"audit" mapstructure:"audit"`
	MaxSize  int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge   int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SweeperConfig holds idle-session sweeper configuration
type SweeperConfig struct {
	Enabled     bool          `json:"enabled" mapstructure:"enabled"`
	Schedule    string        `json:"schedule" mapstructure:"schedule"` // five-field cron expression
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	Batch       int           `json:"batch" mapstructure:"batch"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8170,
		},
		Storage: StorageConfig{},
		Logging: LoggingConfig{
			Level:    "info",
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
		},
		Sweeper: SweeperConfig{
			Enabled:     true,
			Schedule:    "*/15 * * * *",
			IdleTimeout: 24 * time.Hour,
			Batch:       100,
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
