package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration
type Config struct {
	// General configuration
	General struct {
		// NodeID names this daemon in logs and event sources
		NodeID string `yaml:"nodeId"`

		// DataDir is the base for relative paths
		DataDir string `yaml:"dataDir"`

		// LogLevel is the logging level
		LogLevel string `yaml:"logLevel"`

		// Development enables development mode
		Development bool `yaml:"development"`
	} `yaml:"general"`

	// Watcher configuration
	Watcher WatcherConfig `yaml:"watcher"`

	// HTTP server configuration
	HTTP struct {
		// Enabled enables the HTTP server
		Enabled bool `yaml:"enabled"`

		// Address to bind the HTTP server
		Address string `yaml:"address"`

		// Port to bind the HTTP server
		Port int `yaml:"port"`

		// TLS enables TLS
		TLS bool `yaml:"tls"`

		// CertFile is the TLS certificate path
		CertFile string `yaml:"certFile"`

		// KeyFile is the TLS private key path
		KeyFile string `yaml:"keyFile"`

		// CORS configuration
		CORS struct {
			// Enabled enables CORS
			Enabled bool `yaml:"enabled"`

			// AllowedOrigins is the list of allowed origins
			AllowedOrigins []string `yaml:"allowedOrigins"`
		} `yaml:"cors"`
	} `yaml:"http"`

	// gRPC server configuration
	GRPC struct {
		// Enabled enables the gRPC server
		Enabled bool `yaml:"enabled"`

		// Address to bind the gRPC server
		Address string `yaml:"address"`

		// Port to bind the gRPC server
		Port int `yaml:"port"`
	} `yaml:"grpc"`

	// Metrics configuration
	Metrics struct {
		// Enabled exposes Prometheus metrics on the HTTP server
		Enabled bool `yaml:"enabled"`

		// Path of the metrics endpoint
		Path string `yaml:"path"`
	} `yaml:"metrics"`

	Logging struct {
		Level       string `yaml:"level"` // "ERROR", "WARN", "INFO", "DEBUG"
		ChannelSize int    `yaml:"channelSize"`
		Format      string `yaml:"format"` // "json" or "text"
		Output      string `yaml:"output"` // "stdout", "stderr" or "file"
		FilePath    string `yaml:"filePath"`
	} `yaml:"logging"`
}

// WatcherConfig drives the watcher built at startup
type WatcherConfig struct {
	// Backend is recommended, fsnotify, notify, poll or null
	Backend string `yaml:"backend"`

	// Debounce is the coalescing interval
	Debounce time.Duration `yaml:"debounce"`

	// Immediate disables debouncing
	Immediate bool `yaml:"immediate"`

	PreciseEvents bool `yaml:"preciseEvents"`
	NoticeEvents  bool `yaml:"noticeEvents"`

	// PollInterval is used by the poll backend only
	PollInterval time.Duration `yaml:"pollInterval"`

	// BufferSize of the event channels
	BufferSize int `yaml:"bufferSize"`

	// Ignore holds glob patterns for paths to drop
	Ignore []string `yaml:"ignore"`

	// Paths to watch at startup
	Paths []WatchPath `yaml:"paths"`
}

// WatchPath is one startup watch
type WatchPath struct {
	Path      string `yaml:"path"`
	Recursive bool   `yaml:"recursive"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	c := &Config{}

	// General configuration
	c.General.NodeID = "node1"
	c.General.DataDir = "."
	c.General.LogLevel = "info"
	c.General.Development = false

	// Watcher configuration
	c.Watcher.Backend = "recommended"
	c.Watcher.Debounce = 100 * time.Millisecond
	c.Watcher.Immediate = false
	c.Watcher.PreciseEvents = true
	c.Watcher.NoticeEvents = false
	c.Watcher.PollInterval = time.Second
	c.Watcher.BufferSize = 1024
	c.Watcher.Ignore = []string{}
	c.Watcher.Paths = []WatchPath{}

	// HTTP server configuration
	c.HTTP.Enabled = true
	c.HTTP.Address = "127.0.0.1"
	c.HTTP.Port = 8080
	c.HTTP.TLS = false
	c.HTTP.CertFile = ""
	c.HTTP.KeyFile = ""
	c.HTTP.CORS.Enabled = true
	c.HTTP.CORS.AllowedOrigins = []string{"*"}

	// gRPC server configuration
	c.GRPC.Enabled = false
	c.GRPC.Address = "127.0.0.1"
	c.GRPC.Port = 50051

	// metrics configuration
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	// Logging configuration defaults
	c.Logging.Level = "INFO"
	c.Logging.ChannelSize = 1000
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"
	c.Logging.FilePath = ""

	return c
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Load the default configuration
	config := DefaultConfig()

	// Decode the YAML file
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Complete relative paths
	if !filepath.IsAbs(config.General.DataDir) {
		dir, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		config.General.DataDir = filepath.Join(dir, config.General.DataDir)
	}

	for i, wp := range config.Watcher.Paths {
		if !filepath.IsAbs(wp.Path) {
			config.Watcher.Paths[i].Path = filepath.Join(config.General.DataDir, wp.Path)
		}
	}

	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(config.General.DataDir, config.Logging.FilePath)
	}

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	// Encode the configuration to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Create parent directory if necessary
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validBackends = []string{"recommended", "fsnotify", "notify", "poll", "null"}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	// Check the log level
	logLevel := strings.ToLower(config.General.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		return fmt.Errorf("invalid log level: %s", config.General.LogLevel)
	}

	// Check the watcher
	if !contains(validBackends, strings.ToLower(config.Watcher.Backend)) {
		return fmt.Errorf("invalid watcher backend: %s", config.Watcher.Backend)
	}
	if !config.Watcher.Immediate && config.Watcher.Debounce <= 0 {
		return fmt.Errorf("invalid debounce interval: %s", config.Watcher.Debounce)
	}
	if config.Watcher.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", config.Watcher.PollInterval)
	}
	for _, wp := range config.Watcher.Paths {
		if wp.Path == "" {
			return fmt.Errorf("watch path must not be empty")
		}
	}

	// check ports
	if config.HTTP.Enabled && (config.HTTP.Port < 1 || config.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", config.HTTP.Port)
	}

	if config.GRPC.Enabled && (config.GRPC.Port < 1 || config.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", config.GRPC.Port)
	}

	if config.Metrics.Enabled && !strings.HasPrefix(config.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %s", config.Metrics.Path)
	}

	// Check logging
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}
	switch strings.ToLower(config.Logging.Output) {
	case "stdout", "stderr":
	case "file":
		if config.Logging.FilePath == "" {
			return fmt.Errorf("log output is file but no filePath given")
		}
	default:
		return fmt.Errorf("invalid log output: %s", config.Logging.Output)
	}

	// Check the TLS configurations
	if config.HTTP.TLS {
		if config.HTTP.CertFile == "" || config.HTTP.KeyFile == "" {
			return fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.HTTP.CertFile); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", config.HTTP.CertFile)
		}
		if _, err := os.Stat(config.HTTP.KeyFile); os.IsNotExist(err) {
			return fmt.Errorf("key file not found: %s", config.HTTP.KeyFile)
		}
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
