package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the catastro exporter
type Config struct {
	// Remote feature service settings
	Service ServiceConfig `yaml:"service" json:"service"`

	// Retry behavior for remote calls
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Export settings
	Export ExportConfig `yaml:"export" json:"export"`

	// Local viewer/proxy server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServiceConfig holds connection settings for the ArcGIS MapServer
type ServiceConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// GeocodeURL is the companion geocoder service relayed by the proxy
	GeocodeURL string `yaml:"geocode_url" json:"geocode_url"`
	// NominatimURL is the OpenStreetMap search endpoint relayed by the proxy
	NominatimURL string        `yaml:"nominatim_url" json:"nominatim_url"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	// StreamTimeout applies to the paginated parcel queries, which the
	// service answers noticeably slower than by-id fetches
	StreamTimeout time.Duration `yaml:"stream_timeout" json:"stream_timeout"`
}

// RetryConfig holds retry behavior for remote calls
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base" json:"backoff_base"`
}

// ExportConfig holds output and chunking settings
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	// ChunkSize bounds each by-ids request; must not exceed the service's
	// MaxRecordCount (1000 for this MapServer)
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	PageSize  int `yaml:"page_size" json:"page_size"`
	// OutSR is the output spatial reference EPSG code for geometries
	OutSR int `yaml:"out_sr" json:"out_sr"`
	// ProgressEvery controls how often streamed-record progress is logged
	ProgressEvery int `yaml:"progress_every" json:"progress_every"`
}

// ServerConfig holds the viewer/proxy server settings
type ServerConfig struct {
	Port   int    `yaml:"port" json:"port"`
	WebDir string `yaml:"web_dir" json:"web_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the SNIG service defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:       "https://web.snig.gub.uy/arcgisserver/rest/services/Uruguay/SNIG_Catastro_Dos/MapServer",
			GeocodeURL:    "https://web.snig.gub.uy/arcgisserver/rest/services/LocatorUY/GeocodeServer",
			NominatimURL:  "https://nominatim.openstreetmap.org/search",
			UserAgent:     "snig-catastro-export/1.0 (+https://github.com/)",
			Timeout:       60 * time.Second,
			StreamTimeout: 120 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffBase: 500 * time.Millisecond,
		},
		Export: ExportConfig{
			OutputDir:     "outputs",
			ChunkSize:     1000,
			PageSize:      1000,
			OutSR:         4326,
			ProgressEvery: 5000,
		},
		Server: ServerConfig{
			Port:   5000,
			WebDir: "web",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	// Load a .env file if present; not an error when missing
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. An empty path falls
// back to the default locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".snigexport.yaml",
		".snigexport.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "snigexport", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "snigexport", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("SNIGEXPORT_BASE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("SNIGEXPORT_USER_AGENT"); v != "" {
		c.Service.UserAgent = v
	}
	if v := os.Getenv("SNIGEXPORT_OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	if v := os.Getenv("SNIGEXPORT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("SNIGEXPORT_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Export.ChunkSize = n
		}
	}
	if v := os.Getenv("SNIGEXPORT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	// PORT is honored for hosted deployments
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Port = n
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Service.BaseURL == "" {
		errs = append(errs, errors.New("service base URL is required"))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("service timeout must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.BackoffBase < 0 {
		errs = append(errs, errors.New("retry backoff base cannot be negative"))
	}
	if c.Export.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Export.ChunkSize <= 0 || c.Export.ChunkSize > 1000 {
		errs = append(errs, errors.New("chunk size must be between 1 and 1000"))
	}
	if c.Export.PageSize <= 0 || c.Export.PageSize > 1000 {
		errs = append(errs, errors.New("page size must be between 1 and 1000"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}

	// Keep in sync with the levels the logger accepts
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true,
		"error": true, "fatal": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// TmpDir returns the checkpoint staging directory under the output dir
func (c *Config) TmpDir() string {
	return filepath.Join(c.Export.OutputDir, "tmp")
}
