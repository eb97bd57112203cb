// Package config loads the topodraw configuration file.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/topodraw/internal/db"
	"github.com/anstrom/topodraw/internal/drawio"
	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
)

const (
	configDirPerm  = 0755
	configFilePerm = 0644
)

// Config represents the complete topodraw configuration.
type Config struct {
	// Input is the nmap XML report path, "-" for stdin.
	Input string `yaml:"input" json:"input"`

	// Output is the diagram path, "-" for stdout.
	Output string `yaml:"output" json:"output" validate:"required"`

	// Diagram geometry
	Layout drawio.Layout `yaml:"layout" json:"layout"`

	Services ServicesConfig `yaml:"services" json:"services"`

	Resolve ResolveConfig `yaml:"resolve" json:"resolve"`

	Logging logging.Config `yaml:"logging" json:"logging"`

	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Live nmap scanning
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// HTTP render service
	API APIConfig `yaml:"api" json:"api"`

	// Inventory store; disabled while database.database is empty
	Database db.Config `yaml:"database" json:"database"`
}

// ServicesConfig controls service aggregation.
type ServicesConfig struct {
	// Skip services without name or product instead of failing the run.
	SkipIncomplete bool `yaml:"skip_incomplete" json:"skip_incomplete"`
}

// ResolveConfig controls reverse DNS lookups for hosts without hostnames.
type ResolveConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DNS server as host:port; empty uses /etc/resolv.conf.
	Server string `yaml:"server" json:"server" validate:"omitempty,hostname_port"`

	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0"`

	// Concurrent lookups per run
	Workers int `yaml:"workers" json:"workers" validate:"min=1"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile receives the registry in Prometheus text format after each
	// run, for the node exporter textfile collector.
	Textfile string `yaml:"textfile" json:"textfile"`

	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval" validate:"min=0"`
}

// ScanConfig holds nmap settings.
type ScanConfig struct {
	Targets []string `yaml:"targets" json:"targets" validate:"dive,required"`

	Ports string `yaml:"ports" json:"ports"`

	// Cron expression for scheduled runs; empty runs once.
	Schedule string `yaml:"schedule" json:"schedule" validate:"omitempty,cron"`

	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0"`

	ServiceDetection bool `yaml:"service_detection" json:"service_detection"`
	OSDetection      bool `yaml:"os_detection" json:"os_detection"`
	TraceRoute       bool `yaml:"traceroute" json:"traceroute"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" validate:"required"`

	Port int `yaml:"port" json:"port" validate:"min=1,max=65535"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" validate:"min=1"`

	CORS CORSConfig `yaml:"cors" json:"cors"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Input:    "-",
		Output:   "-",
		Layout:   drawio.DefaultLayout(),
		Services: ServicesConfig{SkipIncomplete: false},
		Resolve: ResolveConfig{
			Enabled: false,
			Timeout: 2 * time.Second,
			Workers: 8,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			UpdateInterval: 30 * time.Second,
		},
		Scan: ScanConfig{
			Ports:            "1-1000",
			Timeout:          10 * time.Minute,
			ServiceDetection: true,
			OSDetection:      false,
			TraceRoute:       true,
		},
		API: APIConfig{
			ListenAddr:     "127.0.0.1",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: 16 * 1024 * 1024,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
			},
		},
		Database: db.DefaultConfig(),
	}
}

// Load loads configuration from a YAML or JSON file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder serves both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the struct tags and returns the first violation as a
// configuration error naming the offending field.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.NewConfigFieldError(errors.CodeValidation,
			fmt.Sprintf("invalid configuration: %s failed %q", fe.Namespace(), fe.Tag()),
			fe.Namespace(), fe.Value())
	}
	return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
}

// GetAPIAddress returns the full API address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// StoreEnabled reports whether runs should be written to the database.
func (c *Config) StoreEnabled() bool {
	return c.Database.Enabled()
}
