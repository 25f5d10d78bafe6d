// Package config loads the vahti configuration file
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/vahti/types"
)

// Config represents the main configuration
type Config struct {
	Version     string            `yaml:"version"`
	StorageDir  string            `yaml:"storage_dir"`
	JournalDir  string            `yaml:"journal_dir,omitempty"`
	Evaluation  Evaluation        `yaml:"evaluation,omitempty"`
	Health      Health            `yaml:"health,omitempty"`
	Connections []ConnectionDecl  `yaml:"connections,omitempty"`
	Telemetry   map[string]string `yaml:"telemetry,omitempty"`
}

// Evaluation tunes the engine
type Evaluation struct {
	Workers     int           `yaml:"workers"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// Health tunes the connection health loop
type Health struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ConnectionDecl declares a database connection to register at startup
type ConnectionDecl struct {
	Name                 string   `yaml:"name"`
	DBType               string   `yaml:"db_type"`
	Module               string   `yaml:"module,omitempty"`
	Environment          string   `yaml:"environment"`
	ConnectionString     string   `yaml:"connection_string,omitempty"`
	DatabaseName         string   `yaml:"database_name,omitempty"`
	GovernancePolicies   []string `yaml:"governance_policies,omitempty"`
	ComplianceFrameworks []string `yaml:"compliance_frameworks,omitempty"`
}

// Connection converts the declaration into the domain type
func (d ConnectionDecl) Connection() types.Connection {
	return types.Connection{
		Name:                 d.Name,
		DBType:               types.DBType(d.DBType),
		ModuleName:           d.Module,
		Environment:          types.Environment(d.Environment),
		ConnectionString:     d.ConnectionString,
		DatabaseName:         d.DatabaseName,
		GovernancePolicies:   d.GovernancePolicies,
		ComplianceFrameworks: d.ComplianceFrameworks,
	}
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir is required")
	}
	if c.Evaluation.Workers < 0 {
		return fmt.Errorf("evaluation.workers cannot be negative")
	}
	for i, d := range c.Connections {
		if d.Name == "" {
			return fmt.Errorf("connections[%d]: name is required", i)
		}
		if !types.DBType(d.DBType).Valid() {
			return fmt.Errorf("connections[%d]: unknown db_type %q", i, d.DBType)
		}
		if !types.Environment(d.Environment).Valid() {
			return fmt.Errorf("connections[%d]: unknown environment %q", i, d.Environment)
		}
	}
	return nil
}
