package config

import (
	"fmt"
	"os"
	"time"

	"neotransfer/internal/graph"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source   graph.Credentials `yaml:"source"`
	Target   graph.Credentials `yaml:"target"`
	Transfer Transfer          `yaml:"transfer"`
	LogLevel string            `yaml:"log_level"`
}

// KeyMapping pairs a source identity property with the property it is stored
// under on the target.
type KeyMapping struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Transfer represents transfer-specific configuration. NodeLabels and
// NodeKeys are alternative ways of scoping the node copy and are mutually
// exclusive; the same holds for RelationshipTypes and RelationshipKeys.
type Transfer struct {
	NodeLabels        []string              `yaml:"node_labels"`
	RelationshipTypes []string              `yaml:"relationship_types"`
	NodeKeys          map[string]KeyMapping `yaml:"node_keys"`
	RelationshipKeys  map[string]KeyMapping `yaml:"relationship_keys"`
	TimestampKey      string                `yaml:"timestamp_key"`
	DisableTagging    bool                  `yaml:"disable_tagging"`
	Timestamp         string                `yaml:"timestamp"`
	BatchSize         int                   `yaml:"batch_size"`
	ResetTarget       bool                  `yaml:"reset_target"`
	Concurrency       int                   `yaml:"concurrency"`
	DryRun            bool                  `yaml:"dry_run"`
	Journal           string                `yaml:"journal"`
	MetricsAddr       string                `yaml:"metrics_addr"`
	ShowProgress      bool                  `yaml:"show_progress"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Source:   graph.Credentials{Username: "neo4j"},
		Target:   graph.Credentials{Username: "neo4j"},
		Transfer: Transfer{
			BatchSize:    1000,
			Concurrency:  1,
			Journal:      "./neotransfer.db",
			ShowProgress: true,
		},
	}

	// Load from YAML file if provided
	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with command line flags
	if flags != nil {
		loadFromFlags(cfg, flags)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) {
	if flags.Changed("src-uri") {
		cfg.Source.URI, _ = flags.GetString("src-uri")
	}
	if flags.Changed("src-username") {
		cfg.Source.Username, _ = flags.GetString("src-username")
	}
	if flags.Changed("src-password") {
		cfg.Source.Password, _ = flags.GetString("src-password")
	}
	if flags.Changed("src-database") {
		cfg.Source.Database, _ = flags.GetString("src-database")
	}

	if flags.Changed("dst-uri") {
		cfg.Target.URI, _ = flags.GetString("dst-uri")
	}
	if flags.Changed("dst-username") {
		cfg.Target.Username, _ = flags.GetString("dst-username")
	}
	if flags.Changed("dst-password") {
		cfg.Target.Password, _ = flags.GetString("dst-password")
	}
	if flags.Changed("dst-database") {
		cfg.Target.Database, _ = flags.GetString("dst-database")
	}

	if flags.Changed("labels") {
		cfg.Transfer.NodeLabels, _ = flags.GetStringSlice("labels")
	}
	if flags.Changed("types") {
		cfg.Transfer.RelationshipTypes, _ = flags.GetStringSlice("types")
	}
	if flags.Changed("timestamp-key") {
		cfg.Transfer.TimestampKey, _ = flags.GetString("timestamp-key")
	}
	if flags.Changed("no-tag") {
		cfg.Transfer.DisableTagging, _ = flags.GetBool("no-tag")
	}
	if flags.Changed("timestamp") {
		cfg.Transfer.Timestamp, _ = flags.GetString("timestamp")
	}
	if flags.Changed("batch-size") {
		cfg.Transfer.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("reset") {
		cfg.Transfer.ResetTarget, _ = flags.GetBool("reset")
	}
	if flags.Changed("concurrency") {
		cfg.Transfer.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("dry-run") {
		cfg.Transfer.DryRun, _ = flags.GetBool("dry-run")
	}
	if flags.Changed("journal") {
		cfg.Transfer.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("metrics-addr") {
		cfg.Transfer.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("show-progress") {
		cfg.Transfer.ShowProgress, _ = flags.GetBool("show-progress")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
}

// validate checks the transfer settings. Connection credentials are checked
// at connect time instead, since not every command uses both endpoints.
func (c *Config) validate() error {
	if len(c.Transfer.NodeLabels) > 0 && len(c.Transfer.NodeKeys) > 0 {
		return fmt.Errorf("node_labels and node_keys are mutually exclusive")
	}
	if len(c.Transfer.RelationshipTypes) > 0 && len(c.Transfer.RelationshipKeys) > 0 {
		return fmt.Errorf("relationship_types and relationship_keys are mutually exclusive")
	}

	if c.Transfer.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.Transfer.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if c.Transfer.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, c.Transfer.Timestamp); err != nil {
			return fmt.Errorf("timestamp must be RFC 3339: %w", err)
		}
	}

	return nil
}
