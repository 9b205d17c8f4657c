package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the dealer server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Table  TableSettings  `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// TableSettings defines the blackjack table rules and limits
type TableSettings struct {
	MinBet               int64  `hcl:"min_bet,optional"`
	MaxBet               int64  `hcl:"max_bet,optional"`
	MaxHands             int    `hcl:"max_hands,optional"`
	NoResplit            bool   `hcl:"no_resplit,optional"`
	DealerHitsSoft17     bool   `hcl:"dealer_hits_soft17,optional"`
	ActionTimeoutSeconds int    `hcl:"action_timeout_seconds,optional"`
	Name                 string `hcl:"name,optional"`
}

// DefaultConfig returns the default dealer configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Table: TableSettings{
			Name:                 "main",
			MinBet:               1,
			MaxBet:               1000,
			MaxHands:             4,
			ActionTimeoutSeconds: 30,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Table.Name == "" {
		config.Table.Name = defaults.Table.Name
	}
	if config.Table.MinBet == 0 {
		config.Table.MinBet = defaults.Table.MinBet
	}
	if config.Table.MaxBet == 0 {
		config.Table.MaxBet = defaults.Table.MaxBet
	}
	if config.Table.MaxHands == 0 {
		config.Table.MaxHands = defaults.Table.MaxHands
	}
	if config.Table.ActionTimeoutSeconds == 0 {
		config.Table.ActionTimeoutSeconds = defaults.Table.ActionTimeoutSeconds
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Table.MinBet <= 0 {
		return fmt.Errorf("table %s: min bet must be positive", c.Table.Name)
	}
	if c.Table.MaxBet < c.Table.MinBet {
		return fmt.Errorf("table %s: max bet must be at least min bet", c.Table.Name)
	}
	if c.Table.MaxHands < 1 {
		return fmt.Errorf("table %s: max hands must be at least 1", c.Table.Name)
	}
	if c.Table.ActionTimeoutSeconds < 1 {
		return fmt.Errorf("table %s: action timeout must be at least 1 second", c.Table.Name)
	}
	return nil
}

// ListenAddress returns the host:port the server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ActionTimeout returns the per-action deadline as a duration
func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.Table.ActionTimeoutSeconds) * time.Second
}
