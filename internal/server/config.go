package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/registry"
	"github.com/lox/holdemtables/internal/wallet"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings  `hcl:"server,block"`
	Wallet *WalletSettings `hcl:"wallet,block"`
	Tables []TableConfig   `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address        string `hcl:"address,optional"`
	Port           int    `hcl:"port,optional"`
	LogLevel       string `hcl:"log_level,optional"`
	Seed           int64  `hcl:"seed,optional"`
	ReconnectGrace string `hcl:"reconnect_grace,optional"`
}

// WalletSettings selects where player balances live
type WalletSettings struct {
	Driver         string `hcl:"driver,optional"` // memory or sqlite
	Path           string `hcl:"path,optional"`
	InitialBalance int    `hcl:"initial_balance,optional"`
}

// TableConfig defines a poker table opened at startup
type TableConfig struct {
	Name         string `hcl:"name,label"`
	MaxPlayers   int    `hcl:"max_players,optional"`
	SmallBlind   int    `hcl:"small_blind"`
	BigBlind     int    `hcl:"big_blind"`
	BuyInMin     int    `hcl:"buy_in_min,optional"`
	BuyInMax     int    `hcl:"buy_in_max,optional"`
	TurnTimeout  string `hcl:"turn_timeout,optional"`
	RestartDelay string `hcl:"restart_delay,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Tables: []TableConfig{
			{
				Name:       "main",
				MaxPlayers: 9,
				SmallBlind: 5,
				BigBlind:   10,
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadServerConfig loads server configuration from an HCL file. A missing
// file gives the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ReconnectGrace == "" {
		c.Server.ReconnectGrace = registry.DefaultReconnectGrace.String()
	}

	if c.Wallet == nil {
		c.Wallet = &WalletSettings{}
	}
	if c.Wallet.Driver == "" {
		c.Wallet.Driver = "memory"
	}
	if c.Wallet.Driver == "sqlite" && c.Wallet.Path == "" {
		c.Wallet.Path = "holdem-wallet.db"
	}
	if c.Wallet.InitialBalance == 0 {
		c.Wallet.InitialBalance = wallet.DefaultBalance
	}

	defaults := game.DefaultConfig()
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.MaxPlayers == 0 {
			t.MaxPlayers = defaults.MaxSeats
		}
		if t.BuyInMin == 0 {
			t.BuyInMin = t.BigBlind * 10 // 10 big blinds minimum
		}
		if t.BuyInMax == 0 {
			t.BuyInMax = t.BigBlind * 100
		}
		if t.TurnTimeout == "" {
			t.TurnTimeout = defaults.TurnTimeout.String()
		}
		if t.RestartDelay == "" {
			t.RestartDelay = defaults.RestartDelay.String()
		}
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := c.ReconnectGrace(); err != nil {
		return err
	}

	switch c.Wallet.Driver {
	case "memory":
	case "sqlite":
		if c.Wallet.Path == "" {
			return fmt.Errorf("wallet: sqlite driver needs a path")
		}
	default:
		return fmt.Errorf("wallet: unknown driver %q", c.Wallet.Driver)
	}
	if c.Wallet.InitialBalance < 0 {
		return fmt.Errorf("wallet: initial balance must not be negative")
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, table := range c.Tables {
		if seen[table.Name] {
			return fmt.Errorf("table %s: defined twice", table.Name)
		}
		seen[table.Name] = true
		gc, err := table.GameConfig()
		if err != nil {
			return err
		}
		if err := gc.Validate(); err != nil {
			return fmt.Errorf("table %s: %w", table.Name, err)
		}
	}
	return nil
}

// GameConfig converts the table block into table settings.
func (t TableConfig) GameConfig() (game.Config, error) {
	cfg := game.DefaultConfig()
	cfg.SmallBlind = t.SmallBlind
	cfg.BigBlind = t.BigBlind
	cfg.MaxSeats = t.MaxPlayers
	cfg.MinBuyIn = t.BuyInMin
	cfg.MaxBuyIn = t.BuyInMax

	var err error
	if cfg.TurnTimeout, err = time.ParseDuration(t.TurnTimeout); err != nil {
		return cfg, fmt.Errorf("table %s: turn_timeout: %w", t.Name, err)
	}
	if cfg.RestartDelay, err = time.ParseDuration(t.RestartDelay); err != nil {
		return cfg, fmt.Errorf("table %s: restart_delay: %w", t.Name, err)
	}
	return cfg, nil
}

// ReconnectGrace returns how long a dropped player's seat is held.
func (c *ServerConfig) ReconnectGrace() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.ReconnectGrace)
	if err != nil {
		return 0, fmt.Errorf("reconnect_grace: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("reconnect_grace must be positive")
	}
	return d, nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GetTableByName returns a table configuration by name
func (c *ServerConfig) GetTableByName(name string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i]
		}
	}
	return nil
}
