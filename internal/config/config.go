// Package config loads the vault layer configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig selects the persistence backend. An empty DSN runs the
// in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig configures the HTTP caller-identity middleware.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// VaultConfig fixes the vault instance identity, fee policy, and initial
// capability assignments.
type VaultConfig struct {
	Name              string   `yaml:"name"`
	Version           string   `yaml:"version"`
	ChainID           uint64   `yaml:"chain_id"`
	Address           string   `yaml:"address"`
	FeeRateBps        uint32   `yaml:"fee_rate_bps"`
	Treasury          string   `yaml:"treasury"`
	Administrators    []string `yaml:"administrators"`
	WithdrawalSigners []string `yaml:"withdrawal_signers"`
	TreasuryManagers  []string `yaml:"treasury_managers"`
	ReconcileSchedule string   `yaml:"reconcile_schedule"`
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	Vault    VaultConfig    `yaml:"vault"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Logging: LoggingConfig{Level: "info", Format: "console", Output: "stdout"},
		Vault: VaultConfig{
			Name:              "PooledVault",
			Version:           "1",
			ChainID:           1,
			ReconcileSchedule: "@every 30s",
		},
	}
}

// Load reads VAULT_CONFIG_FILE (default config/vault.yaml when present) and
// applies environment overrides on top.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("VAULT_CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat("config/vault.yaml"); err == nil {
			path = "config/vault.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.Vault.Address == "" {
		return nil, fmt.Errorf("vault address is required (VAULT_ADDRESS)")
	}
	if cfg.Vault.FeeRateBps > 0 && cfg.Vault.Treasury == "" {
		return nil, fmt.Errorf("treasury address is required when a fee rate is set")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Vault.Name, "VAULT_NAME")
	setString(&cfg.Vault.Version, "VAULT_VERSION")
	setUint64(&cfg.Vault.ChainID, "VAULT_CHAIN_ID")
	setString(&cfg.Vault.Address, "VAULT_ADDRESS")
	setUint32(&cfg.Vault.FeeRateBps, "VAULT_FEE_RATE_BPS")
	setString(&cfg.Vault.Treasury, "VAULT_TREASURY")
	setList(&cfg.Vault.Administrators, "VAULT_ADMINISTRATORS")
	setList(&cfg.Vault.WithdrawalSigners, "VAULT_WITHDRAWAL_SIGNERS")
	setList(&cfg.Vault.TreasuryManagers, "VAULT_TREASURY_MANAGERS")
	setString(&cfg.Vault.ReconcileSchedule, "VAULT_RECONCILE_SCHEDULE")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(parsed)
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func setList(dst *[]string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
