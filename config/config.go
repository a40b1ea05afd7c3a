// Package config loads the runtime configuration for the payroll
// back office: defaults, then an optional YAML file, then environment
// variables (a .env file is honored when present).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Port      int    `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	JWTSecret string `yaml:"jwt_secret"`
	Dev       bool   `yaml:"dev"`

	Payroll PayrollConfig `yaml:"payroll"`
}

// PayrollConfig is the static payroll policy: flat tax rate and the
// closed allowance taxonomy. Rates are not historical; one value applies
// to every cycle.
type PayrollConfig struct {
	TaxRate        string   `yaml:"tax_rate"`
	AllowanceTypes []string `yaml:"allowance_types"`
}

// Default matches the original back office: 13% flat tax and the
// bonus/seniority/qualification taxonomy.
func Default() *Config {
	return &Config{
		Port:   8080,
		DBPath: "payroll.db",
		Payroll: PayrollConfig{
			TaxRate:        "0.13",
			AllowanceTypes: []string{"bonus", "seniority", "qualification"},
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	// Best effort; absence of a .env file is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PAYROLL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("PAYROLL_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("PAYROLL_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("PAYROLL_TAX_RATE"); v != "" {
		c.Payroll.TaxRate = v
	}
	if v := os.Getenv("PAYROLL_DEV"); v != "" {
		c.Dev = v == "1" || v == "true"
	}
}

func (c *Config) validate() error {
	rate, err := c.TaxRate()
	if err != nil {
		return fmt.Errorf("config: tax_rate: %w", err)
	}
	if rate.IsNegative() || !rate.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: tax_rate must be in [0, 1), got %s", rate)
	}
	if len(c.Payroll.AllowanceTypes) == 0 {
		return fmt.Errorf("config: allowance_types must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port out of range: %d", c.Port)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret must be set (PAYROLL_JWT_SECRET)")
	}
	return nil
}

// TaxRate parses the configured rate as an exact decimal.
func (c *Config) TaxRate() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Payroll.TaxRate)
}
