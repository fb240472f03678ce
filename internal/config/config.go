// Package config provides configuration management for the demo trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Demo        DemoConfig     `mapstructure:"demo"`
	Server      ServerConfig   `mapstructure:"server"`
	Security    SecurityConfig `mapstructure:"security"`
	Log         LogSettings    `mapstructure:"log"`
	UI          UIConfig       `mapstructure:"ui"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// DemoConfig holds the simulated trading configuration.
type DemoConfig struct {
	DBPath             string             `mapstructure:"db_path"`
	SeedCash           float64            `mapstructure:"seed_cash"`
	QuoteTimeout       time.Duration      `mapstructure:"quote_timeout"`
	AllowShort         bool               `mapstructure:"allow_short"`
	EnforceMarketHours bool               `mapstructure:"enforce_market_hours"`
	DefaultExchange    string             `mapstructure:"default_exchange"`
	Quotes             map[string]float64 `mapstructure:"quotes"`    // SYMBOL or EXCHANGE:SYMBOL -> price
	LotSizes           map[string]int     `mapstructure:"lot_sizes"` // SYMBOL or EXCHANGE:SYMBOL -> lot size
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	ReadOnlyMode bool   `mapstructure:"read_only_mode"`
	AuditEnabled bool   `mapstructure:"audit_enabled"`
	AuditDir     string `mapstructure:"audit_dir"`
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level   string `mapstructure:"level"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
	MaxSize int    `mapstructure:"max_size"`
}

// UIConfig holds CLI output configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// Credentials holds API credentials.
type Credentials struct {
	Zerodha ZerodhaCredentials `mapstructure:"zerodha"`
}

// ZerodhaCredentials holds Zerodha API credentials.
type ZerodhaCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
	UserID      string `mapstructure:"user_id"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/demo-trader"
	}
	return filepath.Join(home, ".config", "demo-trader")
}

// Default returns the configuration used when no file overrides a value.
func Default(configDir string) *Config {
	v := viper.New()
	setDefaults(v, configDir)
	cfg := &Config{Dir: configDir}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are written from templates and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("demo.db_path", filepath.Join(configDir, "demo_trading.db"))
	v.SetDefault("demo.seed_cash", 1000000.0) // 10 lakhs
	v.SetDefault("demo.quote_timeout", 2*time.Second)
	v.SetDefault("demo.allow_short", false)
	v.SetDefault("demo.enforce_market_hours", false)
	v.SetDefault("demo.default_exchange", "NSE")

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("security.read_only_mode", false)
	v.SetDefault("security.audit_enabled", true)
	v.SetDefault("security.audit_dir", filepath.Join(configDir, "audit"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", true)
	v.SetDefault("log.path", filepath.Join(configDir, "logs", "demo-trader.log"))
	v.SetDefault("log.max_size", 100)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
	v.SetDefault("ui.time_format", "15:04:05")
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	v.SetEnvPrefix("DEMO_TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZERODHA_API_KEY"); v != "" {
		cfg.Credentials.Zerodha.APIKey = v
	}
	if v := os.Getenv("ZERODHA_API_SECRET"); v != "" {
		cfg.Credentials.Zerodha.APISecret = v
	}
	if v := os.Getenv("ZERODHA_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Zerodha.AccessToken = v
	}
}

// normalize upper-cases map keys; viper lower-cases them on read.
func (c *Config) normalize() {
	if len(c.Demo.Quotes) > 0 {
		quotes := make(map[string]float64, len(c.Demo.Quotes))
		for k, v := range c.Demo.Quotes {
			quotes[strings.ToUpper(k)] = v
		}
		c.Demo.Quotes = quotes
	}
	if len(c.Demo.LotSizes) > 0 {
		lots := make(map[string]int, len(c.Demo.LotSizes))
		for k, v := range c.Demo.LotSizes {
			lots[strings.ToUpper(k)] = v
		}
		c.Demo.LotSizes = lots
	}
	c.Demo.DefaultExchange = strings.ToUpper(c.Demo.DefaultExchange)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Demo.SeedCash < 0 {
		return fmt.Errorf("demo.seed_cash must be non-negative")
	}
	if c.Demo.QuoteTimeout <= 0 {
		return fmt.Errorf("demo.quote_timeout must be positive")
	}
	if c.Demo.DBPath == "" {
		return fmt.Errorf("demo.db_path must be set")
	}
	for k, v := range c.Demo.LotSizes {
		if v <= 0 {
			return fmt.Errorf("demo.lot_sizes.%s must be positive", k)
		}
	}
	for k, v := range c.Demo.Quotes {
		if v <= 0 {
			return fmt.Errorf("demo.quotes.%s must be positive", k)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	return nil
}

// HasZerodha reports whether live broker credentials are configured.
func (c *Config) HasZerodha() bool {
	return c.Credentials.Zerodha.APIKey != "" && c.Credentials.Zerodha.AccessToken != ""
}
