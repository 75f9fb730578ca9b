package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration settings for the oracle consensus core
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Consensus   ConsensusConfig `mapstructure:"consensus"`
	Valuation   ValuationConfig `mapstructure:"valuation"`
	Security    SecurityConfig  `mapstructure:"security"`
	Scheduler   SchedConfig     `mapstructure:"scheduler"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Embedded        bool          `mapstructure:"embedded"`
	Port            int           `mapstructure:"port"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ConsensusConfig holds proof verification settings
type ConsensusConfig struct {
	MinVerifiers int           `mapstructure:"min_verifiers"`
	VoteTimelock time.Duration `mapstructure:"vote_timelock"`
}

// ValuationConfig holds valuation ledger settings
type ValuationConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// SecurityConfig holds access control settings
type SecurityConfig struct {
	TokenSecret         string        `mapstructure:"token_secret"`
	TokenSalt           string        `mapstructure:"token_salt"`
	TokenExpiry         time.Duration `mapstructure:"token_expiry"`
	Administrators      []string      `mapstructure:"administrators"`
	EmergencyResponders []string      `mapstructure:"emergency_responders"`
}

// SchedConfig holds maintenance scheduler settings
type SchedConfig struct {
	FreshnessAuditSpec  string        `mapstructure:"freshness_audit_spec"`
	ReputationDecaySpec string        `mapstructure:"reputation_decay_spec"`
	InactivityWindow    time.Duration `mapstructure:"inactivity_window"`
	InactivityPenalty   uint64        `mapstructure:"inactivity_penalty"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, rely on defaults and env vars
	}

	// Override with environment variables
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Consensus defaults
	v.SetDefault("consensus.min_verifiers", 3)
	v.SetDefault("consensus.vote_timelock", "24h")

	// Valuation defaults
	v.SetDefault("valuation.max_age", "24h")

	// Security defaults
	v.SetDefault("security.token_expiry", "24h")

	// Scheduler defaults
	v.SetDefault("scheduler.freshness_audit_spec", "0 */10 * * * *")
	v.SetDefault("scheduler.reputation_decay_spec", "0 0 * * * *")
	v.SetDefault("scheduler.inactivity_window", "168h")
	v.SetDefault("scheduler.inactivity_penalty", 1)

	// Database defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.timeout", "30s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateConsensus(); err != nil {
		return fmt.Errorf("consensus config: %w", err)
	}

	if err := c.validateValuation(); err != nil {
		return fmt.Errorf("valuation config: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateScheduler(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security config: %w", err)
	}

	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.TokenSecret == "" {
		// Token-based access disabled; static grants only
		return nil
	}
	if c.Security.TokenExpiry <= 0 {
		return fmt.Errorf("token_expiry must be positive when token_secret is set")
	}
	return nil
}

func (c *Config) validateConsensus() error {
	if c.Consensus.MinVerifiers <= 0 {
		return fmt.Errorf("min_verifiers must be positive")
	}
	if c.Consensus.VoteTimelock <= 0 {
		return fmt.Errorf("vote_timelock must be positive")
	}
	return nil
}

func (c *Config) validateValuation() error {
	if c.Valuation.MaxAge <= 0 {
		return fmt.Errorf("max_age must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" && !c.Database.Embedded {
		// No persistence configured; the core runs purely in memory
		return nil
	}
	if c.Database.Embedded && (c.Database.Port <= 0 || c.Database.Port > 65535) {
		return fmt.Errorf("invalid port number: %d", c.Database.Port)
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	if c.Database.MaxConnections < c.Database.MinConnections {
		return fmt.Errorf("max_connections (%d) cannot be less than min_connections (%d)",
			c.Database.MaxConnections, c.Database.MinConnections)
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.FreshnessAuditSpec == "" {
		return fmt.Errorf("freshness_audit_spec cannot be empty")
	}
	if c.Scheduler.ReputationDecaySpec == "" {
		return fmt.Errorf("reputation_decay_spec cannot be empty")
	}
	if c.Scheduler.InactivityWindow <= 0 {
		return fmt.Errorf("inactivity_window must be positive")
	}
	return nil
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
