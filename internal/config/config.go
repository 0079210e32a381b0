package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/srmops/approval-flow/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Email    EmailConfig    `mapstructure:"email"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// EmailConfig holds SMTP configuration. An empty host disables outbound
// email; notifications then stay in-app only.
type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	From         string `mapstructure:"from"`
}

// WorkflowConfig holds transition engine knobs
type WorkflowConfig struct {
	AllowRejectDuringQuery  bool `mapstructure:"allow_reject_during_query"`
	AllowConcurrentQueries  bool `mapstructure:"allow_concurrent_queries"`
	ConflictRetries         int  `mapstructure:"conflict_retries"`
	IDAllocationMaxAttempts int  `mapstructure:"id_allocation_max_attempts"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/approval-flow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Email defaults: disabled until a relay is configured
	viper.SetDefault("email.smtp_port", 587)

	// Workflow defaults: strict query policy, bounded retries
	viper.SetDefault("workflow.allow_reject_during_query", false)
	viper.SetDefault("workflow.allow_concurrent_queries", false)
	viper.SetDefault("workflow.conflict_retries", 3)
	viper.SetDefault("workflow.id_allocation_max_attempts", 100)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("email.smtp_host", "SMTP_HOST")
	viper.BindEnv("email.smtp_port", "SMTP_PORT")
	viper.BindEnv("email.smtp_username", "SMTP_USERNAME")
	viper.BindEnv("email.smtp_password", "SMTP_PASSWORD")
	viper.BindEnv("email.from", "SMTP_FROM")
	viper.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Workflow.ConflictRetries < 0 {
		return fmt.Errorf("workflow.conflict_retries must not be negative")
	}
	if c.Workflow.IDAllocationMaxAttempts <= 0 {
		return fmt.Errorf("workflow.id_allocation_max_attempts must be positive")
	}

	// Email is optional, but a configured relay needs a valid sender address
	if c.Email.SMTPHost != "" {
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email.smtp_host is set")
		}
		if err := utils.ValidateEmail(c.Email.From); err != nil {
			return fmt.Errorf("email.from: %w", err)
		}
	}

	return nil
}
