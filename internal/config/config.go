package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// TelegramConfig holds source and destination settings
type TelegramConfig struct {
	BotToken          string        `mapstructure:"bot_token"`
	DestinationChatID int64         `mapstructure:"destination_chat_id"`
	SourceChatIDs     []int64       `mapstructure:"source_chat_ids"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// PipelineConfig holds claim, retry and matching settings
type PipelineConfig struct {
	LeaseWindow     time.Duration `mapstructure:"lease_window"`
	MaxFailures     int           `mapstructure:"max_failures"`
	ForwardAttempts int           `mapstructure:"forward_attempts"`
	PageSize        int           `mapstructure:"page_size"`
	LogSkipped      bool          `mapstructure:"log_skipped"`
}

// SchedulerConfig holds periodic job settings
type SchedulerConfig struct {
	BackfillIntervalMinutes int `mapstructure:"backfill_interval_minutes"`
	CleanupIntervalHours    int `mapstructure:"cleanup_interval_hours"`
	MatcherRefreshSeconds   int `mapstructure:"matcher_refresh_seconds"`
	EventLogRetentionDays   int `mapstructure:"event_log_retention_days"`
	LedgerRetentionDays     int `mapstructure:"ledger_retention_days"`
}

// AdminConfig holds control surface authentication settings
type AdminConfig struct {
	Login        string        `mapstructure:"login"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("telegram.request_timeout", "30s")

	viper.SetDefault("pipeline.lease_window", "2m")
	viper.SetDefault("pipeline.max_failures", 5)
	viper.SetDefault("pipeline.forward_attempts", 3)
	viper.SetDefault("pipeline.page_size", 100)
	viper.SetDefault("pipeline.log_skipped", false)

	viper.SetDefault("scheduler.backfill_interval_minutes", 10)
	viper.SetDefault("scheduler.cleanup_interval_hours", 24)
	viper.SetDefault("scheduler.matcher_refresh_seconds", 30)
	viper.SetDefault("scheduler.event_log_retention_days", 7)
	viper.SetDefault("scheduler.ledger_retention_days", 30)

	viper.SetDefault("admin.token_ttl", "12h")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("telegram.destination_chat_id", "TELEGRAM_DESTINATION_CHAT_ID")
	viper.BindEnv("telegram.request_timeout", "TELEGRAM_REQUEST_TIMEOUT")

	viper.BindEnv("pipeline.lease_window", "PIPELINE_LEASE_WINDOW")
	viper.BindEnv("pipeline.max_failures", "PIPELINE_MAX_FAILURES")
	viper.BindEnv("pipeline.forward_attempts", "PIPELINE_FORWARD_ATTEMPTS")
	viper.BindEnv("pipeline.page_size", "PIPELINE_PAGE_SIZE")
	viper.BindEnv("pipeline.log_skipped", "PIPELINE_LOG_SKIPPED")

	viper.BindEnv("scheduler.backfill_interval_minutes", "SCHEDULER_BACKFILL_INTERVAL_MINUTES")
	viper.BindEnv("scheduler.cleanup_interval_hours", "SCHEDULER_CLEANUP_INTERVAL_HOURS")
	viper.BindEnv("scheduler.matcher_refresh_seconds", "SCHEDULER_MATCHER_REFRESH_SECONDS")
	viper.BindEnv("scheduler.event_log_retention_days", "SCHEDULER_EVENT_LOG_RETENTION_DAYS")
	viper.BindEnv("scheduler.ledger_retention_days", "SCHEDULER_LEDGER_RETENTION_DAYS")

	viper.BindEnv("admin.login", "ADMIN_LOGIN")
	viper.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	viper.BindEnv("admin.jwt_secret", "ADMIN_JWT_SECRET")
	viper.BindEnv("admin.token_ttl", "ADMIN_TOKEN_TTL")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if c.Telegram.DestinationChatID == 0 {
		return fmt.Errorf("telegram destination chat id is required")
	}

	if c.Pipeline.LeaseWindow <= 0 {
		return fmt.Errorf("pipeline lease window must be greater than 0")
	}
	if c.Pipeline.MaxFailures < 0 {
		return fmt.Errorf("pipeline max failures must not be negative")
	}

	if c.Scheduler.BackfillIntervalMinutes <= 0 {
		return fmt.Errorf("backfill interval must be greater than 0")
	}
	if c.Scheduler.LedgerRetentionDays < c.Scheduler.EventLogRetentionDays {
		return fmt.Errorf("ledger retention must not be shorter than event log retention")
	}

	if c.Admin.Login == "" || c.Admin.PasswordHash == "" || c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin login, password hash, and jwt secret are required")
	}

	return nil
}
