package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	IMAP     IMAPConfig     `mapstructure:"imap"`
	AI       AIConfig       `mapstructure:"ai"`
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// IMAPConfig holds mailbox connection configuration
type IMAPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Folder       string        `mapstructure:"folder"`
	TLS          bool          `mapstructure:"tls"`
	CutoffDate   string        `mapstructure:"cutoff_date"`
	MarkAsRead   bool          `mapstructure:"mark_as_read"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Auth         string        `mapstructure:"auth"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RefreshToken string        `mapstructure:"refresh_token"`
}

// AIConfig holds classification and summarization settings
type AIConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ClassifyBeforeAdd bool          `mapstructure:"classify_before_add"`
	DropLabels        string        `mapstructure:"drop_labels"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Temperature       float64       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	SummaryMaxLen     int           `mapstructure:"summary_max_len"`
}

// AppConfig holds polling and retention settings
type AppConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Retention    time.Duration `mapstructure:"retention"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Location     string        `mapstructure:"location"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "mail-sticky.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.folder", "INBOX")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.mark_as_read", false)
	v.SetDefault("imap.timeout", "60s")
	v.SetDefault("imap.auth", "password")

	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.classify_before_add", true)
	v.SetDefault("ai.drop_labels", "marketing, fyi")
	v.SetDefault("ai.model", "gpt-5-mini")
	v.SetDefault("ai.temperature", 1.0)
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("ai.requests_per_minute", 60)
	v.SetDefault("ai.cache_ttl", "1h")
	v.SetDefault("ai.summary_max_len", 140)

	v.SetDefault("app.poll_interval", "300s")
	v.SetDefault("app.retention", "12h")
	v.SetDefault("app.max_retries", 5)
	v.SetDefault("app.location", "Local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "mail-sticky.log")
	v.SetDefault("log.max_size_mb", 2)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// IMAP
	v.BindEnv("imap.host", "IMAP_HOST")
	v.BindEnv("imap.port", "IMAP_PORT")
	v.BindEnv("imap.username", "IMAP_USERNAME")
	v.BindEnv("imap.password", "IMAP_PASSWORD")
	v.BindEnv("imap.folder", "IMAP_FOLDER")
	v.BindEnv("imap.auth", "IMAP_AUTH")
	v.BindEnv("imap.client_id", "IMAP_CLIENT_ID")
	v.BindEnv("imap.client_secret", "IMAP_CLIENT_SECRET")
	v.BindEnv("imap.refresh_token", "IMAP_REFRESH_TOKEN")

	// AI
	v.BindEnv("ai.enabled", "AI_ENABLED")
	v.BindEnv("ai.model", "AI_MODEL")
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.base_url", "OPENAI_BASE_URL")

	// App
	v.BindEnv("app.poll_interval", "APP_POLL_INTERVAL")
	v.BindEnv("app.retention", "APP_RETENTION")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")
}

// GetDSN returns the MySQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Credentialed reports whether enough credentials are present to open the mailbox.
func (c *IMAPConfig) Credentialed() bool {
	if c.Username == "" {
		return false
	}
	if c.UsesOAuth() {
		return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	}
	return c.Password != ""
}

// UsesOAuth reports whether the mailbox authenticates with an OAuth2 token.
func (c *IMAPConfig) UsesOAuth() bool {
	return strings.EqualFold(c.Auth, "oauth2")
}

// Addr returns host:port of the IMAP server
func (c *IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Cutoff parses the optional earliest-date filter.
func (c *IMAPConfig) Cutoff() (time.Time, error) {
	raw := strings.TrimSpace(c.CutoffDate)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", "02-Jan-2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid cutoff_date %q", raw)
}

// DropSet parses the comma separated drop labels into a lower-cased set.
func (c *AIConfig) DropSet() map[string]bool {
	set := make(map[string]bool)
	for _, label := range strings.Split(c.DropLabels, ",") {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			set[label] = true
		}
	}
	return set
}

// LoadLocation resolves the time zone used to render received times.
func (c *AppConfig) LoadLocation() (*time.Location, error) {
	if c.Location == "" || strings.EqualFold(c.Location, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.IMAP.Folder == "" {
		return fmt.Errorf("imap folder is required")
	}
	if _, err := c.IMAP.Cutoff(); err != nil {
		return err
	}

	if c.AI.SummaryMaxLen <= 0 {
		return fmt.Errorf("ai summary_max_len must be greater than 0")
	}

	if c.App.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}
	if c.App.Retention <= 0 {
		return fmt.Errorf("retention must be greater than 0")
	}
	if _, err := c.App.LoadLocation(); err != nil {
		return fmt.Errorf("invalid app location: %w", err)
	}

	return nil
}
