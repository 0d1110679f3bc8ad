package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Sheets        SheetsConfig        `yaml:"sheets"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Address             string  `yaml:"address"`
	ReadTimeoutSeconds  int     `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `yaml:"write_timeout_seconds"`
	RateLimitPerSecond  float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address      string `yaml:"address"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	CartTTLHours int    `yaml:"cart_ttl_hours"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
	CookieSecure  bool   `yaml:"cookie_secure"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type NotificationsConfig struct {
	Workers             int            `yaml:"workers"`
	QueueSize           int            `yaml:"queue_size"`
	RatePerSecond       float64        `yaml:"rate_per_second"`
	Burst               int            `yaml:"burst"`
	MaxRetries          int            `yaml:"max_retries"`
	DrainTimeoutSeconds int            `yaml:"drain_timeout_seconds"`
	ReminderSchedule    string         `yaml:"reminder_schedule"`
	SMTP                SMTPConfig     `yaml:"smtp"`
	Telegram            TelegramConfig `yaml:"telegram"`
}

type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

type BackupConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Schedule       string `yaml:"schedule"`
	ExportSchedule string `yaml:"export_schedule"`
	StoragePath    string `yaml:"storage_path"`
	RetentionDays  int    `yaml:"retention_days"`
}

type MonitoringConfig struct {
	HealthCheckPort   int  `yaml:"health_check_port"`
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	GRPCHealthPort    int  `yaml:"grpc_health_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadEnvFiles reads .env files into the process environment. Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !isMemoryDB(cfg.Database.Path) {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 15
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 30
	}
	if c.Server.RateLimitPerSecond <= 0 {
		c.Server.RateLimitPerSecond = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 20
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/itembook.db"
	}
	if c.Redis.CartTTLHours <= 0 {
		c.Redis.CartTTLHours = 24 * 30
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 7 * 24
	}
	if c.Notifications.Workers <= 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.QueueSize <= 0 {
		c.Notifications.QueueSize = 100
	}
	if c.Notifications.RatePerSecond <= 0 {
		c.Notifications.RatePerSecond = 5
	}
	if c.Notifications.Burst <= 0 {
		c.Notifications.Burst = 10
	}
	if c.Notifications.MaxRetries < 0 {
		c.Notifications.MaxRetries = 0
	}
	if c.Notifications.DrainTimeoutSeconds <= 0 {
		c.Notifications.DrainTimeoutSeconds = 30
	}
	if c.Notifications.ReminderSchedule == "" {
		c.Notifications.ReminderSchedule = "0 9 * * *"
	}
	if c.Notifications.SMTP.Port == 0 {
		c.Notifications.SMTP.Port = 587
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Approved"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Backup.ExportSchedule == "" {
		c.Backup.ExportSchedule = "0 4 1 * *"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 14
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	smtp := c.Notifications.SMTP
	if smtp.Enabled && (smtp.Host == "" || smtp.From == "") {
		return errors.New("notifications.smtp.host and notifications.smtp.from are required when smtp is enabled")
	}
	tg := c.Notifications.Telegram
	if tg.Enabled && (tg.BotToken == "" || tg.ChatID == 0) {
		return errors.New("notifications.telegram.bot_token and chat_id are required when telegram is enabled")
	}
	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return errors.New("sheets.credentials_file and sheets.spreadsheet_id are required when sheets is enabled")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func (c *Config) NotificationDrainTimeout() time.Duration {
	return time.Duration(c.Notifications.DrainTimeoutSeconds) * time.Second
}

func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.Redis.CartTTLHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func isMemoryDB(path string) bool {
	return len(path) >= 5 && path[:5] == "file:"
}
