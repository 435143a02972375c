package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"turnover/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Hostaway   HostawayConfig   `yaml:"hostaway"`
	Accounts   []models.Account `yaml:"accounts"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APIAuthConfig holds the HS256 secret used to verify bearer tokens.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type HostawayConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
}

type SchedulerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SyncCron        string `yaml:"sync_cron"`
	ReminderCron    string `yaml:"reminder_cron"`
	SheetsCron      string `yaml:"sheets_cron"`
	SyncConcurrency int    `yaml:"sync_concurrency"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	TasksSpreadsheetID    string `yaml:"tasks_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.Accounts = append(config.Accounts, accountsFromEnv(os.Getenv)...)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// accountsFromEnv reads HOSTAWAY_ACCOUNT_{i}_* for i = 1.. until the first missing id.
func accountsFromEnv(getenv func(string) string) []models.Account {
	var accounts []models.Account
	for i := 1; ; i++ {
		prefix := "HOSTAWAY_ACCOUNT_" + strconv.Itoa(i) + "_"
		id := getenv(prefix + "ID")
		if id == "" {
			return accounts
		}
		name := getenv(prefix + "NAME")
		if name == "" {
			name = "Account " + strconv.Itoa(i)
		}
		accounts = append(accounts, models.Account{
			ExternalAccountID: id,
			Name:              name,
			APIKey:            getenv(prefix + "API_KEY"),
			APISecret:         getenv(prefix + "API_SECRET"),
		})
	}
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.HTTP.Enabled && c.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is required when http api is enabled")
	}

	return ValidateAccounts(c.Accounts)
}

func ValidateAccounts(accounts []models.Account) error {
	seen := make(map[string]bool)
	for _, acc := range accounts {
		if acc.ExternalAccountID == "" {
			return fmt.Errorf("account '%s' has empty id", acc.Name)
		}
		if acc.APIKey == "" {
			return fmt.Errorf("account %s has no api key", acc.ExternalAccountID)
		}
		if seen[acc.ExternalAccountID] {
			return fmt.Errorf("duplicate account id found: %s", acc.ExternalAccountID)
		}
		seen[acc.ExternalAccountID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "turnover"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 20
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 40
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Hostaway.BaseURL == "" {
		c.Hostaway.BaseURL = "https://api.hostaway.com/v1"
	}
	if c.Hostaway.Timeout == 0 {
		c.Hostaway.Timeout = 30 * time.Second
	}
	if c.Hostaway.RPS == 0 {
		c.Hostaway.RPS = 5
	}
	if c.Hostaway.Burst == 0 {
		c.Hostaway.Burst = 10
	}

	if c.Scheduler.SyncCron == "" {
		c.Scheduler.SyncCron = "*/30 * * * *"
	}
	if c.Scheduler.ReminderCron == "" {
		c.Scheduler.ReminderCron = "0 * * * *"
	}
	if c.Scheduler.SyncConcurrency <= 0 {
		c.Scheduler.SyncConcurrency = 4
	}

	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 20
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = models.OutboxMaxRetries
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
