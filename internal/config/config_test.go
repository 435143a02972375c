package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"turnover/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_JWT_SECRET", "s3cret")
	t.Setenv("HOSTAWAY_ACCOUNT_1_ID", "env-acc")
	t.Setenv("HOSTAWAY_ACCOUNT_1_API_KEY", "env-key")

	yamlContent := `
database:
  path: "test.db"
api:
  enabled: true
  auth:
    jwt_secret: "${TEST_JWT_SECRET}"
accounts:
  - id: "12345"
    name: "Main"
    api_key: "key"
    api_secret: "secret"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	// no .env in the working directory is fine
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.API.Auth.JWTSecret != "s3cret" {
		t.Errorf("expected expanded jwt secret, got %q", cfg.API.Auth.JWTSecret)
	}
	if !cfg.API.HTTP.Enabled {
		t.Errorf("expected http api enabled when api is enabled")
	}

	if len(cfg.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(cfg.Accounts))
	}
	if cfg.Accounts[0].ExternalAccountID != "12345" || cfg.Accounts[0].APISecret != "secret" {
		t.Errorf("unexpected yaml account: %+v", cfg.Accounts[0])
	}
	if cfg.Accounts[1].ExternalAccountID != "env-acc" || cfg.Accounts[1].Name != "Account 1" {
		t.Errorf("unexpected env account: %+v", cfg.Accounts[1])
	}
}

func TestAccountsFromEnv(t *testing.T) {
	env := map[string]string{
		"HOSTAWAY_ACCOUNT_1_ID":      "a",
		"HOSTAWAY_ACCOUNT_1_NAME":    "First",
		"HOSTAWAY_ACCOUNT_1_API_KEY": "k1",
		"HOSTAWAY_ACCOUNT_2_ID":      "b",
		"HOSTAWAY_ACCOUNT_2_API_KEY": "k2",
		// gap: account 4 is never reached
		"HOSTAWAY_ACCOUNT_4_ID": "d",
	}

	accounts := accountsFromEnv(func(k string) string { return env[k] })
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].Name != "First" || accounts[1].Name != "Account 2" {
		t.Errorf("unexpected names: %q, %q", accounts[0].Name, accounts[1].Name)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Accounts: []models.Account{{ExternalAccountID: "1", APIKey: "k"}},
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "http without jwt secret",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				API:      APIConfig{HTTP: APIHTTPConfig{Enabled: true}},
			},
			wantErr: true,
		},
		{
			name: "duplicate account id",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Accounts: []models.Account{
					{ExternalAccountID: "1", APIKey: "k"},
					{ExternalAccountID: "1", APIKey: "k2"},
				},
			},
			wantErr: true,
		},
		{
			name: "account without key",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Accounts: []models.Account{{ExternalAccountID: "1"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Scheduler.SyncCron != "*/30 * * * *" {
		t.Errorf("unexpected sync cron %q", cfg.Scheduler.SyncCron)
	}
	if cfg.Scheduler.ReminderCron != "0 * * * *" {
		t.Errorf("unexpected reminder cron %q", cfg.Scheduler.ReminderCron)
	}
	if cfg.Scheduler.SyncConcurrency != 4 {
		t.Errorf("expected sync concurrency 4, got %d", cfg.Scheduler.SyncConcurrency)
	}
	if cfg.Hostaway.BaseURL != "https://api.hostaway.com/v1" {
		t.Errorf("unexpected base url %q", cfg.Hostaway.BaseURL)
	}
	if cfg.Hostaway.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Hostaway.Timeout)
	}
	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.Outbox.MaxRetries != models.OutboxMaxRetries {
		t.Errorf("expected default max retries %d, got %d", models.OutboxMaxRetries, cfg.Outbox.MaxRetries)
	}
}
