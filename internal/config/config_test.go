package config

import (
	"os"
	"path/filepath"
	"testing"

	"labkiosk/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "labkiosk"
database:
  path: "test.db"
kiosk:
  default_label: "Hall Kiosk"
labs:
  - code: "PHO"
    name: "Photonics Lab"
    location: "B-214"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.Kiosk.DefaultLabel != "Hall Kiosk" {
		t.Errorf("expected kiosk label Hall Kiosk, got %s", cfg.Kiosk.DefaultLabel)
	}
	if len(cfg.Labs) != 1 || cfg.Labs[0].Code != "PHO" {
		t.Errorf("expected 1 lab with code PHO")
	}

	// Defaults
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Kiosk.TokenTTLMinutes != models.DefaultTokenTTLMinutes {
		t.Errorf("expected default token ttl, got %d", cfg.Kiosk.TokenTTLMinutes)
	}
	if cfg.Kiosk.RateLimitScans != models.RateLimitScans {
		t.Errorf("expected default scan rate limit, got %d", cfg.Kiosk.RateLimitScans)
	}
	if cfg.App.BaseURL != "http://localhost:8080" {
		t.Errorf("unexpected base url: %s", cfg.App.BaseURL)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("LABKIOSK_DB_PATH", "/var/lib/labkiosk/app.db")

	yamlContent := `
database:
  path: "${LABKIOSK_DB_PATH}"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Path != "/var/lib/labkiosk/app.db" {
		t.Errorf("env var not expanded, got %s", cfg.Database.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "telegram enabled without token",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Telegram: TelegramConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "telegram enabled without staff chat",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Telegram: TelegramConfig{Enabled: true, BotToken: "token"},
			},
			wantErr: true,
		},
		{
			name: "duplicate lab codes",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Labs: []models.Lab{
					{Code: "PHO", Name: "Photonics"},
					{Code: "PHO", Name: "Photonics Annex"},
				},
			},
			wantErr: true,
		},
		{
			name: "lab without name",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Labs:     []models.Lab{{Code: "PHO"}},
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
