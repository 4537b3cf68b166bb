package common

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDefaultConfigValidates(t *testing.T) {
	config := NewDefaultConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("Default configuration should validate, got %v", err)
	}
	if config.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", config.Server.Port)
	}
	if config.Queue.QueueName != "claimlens_reviews" {
		t.Errorf("Expected default queue name claimlens_reviews, got %s", config.Queue.QueueName)
	}
}

func TestLoadFromFilesLaterFilesOverride(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
environment = "development"

[server]
port = 9000

[queue]
max_receive = 5
`)
	override := writeConfigFile(t, "override.toml", `
[server]
port = 9100
`)

	config, err := LoadFromFiles(nil, base, override)
	if err != nil {
		t.Fatalf("Failed to load config files: %v", err)
	}

	if config.Server.Port != 9100 {
		t.Errorf("Expected later file to override port, got %d", config.Server.Port)
	}
	if config.Queue.MaxReceive != 5 {
		t.Errorf("Expected earlier file value preserved, got %d", config.Queue.MaxReceive)
	}
	// Untouched fields keep defaults
	if config.Storage.Badger.Path != "./data" {
		t.Errorf("Expected default badger path, got %s", config.Storage.Badger.Path)
	}
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	if _, err := LoadFromFiles(nil, "/nonexistent/claimlens.toml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestEnvOverridesWinOverFiles(t *testing.T) {
	path := writeConfigFile(t, "claimlens.toml", `
[server]
port = 9000

[auth]
jwt_secret = "file-secret"
`)

	t.Setenv("CLAIMLENS_SERVER_PORT", "9200")
	t.Setenv("CLAIMLENS_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("CLAIMLENS_QUEUE_INTERNAL_WORKERS", "false")

	config, err := LoadFromFiles(nil, path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Server.Port != 9200 {
		t.Errorf("Expected env port 9200, got %d", config.Server.Port)
	}
	if config.Auth.JWTSecret != "env-secret" {
		t.Errorf("Expected env secret to win, got %s", config.Auth.JWTSecret)
	}
	if config.Queue.InternalWorkers {
		t.Error("Expected env to disable internal workers")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 9300, "0.0.0.0")
	if config.Server.Port != 9300 {
		t.Errorf("Expected flag port 9300, got %d", config.Server.Port)
	}
	if config.Server.Host != "0.0.0.0" {
		t.Errorf("Expected flag host 0.0.0.0, got %s", config.Server.Host)
	}

	// Zero values leave the config untouched
	ApplyFlagOverrides(config, 0, "")
	if config.Server.Port != 9300 || config.Server.Host != "0.0.0.0" {
		t.Error("Zero-value flags should not override")
	}
}

func TestValidateJobSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"daily with seconds", "0 30 3 * * *", false},
		{"hourly", "0 0 * * * *", false},
		{"five fields", "30 3 * * *", true},
		{"every second", "* * * * * *", true},
		{"sub-minute step", "*/30 * * * * *", true},
		{"garbage", "not a schedule", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobSchedule(tt.schedule)
			if tt.wantErr && err == nil {
				t.Errorf("Expected error for %q", tt.schedule)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error for %q: %v", tt.schedule, err)
			}
		})
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	config := NewDefaultConfig()
	config.Queue.VisibilityTimeout = "soon"
	if err := config.Validate(); err == nil {
		t.Error("Expected error for invalid visibility timeout")
	}

	config = NewDefaultConfig()
	config.Scheduler.QueueRetention = "forever"
	if err := config.Validate(); err == nil {
		t.Error("Expected error for invalid queue retention window")
	}

	config = NewDefaultConfig()
	config.Scheduler.RetainUnattached = "a while"
	if err := config.Validate(); err == nil {
		t.Error("Expected error for invalid retention window")
	}
}

func TestValidateProductionRequiresJWTSecret(t *testing.T) {
	config := NewDefaultConfig()
	config.Environment = "production"
	config.Auth.JWTSecret = ""
	config.Auth.AllowAnonymous = false

	if err := config.Validate(); err == nil {
		t.Error("Expected production config without a JWT secret to fail validation")
	}

	config.Auth.JWTSecret = "secret"
	if err := config.Validate(); err != nil {
		t.Errorf("Expected production config with a secret to validate, got %v", err)
	}
}
