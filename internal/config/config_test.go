package config

import (
	"strings"
	"testing"
	"time"
)

func defaultConfig() *Config {
	return &Config{
		Retention:     DefaultRetention,
		SweepInterval: DefaultSweepInterval,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
		MaxAssetSize:  DefaultMaxAssetSize,
		MessageRate:   DefaultMessageRate,
	}
}

func TestApplyTargetsFile(t *testing.T) {
	cfg := defaultConfig()
	data := []byte(`
targets:
  - chat_id: -100123
    thread_id: 7
  - chat_id: 456
    filter_tag: beta
retention: 72h
sweep_interval: 6h
retry_attempts: 5
retry_delay: 2s
max_asset_size: 1048576
message_rate: 10
`)
	if err := cfg.applyTargetsFile(data); err != nil {
		t.Fatalf("applyTargetsFile() error = %v", err)
	}

	if len(cfg.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(cfg.Targets))
	}
	if cfg.Targets[0].ChatID != -100123 || cfg.Targets[0].ThreadID != 7 {
		t.Errorf("targets[0] = %+v", cfg.Targets[0])
	}
	if cfg.Targets[1].FilterTag != "beta" {
		t.Errorf("targets[1].FilterTag = %q, want beta", cfg.Targets[1].FilterTag)
	}
	if cfg.Retention != 72*time.Hour {
		t.Errorf("Retention = %v, want 72h", cfg.Retention)
	}
	if cfg.SweepInterval != 6*time.Hour {
		t.Errorf("SweepInterval = %v, want 6h", cfg.SweepInterval)
	}
	if cfg.RetryAttempts != 5 {
		t.Errorf("RetryAttempts = %d, want 5", cfg.RetryAttempts)
	}
	if cfg.RetryDelay != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", cfg.RetryDelay)
	}
	if cfg.MaxAssetSize != 1048576 {
		t.Errorf("MaxAssetSize = %d, want 1048576", cfg.MaxAssetSize)
	}
	if cfg.MessageRate != 10 {
		t.Errorf("MessageRate = %v, want 10", cfg.MessageRate)
	}
}

func TestApplyTargetsFileDefaults(t *testing.T) {
	cfg := defaultConfig()
	data := []byte("targets:\n  - chat_id: 1\n")
	if err := cfg.applyTargetsFile(data); err != nil {
		t.Fatalf("applyTargetsFile() error = %v", err)
	}

	if cfg.Retention != DefaultRetention {
		t.Errorf("Retention = %v, want default %v", cfg.Retention, DefaultRetention)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval = %v, want default %v", cfg.SweepInterval, DefaultSweepInterval)
	}
	if cfg.RetryAttempts != DefaultRetryAttempts {
		t.Errorf("RetryAttempts = %d, want default %d", cfg.RetryAttempts, DefaultRetryAttempts)
	}
	if cfg.MaxAssetSize != DefaultMaxAssetSize {
		t.Errorf("MaxAssetSize = %d, want default %d", cfg.MaxAssetSize, DefaultMaxAssetSize)
	}
}

func TestApplyTargetsFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"invalid yaml", "targets: [", "yaml"},
		{"missing chat_id", "targets:\n  - filter_tag: beta\n", "chat_id is required"},
		{"bad duration", "retention: soon\n", "invalid duration"},
		{"negative duration", "retention: -1h\n", "must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			err := cfg.applyTargetsFile([]byte(tt.data))
			if err == nil {
				t.Fatal("applyTargetsFile() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("GITHUB_TARGET_USER", "kokuban")
	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error without TELEGRAM_TOKEN")
	}
}

func TestLoadRequiresGitHubUser(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("GITHUB_TARGET_USER", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error without GITHUB_TARGET_USER")
	}
}

func TestLoadToleratesMissingTargetsFile(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("GITHUB_TARGET_USER", "kokuban")
	t.Setenv("TARGETS_FILE", "does-not-exist.yaml")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Targets) != 0 {
		t.Errorf("targets = %d, want 0", len(cfg.Targets))
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.DBPath != "relay.db" {
		t.Errorf("DBPath = %q, want relay.db", cfg.DBPath)
	}
}
