package config

import (
	"fmt"
	"os"
	"time"

	"release-relay/internal/models"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

const (
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultSweepInterval = 24 * time.Hour
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second
	DefaultMaxAssetSize  = 50 * 1024 * 1024
	DefaultMessageRate   = 25
)

type Config struct {
	TelegramToken string
	WebhookSecret string
	GitHubUser    string
	Port          string
	DBPath        string

	Targets       []models.Target
	Retention     time.Duration
	SweepInterval time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxAssetSize  int64
	MessageRate   float64
}

// targetsFile is the YAML shape of the targets/tuning file. Durations are
// plain strings parsed with time.ParseDuration so operators can write "168h"
// or "30m".
type targetsFile struct {
	Targets       []models.Target `yaml:"targets"`
	Retention     string          `yaml:"retention"`
	SweepInterval string          `yaml:"sweep_interval"`
	RetryAttempts int             `yaml:"retry_attempts"`
	RetryDelay    string          `yaml:"retry_delay"`
	MaxAssetSize  int64           `yaml:"max_asset_size"`
	MessageRate   float64         `yaml:"message_rate"`
}

// Load reads the environment (with .env support) and the targets file.
// Missing required environment variables or a malformed targets file abort
// startup; a missing targets file is tolerated and leaves the target list
// empty.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		GitHubUser:    os.Getenv("GITHUB_TARGET_USER"),
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "relay.db"),
		Retention:     DefaultRetention,
		SweepInterval: DefaultSweepInterval,
		RetryAttempts: DefaultRetryAttempts,
		RetryDelay:    DefaultRetryDelay,
		MaxAssetSize:  DefaultMaxAssetSize,
		MessageRate:   DefaultMessageRate,
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.GitHubUser == "" {
		return nil, fmt.Errorf("GITHUB_TARGET_USER is required")
	}

	path := getEnv("TARGETS_FILE", "targets.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read targets file %s: %w", path, err)
	}
	if err := cfg.applyTargetsFile(data); err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyTargetsFile(data []byte) error {
	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return err
	}

	for i, t := range tf.Targets {
		if t.ChatID == 0 {
			return fmt.Errorf("targets[%d]: chat_id is required", i)
		}
	}
	c.Targets = tf.Targets

	var err error
	if c.Retention, err = durationOrDefault("retention", tf.Retention, DefaultRetention); err != nil {
		return err
	}
	if c.SweepInterval, err = durationOrDefault("sweep_interval", tf.SweepInterval, DefaultSweepInterval); err != nil {
		return err
	}
	if c.RetryDelay, err = durationOrDefault("retry_delay", tf.RetryDelay, DefaultRetryDelay); err != nil {
		return err
	}
	if tf.RetryAttempts > 0 {
		c.RetryAttempts = tf.RetryAttempts
	}
	if tf.MaxAssetSize > 0 {
		c.MaxAssetSize = tf.MaxAssetSize
	}
	if tf.MessageRate > 0 {
		c.MessageRate = tf.MessageRate
	}
	return nil
}

func durationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be > 0", field)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
