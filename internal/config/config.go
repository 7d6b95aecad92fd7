package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DataDir string `envconfig:"RELAY_DATA_DIR" default:"data/dedup"`

	CacheCapacity int `envconfig:"RELAY_CACHE_CAPACITY" default:"1000"`

	TierFreshMaxMinutes   int `envconfig:"RELAY_TIER_FRESH_MAX_MINUTES" default:"30"`
	TierFreshThreshold    int `envconfig:"RELAY_TIER_FRESH_THRESHOLD" default:"70"`
	TierRecentMaxHours    int `envconfig:"RELAY_TIER_RECENT_MAX_HOURS" default:"2"`
	TierRecentThreshold   int `envconfig:"RELAY_TIER_RECENT_THRESHOLD" default:"80"`
	TierSameDayMaxHours   int `envconfig:"RELAY_TIER_SAME_DAY_MAX_HOURS" default:"24"`
	TierSameDayThreshold  int `envconfig:"RELAY_TIER_SAME_DAY_THRESHOLD" default:"90"`
	TierLongTermThreshold int `envconfig:"RELAY_TIER_LONG_TERM_THRESHOLD" default:"95"`

	RegistryLookback       int `envconfig:"RELAY_REGISTRY_LOOKBACK" default:"7"`
	RegistryMatchThreshold int `envconfig:"RELAY_REGISTRY_MATCH_THRESHOLD" default:"95"`
	SentRetentionDays      int `envconfig:"RELAY_SENT_RETENTION_DAYS" default:"14"`
	OmissionRetentionDays  int `envconfig:"RELAY_OMISSION_RETENTION_DAYS" default:"7"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("RELAY_DATA_DIR is required")
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("RELAY_CACHE_CAPACITY must be >= 1")
	}
	if c.TierFreshMaxMinutes < 1 {
		return fmt.Errorf("RELAY_TIER_FRESH_MAX_MINUTES must be >= 1")
	}
	if c.TierRecentMaxHours*60 <= c.TierFreshMaxMinutes {
		return fmt.Errorf("RELAY_TIER_RECENT_MAX_HOURS must exceed the fresh tier boundary")
	}
	if c.TierSameDayMaxHours <= c.TierRecentMaxHours {
		return fmt.Errorf("RELAY_TIER_SAME_DAY_MAX_HOURS must exceed RELAY_TIER_RECENT_MAX_HOURS")
	}
	for name, threshold := range map[string]int{
		"RELAY_TIER_FRESH_THRESHOLD":     c.TierFreshThreshold,
		"RELAY_TIER_RECENT_THRESHOLD":    c.TierRecentThreshold,
		"RELAY_TIER_SAME_DAY_THRESHOLD":  c.TierSameDayThreshold,
		"RELAY_TIER_LONG_TERM_THRESHOLD": c.TierLongTermThreshold,
	} {
		if threshold < 1 || threshold > 100 {
			return fmt.Errorf("%s must be between 1 and 100", name)
		}
	}
	if c.RegistryLookback < 1 {
		return fmt.Errorf("RELAY_REGISTRY_LOOKBACK must be >= 1")
	}
	if c.RegistryMatchThreshold < 1 || c.RegistryMatchThreshold > 100 {
		return fmt.Errorf("RELAY_REGISTRY_MATCH_THRESHOLD must be between 1 and 100")
	}
	if c.SentRetentionDays < 1 {
		return fmt.Errorf("RELAY_SENT_RETENTION_DAYS must be >= 1")
	}
	if c.OmissionRetentionDays < 1 {
		return fmt.Errorf("RELAY_OMISSION_RETENTION_DAYS must be >= 1")
	}
	if c.TelegramBotToken != "" && strings.TrimSpace(c.TelegramChatID) == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

func (c *Config) SentRetention() time.Duration {
	return time.Duration(c.SentRetentionDays) * 24 * time.Hour
}

func (c *Config) OmissionRetention() time.Duration {
	return time.Duration(c.OmissionRetentionDays) * 24 * time.Hour
}
