package config

import (
	"strings"
	"testing"
)

func defaultsConfig() Config {
	return Config{
		Environment:            "local",
		LogLevel:               "info",
		DataDir:                "data/dedup",
		CacheCapacity:          1000,
		TierFreshMaxMinutes:    30,
		TierFreshThreshold:     70,
		TierRecentMaxHours:     2,
		TierRecentThreshold:    80,
		TierSameDayMaxHours:    24,
		TierSameDayThreshold:   90,
		TierLongTermThreshold:  95,
		RegistryLookback:       7,
		RegistryMatchThreshold: 95,
		SentRetentionDays:      14,
		OmissionRetentionDays:  7,
	}
}

func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := defaultsConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestLoad_ReadsTierOverrides(t *testing.T) {
	t.Setenv("RELAY_TIER_FRESH_THRESHOLD", "60")
	t.Setenv("RELAY_TIER_SAME_DAY_MAX_HOURS", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TierFreshThreshold != 60 {
		t.Fatalf("expected overridden fresh threshold 60, got %d", cfg.TierFreshThreshold)
	}
	if cfg.TierSameDayMaxHours != 12 {
		t.Fatalf("expected overridden same-day boundary 12h, got %d", cfg.TierSameDayMaxHours)
	}
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "threshold above 100",
			mutate:  func(c *Config) { c.TierRecentThreshold = 101 },
			wantMsg: "RELAY_TIER_RECENT_THRESHOLD",
		},
		{
			name:    "boundaries out of order",
			mutate:  func(c *Config) { c.TierSameDayMaxHours = 1 },
			wantMsg: "RELAY_TIER_SAME_DAY_MAX_HOURS",
		},
		{
			name:    "recent boundary inside fresh tier",
			mutate:  func(c *Config) { c.TierFreshMaxMinutes = 180 },
			wantMsg: "RELAY_TIER_RECENT_MAX_HOURS",
		},
		{
			name:    "chat id required with token",
			mutate:  func(c *Config) { c.TelegramBotToken = "tok" },
			wantMsg: "TELEGRAM_CHAT_ID",
		},
		{
			name:    "zero cache capacity",
			mutate:  func(c *Config) { c.CacheCapacity = 0 },
			wantMsg: "RELAY_CACHE_CAPACITY",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultsConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("expected error naming %s, got %v", tc.wantMsg, err)
			}
		})
	}
}
