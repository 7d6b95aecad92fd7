package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/relay/internal/cli"
	"horse.fit/relay/internal/config"
	"horse.fit/relay/internal/dedup"
	"horse.fit/relay/internal/globaltime"
	"horse.fit/relay/internal/logging"
	"horse.fit/relay/internal/notify"
	"horse.fit/relay/internal/registry"
	"horse.fit/relay/internal/report"
	"horse.fit/relay/internal/storage"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// runtime holds the long-lived collaborators every command needs.
type runtime struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *storage.Dir
	registry *registry.Registry
	reporter *report.Reporter
	engine   *dedup.Engine
}

func newRuntime(envLoader *cli.EnvLoader) (*runtime, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	store, err := storage.NewDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data dir %s: %w", cfg.DataDir, err)
	}

	now := globaltime.UTC()

	regCfg := registry.DefaultConfig()
	regCfg.LookbackPartitions = cfg.RegistryLookback
	regCfg.LookbackAge = time.Duration(cfg.RegistryLookback) * 24 * time.Hour
	regCfg.MatchThreshold = float64(cfg.RegistryMatchThreshold)
	regCfg.Retention = cfg.SentRetention()
	reg := registry.Open(store, regCfg, logger, now)

	var notifier report.Notifier
	if cfg.TelegramBotToken != "" {
		notifier = notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
	}

	repCfg := report.DefaultConfig()
	repCfg.Retention = cfg.OmissionRetention()
	reporter := report.New(store, notifier, repCfg, logger, now)

	engine := dedup.NewEngine(reg, reporter, dedup.Options{
		CacheCapacity: cfg.CacheCapacity,
		Thresholds:    tierThresholds(cfg),
	}, logger)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: reg,
		reporter: reporter,
		engine:   engine,
	}, nil
}

// tierThresholds maps the configured tier boundaries onto the engine's
// acceptance ladder.
func tierThresholds(cfg *config.Config) dedup.Thresholds {
	return dedup.Thresholds{
		Tiers: []dedup.Tier{
			{MaxAge: time.Duration(cfg.TierFreshMaxMinutes) * time.Minute, Threshold: float64(cfg.TierFreshThreshold)},
			{MaxAge: time.Duration(cfg.TierRecentMaxHours) * time.Hour, Threshold: float64(cfg.TierRecentThreshold)},
			{MaxAge: time.Duration(cfg.TierSameDayMaxHours) * time.Hour, Threshold: float64(cfg.TierSameDayThreshold)},
		},
		LongTerm: float64(cfg.TierLongTermThreshold),
	}
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
