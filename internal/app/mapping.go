package app

import (
	"fmt"
	"strings"
	"time"

	"k8swatchdog/internal/config"
	"k8swatchdog/internal/detector"
	"k8swatchdog/internal/notifier/email"
	"k8swatchdog/internal/notifier/telegram"
	"k8swatchdog/internal/poller"
	"k8swatchdog/internal/snapshot"
	"k8swatchdog/internal/storage"
	logx "k8swatchdog/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapTelegram(cfg *config.Config) telegram.Config {
	t := cfg.Telegram
	return telegram.Config{
		Enabled:       t.Enabled,
		Token:         t.Token,
		ChatID:        t.ChatID,
		ThreadID:      t.ThreadID,
		MaxMsgLen:     t.MaxMsgLen,
		RatePerMinute: t.RatePerMinute,
		Client:        t.Client,
		APIURL:        t.APIURL,
		Timeout:       cfg.TelegramTimeout(),
	}
}

// newLogSink returns the chat sink for warning lines, or nil when the
// channel is log-only or has no transport.
func newLogSink(cfg telegram.Config, tr telegram.Transport, window *telegram.RateWindow) logx.ChatSender {
	if !cfg.Enabled || tr == nil {
		return nil
	}
	return telegram.LogSink{Transport: tr, Window: window}
}

func mapEmail(cfg *config.Config) email.Config {
	e := cfg.Email
	return email.Config{
		Enabled:    e.Enabled,
		Host:       e.SMTPHost,
		Port:       e.SMTPPort,
		Sender:     e.Sender,
		Password:   e.Password,
		Recipients: e.Recipients,
		Subject:    e.Subject,
		Timeout:    cfg.EmailTimeout(),
	}
}

// mapStorage reports enabled=false for a missing or "none" driver.
func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// categorySettings lists every category in order with its effective flags.
func categorySettings(cfg *config.Config) []detector.CategorySetting {
	out := make([]detector.CategorySetting, 0, len(snapshot.Order))
	for _, c := range snapshot.Order {
		cc := cfg.Category(string(c))
		out = append(out, detector.CategorySetting{
			Category:     c,
			Enabled:      cc.IsEnabled(),
			ScaledToZero: cc.ScaledToZero,
		})
	}
	return out
}

func enabledCategories(cfg *config.Config) []snapshot.Category {
	var out []snapshot.Category
	for _, s := range categorySettings(cfg) {
		if s.Enabled {
			out = append(out, s.Category)
		}
	}
	return out
}

func scaledToZero(cfg *config.Config) map[snapshot.Category]bool {
	out := map[snapshot.Category]bool{}
	for _, s := range categorySettings(cfg) {
		if s.ScaledToZero {
			out[s.Category] = true
		}
	}
	return out
}

func mapDetector(cfg *config.Config) detector.Options {
	return detector.Options{
		MaxFragmentLen: cfg.Detector.MaxFragmentLen,
		Heartbeat:      cfg.Heartbeat(),
		UniqueReport:   cfg.Poll.UniqueReport,
		AnnounceConfig: cfg.AnnounceConfig(),
		Settings:       categorySettings(cfg),
	}
}

func mapPoller(cfg *config.Config) poller.Options {
	return poller.Options{
		Categories:   enabledCategories(cfg),
		Cycle:        cfg.CycleInterval(),
		Schedule:     cfg.Poll.Schedule,
		UniqueReport: cfg.Poll.UniqueReport,
		FetchTimeout: cfg.FetchTimeout(),
		Concurrency:  cfg.Poll.Concurrency,
	}
}
