package config

import (
	"strings"
	"time"
)

const (
	DefaultCycle          = 120 * time.Second
	DefaultFetchTimeout   = 30 * time.Second
	DefaultConcurrency    = 4
	DefaultMaxFragmentLen = 4000
	DefaultHeartbeatHours = 24
	MaxHeartbeatHours     = 100
	DefaultMaxMsgLen      = 2000
	DefaultRatePerMinute  = 20
	DefaultTelegramClient = "http"
	DefaultObservAddr     = "127.0.0.1:9464"
)

// Default returns a config that runs with every category enabled and
// both channels in log-only mode.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills omitted scalar fields in place. Secrets and
// endpoints are never defaulted.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Poll.Cycle) == "" {
		cfg.Poll.Cycle = DefaultCycle.String()
	}
	if strings.TrimSpace(cfg.Poll.FetchTimeout) == "" {
		cfg.Poll.FetchTimeout = DefaultFetchTimeout.String()
	}
	if cfg.Poll.Concurrency <= 0 {
		cfg.Poll.Concurrency = DefaultConcurrency
	}
	if cfg.Detector.MaxFragmentLen <= 0 {
		cfg.Detector.MaxFragmentLen = DefaultMaxFragmentLen
	}
	if cfg.Detector.HeartbeatHours == nil {
		h := DefaultHeartbeatHours
		cfg.Detector.HeartbeatHours = &h
	}
	if cfg.Detector.AnnounceConfig == nil {
		on := true
		cfg.Detector.AnnounceConfig = &on
	}
	if cfg.Telegram.MaxMsgLen <= 0 {
		cfg.Telegram.MaxMsgLen = DefaultMaxMsgLen
	}
	if cfg.Telegram.RatePerMinute <= 0 {
		cfg.Telegram.RatePerMinute = DefaultRatePerMinute
	}
	if strings.TrimSpace(cfg.Telegram.Client) == "" {
		cfg.Telegram.Client = DefaultTelegramClient
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Observability.Addr) == "" {
		cfg.Observability.Addr = DefaultObservAddr
	}
}

// CycleInterval is the poll period; zero when a cron schedule is set.
func (c *Config) CycleInterval() time.Duration {
	if strings.TrimSpace(c.Poll.Schedule) != "" {
		return 0
	}
	d, err := ParseDurationOrDefault("poll.cycle", c.Poll.Cycle, DefaultCycle)
	if err != nil {
		return DefaultCycle
	}
	return d
}

func (c *Config) FetchTimeout() time.Duration {
	d, err := ParseDurationOrDefault("poll.fetch_timeout", c.Poll.FetchTimeout, DefaultFetchTimeout)
	if err != nil {
		return DefaultFetchTimeout
	}
	return d
}

// Heartbeat is the alive-report interval after clamping to 0..100 hours.
func (c *Config) Heartbeat() time.Duration {
	h := DefaultHeartbeatHours
	if c.Detector.HeartbeatHours != nil {
		h = *c.Detector.HeartbeatHours
	}
	return time.Duration(clampHours(h)) * time.Hour
}

func clampHours(h int) int {
	switch {
	case h < 0:
		return 0
	case h > MaxHeartbeatHours:
		return MaxHeartbeatHours
	}
	return h
}

func (c *Config) AnnounceConfig() bool {
	return c.Detector.AnnounceConfig == nil || *c.Detector.AnnounceConfig
}

// Category returns the settings of one category; omitted ones are enabled.
func (c *Config) Category(key string) CategoryConfig {
	if c.Categories == nil {
		return CategoryConfig{}
	}
	return c.Categories[key]
}

func (c *Config) TelegramTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.timeout", c.Telegram.Timeout, 10*time.Second)
	return d
}

func (c *Config) EmailTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("email.timeout", c.Email.Timeout, 30*time.Second)
	return d
}
