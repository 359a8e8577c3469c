package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"k8swatchdog/internal/snapshot"
	logx "k8swatchdog/pkg/logx"
)

var ErrInvalid = errors.New("invalid config")

// cronParser accepts the standard five fields and descriptors like
// "@every 2m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks cfg and returns the first problem found. It is used
// both at startup and as the reload validator.
func Validate(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return invalid("config is nil")
	}

	if _, err := ParseDurationField("poll.cycle", cfg.Poll.Cycle); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s := strings.TrimSpace(cfg.Poll.Schedule); s != "" {
		if _, err := cronParser.Parse(s); err != nil {
			return invalid("poll.schedule %q: %v", s, err)
		}
	} else if cfg.CycleInterval() < time.Second {
		return invalid("poll.cycle must be >= 1s")
	}
	if _, err := ParseDurationField("poll.fetch_timeout", cfg.Poll.FetchTimeout); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Poll.Concurrency < 0 {
		return invalid("poll.concurrency must be >= 0")
	}

	for key := range cfg.Categories {
		if _, ok := snapshot.ParseCategory(key); !ok {
			return invalid("categories: unknown category %q", key)
		}
	}

	if cfg.Detector.MaxFragmentLen < 0 {
		return invalid("detector.max_fragment_len must be >= 0")
	}

	tg := cfg.Telegram
	if tg.MaxMsgLen < 0 {
		return invalid("telegram.max_msg_len must be >= 0")
	}
	if tg.RatePerMinute < 0 {
		return invalid("telegram.rate_per_minute must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(tg.Client)) {
	case "", "http", "telebot":
	default:
		return invalid("telegram.client must be http or telebot")
	}
	if _, err := ParseDurationField("telegram.timeout", tg.Timeout); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if cfg.Email.SMTPPort < 0 || cfg.Email.SMTPPort > 65535 {
		return invalid("email.smtp_port out of range")
	}
	if _, err := ParseDurationField("email.timeout", cfg.Email.Timeout); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !logx.ValidLevel(lv) {
		return invalid("logging.level %q", lv)
	}
	if lt := cfg.Logging.Telegram; lt.Enabled {
		if lt.MinLevel != "" && !logx.ValidLevel(lt.MinLevel) {
			return invalid("logging.telegram.min_level %q", lt.MinLevel)
		}
		if lt.RatePerSec < 0 {
			return invalid("logging.telegram.rate_per_sec must be >= 0")
		}
	}

	if st := cfg.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file", "sqlite":
			if strings.TrimSpace(st.Path) == "" {
				return invalid("storage.path is required for driver %q", st.Driver)
			}
		default:
			return invalid("storage.driver must be none, file or sqlite")
		}
		if _, err := ParseDurationField("storage.busy_timeout", st.BusyTimeout); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	if ob := cfg.Observability; ob.Enabled {
		host, _, err := net.SplitHostPort(strings.TrimSpace(ob.Addr))
		if err != nil {
			return invalid("observability.addr: %v", err)
		}
		if !isLoopback(host) && strings.TrimSpace(ob.Token) == "" {
			return invalid("observability.token is required when addr is not loopback")
		}
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
