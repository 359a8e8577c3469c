// Package telegram is the chat delivery channel: every report is split
// into length-bounded chunks and each chunk goes out through a per-minute
// rate window and the Bot API transport.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/queue"
	logx "k8swatchdog/pkg/logx"
)

const (
	ChannelName = "telegram"
	separator   = '\n'
)

type Config struct {
	Enabled       bool
	Token         string
	ChatID        string
	ThreadID      int
	MaxMsgLen     int
	RatePerMinute int
	Client        string
	APIURL        string
	Timeout       time.Duration
}

func (c Config) apiURL() string {
	u := strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if u == "" {
		return DefaultAPIURL
	}
	return u
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c Config) hasCredentials() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.ChatID) != ""
}

type Options struct {
	Recorder notifier.Recorder
	// OnWait observes every rate-window wait.
	OnWait func(time.Duration)
	// Window is shared with other writers to the same chat; nil builds a
	// private one.
	Window *RateWindow
	Now    func() time.Time
}

type Sender struct {
	cfg       Config
	transport Transport
	window    *RateWindow
	log       logx.Logger
	rec       notifier.Recorder
	onWait    func(time.Duration)
	now       func() time.Time
}

// New builds a sender. transport may be nil when the channel is disabled
// or lacks credentials; such sends are logged only.
func New(cfg Config, transport Transport, log logx.Logger, opts Options) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rec := opts.Recorder
	if rec == nil {
		rec = notifier.NopRecorder
	}
	window := opts.Window
	if window == nil {
		window = NewRateWindow(cfg.RatePerMinute, now)
	}
	return &Sender{
		cfg:       cfg,
		transport: transport,
		window:    window,
		log:       log,
		rec:       rec,
		onWait:    opts.OnWait,
		now:       now,
	}
}

// Run drains q until the close report.
func (s *Sender) Run(ctx context.Context, q *queue.Queue[notifier.Report]) error {
	s.log.Info("telegram channel active", logx.Bool("enabled", s.cfg.Enabled), logx.Int("rate_per_minute", s.cfg.RatePerMinute))
	return notifier.Consume(ctx, q, s.log, s.Deliver)
}

// Deliver sends every chunk of r. A failed chunk is logged and recorded;
// the remaining chunks are still attempted. Only context cancellation is
// returned.
func (s *Sender) Deliver(ctx context.Context, r notifier.Report) error {
	if r.Text == "" {
		return nil
	}
	chunks := Split(r.Text, s.cfg.MaxMsgLen, separator)
	for i, chunk := range chunks {
		waited, err := s.window.Wait(ctx)
		if err != nil {
			return err
		}
		if waited > 0 {
			s.log.Info("rate limit reached, waited for next minute",
				logx.Duration("waited", waited), logx.Int("limit", s.cfg.RatePerMinute))
			if s.onWait != nil {
				s.onWait(waited)
			}
		}

		d := notifier.Delivery{
			Channel: ChannelName,
			Kind:    r.Kind,
			Chunk:   i + 1,
			Chunks:  len(chunks),
			Bytes:   len(chunk),
			At:      s.now(),
		}
		err = s.transmit(ctx, chunk)
		switch {
		case err == nil:
			d.Status = notifier.StatusSent
		case errors.Is(err, notifier.ErrDisabled), errors.Is(err, notifier.ErrMissingCredentials):
			d.Status, d.Reason = notifier.StatusSkipped, err.Error()
		default:
			d.Status, d.Reason = notifier.StatusFailed, err.Error()
			s.log.Error("telegram send failed", logx.Int("chunk", d.Chunk), logx.Int("chunks", d.Chunks), logx.Err(err))
		}
		s.rec.Record(d)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Sender) transmit(ctx context.Context, text string) error {
	if !s.cfg.Enabled {
		s.log.Info("telegram disabled, message logged only", logx.String("text", text))
		return notifier.ErrDisabled
	}
	if !s.cfg.hasCredentials() || s.transport == nil {
		if strings.TrimSpace(s.cfg.Token) == "" {
			s.log.Error("telegram token is not defined")
		}
		if strings.TrimSpace(s.cfg.ChatID) == "" {
			s.log.Error("telegram chat id is not defined")
		}
		return notifier.ErrMissingCredentials
	}
	return s.transport.SendMessage(ctx, text)
}

// ErrRateLimited is returned by LogSink when the chat's minute is spent.
var ErrRateLimited = errors.New("telegram rate limit reached")

// LogSink adapts a transport to logx.ChatSender so warnings reach the same
// chat. Lines draw from the sender's window and are dropped, not delayed,
// once the minute is spent.
type LogSink struct {
	Transport Transport
	Window    *RateWindow
}

func (l LogSink) SendLog(ctx context.Context, text string) error {
	if l.Transport == nil {
		return notifier.ErrMissingCredentials
	}
	if l.Window != nil && !l.Window.TryReserve() {
		return ErrRateLimited
	}
	return l.Transport.SendMessage(ctx, text)
}
