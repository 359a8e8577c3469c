// Package email delivers each report as one plain-text message over SMTP
// with mandatory STARTTLS. No chunking and no rate limiting apply.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/queue"
	logx "k8swatchdog/pkg/logx"
)

const (
	ChannelName    = "email"
	DefaultSubject = "K8s-watchdog report"
	defaultTimeout = 30 * time.Second
)

// ErrIncompleteConfig is returned when a precondition for sending fails.
var ErrIncompleteConfig = errors.New("email configuration is not complete")

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Sender   string
	Password string
	// Recipients is a ';'-separated address list.
	Recipients string
	Subject    string
	Timeout    time.Duration
}

// RecipientList splits Recipients on ';' and drops blanks.
func (c Config) RecipientList() []string {
	var out []string
	for _, r := range strings.Split(c.Recipients, ";") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Check reports every missing precondition at once.
func (c Config) Check() error {
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "smtp_host")
	}
	if c.Port <= 0 {
		missing = append(missing, "smtp_port")
	}
	if strings.TrimSpace(c.Sender) == "" {
		missing = append(missing, "sender")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(c.RecipientList()) == 0 {
		missing = append(missing, "recipients")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) subject() string {
	if s := strings.TrimSpace(c.Subject); s != "" {
		return s
	}
	return DefaultSubject
}

// Message is one outgoing email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer performs one SMTP session.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer logs in with the sender credentials after STARTTLS.
type SMTPMailer struct {
	cfg Config
}

func NewSMTPMailer(cfg Config) *SMTPMailer { return &SMTPMailer{cfg: cfg} }

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	msg, err := buildMessage(m)
	if err != nil {
		return err
	}
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Sender),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}

func buildMessage(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

type Sender struct {
	cfg    Config
	mailer Mailer
	log    logx.Logger
	rec    notifier.Recorder
	now    func() time.Time
}

// New builds the channel. mailer defaults to an SMTPMailer for cfg.
func New(cfg Config, mailer Mailer, log logx.Logger, rec notifier.Recorder) *Sender {
	if mailer == nil {
		mailer = NewSMTPMailer(cfg)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if rec == nil {
		rec = notifier.NopRecorder
	}
	return &Sender{cfg: cfg, mailer: mailer, log: log, rec: rec, now: time.Now}
}

// Run drains q until the close report.
func (s *Sender) Run(ctx context.Context, q *queue.Queue[notifier.Report]) error {
	s.log.Info("email channel active", logx.Bool("enabled", s.cfg.Enabled), logx.String("host", s.cfg.Host))
	return notifier.Consume(ctx, q, s.log, s.Deliver)
}

// Deliver sends r as one email. Failures are logged and recorded, never
// returned.
func (s *Sender) Deliver(ctx context.Context, r notifier.Report) error {
	if r.Text == "" {
		return nil
	}
	d := notifier.Delivery{Channel: ChannelName, Kind: r.Kind, Chunk: 1, Chunks: 1, Bytes: len(r.Text), At: s.now()}
	defer func() { s.rec.Record(d) }()

	if !s.cfg.Enabled {
		s.log.Info("email disabled, message logged only", logx.String("text", r.Text))
		d.Status, d.Reason = notifier.StatusSkipped, notifier.ErrDisabled.Error()
		return nil
	}
	if err := s.cfg.Check(); err != nil {
		s.log.Error("email not sent", logx.Err(err))
		d.Status, d.Reason = notifier.StatusSkipped, err.Error()
		return nil
	}

	to := s.cfg.RecipientList()
	err := s.mailer.Send(ctx, Message{From: s.cfg.Sender, To: to, Subject: s.cfg.subject(), Body: r.Text})
	if err != nil {
		s.log.Error("email send failed", logx.Err(err))
		d.Status, d.Reason = notifier.StatusFailed, err.Error()
		return nil
	}
	s.log.Info("email sent", logx.Strings("to", to))
	d.Status = notifier.StatusSent
	return nil
}
