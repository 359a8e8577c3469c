package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "k8swatchdog/pkg/logx"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	ClientHTTP     = "http"
	ClientTelebot  = "telebot"
	defaultTimeout = 10 * time.Second
	maxRespLog     = 64
)

// Transport delivers one chunk to the configured chat.
type Transport interface {
	SendMessage(ctx context.Context, text string) error
}

// NewTransport builds the transport selected by cfg.Client.
func NewTransport(cfg Config, log logx.Logger) (Transport, error) {
	client := &http.Client{Timeout: cfg.timeout()}
	switch strings.ToLower(strings.TrimSpace(cfg.Client)) {
	case "", ClientHTTP:
		return NewHTTPTransport(cfg, client, log), nil
	case ClientTelebot:
		return NewBotTransport(cfg, client)
	default:
		return nil, fmt.Errorf("telegram: unknown client %q", cfg.Client)
	}
}

// HTTPTransport posts JSON to the Bot API sendMessage endpoint.
type HTTPTransport struct {
	url      string
	chatID   string
	threadID int
	client   *http.Client
	log      logx.Logger
}

type sendMessageRequest struct {
	ChatID          string `json:"chat_id"`
	Text            string `json:"text"`
	MessageThreadID int    `json:"message_thread_id,omitempty"`
}

func NewHTTPTransport(cfg Config, client *http.Client, log logx.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout()}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTPTransport{
		url:      cfg.apiURL() + "/bot" + strings.TrimSpace(cfg.Token) + "/sendMessage",
		chatID:   strings.TrimSpace(cfg.ChatID),
		threadID: cfg.ThreadID,
		client:   client,
		log:      log,
	}
}

func (t *HTTPTransport) SendMessage(ctx context.Context, text string) error {
	b, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, MessageThreadID: t.threadID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the token; never surface it.
		return fmt.Errorf("telegram sendMessage: %s", redact(err.Error(), t.url))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode/100 != 2 {
		var out struct {
			Description string `json:"description"`
			ErrorCode   int    `json:"error_code"`
		}
		if json.Unmarshal(body, &out) == nil && out.Description != "" {
			return fmt.Errorf("telegram sendMessage failed: %s (code=%d http=%d)", out.Description, out.ErrorCode, resp.StatusCode)
		}
		return fmt.Errorf("telegram sendMessage failed: http=%d", resp.StatusCode)
	}
	t.log.Debug("telegram response", logx.String("body", truncate(string(body), maxRespLog)))
	return nil
}

// BotTransport sends through telebot without polling for updates.
type BotTransport struct {
	bot  *tele.Bot
	to   tele.Recipient
	opts *tele.SendOptions
}

// chatRecipient accepts numeric ids and @channel names alike.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func NewBotTransport(cfg Config, client *http.Client) (*BotTransport, error) {
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.apiURL(),
		Token:   strings.TrimSpace(cfg.Token),
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	return &BotTransport{
		bot: b,
		to:  chatRecipient(strings.TrimSpace(cfg.ChatID)),
		opts: &tele.SendOptions{
			ThreadID:              cfg.ThreadID,
			DisableWebPagePreview: true,
		},
	}, nil
}

func (t *BotTransport) SendMessage(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(t.to, text, t.opts)
	return err
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<redacted>")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
