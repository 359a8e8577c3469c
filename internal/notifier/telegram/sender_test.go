package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/queue"
	logx "k8swatchdog/pkg/logx"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	failOn map[int]error
}

func (f *fakeTransport) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.sent)
	f.sent = append(f.sent, text)
	if err, ok := f.failOn[n]; ok {
		return err
	}
	return nil
}

type deliveries struct {
	mu  sync.Mutex
	all []notifier.Delivery
}

func (d *deliveries) Record(x notifier.Delivery) {
	d.mu.Lock()
	d.all = append(d.all, x)
	d.mu.Unlock()
}

func enabledConfig() Config {
	return Config{Enabled: true, Token: "123:abc", ChatID: "-100", MaxMsgLen: 10, RatePerMinute: 0}
}

func TestDeliverChunksAndContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{failOn: map[int]error{0: errors.New("http=502")}}
	rec := &deliveries{}
	s := New(enabledConfig(), tr, logx.Nop(), Options{Recorder: rec})

	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Kind: notifier.KindChange, Text: "line one\nline two\nthree"}))

	assert.Equal(t, []string{"line one", "line two", "three"}, tr.sent)
	require.Len(t, rec.all, 3)
	assert.Equal(t, notifier.StatusFailed, rec.all[0].Status)
	assert.Equal(t, notifier.StatusSent, rec.all[1].Status)
	assert.Equal(t, notifier.StatusSent, rec.all[2].Status)
	assert.Equal(t, 3, rec.all[2].Chunks)
}

func TestDeliverDisabledIsLogOnly(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	rec := &deliveries{}
	cfg := enabledConfig()
	cfg.Enabled = false
	s := New(cfg, tr, logx.Nop(), Options{Recorder: rec})

	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Text: "aaaa\nbbbb\ncccc"}))
	assert.Empty(t, tr.sent)
	require.Len(t, rec.all, 2, "disabled channel still chunks")
	for _, d := range rec.all {
		assert.Equal(t, notifier.StatusSkipped, d.Status)
	}
}

func TestDeliverMissingCredentials(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	rec := &deliveries{}
	cfg := enabledConfig()
	cfg.ChatID = ""
	s := New(cfg, tr, logx.Nop(), Options{Recorder: rec})

	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Text: "hi"}))
	assert.Empty(t, tr.sent)
	require.Len(t, rec.all, 1)
	assert.Equal(t, notifier.StatusSkipped, rec.all[0].Status)
	assert.Contains(t, rec.all[0].Reason, "credentials")
}

func TestDeliverGoesThroughRateWindow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC)}
	cfg := enabledConfig()
	cfg.RatePerMinute = 2
	cfg.MaxMsgLen = 4
	var waits []time.Duration
	tr := &fakeTransport{}
	s := New(cfg, tr, logx.Nop(), Options{Now: clock.Now, OnWait: func(d time.Duration) { waits = append(waits, d) }})
	s.window.sleep = clock.Sleep

	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Text: "one\ntwo\nsix"}))
	assert.Equal(t, []string{"one", "two", "six"}, tr.sent)
	assert.Equal(t, []time.Duration{30 * time.Second}, waits)
}

func TestRunStopsOnClose(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{}
	s := New(enabledConfig(), tr, logx.Nop(), Options{})
	q := queue.New[notifier.Report]()
	q.Put(notifier.Report{Text: "hello"})
	q.Put(notifier.CloseReport())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx, q))
	assert.Equal(t, []string{"hello"}, tr.sent)
}

func TestHTTPTransportPostsJSON(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Config{Token: "123:abc", ChatID: "-100", APIURL: srv.URL + "/"}, srv.Client(), logx.Nop())
	require.NoError(t, tr.SendMessage(context.Background(), "report"))
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, sendMessageRequest{ChatID: "-100", Text: "report"}, got)
}

func TestHTTPTransportReportsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(Config{Token: "t", ChatID: "1", APIURL: srv.URL}, srv.Client(), logx.Nop())
	err := tr.SendMessage(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Contains(t, err.Error(), "http=400")
}

func TestHTTPTransportRedactsToken(t *testing.T) {
	t.Parallel()

	tr := NewHTTPTransport(Config{Token: "secret-token", ChatID: "1", APIURL: "http://127.0.0.1:1"},
		&http.Client{Timeout: time.Second}, logx.Nop())
	err := tr.SendMessage(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret-token"), err.Error())
}

func TestBotTransportSends(t *testing.T) {
	t.Parallel()

	var chatID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		chatID, _ = m["chat_id"].(string)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"chat":{"id":-100}}}`))
	}))
	defer srv.Close()

	tr, err := NewTransport(Config{Client: ClientTelebot, Token: "123:abc", ChatID: "-100", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, tr.SendMessage(context.Background(), "hello"))
	assert.Equal(t, "-100", chatID)
}

func TestNewTransportRejectsUnknownClient(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(Config{Client: "grpc"}, logx.Nop())
	assert.Error(t, err)
}

func TestLogSinkSharesSenderWindow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)}
	window := NewRateWindow(2, clock.Now)
	var waits []time.Duration
	window.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	tr := &fakeTransport{}
	cfg := enabledConfig()
	cfg.MaxMsgLen = 4096
	cfg.RatePerMinute = 2
	s := New(cfg, tr, logx.Nop(), Options{Window: window, Now: clock.Now})
	sink := LogSink{Transport: tr, Window: window}

	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Kind: notifier.KindChange, Text: "report one"}))
	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Kind: notifier.KindChange, Text: "report two"}))
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, sink.SendLog(context.Background(), "WARN line"), ErrRateLimited)
	}

	assert.Len(t, tr.sent, 2, "sends within one minute stay at the limit")
	assert.Empty(t, waits)
}

func TestReportWaitsAfterLogSinkSpendsMinute(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 20, 0, time.UTC)}
	window := NewRateWindow(2, clock.Now)
	window.sleep = clock.Sleep

	tr := &fakeTransport{}
	cfg := enabledConfig()
	cfg.MaxMsgLen = 4096
	cfg.RatePerMinute = 2
	s := New(cfg, tr, logx.Nop(), Options{Window: window, Now: clock.Now})
	sink := LogSink{Transport: tr, Window: window}

	require.NoError(t, sink.SendLog(context.Background(), "WARN a"))
	require.NoError(t, sink.SendLog(context.Background(), "WARN b"))

	var waited []time.Duration
	s.onWait = func(d time.Duration) { waited = append(waited, d) }
	require.NoError(t, s.Deliver(context.Background(), notifier.Report{Kind: notifier.KindChange, Text: "report"}))

	assert.Equal(t, []string{"WARN a", "WARN b", "report"}, tr.sent)
	assert.Equal(t, []time.Duration{40 * time.Second}, waited)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC), clock.Now())
}

func TestLogSinkWithoutTransport(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, LogSink{}.SendLog(context.Background(), "x"), notifier.ErrMissingCredentials)
}
