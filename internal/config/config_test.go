package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDecodeYAMLAndJSONAgree(t *testing.T) {
	t.Parallel()

	y := []byte(`
cluster_name: prod
poll:
  cycle: 30s
  unique_report: true
categories:
  pods:
    enabled: false
  deployment:
    scaled_to_zero: true
telegram:
  enabled: true
  chat_id: "-100"
`)
	j := []byte(`{"cluster_name":"prod","poll":{"cycle":"30s","unique_report":true},
"categories":{"pods":{"enabled":false},"deployment":{"scaled_to_zero":true}},
"telegram":{"enabled":true,"chat_id":"-100"}}`)

	fromYAML, err := Decode("watchdog.yaml", y)
	require.NoError(t, err)
	fromJSON, err := Decode("watchdog.json", j)
	require.NoError(t, err)

	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Fatalf("yaml and json differ (-json +yaml):\n%s", diff)
	}
	assert.False(t, fromYAML.Category("pods").IsEnabled())
	assert.True(t, fromYAML.Category("nodelist").IsEnabled())
	assert.True(t, fromYAML.Category("deployment").ScaledToZero)
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	_, err := Decode("c.json", []byte(`{"pol":{}}`))
	require.Error(t, err)

	_, err = Decode("c.json", []byte(`{} {}`))
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultCycle, cfg.CycleInterval())
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout())
	assert.Equal(t, DefaultConcurrency, cfg.Poll.Concurrency)
	assert.Equal(t, DefaultMaxFragmentLen, cfg.Detector.MaxFragmentLen)
	assert.Equal(t, 24*time.Hour, cfg.Heartbeat())
	assert.True(t, cfg.AnnounceConfig())
	assert.Equal(t, DefaultMaxMsgLen, cfg.Telegram.MaxMsgLen)
	assert.Equal(t, DefaultRatePerMinute, cfg.Telegram.RatePerMinute)
	assert.Equal(t, "http", cfg.Telegram.Client)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, Validate(context.Background(), cfg))
}

func TestHeartbeatClamp(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		hours int
		want  time.Duration
	}{
		{-5, 0},
		{0, 0},
		{6, 6 * time.Hour},
		{250, 100 * time.Hour},
	} {
		h := tc.hours
		cfg := &Config{Detector: DetectorConfig{HeartbeatHours: &h}}
		assert.Equal(t, tc.want, cfg.Heartbeat(), "hours=%d", tc.hours)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := &Config{Categories: map[string]CategoryConfig{"pv": {}}}
	keys, err := ApplyEnv(cfg, envMap(map[string]string{
		"PROCESS_CYCLE_SEC":        "45",
		"PROCESS_LOAD_KUBE_CONFIG": "false",
		"TELEGRAM_ENABLE":          "1",
		"TELEGRAM_TOKEN":           "123:abc",
		"TELEGRAM_CHAT_ID":         "-42",
		"TELEGRAM_MAX_MSG_LEN":     "1500",
		"TELEGRAM_MAX_MSG_MINUTE":  "10",
		"TELEGRAM_ALIVE_MSG_HOURS": "500",
		"EMAIL_PASSWORD":           "s3cret",
		"K8S_PODS":                 "False",
		"K8S_DEPLOYMENT_P0":        "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.CycleInterval())
	assert.True(t, cfg.Kubernetes.InCluster)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "-42", cfg.Telegram.ChatID)
	assert.Equal(t, 1500, cfg.Telegram.MaxMsgLen)
	assert.Equal(t, 10, cfg.Telegram.RatePerMinute)
	assert.Equal(t, 100*time.Hour, cfg.Heartbeat())
	assert.Equal(t, "s3cret", cfg.Email.Password)
	assert.False(t, cfg.Category("pods").IsEnabled())
	assert.True(t, cfg.Category("deployment").IsEnabled())
	assert.True(t, cfg.Category("deployment").ScaledToZero)
	assert.Contains(t, keys, "TELEGRAM_TOKEN")
	assert.NotContains(t, keys, "K8S_NODE")
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ApplyEnv(&Config{}, envMap(map[string]string{"PROCESS_CYCLE_SEC": "soon"}))
	require.Error(t, err)

	_, err = ApplyEnv(&Config{}, envMap(map[string]string{"K8S_PV": "maybe"}))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	no := false
	cases := map[string]func(c *Config){
		"bad cycle":         func(c *Config) { c.Poll.Cycle = "soon" },
		"sub-second cycle":  func(c *Config) { c.Poll.Cycle = "500ms" },
		"bad schedule":      func(c *Config) { c.Poll.Schedule = "every tuesday" },
		"unknown category":  func(c *Config) { c.Categories = map[string]CategoryConfig{"ingress": {Enabled: &no}} },
		"bad client":        func(c *Config) { c.Telegram.Client = "grpc" },
		"bad level":         func(c *Config) { c.Logging.Level = "loud" },
		"bad port":          func(c *Config) { c.Email.SMTPPort = 70000 },
		"storage no path":   func(c *Config) { c.Storage = &StorageConfig{Driver: "file"} },
		"storage driver":    func(c *Config) { c.Storage = &StorageConfig{Driver: "redis", Path: "x"} },
		"public no token":   func(c *Config) { c.Observability = ObservabilityConfig{Enabled: true, Addr: "0.0.0.0:9464"} },
		"observ addr parse": func(c *Config) { c.Observability = ObservabilityConfig{Enabled: true, Addr: "nope"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			mutate(cfg)
			err := Validate(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "err=%v", err)
		})
	}

	t.Run("cron schedule ok", func(t *testing.T) {
		t.Parallel()
		cfg := Default()
		cfg.Poll.Schedule = "@every 2m"
		require.NoError(t, Validate(context.Background(), cfg))
		assert.Zero(t, cfg.CycleInterval())
	})
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	a := Default()
	b := Default()
	b.Logging.Level = "debug"
	b.Telegram.Token = "new-token"

	changed, attrs := SummarizeConfigChange(a, b)
	assert.Equal(t, []string{"logging", "telegram"}, changed)
	assert.NotEmpty(t, attrs)
	assert.True(t, NeedsRestart(changed))
	assert.False(t, NeedsRestart([]string{"logging"}))

	changed, _ = SummarizeConfigChange(a, Default())
	assert.Empty(t, changed)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestManagerLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "watchdog.yaml")
	writeFile(t, path, "cluster_name: lab\n")

	m := NewManager(path)
	m.SetEnv(envMap(map[string]string{"TELEGRAM_CHAT_ID": "-1"}))
	cfg, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "lab", cfg.ClusterName)
	assert.Equal(t, "-1", cfg.Telegram.ChatID)
	assert.Same(t, cfg, m.Get())

	writeFile(t, path, "poll:\n  cycle: 10ms\n")
	_, err = m.Load(context.Background())
	require.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "lab", m.Get().ClusterName)
}

func TestManagerWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "watchdog.json")
	writeFile(t, path, `{"logging":{"level":"info","console":true}}`)

	m := NewManager(path)
	m.SetEnv(nil)
	_, err := m.Load(context.Background())
	require.NoError(t, err)
	updates := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, `{"logging":{"level":"bogus"}}`)
	time.Sleep(500 * time.Millisecond)
	writeFile(t, path, `{"logging":{"level":"debug","console":true}}`)

	select {
	case cfg := <-updates:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	assert.Equal(t, "debug", m.Get().Logging.Level)
}
