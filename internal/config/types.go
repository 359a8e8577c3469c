package config

type Config struct {
	// ClusterName forces the cluster label instead of discovering it.
	ClusterName string `json:"cluster_name,omitempty"`

	Kubernetes KubernetesConfig `json:"kubernetes"`
	Poll       PollConfig       `json:"poll"`

	// Categories is keyed by the category wire key (nodelist, pods,
	// deployment, stateful_sets, replicaset_sets, daemon_sets, pvc, pv).
	// Omitted categories are enabled.
	Categories map[string]CategoryConfig `json:"categories,omitempty"`

	Detector DetectorConfig `json:"detector"`
	Telegram TelegramConfig `json:"telegram"`
	Email    EmailConfig    `json:"email"`
	Logging  LoggingConfig  `json:"logging"`

	// Storage holds the delivery journal. Nil means no journal.
	Storage *StorageConfig `json:"storage,omitempty"`

	Observability ObservabilityConfig `json:"observability"`
	Systemd       SystemdConfig       `json:"systemd"`
}

// KubernetesConfig selects how the API client is built.
//
// With in_cluster the pod service account is used; otherwise kubeconfig
// (or the default loading rules when empty) and an optional context.
type KubernetesConfig struct {
	Kubeconfig string `json:"kubeconfig,omitempty"`
	Context    string `json:"context,omitempty"`
	InCluster  bool   `json:"in_cluster,omitempty"`
}

// PollConfig controls the collection cycle.
//
// All durations are Go duration strings (e.g. "30s", "2m").
//
// Defaults:
//   - cycle: "120s"
//   - fetch_timeout: "30s"
//   - concurrency: 4
type PollConfig struct {
	Cycle string `json:"cycle,omitempty"`
	// Schedule is a cron expression that replaces cycle when set.
	Schedule     string `json:"schedule,omitempty"`
	UniqueReport bool   `json:"unique_report,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	Concurrency  int    `json:"concurrency,omitempty"`
}

type CategoryConfig struct {
	// Enabled is a pointer so an omitted key keeps the category on.
	Enabled *bool `json:"enabled,omitempty"`
	// ScaledToZero also reports workloads with zero replicas (zero ready
	// for daemon sets).
	ScaledToZero bool `json:"scaled_to_zero,omitempty"`
}

// IsEnabled treats an omitted flag as enabled.
func (c CategoryConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

type DetectorConfig struct {
	MaxFragmentLen int `json:"max_fragment_len,omitempty"`
	// HeartbeatHours is clamped to 0..100; nil means 24, zero disables.
	HeartbeatHours *int `json:"heartbeat_hours,omitempty"`
	// AnnounceConfig defaults to true.
	AnnounceConfig *bool `json:"announce_config,omitempty"`
}

// TelegramConfig configures the chat channel. The token is never logged.
//
// Defaults:
//   - max_msg_len: 2000
//   - rate_per_minute: 20
//   - client: "http"
//   - timeout: "10s"
type TelegramConfig struct {
	Enabled       bool   `json:"enabled"`
	Token         string `json:"token,omitempty"`
	ChatID        string `json:"chat_id,omitempty"`
	ThreadID      int    `json:"thread_id,omitempty"`
	MaxMsgLen     int    `json:"max_msg_len,omitempty"`
	RatePerMinute int    `json:"rate_per_minute,omitempty"`
	Client        string `json:"client,omitempty"` // http | telebot
	APIURL        string `json:"api_url,omitempty"`
	Timeout       string `json:"timeout,omitempty"`
}

// EmailConfig configures the SMTP channel. Recipients are ';'-separated.
type EmailConfig struct {
	Enabled    bool   `json:"enabled"`
	SMTPHost   string `json:"smtp_host,omitempty"`
	SMTPPort   int    `json:"smtp_port,omitempty"`
	Sender     string `json:"sender,omitempty"`
	Password   string `json:"password,omitempty"`
	Recipients string `json:"recipients,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log lines at or above min_level to the chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the delivery journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./k8swatchdog_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// ObservabilityConfig controls the /metrics and /healthz listener.
//
// Prefer a loopback addr; a non-loopback one requires a token.
type ObservabilityConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9464"
	Pprof   bool   `json:"pprof,omitempty"`
	Token   string `json:"token,omitempty"`
}

type SystemdConfig struct {
	// Notify sends READY, WATCHDOG and STOPPING to the service manager.
	Notify bool `json:"notify"`
}
