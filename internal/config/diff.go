package config

import (
	"reflect"
	"sort"
	"strings"

	logx "k8swatchdog/pkg/logx"
)

// LiveSections can be applied without restarting the pipeline.
var LiveSections = map[string]bool{"logging": true}

// SummarizeConfigChange returns the changed top-level sections, sorted,
// and safe attrs for logging them. Secrets are reported only as *_set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)
	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
	}

	if strings.TrimSpace(oldCfg.ClusterName) != strings.TrimSpace(newCfg.ClusterName) {
		mark("cluster_name", logx.String("cluster_name", strings.TrimSpace(newCfg.ClusterName)))
	}
	if oldCfg.Kubernetes != newCfg.Kubernetes {
		mark("kubernetes",
			logx.Bool("kubernetes.in_cluster", newCfg.Kubernetes.InCluster),
			logx.String("kubernetes.context", newCfg.Kubernetes.Context),
			logx.Bool("kubernetes.kubeconfig_set", newCfg.Kubernetes.Kubeconfig != ""),
		)
	}
	if oldCfg.Poll != newCfg.Poll {
		mark("poll",
			logx.String("poll.cycle", newCfg.Poll.Cycle),
			logx.String("poll.schedule", newCfg.Poll.Schedule),
			logx.Bool("poll.unique_report", newCfg.Poll.UniqueReport),
			logx.Int("poll.concurrency", newCfg.Poll.Concurrency),
		)
	}
	if diff := diffCategories(oldCfg.Categories, newCfg.Categories); len(diff) > 0 {
		mark("categories", logx.Strings("categories.changed", diff))
	}
	if !reflect.DeepEqual(oldCfg.Detector, newCfg.Detector) {
		mark("detector",
			logx.Int("detector.max_fragment_len", newCfg.Detector.MaxFragmentLen),
			logx.Duration("detector.heartbeat", newCfg.Heartbeat()),
			logx.Bool("detector.announce_config", newCfg.AnnounceConfig()),
		)
	}
	if oldCfg.Telegram != newCfg.Telegram {
		mark("telegram",
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.Bool("telegram.token_set", newCfg.Telegram.Token != ""),
			logx.Bool("telegram.chat_set", newCfg.Telegram.ChatID != ""),
			logx.Int("telegram.max_msg_len", newCfg.Telegram.MaxMsgLen),
			logx.Int("telegram.rate_per_minute", newCfg.Telegram.RatePerMinute),
			logx.String("telegram.client", newCfg.Telegram.Client),
		)
	}
	if oldCfg.Email != newCfg.Email {
		mark("email",
			logx.Bool("email.enabled", newCfg.Email.Enabled),
			logx.String("email.smtp_host", newCfg.Email.SMTPHost),
			logx.Bool("email.password_set", newCfg.Email.Password != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if oldS != newS {
		mark("storage",
			logx.String("storage.driver", newS.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}
	if oldCfg.Observability != newCfg.Observability {
		mark("observability",
			logx.Bool("observability.enabled", newCfg.Observability.Enabled),
			logx.String("observability.addr", newCfg.Observability.Addr),
			logx.Bool("observability.pprof", newCfg.Observability.Pprof),
			logx.Bool("observability.token_set", newCfg.Observability.Token != ""),
		)
	}
	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", logx.Bool("systemd.notify", newCfg.Systemd.Notify))
	}

	sort.Strings(changed)
	return changed, attrs
}

// NeedsRestart reports whether any changed section cannot be applied live.
func NeedsRestart(changed []string) bool {
	for _, s := range changed {
		if !LiveSections[s] {
			return true
		}
	}
	return false
}

func diffCategories(oldM, newM map[string]CategoryConfig) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}
	var out []string
	for k := range set {
		o, n := oldM[k], newM[k]
		if o.IsEnabled() != n.IsEnabled() || o.ScaledToZero != n.ScaledToZero {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
