package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8swatchdog/internal/snapshot"
)

// categoryEnv maps each category to its enable key and, where the
// category supports it, its scaled-to-zero key.
var categoryEnv = []struct {
	cat       snapshot.Category
	enable    string
	scaledKey string
}{
	{snapshot.Nodes, "K8S_NODE", ""},
	{snapshot.Pods, "K8S_PODS", ""},
	{snapshot.Deployments, "K8S_DEPLOYMENT", "K8S_DEPLOYMENT_P0"},
	{snapshot.StatefulSets, "K8S_STATEFUL_SETS", "K8S_STATEFUL_SETS_P0"},
	{snapshot.ReplicaSets, "K8S_REPLICA_SETS", "K8S_REPLICA_SETS_P0"},
	{snapshot.DaemonSets, "K8S_DAEMON_SETS", "K8S_DAEMON_SETS_P0"},
	{snapshot.PVCs, "K8S_PVC", ""},
	{snapshot.PVs, "K8S_PV", ""},
}

// ApplyEnv overlays environment variables on cfg. Empty variables are
// ignored. It returns the names of the keys it applied, for logging; the
// values are never returned.
func ApplyEnv(cfg *Config, getenv func(string) string) ([]string, error) {
	var applied []string
	lookup := func(key string) (string, bool) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return "", false
		}
		applied = append(applied, key)
		return v, true
	}
	intVal := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}
	boolVal := func(key string) (bool, bool, error) {
		v, ok := lookup(key)
		if !ok {
			return false, false, nil
		}
		b, err := parseBool(v)
		if err != nil {
			return false, false, fmt.Errorf("%s: %w", key, err)
		}
		return b, true, nil
	}

	if v, ok := lookup("CLUSTER_NAME"); ok {
		cfg.ClusterName = v
	}
	if v, ok := lookup("PROCESS_KUBE_CONFIG"); ok {
		cfg.Kubernetes.Kubeconfig = v
	}
	if b, ok, err := boolVal("PROCESS_LOAD_KUBE_CONFIG"); err != nil {
		return applied, err
	} else if ok {
		cfg.Kubernetes.InCluster = !b
	}

	var cycleSec int
	if err := intVal("PROCESS_CYCLE_SEC", &cycleSec); err != nil {
		return applied, err
	}
	if cycleSec > 0 {
		cfg.Poll.Cycle = (time.Duration(cycleSec) * time.Second).String()
	}

	if b, ok, err := boolVal("TELEGRAM_ENABLE"); err != nil {
		return applied, err
	} else if ok {
		cfg.Telegram.Enabled = b
	}
	if v, ok := lookup("TELEGRAM_TOKEN"); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok {
		cfg.Telegram.ChatID = v
	}
	if err := intVal("TELEGRAM_MAX_MSG_LEN", &cfg.Telegram.MaxMsgLen); err != nil {
		return applied, err
	}
	if err := intVal("TELEGRAM_MAX_MSG_MINUTE", &cfg.Telegram.RatePerMinute); err != nil {
		return applied, err
	}
	if v, ok := lookup("TELEGRAM_ALIVE_MSG_HOURS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return applied, fmt.Errorf("TELEGRAM_ALIVE_MSG_HOURS: invalid integer %q", v)
		}
		h := clampHours(n)
		cfg.Detector.HeartbeatHours = &h
	}

	if v, ok := lookup("EMAIL_PASSWORD"); ok {
		cfg.Email.Password = v
	}

	for _, ce := range categoryEnv {
		b, ok, err := boolVal(ce.enable)
		if err != nil {
			return applied, err
		}
		p0, okP0 := false, false
		if ce.scaledKey != "" {
			if p0, okP0, err = boolVal(ce.scaledKey); err != nil {
				return applied, err
			}
		}
		if !ok && !okP0 {
			continue
		}
		if cfg.Categories == nil {
			cfg.Categories = map[string]CategoryConfig{}
		}
		cc := cfg.Categories[string(ce.cat)]
		if ok {
			v := b
			cc.Enabled = &v
		}
		if okP0 {
			cc.ScaledToZero = p0
		}
		cfg.Categories[string(ce.cat)] = cc
	}
	return applied, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
