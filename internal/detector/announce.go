package detector

import (
	"fmt"
	"strings"
	"time"

	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/snapshot"
)

// CategorySetting is one line of the startup configuration summary.
type CategorySetting struct {
	Category     snapshot.Category
	Enabled      bool
	ScaledToZero bool
}

var settingLabels = map[snapshot.Category]string{
	snapshot.Nodes:        "node status",
	snapshot.Pods:         "pods",
	snapshot.Deployments:  "deployment",
	snapshot.StatefulSets: "stateful sets",
	snapshot.ReplicaSets:  "replicaset",
	snapshot.DaemonSets:   "daemon sets",
	snapshot.PVCs:         "pvc",
	snapshot.PVs:          "pv",
}

// handleCluster refreshes the cluster label and announces a cluster seen
// for the first time or under a new name.
func (d *Detector) handleCluster(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		d.log.Warn("empty cluster name ignored")
		return
	}
	if d.announced && name == d.cluster {
		return
	}
	d.cluster = name
	d.announced = true

	text := "Cluster name= " + name
	if d.opts.AnnounceConfig {
		text = configAnnouncement(text, d.opts.Settings, d.hb.interval)
	}
	d.send(notifier.Report{Kind: notifier.KindAnnouncement, Text: text, Forced: true})
}

func configAnnouncement(subtitle string, settings []CategorySetting, heartbeat time.Duration) string {
	var b strings.Builder
	b.WriteString("k8s-watchdog is restarted\n")
	b.WriteString(subtitle)
	b.WriteString("\n\nConfiguration setup:\n")
	for _, s := range settings {
		label := settingLabels[s.Category]
		if label == "" {
			label = string(s.Category)
		}
		state := "."
		if s.Enabled {
			state = "ENABLE"
		}
		flag := ""
		if s.Enabled && s.ScaledToZero {
			flag = " P0"
		}
		fmt.Fprintf(&b, "  . %s= %s%s\n", label, state, flag)
	}
	switch {
	case heartbeat <= 0:
		b.WriteString("\nAlive message disabled")
	case heartbeat >= time.Hour:
		fmt.Fprintf(&b, "\nAlive message every %d hours", int(heartbeat/time.Hour))
	default:
		fmt.Fprintf(&b, "\nAlive message every %d minutes", int(heartbeat/time.Minute))
	}
	return b.String()
}
