package detector

import (
	"fmt"
	"time"

	"k8swatchdog/internal/notifier"
)

type heartbeat struct {
	interval time.Duration
	last     time.Time
	forced   bool
}

// checkHeartbeat emits the alive report when nothing was sent for longer
// than the interval, or once when forced at startup.
func (d *Detector) checkHeartbeat() {
	if d.hb.interval <= 0 {
		return
	}
	if !d.hb.forced && d.now().Sub(d.hb.last) <= d.hb.interval {
		return
	}
	d.send(notifier.Report{
		Kind:   notifier.KindHeartbeat,
		Text:   heartbeatText(d.cluster, d.hb.interval),
		Forced: true,
	})
	d.hb.forced = false
}

func heartbeatText(cluster string, interval time.Duration) string {
	return fmt.Sprintf("Cluster: %s\nk8s-watchdog is running.\nThis is an alive message\n"+
		"No warning/errors were triggered in the last %d hours ", cluster, int(interval/time.Hour))
}
