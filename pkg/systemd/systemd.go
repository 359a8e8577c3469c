// Package systemd reports service state to the service manager over the
// sd_notify socket. Outside systemd every call is a silent no-op.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "k8swatchdog/pkg/logx"
)

// Notifier sends READY, WATCHDOG and STOPPING. The zero value is disabled.
type Notifier struct {
	enabled bool
	log     logx.Logger
	notify  func(state string) (bool, error)
}

func New(enabled bool, log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		enabled: enabled,
		log:     log,
		notify:  func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Watchdog() { n.send(daemon.SdNotifyWatchdog) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status sets the free-form STATUS= line shown by systemctl status.
func (n *Notifier) Status(s string) { n.send("STATUS=" + s) }

// WatchdogInterval returns WatchdogSec from the unit, or zero.
func (n *Notifier) WatchdogInterval() time.Duration {
	if n == nil || !n.enabled {
		return 0
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog env invalid", logx.Err(err))
		return 0
	}
	return d
}

func (n *Notifier) send(state string) {
	if n == nil || !n.enabled || n.notify == nil {
		return
	}
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	case !sent:
		n.log.Trace("sd_notify socket not set", logx.String("state", state))
	}
}
