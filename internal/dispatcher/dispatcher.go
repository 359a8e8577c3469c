// Package dispatcher fans finished reports out to the channel queues.
package dispatcher

import (
	"context"

	"k8swatchdog/internal/eventbus"
	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/queue"
	logx "k8swatchdog/pkg/logx"
)

// Route is one channel's inbound queue.
type Route struct {
	Name    string
	Enabled bool
	Queue   *queue.Queue[notifier.Report]
}

type Dispatcher struct {
	routes []Route
	log    logx.Logger
	bus    eventbus.Bus
}

// New keeps routes in the given order. bus may be nil.
func New(routes []Route, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{routes: routes, bus: bus, log: log}
}

// Dispatch pushes r onto every enabled channel queue and returns how many
// received it. Queues are unbounded, so one slow channel never holds back
// another.
func (d *Dispatcher) Dispatch(r notifier.Report) int {
	n := 0
	names := make([]string, 0, len(d.routes))
	for _, rt := range d.routes {
		if !rt.Enabled || rt.Queue == nil {
			continue
		}
		rt.Queue.Put(r)
		names = append(names, rt.Name)
		n++
	}
	if n == 0 {
		d.log.Warn("no channel enabled, report dropped", logx.String("kind", string(r.Kind)), logx.Int("len", len(r.Text)))
		d.publish(notifier.EventDropped, r, nil)
		return 0
	}
	d.log.Debug("report dispatched", logx.String("kind", string(r.Kind)), logx.Strings("channels", names))
	d.publish(notifier.EventDispatched, r, names)
	return n
}

// Run forwards reports from in until the close report, which is passed to
// every channel queue, enabled or not, so their senders can exit.
func (d *Dispatcher) Run(ctx context.Context, in *queue.Queue[notifier.Report]) error {
	for {
		r, err := in.Get(ctx)
		if err != nil {
			return err
		}
		if r.Close {
			for _, rt := range d.routes {
				if rt.Queue != nil {
					rt.Queue.Put(notifier.CloseReport())
				}
			}
			d.log.Info("dispatcher stopped")
			return nil
		}
		d.Dispatch(r)
	}
}

func (d *Dispatcher) publish(typ string, r notifier.Report, channels []string) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: DispatchEvent{
		Kind:     string(r.Kind),
		Length:   len(r.Text),
		Channels: channels,
	}})
}

// DispatchEvent is the bus payload for dispatch events.
type DispatchEvent struct {
	Kind     string   `json:"kind"`
	Length   int      `json:"length"`
	Channels []string `json:"channels,omitempty"`
}
