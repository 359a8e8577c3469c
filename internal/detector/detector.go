// Package detector turns poll snapshots into change reports.
//
// The Detector owns all cross-cycle state: the previous snapshot of every
// category, the unique-report buffer, the heartbeat timer and the cluster
// label. It is driven by a single goroutine (Run) and needs no locking.
package detector

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/queue"
	"k8swatchdog/internal/snapshot"
	logx "k8swatchdog/pkg/logx"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownTag      = errors.New("unknown message tag")
)

// Emitter receives finished reports; *queue.Queue[notifier.Report] is one.
type Emitter interface {
	Put(r notifier.Report)
}

type Options struct {
	// MaxFragmentLen is the soft size at which a fragment is cut.
	MaxFragmentLen int
	// Heartbeat is the alive-report interval; zero disables it.
	Heartbeat time.Duration
	// UniqueReport buffers a cycle's fragments into one summary.
	UniqueReport bool
	// AnnounceConfig replaces the bare cluster announcement with the
	// configuration summary built from Settings.
	AnnounceConfig bool
	Settings       []CategorySetting
	// Now defaults to time.Now.
	Now func() time.Time
}

type Detector struct {
	opts Options
	out  Emitter
	log  logx.Logger
	now  func() time.Time

	prev      map[snapshot.Category]snapshot.Snapshot
	cluster   string
	announced bool

	agg aggregator
	hb  heartbeat
}

func New(opts Options, out Emitter, log logx.Logger) *Detector {
	if log.IsZero() {
		log = logx.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Detector{
		opts: opts,
		out:  out,
		log:  log,
		now:  now,
		prev: map[snapshot.Category]snapshot.Snapshot{},
		hb: heartbeat{
			interval: opts.Heartbeat,
			last:     now(),
			forced:   true,
		},
	}
}

// Run consumes in until the close message, which is forwarded to the
// emitter before returning. A message that fails is logged and skipped.
func (d *Detector) Run(ctx context.Context, in *queue.Queue[snapshot.Message]) error {
	d.log.Info("detector started")
	for {
		m, err := in.Get(ctx)
		if err != nil {
			return err
		}
		if m.Kind == snapshot.KindClose {
			d.out.Put(notifier.CloseReport())
			d.log.Info("detector stopped")
			return nil
		}
		if err := d.handleGuarded(m); err != nil {
			d.log.Error("message handling failed", logx.String("kind", m.Kind.String()), logx.Err(err))
		}
	}
}

func (d *Detector) handleGuarded(m snapshot.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			d.log.Error("detector panicked", logx.Any("panic", p), logx.Stack(string(debug.Stack())))
		}
	}()
	return d.Handle(m)
}

// Handle processes one message and then runs the heartbeat check.
func (d *Detector) Handle(m snapshot.Message) error {
	var err error
	switch m.Kind {
	case snapshot.KindCluster:
		d.handleCluster(m.Cluster)
	case snapshot.KindCategory:
		err = d.handleCategory(m.Category, m.Snapshot)
	case snapshot.KindCycleStart:
		if d.opts.UniqueReport {
			d.agg.arm()
		}
	case snapshot.KindCycleEnd:
		d.flushSummary()
	default:
		d.log.Warn("unknown message dropped", logx.String("tag", m.Tag))
		err = fmt.Errorf("%w: %q", ErrUnknownTag, m.Tag)
	}
	d.checkHeartbeat()
	return err
}

func (d *Detector) handleCategory(c snapshot.Category, cur snapshot.Snapshot) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
	}
	fragments := Diff(c, d.prev[c], cur, d.opts.MaxFragmentLen)
	d.prev[c] = cur
	if len(fragments) == 0 {
		d.log.Debug("no changes", logx.String("category", string(c)), logx.Int("entities", len(cur)))
		return nil
	}
	d.log.Info("changes detected", logx.String("category", string(c)), logx.Int("fragments", len(fragments)))
	for _, f := range fragments {
		d.send(notifier.Report{Kind: notifier.KindChange, Text: f})
	}
	return nil
}

// Previous returns the cached snapshot of c.
func (d *Detector) Previous(c snapshot.Category) snapshot.Snapshot { return d.prev[c] }
