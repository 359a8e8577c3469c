// Package poller drives the collector on a schedule and feeds the detector.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"k8swatchdog/internal/collector"
	"k8swatchdog/internal/snapshot"
	logx "k8swatchdog/pkg/logx"
)

// Emitter receives poll messages; *queue.Queue[snapshot.Message] is one.
type Emitter interface {
	Put(m snapshot.Message)
}

// Hooks observe a cycle. All are optional.
type Hooks struct {
	OnFetch func(c snapshot.Category, entities int, err error)
	OnCycle func(took time.Duration, failed int, at time.Time)
}

type Options struct {
	// Categories to fetch; emitted in snapshot.Order whatever the input order.
	Categories []snapshot.Category
	// Cycle is the interval between polls. Ignored when Schedule is set.
	Cycle time.Duration
	// Schedule is a cron expression or descriptor.
	Schedule     string
	UniqueReport bool
	FetchTimeout time.Duration
	// Concurrency bounds parallel fetches within a cycle.
	Concurrency int
	Hooks       Hooks
	Now         func() time.Time
}

var ErrNoSchedule = errors.New("poller: neither cycle nor schedule set")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Poller struct {
	opts  Options
	cats  []snapshot.Category
	col   collector.Collector
	out   Emitter
	log   logx.Logger
	now   func() time.Time
	sched cron.Schedule

	stopOnce sync.Once
	stop     chan struct{}
}

func New(opts Options, col collector.Collector, out Emitter, log logx.Logger) (*Poller, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	sched, err := schedule(opts)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Poller{
		opts:  opts,
		cats:  ordered(opts.Categories),
		col:   col,
		out:   out,
		log:   log,
		now:   now,
		sched: sched,
		stop:  make(chan struct{}),
	}, nil
}

func schedule(opts Options) (cron.Schedule, error) {
	if spec := strings.TrimSpace(opts.Schedule); spec != "" {
		s, err := parser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("poller: schedule %q: %w", spec, err)
		}
		return s, nil
	}
	if opts.Cycle <= 0 {
		return nil, ErrNoSchedule
	}
	return cron.Every(opts.Cycle), nil
}

func ordered(in []snapshot.Category) []snapshot.Category {
	want := make(map[snapshot.Category]bool, len(in))
	for _, c := range in {
		want[c] = true
	}
	out := make([]snapshot.Category, 0, len(want))
	for _, c := range snapshot.Order {
		if want[c] {
			out = append(out, c)
		}
	}
	return out
}

// Categories returns the polled categories in emission order.
func (p *Poller) Categories() []snapshot.Category {
	return append([]snapshot.Category(nil), p.cats...)
}

// Stop asks Run to finish: the running cycle is abandoned, the close
// message is emitted and Run returns nil. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Poller) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// Run polls once immediately and then on the schedule. It returns nil after
// Stop (having emitted the close message) or ctx.Err() when ctx ends first;
// in the latter case nothing is emitted so a restarted pipeline keeps its
// queues consistent.
func (p *Poller) Run(ctx context.Context) error {
	if p.stopped() {
		p.out.Put(snapshot.Close())
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	cl := cronLogger{log: p.log}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(p.sched, cron.FuncJob(func() { p.Cycle(runCtx) }))

	p.log.Info("poller started",
		logx.Strings("categories", categoryNames(p.cats)),
		logx.Duration("cycle", p.opts.Cycle),
		logx.String("schedule", p.opts.Schedule),
		logx.Bool("unique_report", p.opts.UniqueReport),
	)

	p.Cycle(runCtx)
	c.Start()
	<-runCtx.Done()
	<-c.Stop().Done()

	if p.stopped() {
		p.out.Put(snapshot.Close())
		p.log.Info("poller stopped")
		return nil
	}
	return ctx.Err()
}

type result struct {
	snap snapshot.Snapshot
	err  error
}

// Cycle runs one poll: cluster, cycle-start, every category in order,
// cycle-end. Failed fetches are logged and left out. It returns the number
// of failed fetches.
func (p *Poller) Cycle(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	start := p.now()

	name, err := p.col.ClusterName(ctx)
	if err != nil {
		p.log.Warn("cluster name lookup failed", logx.Err(err))
	}
	if name == "" {
		name = collector.UnknownCluster
	}
	p.out.Put(snapshot.ClusterMessage(name))
	if p.opts.UniqueReport {
		p.out.Put(snapshot.CycleStart())
	}

	results := p.fetchAll(ctx)
	failed := 0
	for i, c := range p.cats {
		r := results[i]
		if h := p.opts.Hooks.OnFetch; h != nil {
			h(c, len(r.snap), r.err)
		}
		if r.err != nil {
			failed++
			p.log.Error("fetch failed", logx.String("category", string(c)), logx.Err(r.err))
			continue
		}
		p.out.Put(snapshot.CategoryMessage(c, r.snap))
	}

	if p.opts.UniqueReport {
		p.out.Put(snapshot.CycleEnd())
	}

	end := p.now()
	took := end.Sub(start)
	p.log.Debug("cycle done", logx.Duration("took", took), logx.Int("failed", failed))
	if h := p.opts.Hooks.OnCycle; h != nil {
		h(took, failed, end)
	}
	return failed
}

func (p *Poller) fetchAll(ctx context.Context) []result {
	results := make([]result, len(p.cats))
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, c := range p.cats {
		g.Go(func() error {
			results[i] = p.fetch(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Poller) fetch(ctx context.Context, c snapshot.Category) (r result) {
	defer func() {
		if rec := recover(); rec != nil {
			r = result{err: fmt.Errorf("fetch %s panicked: %v", c, rec)}
		}
	}()
	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}
	s, err := p.col.Fetch(ctx, c)
	if err != nil {
		return result{err: err}
	}
	if s == nil {
		s = snapshot.Snapshot{}
	}
	return result{snap: s}
}

func categoryNames(cs []snapshot.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// cronLogger routes cron's own logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
