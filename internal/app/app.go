// Package app wires the watchdog: config, logging, the poll-detect-dispatch
// pipeline, channels, journal, metrics and the service-manager hooks.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"k8swatchdog/internal/collector"
	"k8swatchdog/internal/collector/kube"
	"k8swatchdog/internal/config"
	"k8swatchdog/internal/detector"
	"k8swatchdog/internal/dispatcher"
	"k8swatchdog/internal/eventbus"
	"k8swatchdog/internal/metrics"
	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/notifier/email"
	"k8swatchdog/internal/notifier/telegram"
	"k8swatchdog/internal/observability"
	"k8swatchdog/internal/poller"
	"k8swatchdog/internal/queue"
	"k8swatchdog/internal/runtime/supervisor"
	"k8swatchdog/internal/snapshot"
	"k8swatchdog/internal/storage"
	logx "k8swatchdog/pkg/logx"
	"k8swatchdog/pkg/systemd"
)

// DrainTimeout bounds how long Stop waits for queued reports to go out.
const DrainTimeout = 15 * time.Second

const EventPipelineRestart = "pipeline.restart"

// Options replace the external edges, mainly for tests. Nil fields are
// built from the config.
type Options struct {
	Collector         collector.Collector
	TelegramTransport telegram.Transport
	Mailer            email.Mailer
	// Getenv overrides the environment lookup used by the config loader.
	Getenv func(string) string
}

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log     logx.Logger
	logs    *logx.Service
	bus     eventbus.Bus
	store   storage.Store
	metrics *metrics.Metrics
	rec     *deliveryRecorder
	sd      *systemd.Notifier

	inQ     *queue.Queue[snapshot.Message]
	reportQ *queue.Queue[notifier.Report]
	tgQ     *queue.Queue[notifier.Report]
	mailQ   *queue.Queue[notifier.Report]

	poller     *poller.Poller
	detector   *detector.Detector
	dispatcher *dispatcher.Dispatcher
	tg         *telegram.Sender
	mail       *email.Sender
	obs        *observability.Server

	supMu     sync.Mutex
	sup       *supervisor.Supervisor
	stopping  atomic.Bool
	drained   chan struct{}
	drainOnce sync.Once
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(ctx context.Context, cfgPath string, opts Options) (_ *App, err error) {
	cfgm := config.NewManager(cfgPath)
	if opts.Getenv != nil {
		cfgm.SetEnv(opts.Getenv)
	}
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	tgCfg := mapTelegram(cfg)
	transport := opts.TelegramTransport
	if transport == nil && tgCfg.Enabled && strings.TrimSpace(tgCfg.Token) != "" && strings.TrimSpace(tgCfg.ChatID) != "" {
		transport, err = telegram.NewTransport(tgCfg, logx.NewConsole(cfg.Logging.Level).Component("telegram"))
		if err != nil {
			return nil, err
		}
	}
	tgWindow := telegram.NewRateWindow(tgCfg.RatePerMinute, nil)

	logs, root := logx.New(mapLogging(cfg), newLogSink(tgCfg, transport, tgWindow))
	log := root.Component("app")
	cfgm.SetLogger(root.Component("config"))
	defer func() {
		if err != nil {
			_ = logs.Close()
		}
	}()

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		log:     log,
		logs:    logs,
		bus:     eventbus.New(),
		metrics: metrics.New(),
		sd:      systemd.New(cfg.Systemd.Notify, root.Component("systemd")),
		inQ:     queue.New[snapshot.Message](),
		reportQ: queue.New[notifier.Report](),
		tgQ:     queue.New[notifier.Report](),
		mailQ:   queue.New[notifier.Report](),
		drained: make(chan struct{}),
	}

	if sc, enabled, serr := mapStorage(cfg); serr != nil {
		return nil, serr
	} else if enabled {
		st, oerr := storage.Open(sc, root.Component("storage"))
		if oerr != nil {
			return nil, oerr
		}
		a.store = st
		log.Info("delivery journal enabled", logx.String("driver", sc.Driver))
	}
	defer func() {
		if err != nil && a.store != nil {
			_ = a.store.Close()
		}
	}()
	a.rec = newDeliveryRecorder(a.metrics, a.bus, a.store != nil)

	m := a.metrics
	m.QueueDepth("input", a.inQ.Len)
	m.QueueDepth("reports", a.reportQ.Len)
	m.QueueDepth(telegram.ChannelName, a.tgQ.Len)
	m.QueueDepth(email.ChannelName, a.mailQ.Len)

	a.detector = detector.New(mapDetector(cfg), metrics.Emitter{M: m, Next: a.reportQ}, root.Component("detector"))

	emCfg := mapEmail(cfg)
	a.dispatcher = dispatcher.New([]dispatcher.Route{
		{Name: telegram.ChannelName, Enabled: tgCfg.Enabled, Queue: a.tgQ},
		{Name: email.ChannelName, Enabled: emCfg.Enabled, Queue: a.mailQ},
	}, a.bus, root.Component("dispatcher"))

	a.tg = telegram.New(tgCfg, transport, root.Component("telegram"), telegram.Options{
		Recorder: a.rec,
		OnWait:   m.ObserveRateWait,
		Window:   tgWindow,
	})

	mailer := opts.Mailer
	if mailer == nil {
		mailer = email.NewSMTPMailer(emCfg)
	}
	a.mail = email.New(emCfg, mailer, root.Component("email"), a.rec)

	col := opts.Collector
	if col == nil {
		col, err = newKubeCollector(cfg, root.Component("collector"))
		if err != nil {
			return nil, err
		}
	}

	popts := mapPoller(cfg)
	popts.Hooks = poller.Hooks{
		OnFetch: func(c snapshot.Category, n int, ferr error) { m.ObserveFetch(string(c), n, ferr) },
		OnCycle: func(took time.Duration, failed int, at time.Time) {
			m.ObserveCycle(took, failed, at)
			a.sd.Watchdog()
		},
	}
	a.poller, err = poller.New(popts, col, a.inQ, root.Component("poller"))
	if err != nil {
		return nil, err
	}

	if ob := cfg.Observability; ob.Enabled {
		a.obs = observability.New(observability.Config{
			Addr:  ob.Addr,
			Token: ob.Token,
			Pprof: ob.Pprof,
		}, observability.Deps{
			Gatherer: m.Registry,
			Health:   a.health,
			Journal:  a.store,
		}, root.Component("observability"))
	}
	return a, nil
}

func newKubeCollector(cfg *config.Config, log logx.Logger) (collector.Collector, error) {
	client, err := kube.NewClient(kube.ClientConfig{
		Kubeconfig: cfg.Kubernetes.Kubeconfig,
		Context:    cfg.Kubernetes.Context,
		InCluster:  cfg.Kubernetes.InCluster,
	})
	if err != nil {
		return nil, err
	}
	return kube.New(client.Clientset, kube.Options{
		ForcedName:     cfg.ClusterName,
		ContextCluster: client.ContextCluster,
		ScaledToZero:   scaledToZero(cfg),
	}, log), nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Done is closed when the supervisor stops, either after Stop or on a
// fatal error.
func (a *App) Done() <-chan struct{} {
	sup := a.supervisor()
	if sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return sup.Context().Done()
}

// Err returns the fatal error that stopped the app, if any.
func (a *App) Err() error {
	if sup := a.supervisor(); sup != nil {
		return sup.Err()
	}
	return nil
}

func (a *App) supervisor() *supervisor.Supervisor {
	a.supMu.Lock()
	defer a.supMu.Unlock()
	return a.sup
}

func (a *App) health() supervisor.Snapshot {
	if sup := a.supervisor(); sup != nil {
		return sup.Snapshot()
	}
	return supervisor.Snapshot{}
}

// Start launches the pipeline and the background tasks. The pipeline does
// not inherit ctx cancellation: Stop drains it instead.
func (a *App) Start(ctx context.Context) error {
	a.supMu.Lock()
	if a.sup != nil {
		a.supMu.Unlock()
		return errors.New("app already started")
	}
	sup := supervisor.New(context.WithoutCancel(ctx),
		supervisor.WithLogger(a.log.Component("supervisor")),
		supervisor.WithCancelOnError(true),
	)
	a.sup = sup
	a.supMu.Unlock()

	sup.GoRestart("pipeline", a.pipeline,
		supervisor.WithRestartBackoff(time.Second, time.Minute),
		supervisor.WithOnRestart(func(err error) {
			a.bus.Publish(eventbus.Event{Type: EventPipelineRestart, Data: err.Error()})
		}),
	)
	sup.Go("journal", func(c context.Context) error {
		return a.rec.persistLoop(c, a.store, a.log.Component("journal"))
	})
	if a.obs != nil {
		sup.GoRestart("observability", a.obs.Run,
			supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		)
	}
	sup.Go("eventbus.log", func(c context.Context) error {
		eventbus.Listen(c, a.bus, "", 128, func(e eventbus.Event) {
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		})
		return nil
	})
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go("config.reload", a.reloadLoop)

	if wd := a.sd.WatchdogInterval(); wd > 0 {
		if cycle := a.cfg.CycleInterval(); cycle == 0 || cycle >= wd {
			a.log.Warn("systemd watchdog is shorter than the poll cycle", logx.Duration("watchdog", wd), logx.Duration("cycle", cycle))
		}
	}
	a.sd.Ready()
	a.sd.Status("polling")

	a.log.Info("app started",
		logx.Strings("categories", categoryKeys(a.poller.Categories())),
		logx.Bool("telegram", a.cfg.Telegram.Enabled),
		logx.Bool("email", a.cfg.Email.Enabled),
		logx.Bool("journal", a.store != nil),
		logx.Bool("observability", a.obs != nil),
	)
	return nil
}

// pipeline runs every stage in one errgroup. A stage failure cancels the
// others and the supervisor restarts the whole group; queues and detector
// state live on the App and survive the restart.
func (a *App) pipeline(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.poller.Run(gctx) })
	g.Go(func() error { return a.detector.Run(gctx, a.inQ) })
	g.Go(func() error { return a.dispatcher.Run(gctx, a.reportQ) })
	g.Go(func() error { return a.tg.Run(gctx, a.tgQ) })
	g.Go(func() error { return a.mail.Run(gctx, a.mailQ) })

	err := g.Wait()
	if err == nil && a.stopping.Load() {
		a.drainOnce.Do(func() { close(a.drained) })
		return context.Canceled
	}
	return err
}

func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyConfig(last, next)
			last = next
		}
	}
}

// applyConfig applies the live sections of next and reports the rest.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(mapLogging(next))

	fields := append([]logx.Field{logx.Strings("changed", sections)}, attrs...)
	a.log.Info("config reloaded", fields...)
	if config.NeedsRestart(sections) {
		a.log.Warn("restart required for some changes to take effect", logx.Strings("changed", sections))
	}
}

// Stop drains the pipeline (bounded by DrainTimeout and ctx), then stops
// the remaining tasks and releases the journal and log sinks.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	sup := a.supervisor()
	if sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.stopping.Store(true)
	a.sd.Stopping()
	a.poller.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, DrainTimeout)
	select {
	case <-a.drained:
		a.log.Debug("pipeline drained")
	case <-sup.Context().Done():
	case <-drainCtx.Done():
		a.log.Warn("drain timed out, pending reports are lost",
			logx.Int("telegram_pending", a.tgQ.Len()),
			logx.Int("email_pending", a.mailQ.Len()),
		)
	}
	cancel()

	var errs []error
	sup.Cancel()
	if err := sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, fmt.Errorf("supervisor: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	a.log.Info("stopped", logx.Int64("bus_dropped", int64(eventbus.Dropped(a.bus))))
	_ = a.logs.Close()
	return errors.Join(errs...)
}

func categoryKeys(cs []snapshot.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
