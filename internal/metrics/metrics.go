// Package metrics holds the watchdog's Prometheus collectors on a private
// registry served by the observability listener.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"k8swatchdog/internal/notifier"
)

const namespace = "k8swatchdog"

type Metrics struct {
	Registry *prometheus.Registry

	reports     *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	rateWaits   prometheus.Counter
	rateWaitSec prometheus.Counter
	cycles      *prometheus.CounterVec
	fetchErrors *prometheus.CounterVec
	cycleDur    prometheus.Histogram
	lastCycle   prometheus.Gauge
	entities    *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports produced by the detector, by kind.",
		}, []string{"kind"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Channel delivery attempts per chunk, by channel and status.",
		}, []string{"channel", "status"}),
		rateWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Times the chat sender waited for the next rate window.",
		}),
		rateWaitSec: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Seconds spent waiting for rate windows.",
		}),
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles, by result.",
		}, []string{"result"}),
		fetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed category fetches.",
		}, []string{"category"}),
		cycleDur: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of one poll cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last finished poll cycle.",
		}),
		entities: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "problem_entities",
			Help:      "Entities reported by the last fetch, by category.",
		}, []string{"category"}),
	}
}

// QueueDepth exports the length of a pipeline queue.
func (m *Metrics) QueueDepth(name string, depth func() int) {
	promauto.With(m.Registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_depth",
		Help:        "Items waiting in a pipeline queue.",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 { return float64(depth()) })
}

func (m *Metrics) ObserveReport(kind notifier.ReportKind) {
	m.reports.WithLabelValues(string(kind)).Inc()
}

// Record implements notifier.Recorder.
func (m *Metrics) Record(d notifier.Delivery) {
	m.deliveries.WithLabelValues(d.Channel, string(d.Status)).Inc()
}

func (m *Metrics) ObserveRateWait(d time.Duration) {
	m.rateWaits.Inc()
	m.rateWaitSec.Add(d.Seconds())
}

// ObserveCycle records one poll cycle; failed counts categories whose
// fetch failed.
func (m *Metrics) ObserveCycle(took time.Duration, failed int, at time.Time) {
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDur.Observe(took.Seconds())
	m.lastCycle.Set(float64(at.Unix()))
}

func (m *Metrics) ObserveFetch(category string, entities int, err error) {
	if err != nil {
		m.fetchErrors.WithLabelValues(category).Inc()
		return
	}
	m.entities.WithLabelValues(category).Set(float64(entities))
}

// Emitter counts reports on their way to q.
type Emitter struct {
	M    *Metrics
	Next interface{ Put(notifier.Report) }
}

func (e Emitter) Put(r notifier.Report) {
	if !r.Close && e.M != nil {
		e.M.ObserveReport(r.Kind)
	}
	e.Next.Put(r)
}
