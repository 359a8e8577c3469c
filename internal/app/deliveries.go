package app

import (
	"context"
	"sync/atomic"
	"time"

	"k8swatchdog/internal/eventbus"
	"k8swatchdog/internal/metrics"
	"k8swatchdog/internal/notifier"
	"k8swatchdog/internal/storage"
	logx "k8swatchdog/pkg/logx"
)

const (
	journalBuffer  = 256
	journalTimeout = 250 * time.Millisecond
)

// deliveryRecorder fans each delivery out to metrics, the event bus and the
// journal. Record never blocks; journal writes happen on persistLoop.
type deliveryRecorder struct {
	metrics *metrics.Metrics
	bus     eventbus.Bus
	pending chan storage.DeliveryRecord
	dropped atomic.Uint64
}

func newDeliveryRecorder(m *metrics.Metrics, bus eventbus.Bus, journal bool) *deliveryRecorder {
	r := &deliveryRecorder{metrics: m, bus: bus}
	if journal {
		r.pending = make(chan storage.DeliveryRecord, journalBuffer)
	}
	return r
}

func (r *deliveryRecorder) Record(d notifier.Delivery) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	if r.metrics != nil {
		r.metrics.Record(d)
	}
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: notifier.EventType(d.Status), Time: d.At, Data: d})
	}
	if r.pending == nil {
		return
	}
	select {
	case r.pending <- toRecord(d):
	default:
		r.dropped.Add(1)
	}
}

func toRecord(d notifier.Delivery) storage.DeliveryRecord {
	return storage.DeliveryRecord{
		At:      d.At,
		Channel: d.Channel,
		Kind:    string(d.Kind),
		Chunk:   d.Chunk,
		Chunks:  d.Chunks,
		Status:  string(d.Status),
		Reason:  d.Reason,
		Bytes:   d.Bytes,
	}
}

// persistLoop writes pending records to st until ctx ends, then flushes
// whatever is still buffered.
func (r *deliveryRecorder) persistLoop(ctx context.Context, st storage.Store, log logx.Logger) error {
	if r.pending == nil || st == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	write := func(rec storage.DeliveryRecord) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		defer cancel()
		if err := st.AppendDelivery(cctx, rec); err != nil {
			log.Warn("journal write failed", logx.String("channel", rec.Channel), logx.Err(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.pending:
					write(rec)
				default:
					if n := r.dropped.Load(); n > 0 {
						log.Warn("journal records dropped", logx.Int64("count", int64(n)))
					}
					return ctx.Err()
				}
			}
		case rec := <-r.pending:
			write(rec)
		}
	}
}
