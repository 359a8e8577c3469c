package detector

import (
	"strings"

	"k8swatchdog/internal/notifier"
	logx "k8swatchdog/pkg/logx"
)

const (
	summaryDivider = "\n--------------------\n"
	// Buffers this short carry no fragment worth reporting.
	minSummaryLen = 10
)

// aggregator buffers a poll cycle's fragments in unique-report mode.
type aggregator struct {
	active bool
	buf    strings.Builder
}

func (a *aggregator) arm() {
	a.active = true
	a.buf.Reset()
}

func (a *aggregator) add(text string) {
	if a.buf.Len() > 0 {
		a.buf.WriteString(summaryDivider)
	}
	a.buf.WriteString(text)
}

// flush disarms the buffer and returns the wrapped summary, if any.
func (a *aggregator) flush() (string, bool) {
	text := a.buf.String()
	a.active = false
	a.buf.Reset()
	if len(text) <= minSummaryLen {
		return "", false
	}
	return "Start report\n" + text + "\nEnd report", true
}

// send routes r either straight to the dispatch queue or into the cycle
// buffer. Only direct sends count as traffic for the heartbeat.
func (d *Detector) send(r notifier.Report) {
	if r.Text == "" {
		return
	}
	if d.agg.active && !r.Forced {
		d.agg.add(r.Text)
		return
	}
	r.At = d.now()
	d.out.Put(r)
	d.hb.last = r.At
	d.log.Debug("report queued", logx.String("kind", string(r.Kind)), logx.Int("len", len(r.Text)))
}

func (d *Detector) flushSummary() {
	if !d.agg.active {
		return
	}
	text, ok := d.agg.flush()
	if !ok {
		d.log.Debug("cycle ended with nothing to report")
		return
	}
	d.send(notifier.Report{Kind: notifier.KindSummary, Text: text})
}
