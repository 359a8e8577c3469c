package notifier

import (
	"errors"
	"time"
)

// ReportKind classifies a report for logging and metrics.
type ReportKind string

const (
	KindChange       ReportKind = "change"
	KindSummary      ReportKind = "summary"
	KindHeartbeat    ReportKind = "heartbeat"
	KindAnnouncement ReportKind = "announcement"
)

// Report is one finished message on its way to the channels.
type Report struct {
	Kind ReportKind
	Text string
	// Forced reports bypass unique-report buffering.
	Forced bool
	At     time.Time
	// Close is the shutdown sentinel; Text is ignored.
	Close bool
}

// CloseReport returns the shutdown sentinel.
func CloseReport() Report { return Report{Close: true} }

// Status is the outcome of a delivery attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Delivery records one transport attempt for one chunk of a report.
type Delivery struct {
	Channel string
	Kind    ReportKind
	Chunk   int
	Chunks  int
	Status  Status
	Reason  string
	Bytes   int
	At      time.Time
}

// Recorder observes delivery outcomes. Implementations must not block.
type Recorder interface {
	Record(d Delivery)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(d Delivery)

func (f RecorderFunc) Record(d Delivery) { f(d) }

// NopRecorder discards everything.
var NopRecorder Recorder = RecorderFunc(func(Delivery) {})

// Event types published on the bus.
const (
	EventDispatched = "report.dispatched"
	EventDropped    = "report.dropped"
	EventSent       = "delivery.sent"
	EventFailed     = "delivery.failed"
	EventSkipped    = "delivery.skipped"
)

var (
	// ErrDisabled marks a channel running in log-only mode.
	ErrDisabled = errors.New("channel disabled")
	// ErrMissingCredentials marks a channel without token or target.
	ErrMissingCredentials = errors.New("channel credentials missing")
)

// EventType maps a delivery status to its bus event type.
func EventType(s Status) string {
	switch s {
	case StatusSent:
		return EventSent
	case StatusSkipped:
		return EventSkipped
	default:
		return EventFailed
	}
}
