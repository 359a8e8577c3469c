package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage. An empty or "none" driver disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryRecord is one journaled channel attempt.
// Keep it compact and schema-stable.
type DeliveryRecord struct {
	At      time.Time `json:"at"`
	Channel string    `json:"channel"`
	Kind    string    `json:"kind"`
	Chunk   int       `json:"chunk"`
	Chunks  int       `json:"chunks"`
	Status  string    `json:"status"`
	Reason  string    `json:"reason,omitempty"`
	Bytes   int       `json:"bytes"`
}
