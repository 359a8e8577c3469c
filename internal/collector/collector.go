// Package collector defines how the poller reads cluster state.
package collector

import (
	"context"
	"errors"

	"k8swatchdog/internal/snapshot"
)

// UnknownCluster labels a cluster whose name could not be resolved.
const UnknownCluster = "Unknown"

var ErrUnsupported = errors.New("category not supported by collector")

// Collector returns, per category, the entities currently in a problem
// state. Implementations must be safe for concurrent Fetch calls.
type Collector interface {
	ClusterName(ctx context.Context) (string, error)
	Fetch(ctx context.Context, c snapshot.Category) (snapshot.Snapshot, error)
}

// Func adapts plain functions to Collector; handy in tests.
type Func struct {
	NameFn  func(ctx context.Context) (string, error)
	FetchFn func(ctx context.Context, c snapshot.Category) (snapshot.Snapshot, error)
}

func (f Func) ClusterName(ctx context.Context) (string, error) {
	if f.NameFn == nil {
		return UnknownCluster, nil
	}
	return f.NameFn(ctx)
}

func (f Func) Fetch(ctx context.Context, c snapshot.Category) (snapshot.Snapshot, error) {
	if f.FetchFn == nil {
		return nil, ErrUnsupported
	}
	return f.FetchFn(ctx, c)
}
