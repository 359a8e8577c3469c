// Package snapshot holds the data model shared by the collector, the poller
// and the change detector: attribute maps, per-category snapshots, category
// metadata and the tagged pipeline message.
package snapshot
