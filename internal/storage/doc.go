// Package storage keeps the delivery journal: one record per chunk each
// channel sent, failed or skipped.
//
// Drivers:
//   - "file": JSON Lines, no dependencies
//   - "sqlite": modernc.org/sqlite, only with the sqlite build tag
package storage
