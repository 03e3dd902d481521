// Package status provides operational visibility for the pool.
//
// It uses a channel-based event pipeline: the pool emits node selection,
// eviction and recovery events with non-blocking sends, and a collector
// goroutine aggregates them into per-node counters plus current health. A
// JSON snapshot is exposed over HTTP. Events are drained on shutdown so late
// observations are not lost.
package status
