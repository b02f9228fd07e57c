// Package store keeps the history of pipemap runs in SQLite.
//
// Each run records the pipeline records it extracted (with their
// connection events) and the pipelines that failed. A stored run can be
// re-rendered without touching the export files again.
//
// # Ordering
//
// Runs, pipelines, connections and failures carry a logical seq column.
// Every query orders by seq, never by timestamps, so reading a run back
// yields records in the order they were extracted and the diagram built
// from them is identical to the original.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
