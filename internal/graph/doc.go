// Package graph merges per-pipeline connection events into one directed
// graph of systems.
//
// ARCHITECTURE:
//
// A Builder is owned by exactly one run. Records are added strictly in
// order; vertex upsert and edge merge are order-sensitive (first writer
// wins for edge payloads, monotonic promotion for classification flags),
// so parallel traversal must still funnel into a single sequential Add.
//
// Vertices are keyed by the pipeline file name (origins) or by the
// normalized target descriptor (targets). A target that later turns out
// to be a traversed pipeline is the same vertex: its origin record
// confirms it and overwrites the project inherited from its first caller.
// Inferred sightings never override a confirmed vertex's project.
//
// Finalize freezes the builder into a Graph. The Graph is read-only and
// is the only thing the diagram emitter sees.
package graph
