// Package flowspec defines the input documents pipemap reads.
//
// A flowspec describes one integration pipeline as a mapping from branch
// name to an ordered list of steps (Nodes). Steps can divert into other
// branches through exception handlers (params.onException), process
// sub-flows (params.onProcess), a default route (otherwise) and any number
// of conditional routes (when). Branch names resolve inside the same
// document, so a flowspec is a graph and may contain cycles.
//
// Two companion documents are also decoded here:
//   - Metadata: the per-pipeline export carrying the stable pipeline id
//     and trigger type.
//   - Catalog: the project membership export mapping pipeline ids to the
//     project that owns them.
//
// # Defensive Decoding
//
// Exports come from a remote control plane and their shapes drift between
// connector versions. Optional fields that are absent, null, or of an
// unexpected scalar type decode to zero values instead of failing. Only
// structural problems (a branch that is not a list of objects, a document
// that is not an object) are reported as errors.
package flowspec
