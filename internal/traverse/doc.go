// Package traverse walks a flowspec and lists every outbound connection a
// pipeline could make.
//
// ARCHITECTURE:
//
// Reachability Enumeration, Not Execution:
// Conditions are never evaluated. Every exception, process, default and
// conditional branch is explored, because the question answered is "what
// could this pipeline call", not "what does it call for a given input".
//
// Work Queue:
// A single deque of (node, breadcrumb) items. The top-level branch is read
// in order, but when a node introduces sub-branches they are spliced to the
// FRONT of the deque, in this order:
//
//  1. exception branch (params.onException), breadcrumb tagged "(onException)"
//  2. process branch (params.onProcess), breadcrumb tagged "(onProcess)"
//  3. default branch (otherwise), breadcrumb inherited
//  4. each conditional branch (when), in declaration order, breadcrumb inherited
//
// Each splice lands in front of the previous one, so a branch and all the
// branches it introduces are exhausted before the nodes that followed the
// branching step.
//
// Termination:
// Documents are graphs and may be cyclic. Re-entering a branch through a
// different path is valid, so there is no identity-based cycle detection.
// Instead every visit is counted and the walk fails with TRAVERSAL_OVERFLOW
// once the ceiling (DefaultMaxVisits) is exceeded.
//
// Determinism:
// Given the same document and rules table, Traverse returns the same events
// in the same order. No maps are iterated on the hot path.
package traverse
