// Package extract walks every flowspec of a portfolio export and produces
// one graph.Record per pipeline.
//
// Expected layout (all paths configurable):
//
//	projects.json                                   project membership
//	flowspecs/gql/<name>.json                       pipeline metadata
//	flowspecs/globals-replaced/<env>/<name>-replaced-globals.json
//
// A failing pipeline (malformed document, missing metadata, traversal
// overflow) is logged and recorded as a Failure; the run continues with
// the remaining files. Files are processed in lexical order so the
// resulting records, and therefore the diagram, are reproducible.
package extract
