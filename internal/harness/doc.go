// Package harness runs pipemap conformance scenarios.
//
// A scenario inlines a small portfolio (projects and flowspecs) and states
// what the resulting graph must look like. The harness runs the complete
// pipeline in memory: traversal, a round trip through an in-memory store,
// graph construction and diagram emission.
//
// # Scenario Format
//
//	name: checkout_rest_call
//	description: "A single REST call renders one downward relation"
//	max_visits: 1000            # optional traversal ceiling
//	rules: rules/               # optional CUE rules dir, relative to the file
//	projects:
//	  - id: P1
//	    name: Payments
//	    pipes: [pipe-1]
//	pipelines:
//	  - name: checkout
//	    id: pipe-1
//	    flowspec:
//	      start:
//	        - name: rest-connector-v2
//	          stepName: Charge card
//	          params: { url: "https://api.pay.example/charge", operation: POST }
//	assertions:
//	  - type: edge
//	    from: checkout
//	    to: https://api.pay.example/charge
//	    bidirectional: false
//
// # Assertion Types
//
//   - edge: an edge exists (optionally checking connector, extra and
//     bidirectionality); with absent: true it must not exist
//   - vertex: a vertex exists with the given kind and project
//   - failed: a pipeline failed with the given error code
//   - event_count: a pipeline produced exactly N connection events
//   - boundary_order: project boundaries were discovered in this order
//
// # Deterministic Testing
//
// Scenarios run with a fixed run id and an isolated in-memory database, so
// the same scenario always renders the same diagram for golden comparison.
package harness
