// Package rules holds the connector table that drives extraction and
// endpoint classification.
//
// Each outbound connector type maps to a Rule listing the parameter paths
// that describe where the connector points (tried in order), and whether
// the endpoint it reaches is a database and/or an external system. Adding a
// connector kind means adding a table row, either in Default or in a CUE
// rules directory loaded with LoadDir.
package rules

import "sort"

// Connector type tags known to the default table.
const (
	PipelineExecutor = "pipeline-executor-connector"
	EventPublisher   = "event-publisher-connector"
	RestV2           = "rest-connector-v2"
	ObjectStore      = "object-store-connector"
	DBV2             = "db-connector-v2"
	StreamDBV3       = "stream-db-connector-v3"
	MongoDB          = "mongodb-connector"
	Cassandra        = "cassandra-connector"
)

// Rule describes how to read one outbound connector type.
type Rule struct {
	// Connector is the connector type tag the rule applies to.
	Connector string `json:"connector"`

	// Params are dot-separated paths into the node params, tried in order.
	// The first two non-empty values become (target, extra).
	Params []string `json:"params"`

	// Database marks targets reached through this connector as databases.
	Database bool `json:"database,omitempty"`

	// External marks targets reached through this connector as external.
	External bool `json:"external,omitempty"`
}

// Table maps connector type tags to rules.
type Table struct {
	rules map[string]Rule
}

// NewTable builds a table from rules. Later rules replace earlier ones
// with the same connector tag.
func NewTable(rs ...Rule) *Table {
	t := &Table{rules: make(map[string]Rule, len(rs))}
	for _, r := range rs {
		t.rules[r.Connector] = r
	}
	return t
}

// Default returns the built-in connector table.
//
// Several SQL/NoSQL connectors appear as both database and external.
// Emitters resolve the overlap by letting database win.
func Default() *Table {
	return NewTable(
		Rule{Connector: PipelineExecutor, Params: []string{"pipelineName", "operation"}},
		Rule{Connector: EventPublisher, Params: []string{"eventName"}},
		Rule{Connector: RestV2, Params: []string{"url", "operation"}, External: true},
		Rule{Connector: ObjectStore, Params: []string{"objectStore", "operation"}, Database: true},
		Rule{Connector: DBV2, Params: []string{"url"}, Database: true, External: true},
		Rule{Connector: StreamDBV3, Params: []string{"url"}, Database: true, External: true},
		Rule{Connector: MongoDB, Params: []string{"url", "operation", "databaseName", "collectionName"}, Database: true, External: true},
		Rule{Connector: Cassandra, Params: []string{"url", "operation"}, Database: true, External: true},
	)
}

// Lookup returns the rule for a connector type.
func (t *Table) Lookup(connector string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	r, ok := t.rules[connector]
	return r, ok
}

// Classify reports how a target reached through connector is classified.
// Unknown connectors are internal.
func (t *Table) Classify(connector string) (database, external bool) {
	r, ok := t.Lookup(connector)
	if !ok {
		return false, false
	}
	return r.Database, r.External
}

// Merge returns a new table with other's rules layered over t's.
func (t *Table) Merge(other *Table) *Table {
	merged := NewTable()
	if t != nil {
		for k, r := range t.rules {
			merged.rules[k] = r
		}
	}
	if other != nil {
		for k, r := range other.rules {
			merged.rules[k] = r
		}
	}
	return merged
}

// Rules returns every rule sorted by connector tag.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Connector < out[j].Connector })
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}
