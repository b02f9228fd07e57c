package flowspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StartBranch is the branch every pipeline begins executing from.
const StartBranch = "start"

// Document maps branch names to their ordered steps.
type Document map[string][]Node

// Branch returns the nodes of the named branch.
// The boolean is false when the document has no such branch.
func (d Document) Branch(name string) ([]Node, bool) {
	nodes, ok := d[name]
	return nodes, ok
}

// Node is one step of a pipeline.
type Node struct {
	// ID is the step identifier assigned by the platform.
	ID string `json:"id"`

	// Name is the connector type tag (e.g. "rest-connector-v2").
	Name string `json:"name"`

	// StepName is the human label given to the step.
	StepName string `json:"stepName"`

	// Params holds connector configuration. Shapes vary per connector.
	Params map[string]any `json:"params,omitempty"`

	// Otherwise is the default branch taken by choice steps.
	Otherwise string `json:"otherwise,omitempty"`

	// When lists conditional branches in declaration order.
	When []Choice `json:"when,omitempty"`
}

// Choice is one conditional route of a choice step.
type Choice struct {
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
}

// OnException returns the exception branch name, or "" when absent.
func (n *Node) OnException() string {
	return paramString(n.Params, "onException")
}

// OnProcess returns the process branch name, or "" when absent.
func (n *Node) OnProcess() string {
	return paramString(n.Params, "onProcess")
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return s
}

// looseString accepts strings, numbers, booleans and null.
// Objects and arrays are kept as their compact JSON text.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*s = looseString(buf.String())
	default:
		*s = looseString(data)
	}
	return nil
}

// UnmarshalJSON decodes a node, tolerating drifting field types.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        looseString     `json:"id"`
		Name      looseString     `json:"name"`
		StepName  looseString     `json:"stepName"`
		Params    json.RawMessage `json:"params"`
		Otherwise looseString     `json:"otherwise"`
		When      json.RawMessage `json:"when"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Node{
		ID:        string(raw.ID),
		Name:      string(raw.Name),
		StepName:  string(raw.StepName),
		Otherwise: string(raw.Otherwise),
	}

	// Params that are not an object are ignored.
	if isJSONObject(raw.Params) {
		if err := json.Unmarshal(raw.Params, &n.Params); err != nil {
			return fmt.Errorf("params: %w", err)
		}
	}

	// A non-list "when" is ignored; entries that are not objects are skipped.
	if isJSONArray(raw.When) {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw.When, &entries); err != nil {
			return fmt.Errorf("when: %w", err)
		}
		for _, entry := range entries {
			if !isJSONObject(entry) {
				continue
			}
			var c struct {
				Target    looseString `json:"target"`
				Condition looseString `json:"condition"`
			}
			if err := json.Unmarshal(entry, &c); err != nil {
				return fmt.Errorf("when: %w", err)
			}
			n.When = append(n.When, Choice{Target: string(c.Target), Condition: string(c.Condition)})
		}
	}

	return nil
}

func isJSONObject(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

func isJSONArray(data json.RawMessage) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}

// Decode parses a flowspec document.
//
// Top-level keys whose value is not a list are not branches and are
// skipped. A branch list whose entries are not objects is an error.
func Decode(data []byte) (Document, error) {
	if !isJSONObject(data) {
		return nil, fmt.Errorf("flowspec: document must be a JSON object")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("flowspec: %w", err)
	}

	doc := make(Document, len(top))
	for name, raw := range top {
		if !isJSONArray(raw) {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("flowspec: branch %q: %w", name, err)
		}
		nodes := make([]Node, 0, len(entries))
		for i, entry := range entries {
			if !isJSONObject(entry) {
				return nil, fmt.Errorf("flowspec: branch %q: entry %d is not an object", name, i)
			}
			var node Node
			if err := json.Unmarshal(entry, &node); err != nil {
				return nil, fmt.Errorf("flowspec: branch %q: entry %d: %w", name, i, err)
			}
			nodes = append(nodes, node)
		}
		doc[name] = nodes
	}

	return doc, nil
}

// ParamValue resolves a dot-separated path inside params and renders the
// value as text. Strings are returned as-is, other scalars in their JSON
// form, objects and arrays as compact JSON. Missing values and nulls yield "".
func ParamValue(params map[string]any, path string) string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return ""
	}

	var cur any = params
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[part]
		if !ok {
			return ""
		}
	}

	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	encoded, err := json.Marshal(cur)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '.' })
}
