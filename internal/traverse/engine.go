package traverse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/roach88/pipemap/internal/flowspec"
	"github.com/roach88/pipemap/internal/rules"
)

// DefaultMaxVisits is the default ceiling on node visits per document.
const DefaultMaxVisits = 100000

// RootBreadcrumb is the breadcrumb of nodes on the start branch.
const RootBreadcrumb = "$"

// ctxCheckInterval is how many visits pass between context checks.
const ctxCheckInterval = 1024

// Event is one outbound connection found in a pipeline.
type Event struct {
	From        string `json:"from"`
	Breadcrumb  string `json:"breadcrumb"`
	Target      string `json:"target"`
	RawTarget   string `json:"raw_target"`
	Extra       string `json:"extra"`
	ConnectorID string `json:"connector_id"`
	Connector   string `json:"connector"`
	StepName    string `json:"name"`
}

// UnmarshalJSON also accepts connection lists written by the earlier
// navigator script, which stores the raw descriptor under "data" and
// spells the connector id "connectorId". Target is derived from the raw
// descriptor when only "data" is present.
func (ev *Event) UnmarshalJSON(data []byte) error {
	type event Event
	var aux struct {
		event
		Data        *string `json:"data"`
		LegacyID    string  `json:"connectorId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*ev = Event(aux.event)
	if aux.Data != nil {
		if ev.RawTarget == "" {
			ev.RawTarget = *aux.Data
		}
		if ev.Target == "" {
			ev.Target = NormalizeTarget(*aux.Data)
		}
	}
	if ev.ConnectorID == "" {
		ev.ConnectorID = aux.LegacyID
	}
	return nil
}

// Engine enumerates connection events from flowspec documents.
// An Engine holds no per-traversal state and may be shared.
type Engine struct {
	rules     *rules.Table
	maxVisits int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxVisits sets the visit ceiling per document.
//
// Default: 100000 (DefaultMaxVisits). Values below 1 are ignored.
func WithMaxVisits(maxVisits int) Option {
	return func(e *Engine) {
		if maxVisits > 0 {
			e.maxVisits = maxVisits
		}
	}
}

// New creates an Engine. A nil table means rules.Default().
func New(table *rules.Table, opts ...Option) *Engine {
	if table == nil {
		table = rules.Default()
	}
	e := &Engine{
		rules:     table,
		maxVisits: DefaultMaxVisits,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxVisits returns the configured visit ceiling.
func (e *Engine) MaxVisits() int {
	return e.maxVisits
}

// Traverse walks doc from the start branch and returns the connection
// events of pipeline origin in traversal order.
//
// Fails with MALFORMED_DOCUMENT when start or any referenced branch is
// missing, and with TRAVERSAL_OVERFLOW when visited plus queued nodes
// exceed the visit ceiling.
// Context cancellation is checked periodically and returned as-is.
func (e *Engine) Traverse(ctx context.Context, doc flowspec.Document, origin, start string) ([]Event, error) {
	startNodes, ok := doc.Branch(start)
	if !ok {
		return nil, NewMissingBranchError(origin, start, "")
	}

	queue := newWorkQueue()
	quota := newVisitQuota(origin, e.maxVisits)
	if err := quota.Reserve(0, len(startNodes)); err != nil {
		return nil, err
	}
	queue.SpliceFront(startNodes, RootBreadcrumb)

	var events []Event
	for {
		item, ok := queue.PopFront()
		if !ok {
			break
		}
		if err := quota.Check(); err != nil {
			return nil, err
		}
		if quota.Visits()%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		node := item.node
		if ev, ok := e.extract(origin, item); ok {
			events = append(events, ev)
		}

		if branch := node.OnException(); branch != "" {
			if err := splice(queue, quota, doc, origin, node, branch, tagged(item.breadcrumb, node.StepName, "onException")); err != nil {
				return nil, err
			}
		}
		if branch := node.OnProcess(); branch != "" {
			if err := splice(queue, quota, doc, origin, node, branch, tagged(item.breadcrumb, node.StepName, "onProcess")); err != nil {
				return nil, err
			}
		}
		if node.Otherwise != "" {
			if err := splice(queue, quota, doc, origin, node, node.Otherwise, item.breadcrumb); err != nil {
				return nil, err
			}
		}
		for _, choice := range node.When {
			if choice.Target == "" {
				continue
			}
			if err := splice(queue, quota, doc, origin, node, choice.Target, item.breadcrumb); err != nil {
				return nil, err
			}
		}
	}

	slog.Debug("pipeline traversed",
		"pipeline", origin,
		"visits", quota.Visits(),
		"events", len(events),
	)

	return events, nil
}

func splice(queue *workQueue, quota *visitQuota, doc flowspec.Document, origin string, node *flowspec.Node, branch, breadcrumb string) error {
	nodes, ok := doc.Branch(branch)
	if !ok {
		return NewMissingBranchError(origin, branch, node.StepName)
	}
	if err := quota.Reserve(queue.Len(), len(nodes)); err != nil {
		return err
	}
	queue.SpliceFront(nodes, breadcrumb)
	return nil
}

func tagged(breadcrumb, stepName, kind string) string {
	return breadcrumb + "['" + stepName + " (" + kind + ")']"
}

// extract applies the node's connector rule. The first two non-empty
// parameter values become (target, extra); no target means no event.
func (e *Engine) extract(origin string, item workItem) (Event, bool) {
	node := item.node
	rule, ok := e.rules.Lookup(node.Name)
	if !ok {
		return Event{}, false
	}

	var values []string
	for _, path := range rule.Params {
		if v := flowspec.ParamValue(node.Params, path); v != "" {
			values = append(values, v)
			if len(values) == 2 {
				break
			}
		}
	}
	if len(values) == 0 || NormalizeTarget(values[0]) == "" {
		slog.Debug("connector without target skipped",
			"pipeline", origin,
			"connector", node.Name,
			"step", node.StepName,
		)
		return Event{}, false
	}

	ev := Event{
		From:        origin,
		Breadcrumb:  item.breadcrumb,
		RawTarget:   values[0],
		Target:      NormalizeTarget(values[0]),
		ConnectorID: node.ID,
		Connector:   node.Name,
		StepName:    node.StepName,
	}
	if len(values) > 1 {
		ev.Extra = values[1]
	}
	return ev, true
}
