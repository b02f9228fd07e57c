package traverse

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipemap/internal/flowspec"
	"github.com/roach88/pipemap/internal/rules"
)

func rest(id, step, url string) flowspec.Node {
	return flowspec.Node{
		ID:       id,
		Name:     rules.RestV2,
		StepName: step,
		Params:   map[string]any{"url": url, "operation": "POST"},
	}
}

func targets(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Target
	}
	return out
}

func mustDecode(t *testing.T, src string) flowspec.Document {
	t.Helper()
	doc, err := flowspec.Decode([]byte(src))
	require.NoError(t, err)
	return doc
}

func TestTraverse_SingleRestCall(t *testing.T) {
	doc := flowspec.Document{
		"start": {rest("n1", "Charge card", "https://api.pay.example/charge")},
	}

	events, err := New(nil).Traverse(context.Background(), doc, "checkout", flowspec.StartBranch)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "checkout", ev.From)
	assert.Equal(t, "https://api.pay.example/charge", ev.Target)
	assert.Equal(t, "https://api.pay.example/charge", ev.RawTarget)
	assert.Equal(t, "POST", ev.Extra)
	assert.Equal(t, rules.RestV2, ev.Connector)
	assert.Equal(t, "Charge card", ev.StepName)
	assert.Equal(t, "n1", ev.ConnectorID)
	assert.Equal(t, RootBreadcrumb, ev.Breadcrumb)
}

func TestTraverse_BranchSpliceOrder(t *testing.T) {
	route := flowspec.Node{
		ID:        "route",
		Name:      "choice",
		StepName:  "Route",
		Params:    map[string]any{"onException": "exc", "onProcess": "proc"},
		Otherwise: "dflt",
		When:      []flowspec.Choice{{Target: "w1"}, {Target: "w2"}},
	}
	doc := flowspec.Document{
		"start": {route, rest("s2", "After", "after")},
		"exc":   {rest("e", "E", "exc")},
		"proc":  {rest("p", "P", "proc")},
		"dflt":  {rest("d", "D", "dflt")},
		"w1":    {rest("w1", "W1", "w1")},
		"w2":    {rest("w2", "W2", "w2")},
	}

	events, err := New(nil).Traverse(context.Background(), doc, "router", "start")
	require.NoError(t, err)

	// Each splice goes in front of the previous one.
	assert.Equal(t, []string{"w2", "w1", "dflt", "proc", "exc", "after"}, targets(events))

	crumbs := map[string]string{}
	for _, ev := range events {
		crumbs[ev.Target] = ev.Breadcrumb
	}
	assert.Equal(t, "$", crumbs["w2"])
	assert.Equal(t, "$", crumbs["dflt"])
	assert.Equal(t, "$['Route (onProcess)']", crumbs["proc"])
	assert.Equal(t, "$['Route (onException)']", crumbs["exc"])
	assert.Equal(t, "$", crumbs["after"])
}

func TestTraverse_NestedBranchExhaustedBeforeSiblings(t *testing.T) {
	first := rest("a", "A", "a")
	first.Params["onException"] = "handler"
	nested := rest("h1", "H1", "h1")
	nested.Params["onException"] = "deep"

	doc := flowspec.Document{
		"start":   {first, rest("b", "B", "b")},
		"handler": {nested, rest("h2", "H2", "h2")},
		"deep":    {rest("d", "D", "deep")},
	}

	events, err := New(nil).Traverse(context.Background(), doc, "p", "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "h1", "deep", "h2", "b"}, targets(events))

	assert.Equal(t, "$['A (onException)']['H1 (onException)']", events[2].Breadcrumb)
}

func TestTraverse_SharedBranchVisitedPerPath(t *testing.T) {
	doc := mustDecode(t, `{
		"start": [
			{"name": "choice", "stepName": "Pick", "when": [{"target": "shared"}, {"target": "shared"}]}
		],
		"shared": [
			{"name": "pipeline-executor-connector", "stepName": "Call", "params": {"pipelineName": "billing"}}
		]
	}`)

	events, err := New(nil).Traverse(context.Background(), doc, "p", "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "billing"}, targets(events))
}

func TestTraverse_ExtractionRules(t *testing.T) {
	doc := mustDecode(t, `{
		"start": [
			{"id": "1", "name": "pipeline-executor-connector", "stepName": "Run", "params": {"pipelineName": "$.fulfillment", "operation": "sync"}},
			{"id": "2", "name": "event-publisher-connector", "stepName": "Emit", "params": {"eventName": "order created"}},
			{"id": "3", "name": "mongodb-connector", "stepName": "Find", "params": {"url": "mongodb://db", "databaseName": "orders", "collectionName": "items"}},
			{"id": "4", "name": "db-connector-v2", "stepName": "Query", "params": {"url": "jdbc:pg://x", "operation": "SELECT"}},
			{"id": "5", "name": "object-store-connector", "stepName": "Put", "params": {"operation": "insert"}},
			{"id": "6", "name": "rest-connector-v2", "stepName": "Empty", "params": {"url": "", "operation": ""}},
			{"id": "7", "name": "log-connector", "stepName": "Log", "params": {"url": "ignored"}}
		]
	}`)

	events, err := New(nil).Traverse(context.Background(), doc, "orders", "start")
	require.NoError(t, err)
	require.Len(t, events, 5)

	assert.Equal(t, "fulfillment", events[0].Target)
	assert.Equal(t, "$.fulfillment", events[0].RawTarget)
	assert.Equal(t, "sync", events[0].Extra)

	assert.Equal(t, "ordercreated", events[1].Target)
	assert.Equal(t, "", events[1].Extra)

	// Missing operation: the next non-empty value becomes extra.
	assert.Equal(t, "mongodb://db", events[2].Target)
	assert.Equal(t, "orders", events[2].Extra)

	// Only one param path for db-connector-v2.
	assert.Equal(t, "jdbc:pg://x", events[3].Target)
	assert.Equal(t, "", events[3].Extra)

	// Without objectStore the operation becomes the target.
	assert.Equal(t, "insert", events[4].Target)
}

func TestTraverse_CustomRules(t *testing.T) {
	table := rules.Default().Merge(rules.NewTable(
		rules.Rule{Connector: "sftp-connector", Params: []string{"host.name"}, External: true},
	))
	doc := flowspec.Document{
		"start": {{Name: "sftp-connector", StepName: "Upload", Params: map[string]any{
			"host": map[string]any{"name": "sftp.partner.example"},
		}}},
	}

	events, err := New(table).Traverse(context.Background(), doc, "p", "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"sftp.partner.example"}, targets(events))
}

func TestTraverse_MissingStartBranch(t *testing.T) {
	_, err := New(nil).Traverse(context.Background(), flowspec.Document{}, "p", "start")
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.False(t, IsOverflow(err))

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "start", te.Branch)
	assert.Equal(t, "p", te.Pipeline)
}

func TestTraverse_MissingReferencedBranch(t *testing.T) {
	tests := []struct {
		name string
		node flowspec.Node
	}{
		{"onException", flowspec.Node{StepName: "S", Params: map[string]any{"onException": "gone"}}},
		{"onProcess", flowspec.Node{StepName: "S", Params: map[string]any{"onProcess": "gone"}}},
		{"otherwise", flowspec.Node{StepName: "S", Otherwise: "gone"}},
		{"when", flowspec.Node{StepName: "S", When: []flowspec.Choice{{Target: "gone"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := flowspec.Document{"start": {tt.node}}
			_, err := New(nil).Traverse(context.Background(), doc, "p", "start")
			require.Error(t, err)
			assert.True(t, IsMalformed(err))

			var te *Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "gone", te.Branch)
			assert.Equal(t, "S", te.Details["step"])
		})
	}
}

func TestTraverse_CyclicOtherwiseOverflows(t *testing.T) {
	doc := mustDecode(t, `{
		"start": [{"name": "choice", "stepName": "Loop", "otherwise": "loop"}],
		"loop": [
			{"name": "rest-connector-v2", "stepName": "Ping", "params": {"url": "https://ping"}},
			{"name": "choice", "stepName": "Again", "otherwise": "loop"}
		]
	}`)

	_, err := New(nil, WithMaxVisits(50)).Traverse(context.Background(), doc, "loopy", "start")
	require.Error(t, err)
	assert.True(t, IsOverflow(err))

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "49", te.Details["visits"])
	assert.Equal(t, "2", te.Details["pending"])
	assert.Equal(t, "50", te.Details["max_visits"])
}

func TestTraverse_WideCyclicFanOutStopsBeforeQueueGrows(t *testing.T) {
	fanOut := flowspec.Node{Name: "choice", StepName: "Fan"}
	for i := 0; i < 1000; i++ {
		fanOut.When = append(fanOut.When, flowspec.Choice{Target: "start"})
	}
	doc := flowspec.Document{"start": {fanOut}}

	_, err := New(nil, WithMaxVisits(20000)).Traverse(context.Background(), doc, "fan", "start")
	require.Error(t, err)
	assert.True(t, IsOverflow(err))

	var te *Error
	require.ErrorAs(t, err, &te)
	visits, err := strconv.Atoi(te.Details["visits"])
	require.NoError(t, err)
	pending, err := strconv.Atoi(te.Details["pending"])
	require.NoError(t, err)

	// The walk stops at the first splice that would pass the ceiling, so
	// at most one branch beyond it was ever counted.
	assert.Greater(t, visits+pending, 20000)
	assert.LessOrEqual(t, visits+pending, 20001)
	assert.Less(t, visits, 100)
}

func TestTraverse_StartBranchLargerThanCeiling(t *testing.T) {
	doc := flowspec.Document{
		"start": {rest("1", "A", "a"), rest("2", "B", "b"), rest("3", "C", "c")},
	}

	_, err := New(nil, WithMaxVisits(2)).Traverse(context.Background(), doc, "p", "start")
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrCodeTraversalOverflow, te.Code)
	assert.Equal(t, "0", te.Details["visits"])
	assert.Equal(t, "3", te.Details["pending"])
}

func TestTraverse_ExactCeilingSucceeds(t *testing.T) {
	doc := flowspec.Document{
		"start": {rest("1", "A", "a"), rest("2", "B", "b"), rest("3", "C", "c")},
	}

	events, err := New(nil, WithMaxVisits(3)).Traverse(context.Background(), doc, "p", "start")
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = New(nil, WithMaxVisits(2)).Traverse(context.Background(), doc, "p", "start")
	assert.True(t, IsOverflow(err))
}

func TestTraverse_Deterministic(t *testing.T) {
	doc := mustDecode(t, `{
		"start": [{"name": "choice", "stepName": "R", "when": [{"target": "a"}, {"target": "b"}], "otherwise": "c"}],
		"a": [{"name": "rest-connector-v2", "params": {"url": "a"}}],
		"b": [{"name": "rest-connector-v2", "params": {"url": "b"}}],
		"c": [{"name": "rest-connector-v2", "params": {"url": "c"}}]
	}`)

	eng := New(nil)
	first, err := eng.Traverse(context.Background(), doc, "p", "start")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := eng.Traverse(context.Background(), doc, "p", "start")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTraverse_ContextCancelled(t *testing.T) {
	doc := mustDecode(t, `{
		"start": [{"name": "choice", "otherwise": "start"}]
	}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Traverse(ctx, doc, "p", "start")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithMaxVisits_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, DefaultMaxVisits, New(nil, WithMaxVisits(0)).MaxVisits())
	assert.Equal(t, 10, New(nil, WithMaxVisits(10)).MaxVisits())
}

func TestNormalizeTarget(t *testing.T) {
	assert.Equal(t, "fulfillment", NormalizeTarget("$.fulfillment"))
	assert.Equal(t, "https://a/b", NormalizeTarget(" https://a/ b "))
	// Decomposed e + combining acute becomes the composed form.
	assert.Equal(t, "caf\u00e9", NormalizeTarget("cafe\u0301"))
	assert.Equal(t, "", NormalizeTarget("$. "))
}
