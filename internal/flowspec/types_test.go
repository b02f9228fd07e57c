package flowspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_BranchesAndOptionalFields(t *testing.T) {
	doc, err := Decode([]byte(`{
		"start": [
			{"id": "n1", "name": "rest-connector-v2", "stepName": "Charge",
			 "params": {"url": "https://api.example/charge", "onException": "exc-1"}},
			{"id": "n2", "name": "choice", "stepName": "Route",
			 "otherwise": "default-1",
			 "when": [{"target": "a", "condition": "$.x == 1"}, {"target": "b"}]}
		],
		"exc-1": [],
		"default-1": [{"id": 7, "name": "log-connector"}],
		"a": [], "b": [],
		"version": 3
	}`))
	require.NoError(t, err)

	start, ok := doc.Branch("start")
	require.True(t, ok)
	require.Len(t, start, 2)

	assert.Equal(t, "rest-connector-v2", start[0].Name)
	assert.Equal(t, "exc-1", start[0].OnException())
	assert.Equal(t, "", start[0].OnProcess())

	assert.Equal(t, "default-1", start[1].Otherwise)
	require.Len(t, start[1].When, 2)
	assert.Equal(t, Choice{Target: "a", Condition: "$.x == 1"}, start[1].When[0])
	assert.Equal(t, "b", start[1].When[1].Target)

	def, _ := doc.Branch("default-1")
	assert.Equal(t, "7", def[0].ID, "numeric ids decode as text")

	_, ok = doc.Branch("version")
	assert.False(t, ok, "non-list keys are not branches")
}

func TestDecode_ToleratesDriftingShapes(t *testing.T) {
	doc, err := Decode([]byte(`{
		"start": [
			{"name": "x", "params": "not-an-object", "when": {"target": "a"}, "otherwise": null},
			{"name": "y", "when": [1, {"target": "c"}]}
		]
	}`))
	require.NoError(t, err)

	start := doc["start"]
	assert.Nil(t, start[0].Params)
	assert.Empty(t, start[0].When)
	assert.Equal(t, "", start[0].Otherwise)
	require.Len(t, start[1].When, 1)
	assert.Equal(t, "c", start[1].When[0].Target)
}

func TestDecode_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an object", `[1, 2]`},
		{"invalid json", `{"start": [`},
		{"non-object entry", `{"start": ["step"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestParamValue(t *testing.T) {
	params := map[string]any{
		"url":     "https://x",
		"port":    float64(8080),
		"secure":  true,
		"empty":   nil,
		"headers": map[string]any{"host": "api.example"},
		"list":    []any{"a", "b"},
	}

	assert.Equal(t, "https://x", ParamValue(params, "url"))
	assert.Equal(t, "8080", ParamValue(params, "port"))
	assert.Equal(t, "true", ParamValue(params, "secure"))
	assert.Equal(t, "", ParamValue(params, "empty"))
	assert.Equal(t, "", ParamValue(params, "missing"))
	assert.Equal(t, "api.example", ParamValue(params, "headers.host"))
	assert.Equal(t, "", ParamValue(params, "url.deeper"))
	assert.Equal(t, `["a","b"]`, ParamValue(params, "list"))
	assert.Equal(t, "", ParamValue(params, ""))
	assert.Equal(t, "", ParamValue(nil, "url"))
}

func TestDecodeMetadata(t *testing.T) {
	md, err := DecodeMetadata([]byte(`{"data":{"pipeline":{"id":"abc-123","triggerSpec":{"type":"rest"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, Metadata{PipelineID: "abc-123", Trigger: "rest"}, md)

	_, err = DecodeMetadata([]byte(`{"data":{"pipeline":{}}}`))
	require.ErrorIs(t, err, ErrMissingPipelineID)

	_, err = DecodeMetadata([]byte(`nope`))
	require.Error(t, err)
}

func TestCatalog_FirstProjectWins(t *testing.T) {
	cat, err := DecodeCatalog([]byte(`{"data":{"project":[
		{"id":"p-1","name":"Payments","pipes":["pipe-a","pipe-b"]},
		{"id":"p-2","name":"Orders","pipes":["pipe-b","pipe-c"]}
	]}}`))
	require.NoError(t, err)
	require.Len(t, cat.Projects(), 2)

	p, ok := cat.ProjectOf("pipe-b")
	require.True(t, ok)
	assert.Equal(t, "p-1", p.ID)

	p, ok = cat.ProjectOf("pipe-c")
	require.True(t, ok)
	assert.Equal(t, "Orders", p.Name)

	_, ok = cat.ProjectOf("pipe-z")
	assert.False(t, ok)

	var nilCatalog *Catalog
	_, ok = nilCatalog.ProjectOf("pipe-a")
	assert.False(t, ok)
}
