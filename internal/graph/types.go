package graph

import "github.com/roach88/pipemap/internal/traverse"

// Bucket 0 holds every vertex with no resolvable project. It is rendered
// outside any boundary box.
const (
	ExternalProjectID   = "0"
	ExternalProjectName = "external"
)

// Record is the extraction result of one pipeline, as stored in the
// pipelinesConnections.json artifact. Connections also decode from the
// navigator script's older field names (see traverse.Event).
type Record struct {
	File        string           `json:"file"`
	PipelineID  string           `json:"pipelineId"`
	ProjectID   string           `json:"projectId"`
	ProjectName string           `json:"projectName"`
	Trigger     string           `json:"trigger,omitempty"`
	Connections []traverse.Event `json:"connections"`
}

// Kind is the rendering class of a vertex.
type Kind string

const (
	KindInternal Kind = "internal"
	KindExternal Kind = "external"
	KindDatabase Kind = "database"
)

// Vertex is one system in the graph.
type Vertex struct {
	// Key is the pipeline file name or the normalized target descriptor.
	Key string `json:"key"`

	// ID is the diagram identifier.
	ID string `json:"id"`

	// Name is the pipeline file name for origins, the connector type for
	// targets that were never confirmed.
	Name string `json:"name"`

	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`

	External bool `json:"external"`
	Database bool `json:"database"`

	// Confirmed is true once the vertex was seen as an origin record.
	Confirmed bool `json:"confirmed"`
}

// Kind classifies the vertex. Database wins over external when both flags
// are set.
func (v Vertex) Kind() Kind {
	switch {
	case v.Database:
		return KindDatabase
	case v.External:
		return KindExternal
	default:
		return KindInternal
	}
}

// Edge is one deduplicated connection from an origin to a target.
type Edge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Connector  string `json:"connector"`
	Extra      string `json:"extra,omitempty"`
	Breadcrumb string `json:"breadcrumb"`
	Name       string `json:"name"`
}

// Boundary is a project box in the diagram.
type Boundary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
