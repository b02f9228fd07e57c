package graph

// Graph is the finalized, read-only connection graph.
type Graph struct {
	vertices   []Vertex
	index      map[string]int
	edgesFrom  map[string][]Edge
	edgeCount  int
	callers    map[string]map[string]struct{}
	boundaries []Boundary
}

// Vertices returns all vertices in creation order.
func (g *Graph) Vertices() []Vertex {
	return append([]Vertex(nil), g.vertices...)
}

// Vertex returns the vertex with the given key.
func (g *Graph) Vertex(key string) (Vertex, bool) {
	i, ok := g.index[key]
	if !ok {
		return Vertex{}, false
	}
	return g.vertices[i], true
}

// VerticesIn returns the vertices of one project bucket in creation order.
func (g *Graph) VerticesIn(projectID string) []Vertex {
	var out []Vertex
	for _, v := range g.vertices {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	return out
}

// Edges returns all edges, grouped by origin in vertex creation order and
// in insertion order within an origin.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, v := range g.vertices {
		out = append(out, g.edgesFrom[v.Key]...)
	}
	return out
}

// EdgesFrom returns the edges leaving the vertex with the given key.
func (g *Graph) EdgesFrom(key string) []Edge {
	return append([]Edge(nil), g.edgesFrom[key]...)
}

// Boundaries returns the project boundaries in discovery order.
// Bucket 0 is never included. Boundaries are keyed by project id; the
// first name seen for an id is the one kept.
func (g *Graph) Boundaries() []Boundary {
	return append([]Boundary(nil), g.boundaries...)
}

// IsBidirectional reports whether the reverse of e also exists.
func (g *Graph) IsBidirectional(e Edge) bool {
	_, ok := g.callers[e.From][e.To]
	return ok
}

// Callers returns the number of distinct origins calling key.
func (g *Graph) Callers(key string) int {
	return len(g.callers[key])
}

// NumVertices returns the vertex count.
func (g *Graph) NumVertices() int {
	return len(g.vertices)
}

// NumEdges returns the edge count.
func (g *Graph) NumEdges() int {
	return g.edgeCount
}
