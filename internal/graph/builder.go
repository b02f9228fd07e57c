package graph

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/pipemap/internal/rules"
	"github.com/roach88/pipemap/internal/traverse"
)

// ErrFinalized is returned when a record is added after Finalize.
var ErrFinalized = errors.New("graph builder already finalized")

type edgeKey struct {
	from string
	to   string
}

// Builder accumulates records into a graph.
// A Builder is not safe for concurrent use.
type Builder struct {
	rules *rules.Table

	vertices map[string]*Vertex
	order    []string

	edges     map[string][]Edge
	edgeIndex map[edgeKey]struct{}

	// callers maps a target key to the origin keys that call it.
	callers map[string]map[string]struct{}

	boundaries []Boundary
	boundaryOf map[string]struct{}

	finalized bool
}

// NewBuilder creates an empty builder. A nil table means rules.Default().
func NewBuilder(table *rules.Table) *Builder {
	if table == nil {
		table = rules.Default()
	}
	return &Builder{
		rules:      table,
		vertices:   make(map[string]*Vertex),
		edges:      make(map[string][]Edge),
		edgeIndex:  make(map[edgeKey]struct{}),
		callers:    make(map[string]map[string]struct{}),
		boundaryOf: make(map[string]struct{}),
	}
}

// Build adds every record in order.
func (b *Builder) Build(records []Record) error {
	for i := range records {
		if err := b.Add(records[i]); err != nil {
			return err
		}
	}
	return nil
}

// Add merges one pipeline record into the graph.
func (b *Builder) Add(rec Record) error {
	if b.finalized {
		return ErrFinalized
	}
	if rec.File == "" {
		return fmt.Errorf("record without file name (pipeline id %q)", rec.PipelineID)
	}

	origin := b.upsertOrigin(rec)
	for _, ev := range rec.Connections {
		if ev.Target == "" {
			continue
		}
		b.connect(origin, ev)
	}
	return nil
}

func (b *Builder) upsertOrigin(rec Record) *Vertex {
	projectID, projectName := project(rec.ProjectID, rec.ProjectName)

	v, ok := b.vertices[rec.File]
	if !ok {
		v = b.insert(rec.File)
	}

	id := SanitizeID(rec.PipelineID)
	if id == "" {
		id = TargetID(rec.File)
	}

	v.ID = id
	v.Name = rec.File
	v.ProjectID = projectID
	v.ProjectName = projectName
	v.Confirmed = true

	if projectID != ExternalProjectID {
		if _, seen := b.boundaryOf[projectID]; !seen {
			b.boundaryOf[projectID] = struct{}{}
			b.boundaries = append(b.boundaries, Boundary{ID: projectID, Name: projectName})
		}
	}
	return v
}

func (b *Builder) connect(origin *Vertex, ev traverse.Event) {
	database, external := b.rules.Classify(ev.Connector)

	target, ok := b.vertices[ev.Target]
	if !ok {
		target = b.insert(ev.Target)
		target.ID = TargetID(ev.Target)
		target.Name = ev.Connector
		target.External = external
		target.Database = database
		if external {
			target.ProjectID, target.ProjectName = ExternalProjectID, ExternalProjectName
		} else {
			target.ProjectID, target.ProjectName = origin.ProjectID, origin.ProjectName
		}
	} else {
		if external && !target.External {
			target.External = true
			if !target.Confirmed {
				target.ProjectID, target.ProjectName = ExternalProjectID, ExternalProjectName
			}
			slog.Debug("vertex promoted to external", "vertex", target.Key, "connector", ev.Connector)
		}
		if database && !target.Database {
			target.Database = true
		}
	}

	refs, ok := b.callers[target.Key]
	if !ok {
		refs = make(map[string]struct{})
		b.callers[target.Key] = refs
	}
	refs[origin.Key] = struct{}{}

	key := edgeKey{from: origin.Key, to: target.Key}
	if _, dup := b.edgeIndex[key]; dup {
		return
	}
	b.edgeIndex[key] = struct{}{}
	b.edges[origin.Key] = append(b.edges[origin.Key], Edge{
		From:       origin.Key,
		To:         target.Key,
		Connector:  ev.Connector,
		Extra:      ev.Extra,
		Breadcrumb: ev.Breadcrumb,
		Name:       ev.StepName,
	})
}

func (b *Builder) insert(key string) *Vertex {
	v := &Vertex{Key: key}
	b.vertices[key] = v
	b.order = append(b.order, key)
	return v
}

// project resolves a record's project, falling back to bucket 0.
func project(id, name string) (string, string) {
	id = SanitizeID(id)
	if id == "" || id == ExternalProjectID {
		return ExternalProjectID, ExternalProjectName
	}
	if name == "" {
		name = id
	}
	return id, name
}

// Finalize freezes the builder and returns the immutable graph.
// Subsequent Add calls fail with ErrFinalized; Finalize itself may be
// called again and returns an equal graph.
func (b *Builder) Finalize() *Graph {
	b.finalized = true

	g := &Graph{
		vertices:   make([]Vertex, len(b.order)),
		index:      make(map[string]int, len(b.order)),
		edgesFrom:  make(map[string][]Edge, len(b.edges)),
		callers:    make(map[string]map[string]struct{}, len(b.callers)),
		boundaries: append([]Boundary(nil), b.boundaries...),
	}
	for i, key := range b.order {
		g.vertices[i] = *b.vertices[key]
		g.index[key] = i
		if edges := b.edges[key]; len(edges) > 0 {
			g.edgesFrom[key] = append([]Edge(nil), edges...)
			g.edgeCount += len(edges)
		}
	}
	for target, refs := range b.callers {
		cp := make(map[string]struct{}, len(refs))
		for k := range refs {
			cp[k] = struct{}{}
		}
		g.callers[target] = cp
	}
	return g
}
