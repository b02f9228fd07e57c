package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// Portfolio writes a flowspec export layout for tests:
//
//	<root>/projects.json
//	<root>/flowspecs/<name>.json                       raw flowspec
//	<root>/flowspecs/gql/<name>.json                   metadata
//	<root>/flowspecs/globals-replaced/<env>/<name>-replaced-globals.json
type Portfolio struct {
	Root string
	Env  string

	t        *testing.T
	projects []map[string]any
}

// NewPortfolio creates an empty layout in a temp directory.
func NewPortfolio(t *testing.T, env string) *Portfolio {
	t.Helper()
	p := &Portfolio{Root: t.TempDir(), Env: env, t: t}
	for _, dir := range []string{p.MetadataDir(), p.SpecDir(), p.RawDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}
	p.writeProjects()
	return p
}

// ProjectsFile is the project membership export.
func (p *Portfolio) ProjectsFile() string { return filepath.Join(p.Root, "projects.json") }

// RawDir holds flowspecs before globals substitution.
func (p *Portfolio) RawDir() string { return filepath.Join(p.Root, "flowspecs") }

// MetadataDir holds the per-pipeline metadata exports.
func (p *Portfolio) MetadataDir() string { return filepath.Join(p.Root, "flowspecs", "gql") }

// ReplacedDir is the root of the substituted flowspecs.
func (p *Portfolio) ReplacedDir() string { return filepath.Join(p.Root, "flowspecs", "globals-replaced") }

// SpecDir holds the substituted flowspecs of the portfolio environment.
func (p *Portfolio) SpecDir() string { return filepath.Join(p.ReplacedDir(), p.Env) }

// Project adds a project owning the given pipeline ids.
func (p *Portfolio) Project(id, name string, pipes ...string) *Portfolio {
	p.t.Helper()
	if pipes == nil {
		pipes = []string{}
	}
	p.projects = append(p.projects, map[string]any{"id": id, "name": name, "pipes": pipes})
	p.writeProjects()
	return p
}

// Pipeline writes an already substituted flowspec and its metadata.
func (p *Portfolio) Pipeline(name, id, flowspec string) *Portfolio {
	p.t.Helper()
	p.write(filepath.Join(p.SpecDir(), name+"-replaced-globals.json"), []byte(flowspec))
	p.metadata(name, id)
	return p
}

// RawPipeline writes a flowspec that still contains global placeholders.
func (p *Portfolio) RawPipeline(name, id, flowspec string) *Portfolio {
	p.t.Helper()
	p.write(filepath.Join(p.RawDir(), name+".json"), []byte(flowspec))
	p.metadata(name, id)
	return p
}

// Globals writes the globals export. values maps field -> env -> value.
func (p *Portfolio) Globals(values map[string]map[string]string) string {
	p.t.Helper()
	var list []map[string]any
	for field, byEnv := range values {
		encoded, err := json.Marshal(byEnv)
		if err != nil {
			p.t.Fatalf("marshal globals: %v", err)
		}
		list = append(list, map[string]any{"field": field, "valuesByEnv": string(encoded)})
	}
	path := filepath.Join(p.Root, "globals.json")
	p.writeJSON(path, map[string]any{"data": map[string]any{"globals": list}})
	return path
}

func (p *Portfolio) metadata(name, id string) {
	p.writeJSON(filepath.Join(p.MetadataDir(), name+".json"), map[string]any{
		"data": map[string]any{
			"pipeline": map[string]any{"id": id, "triggerSpec": map[string]any{"type": "http"}},
		},
	})
}

func (p *Portfolio) writeProjects() {
	projects := p.projects
	if projects == nil {
		projects = []map[string]any{}
	}
	p.writeJSON(p.ProjectsFile(), map[string]any{"data": map[string]any{"project": projects}})
}

func (p *Portfolio) writeJSON(path string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.t.Fatalf("marshal %s: %v", path, err)
	}
	p.write(path, data)
}

func (p *Portfolio) write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		p.t.Fatalf("write %s: %v", path, err)
	}
}
