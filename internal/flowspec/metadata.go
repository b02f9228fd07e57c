package flowspec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingPipelineID is returned when a metadata export has no pipeline id.
var ErrMissingPipelineID = errors.New("metadata: pipeline id is required")

// Metadata is the per-pipeline export that accompanies a flowspec.
type Metadata struct {
	PipelineID string `json:"id"`
	Trigger    string `json:"trigger,omitempty"`
}

// DecodeMetadata parses a pipeline metadata export of the form
//
//	{"data": {"pipeline": {"id": "...", "triggerSpec": {"type": "..."}}}}
func DecodeMetadata(data []byte) (Metadata, error) {
	var raw struct {
		Data struct {
			Pipeline struct {
				ID          looseString `json:"id"`
				TriggerSpec struct {
					Type looseString `json:"type"`
				} `json:"triggerSpec"`
			} `json:"pipeline"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("metadata: %w", err)
	}

	md := Metadata{
		PipelineID: strings.TrimSpace(string(raw.Data.Pipeline.ID)),
		Trigger:    string(raw.Data.Pipeline.TriggerSpec.Type),
	}
	if md.PipelineID == "" {
		return Metadata{}, ErrMissingPipelineID
	}
	return md, nil
}

// Project is one entry of the project membership export.
type Project struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Pipes []string `json:"pipes"`
}

// Catalog resolves pipeline ids to their owning project.
type Catalog struct {
	projects []Project
	owner    map[string]int // pipeline id -> index into projects
}

// NewCatalog indexes projects. When a pipeline is listed by several
// projects the first one listed owns it.
func NewCatalog(projects []Project) *Catalog {
	c := &Catalog{
		projects: projects,
		owner:    make(map[string]int),
	}
	for i, p := range projects {
		for _, pipe := range p.Pipes {
			if _, taken := c.owner[pipe]; !taken {
				c.owner[pipe] = i
			}
		}
	}
	return c
}

// DecodeCatalog parses a project membership export of the form
//
//	{"data": {"project": [{"id": "...", "name": "...", "pipes": ["..."]}]}}
func DecodeCatalog(data []byte) (*Catalog, error) {
	var raw struct {
		Data struct {
			Project []struct {
				ID    looseString   `json:"id"`
				Name  looseString   `json:"name"`
				Pipes []looseString `json:"pipes"`
			} `json:"project"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}

	projects := make([]Project, 0, len(raw.Data.Project))
	for _, p := range raw.Data.Project {
		pipes := make([]string, 0, len(p.Pipes))
		for _, pipe := range p.Pipes {
			pipes = append(pipes, string(pipe))
		}
		projects = append(projects, Project{ID: string(p.ID), Name: string(p.Name), Pipes: pipes})
	}
	return NewCatalog(projects), nil
}

// ProjectOf returns the project owning the pipeline.
func (c *Catalog) ProjectOf(pipelineID string) (Project, bool) {
	if c == nil {
		return Project{}, false
	}
	i, ok := c.owner[pipelineID]
	if !ok {
		return Project{}, false
	}
	return c.projects[i], true
}

// Projects returns the catalog entries in export order.
func (c *Catalog) Projects() []Project {
	if c == nil {
		return nil
	}
	return c.projects
}
