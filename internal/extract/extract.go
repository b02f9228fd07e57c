package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/pipemap/internal/flowspec"
	"github.com/roach88/pipemap/internal/graph"
	"github.com/roach88/pipemap/internal/traverse"
)

// replacedSuffix is appended to flowspec file names by the globals pass.
const replacedSuffix = "-replaced-globals"

// Failure is one pipeline that could not be extracted.
type Failure struct {
	File  string             `json:"file"`
	Code  traverse.ErrorCode `json:"code"`
	Error string             `json:"error"`
}

// Result is the outcome of an extraction run.
type Result struct {
	Records  []graph.Record `json:"records"`
	Failures []Failure      `json:"failures,omitempty"`
}

// Extractor turns flowspec files into pipeline records.
type Extractor struct {
	engine       *traverse.Engine
	catalog      *flowspec.Catalog
	flowspecsDir string
	metadataDir  string
}

// New creates an Extractor reading flowspecs from flowspecsDir and their
// metadata from metadataDir. A nil engine uses traverse defaults.
func New(engine *traverse.Engine, catalog *flowspec.Catalog, flowspecsDir, metadataDir string) *Extractor {
	if engine == nil {
		engine = traverse.New(nil)
	}
	return &Extractor{
		engine:       engine,
		catalog:      catalog,
		flowspecsDir: flowspecsDir,
		metadataDir:  metadataDir,
	}
}

// LoadCatalog reads the project membership export.
func LoadCatalog(path string) (*flowspec.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}
	catalog, err := flowspec.DecodeCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return catalog, nil
}

// PipelineName derives the pipeline name from a flowspec file name.
func PipelineName(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return strings.Replace(name, replacedSuffix, "", 1)
}

// Files lists the flowspec files in lexical order.
func (x *Extractor) Files() ([]string, error) {
	entries, err := os.ReadDir(x.flowspecsDir)
	if err != nil {
		return nil, fmt.Errorf("read flowspecs dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Run extracts every flowspec file.
//
// Per-pipeline failures are collected in Result.Failures. Only listing
// the directory and context cancellation fail the whole run.
func (x *Extractor) Run(ctx context.Context) (*Result, error) {
	files, err := x.Files()
	if err != nil {
		return nil, err
	}

	result := &Result{Records: make([]graph.Record, 0, len(files))}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := x.ExtractFile(ctx, file)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			f := NewFailure(file, err)
			slog.Warn("pipeline extraction failed",
				"file", file,
				"code", f.Code,
				"error", err,
			)
			result.Failures = append(result.Failures, f)
			continue
		}
		slog.Debug("pipeline extracted",
			"file", file,
			"pipeline", rec.File,
			"connections", len(rec.Connections),
		)
		result.Records = append(result.Records, rec)
	}

	slog.Info("extraction complete",
		"pipelines", len(result.Records),
		"failures", len(result.Failures),
	)
	return result, nil
}

// ExtractFile extracts one flowspec file, named relative to the flowspecs
// directory.
func (x *Extractor) ExtractFile(ctx context.Context, file string) (graph.Record, error) {
	name := PipelineName(file)

	raw, err := os.ReadFile(filepath.Join(x.flowspecsDir, file))
	if err != nil {
		return graph.Record{}, traverse.NewMalformedError(name, fmt.Sprintf("read flowspec: %v", err))
	}
	doc, err := flowspec.Decode(raw)
	if err != nil {
		return graph.Record{}, traverse.NewMalformedError(name, err.Error())
	}

	md, err := x.metadata(name)
	if err != nil {
		return graph.Record{}, traverse.NewMalformedError(name, err.Error())
	}

	events, err := x.engine.Traverse(ctx, doc, name, flowspec.StartBranch)
	if err != nil {
		return graph.Record{}, err
	}

	rec := graph.Record{
		File:        name,
		PipelineID:  md.PipelineID,
		Trigger:     md.Trigger,
		Connections: events,
	}
	AssignProject(x.catalog, &rec)
	if rec.Connections == nil {
		rec.Connections = []traverse.Event{}
	}
	return rec, nil
}

// AssignProject fills the record's project from catalog. A pipeline that
// belongs to no project is logged and left for bucket 0.
func AssignProject(catalog *flowspec.Catalog, rec *graph.Record) {
	if p, ok := catalog.ProjectOf(rec.PipelineID); ok {
		rec.ProjectID = p.ID
		rec.ProjectName = p.Name
		return
	}
	slog.Warn("pipeline belongs to no project", "file", rec.File, "pipeline_id", rec.PipelineID)
}

func (x *Extractor) metadata(name string) (flowspec.Metadata, error) {
	data, err := os.ReadFile(filepath.Join(x.metadataDir, name+".json"))
	if err != nil {
		return flowspec.Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	return flowspec.DecodeMetadata(data)
}

// NewFailure classifies err as a failure record for file. Errors that
// are not traversal errors count as MALFORMED_DOCUMENT.
func NewFailure(file string, err error) Failure {
	code := traverse.ErrCodeMalformedDocument
	var te *traverse.Error
	if errors.As(err, &te) {
		code = te.Code
	}
	return Failure{File: file, Code: code, Error: err.Error()}
}
