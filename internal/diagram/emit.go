package diagram

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/pipemap/internal/graph"
)

// DefaultIncludeURL is the C4-PlantUML container library.
const DefaultIncludeURL = "https://raw.githubusercontent.com/plantuml-stdlib/C4-PlantUML/master/C4_Container.puml"

// labelBreak separates label sub-lines. The backslash is literal PlantUML.
const labelBreak = `**\n**`

// Options configures emission.
type Options struct {
	// IncludeURL is the C4 library to include. Empty means DefaultIncludeURL.
	IncludeURL string
}

func (o Options) includeURL() string {
	if o.IncludeURL == "" {
		return DefaultIncludeURL
	}
	return o.IncludeURL
}

// printer writes lines and keeps the first error.
type printer struct {
	w   *bufio.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

// Emit writes the diagram for g to w.
func Emit(w io.Writer, g *graph.Graph, opts Options) error {
	p := &printer{w: bufio.NewWriter(w)}

	p.line("@startuml")
	p.line("!include %s", opts.includeURL())
	p.line("")
	p.line("LAYOUT_TOP_DOWN()")
	p.line("LAYOUT_WITH_LEGEND()")

	if external := g.VerticesIn(graph.ExternalProjectID); len(external) > 0 {
		p.line("")
		for _, v := range external {
			p.line("%s", system(v))
		}
	}

	boundaries := g.Boundaries()
	for _, b := range boundaries {
		p.line("")
		p.line("System_Boundary(%s, \"Project: %s\") {", b.ID, escape(b.Name))
		for _, v := range g.VerticesIn(b.ID) {
			p.line("  %s", system(v))
		}
		p.line("}")
	}

	buckets := make([]string, 0, len(boundaries)+1)
	buckets = append(buckets, graph.ExternalProjectID)
	for _, b := range boundaries {
		buckets = append(buckets, b.ID)
	}

	first := true
	for _, bucket := range buckets {
		for _, origin := range g.VerticesIn(bucket) {
			for _, e := range g.EdgesFrom(origin.Key) {
				if first {
					p.line("")
					first = false
				}
				target, _ := g.Vertex(e.To)
				p.line("%s", relation(g, origin, target, e))
			}
		}
	}

	p.line("")
	p.line("@enduml")

	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}

// Render returns the diagram for g as bytes.
func Render(g *graph.Graph, opts Options) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer do not fail.
	_ = Emit(&buf, g, opts)
	return buf.Bytes()
}

func system(v graph.Vertex) string {
	switch v.Kind() {
	case graph.KindDatabase:
		return fmt.Sprintf("ContainerDb(%s, \"%s\", \"%s\")", v.ID, escape(v.Name), escape(v.Key))
	case graph.KindExternal:
		return fmt.Sprintf("System_Ext(%s, \"%s\", \"%s\")", v.ID, escape(v.Name), escape(v.Key))
	default:
		return fmt.Sprintf("System(%s, \"Pipeline\", \"%s\")", v.ID, escape(v.Key))
	}
}

func relation(g *graph.Graph, origin, target graph.Vertex, e graph.Edge) string {
	var sb strings.Builder
	if g.IsBidirectional(e) {
		sb.WriteString("Bi")
	}
	sb.WriteString("Rel")
	if target.Kind() != graph.KindInternal || target.ProjectID == origin.ProjectID {
		sb.WriteString("_D")
	}

	label := escape(e.Connector)
	if e.Extra != "" {
		label += labelBreak + escape(e.Extra)
	}
	label += labelBreak + "'" + escape(e.Name) + "'"

	fmt.Fprintf(&sb, "(%s, %s, \"%s\")", origin.ID, target.ID, label)
	return sb.String()
}

// escaper rewrites characters that would end a PlantUML string or split
// a declaration across lines.
var escaper = strings.NewReplacer(`"`, "'", "\r\n", " ", "\r", " ", "\n", " ")

func escape(s string) string {
	return escaper.Replace(s)
}
