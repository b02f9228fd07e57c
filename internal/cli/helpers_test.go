package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipemap/internal/testutil"
)

const checkoutFlowspec = `{
	"start": [
		{"id": "1", "name": "rest-connector-v2", "stepName": "Charge card",
		 "params": {"url": "https://api.pay.example/charge", "operation": "POST"}},
		{"id": "2", "name": "choice", "stepName": "Route", "otherwise": "bill"}
	],
	"bill": [
		{"id": "3", "name": "pipeline-executor-connector", "stepName": "Bill",
		 "params": {"pipelineName": "billing", "operation": "sync"}}
	]
}`

const billingFlowspec = `{
	"start": [
		{"id": "1", "name": "mongodb-connector", "stepName": "Find order",
		 "params": {"url": "mongodb://db", "databaseName": "orders"}},
		{"id": "2", "name": "pipeline-executor-connector", "stepName": "Notify",
		 "params": {"pipelineName": "checkout"}}
	]
}`

const brokenFlowspec = `{"start": [{"name": "choice", "stepName": "Go", "otherwise": "missing"}]}`

// newPortfolio writes two healthy pipelines in two projects plus one
// pipeline referencing an undefined branch.
func newPortfolio(t *testing.T) *testutil.Portfolio {
	t.Helper()
	p := testutil.NewPortfolio(t, "prod")
	p.Project("shop", "Shop", "p-checkout").
		Project("fin", "Finance", "p-billing").
		Pipeline("checkout", "p-checkout", checkoutFlowspec).
		Pipeline("billing", "p-billing", billingFlowspec).
		Pipeline("broken", "p-broken", brokenFlowspec)
	return p
}

// writeConfig writes a pipemap.yaml that keeps every output inside the
// portfolio directory.
func writeConfig(t *testing.T, p *testutil.Portfolio, extra string) string {
	t.Helper()
	content := fmt.Sprintf("data_dir: %q\nenvironment: %q\noutput: %q\n%s",
		p.Root, p.Env, diagramPath(p), extra)
	path := filepath.Join(p.Root, "pipemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func diagramPath(p *testutil.Portfolio) string {
	return filepath.Join(p.Root, "out", "container.puml")
}

func extractionPath(p *testutil.Portfolio) string {
	return filepath.Join(p.Root, "extractions", "pipelinesConnections.json")
}

func databasePath(p *testutil.Portfolio) string {
	return filepath.Join(p.Root, "pipemap.db")
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// executeRoot runs the full command tree.
func executeRoot(args ...string) (string, error) {
	return execute(NewRootCommand(), args...)
}
