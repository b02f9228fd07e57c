package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWithEnv_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", nil)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, []string{"test", "prod"}, cfg.Environments)
	assert.Equal(t, 100000, cfg.MaxVisits)
	assert.Equal(t, filepath.Join("data", "projects.json"), cfg.ProjectsFile)
	assert.Equal(t, filepath.Join("data", "flowspecs", "gql"), cfg.MetadataDir)
	assert.Equal(t, filepath.Join("data", "flowspecs", "globals-replaced", "prod"), cfg.SpecDir())
	assert.Equal(t, filepath.Join("data", "extractions", "pipelinesConnections.json"), cfg.ExtractionFile)
	assert.Equal(t, filepath.Join("c4_src", "container.puml"), cfg.Output)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnv_File(t *testing.T) {
	path := writeConfig(t, `
data_dir: /srv/exports
environment: test
max_visits: 500
projects_file: /etc/projects.json
publish:
  enabled: true
  endpoint: minio:9000
  bucket: diagrams
`)

	cfg, err := LoadWithEnv(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 500, cfg.MaxVisits)
	assert.Equal(t, "/etc/projects.json", cfg.ProjectsFile)
	assert.Equal(t, filepath.Join("/srv/exports", "flowspecs", "gql"), cfg.MetadataDir)
	assert.True(t, cfg.Publish.Enabled)
	assert.Equal(t, "us-east-1", cfg.Publish.Region)
	assert.True(t, cfg.Publish.UseSSL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnv_UnknownField(t *testing.T) {
	path := writeConfig(t, "enviroment: prod\n")

	_, err := LoadWithEnv(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enviroment")
}

func TestLoadWithEnv_EmptyFile(t *testing.T) {
	cfg, err := LoadWithEnv(writeConfig(t, "  \n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Environment)
}

func TestLoadWithEnv_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "environment: test\nmax_visits: 10\n")

	cfg, err := LoadWithEnv(path, map[string]string{
		"PIPEMAP_ENVIRONMENT":     "prod",
		"PIPEMAP_MAX_VISITS":      "42",
		"PIPEMAP_ENVIRONMENTS":    "dev, stage ,,prod",
		"PIPEMAP_PUBLISH_ENABLED": "true",
		"PIPEMAP_PUBLISH_USE_SSL": "false",
		"PIPEMAP_PUBLISH_BUCKET":  "b",
		"OTHER_VAR":               "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, 42, cfg.MaxVisits)
	assert.Equal(t, []string{"dev", "stage", "prod"}, cfg.Environments)
	assert.True(t, cfg.Publish.Enabled)
	assert.False(t, cfg.Publish.UseSSL)
	assert.Equal(t, "b", cfg.Publish.Bucket)
}

func TestLoadWithEnv_BadEnvValues(t *testing.T) {
	_, err := LoadWithEnv("", map[string]string{"PIPEMAP_MAX_VISITS": "many"})
	assert.ErrorContains(t, err, "PIPEMAP_MAX_VISITS")

	_, err = LoadWithEnv("", map[string]string{"PIPEMAP_PUBLISH_ENABLED": "maybe"})
	assert.ErrorContains(t, err, "PIPEMAP_PUBLISH_ENABLED")
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = " "
	cfg.MaxVisits = 0
	cfg.Publish.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment is required")
	assert.Contains(t, err.Error(), "max_visits must be positive")
	assert.Contains(t, err.Error(), "publish.bucket")
	assert.Contains(t, err.Error(), "publish.endpoint")
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PIPEMAP_ENVIRONMENT=staging\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipemap.yaml"), []byte("max_visits: 7\n"), 0o644))
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 7, cfg.MaxVisits)
}

func TestLoadWithFlags_FlagsWin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PIPEMAP_ENVIRONMENT=staging\nPIPEMAP_DATA_DIR=from-env\n"), 0o644))
	chdir(t, dir)

	cfg, err := LoadWithFlags("", map[string]string{"ENVIRONMENT": "test"})
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "from-env", cfg.DataDir)
	assert.Equal(t, filepath.Join("from-env", "projects.json"), cfg.ProjectsFile)
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
