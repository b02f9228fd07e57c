// Package config loads pipemap settings.
//
// Sources, lowest to highest precedence: built-in defaults, the YAML file
// (pipemap.yaml, unknown fields rejected), a .env file, process
// environment variables (PIPEMAP_*), and CLI flags applied by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "pipemap.yaml"

// DefaultEnvFile is the dotenv file looked up in the working directory.
const DefaultEnvFile = ".env"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PIPEMAP_"

// Config holds all pipemap settings.
type Config struct {
	DataDir        string   `yaml:"data_dir"`
	Environment    string   `yaml:"environment"`
	Environments   []string `yaml:"environments"`
	ProjectsFile   string   `yaml:"projects_file"`
	MetadataDir    string   `yaml:"metadata_dir"`
	FlowspecsDir   string   `yaml:"flowspecs_dir"`
	ReplacedDir    string   `yaml:"replaced_dir"`
	GlobalsFile    string   `yaml:"globals_file"`
	ExtractionFile string   `yaml:"extraction_file"`
	Output         string   `yaml:"output"`
	IncludeURL     string   `yaml:"include_url"`
	MaxVisits      int      `yaml:"max_visits"`
	RulesDir       string   `yaml:"rules_dir"`
	Database       string   `yaml:"database"`
	Publish        Publish  `yaml:"publish"`
}

// Publish configures the diagram upload to an S3-compatible bucket.
type Publish struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Key       string `yaml:"key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:      "data",
		Environment:  "prod",
		Environments: []string{"test", "prod"},
		Output:       filepath.Join("c4_src", "container.puml"),
		MaxVisits:    100000,
		Publish: Publish{
			Region: "us-east-1",
			UseSSL: true,
			Key:    "container.puml",
		},
	}
}

// Load reads path (or DefaultFile when path is empty and it exists),
// DefaultEnvFile when present, and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with command-line overrides applied last. Keys
// are environment variable names without the prefix, e.g. "DATA_DIR".
func LoadWithFlags(path string, flags map[string]string) (*Config, error) {
	env := map[string]string{}
	if _, err := os.Stat(DefaultEnvFile); err == nil {
		dotenv, err := godotenv.Read(DefaultEnvFile)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", DefaultEnvFile, err)
		}
		env = dotenv
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	for k, v := range flags {
		env[EnvPrefix+k] = v
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	return LoadWithEnv(path, env)
}

// LoadWithEnv reads the YAML file at path (skipped when empty) and applies
// overrides from env.
func LoadWithEnv(path string, env map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	cfg.fillDerived()
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

func (c *Config) applyEnv(env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := env[EnvPrefix+key]; ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
		return nil
	}

	str("DATA_DIR", &c.DataDir)
	str("ENVIRONMENT", &c.Environment)
	str("PROJECTS_FILE", &c.ProjectsFile)
	str("METADATA_DIR", &c.MetadataDir)
	str("FLOWSPECS_DIR", &c.FlowspecsDir)
	str("REPLACED_DIR", &c.ReplacedDir)
	str("GLOBALS_FILE", &c.GlobalsFile)
	str("EXTRACTION_FILE", &c.ExtractionFile)
	str("OUTPUT", &c.Output)
	str("INCLUDE_URL", &c.IncludeURL)
	str("RULES_DIR", &c.RulesDir)
	str("DATABASE", &c.Database)
	str("PUBLISH_ENDPOINT", &c.Publish.Endpoint)
	str("PUBLISH_REGION", &c.Publish.Region)
	str("PUBLISH_BUCKET", &c.Publish.Bucket)
	str("PUBLISH_ACCESS_KEY", &c.Publish.AccessKey)
	str("PUBLISH_SECRET_KEY", &c.Publish.SecretKey)
	str("PUBLISH_KEY", &c.Publish.Key)

	if v := env[EnvPrefix+"ENVIRONMENTS"]; v != "" {
		c.Environments = splitList(v)
	}
	if v := env[EnvPrefix+"MAX_VISITS"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_VISITS: %w", EnvPrefix, err)
		}
		c.MaxVisits = n
	}
	if err := boolean("PUBLISH_ENABLED", &c.Publish.Enabled); err != nil {
		return err
	}
	return boolean("PUBLISH_USE_SSL", &c.Publish.UseSSL)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fillDerived sets unset paths relative to DataDir.
func (c *Config) fillDerived() {
	def := func(dst *string, parts ...string) {
		if *dst == "" {
			*dst = filepath.Join(append([]string{c.DataDir}, parts...)...)
		}
	}
	def(&c.ProjectsFile, "projects.json")
	def(&c.FlowspecsDir, "flowspecs")
	def(&c.MetadataDir, "flowspecs", "gql")
	def(&c.ReplacedDir, "flowspecs", "globals-replaced")
	def(&c.GlobalsFile, "globals.json")
	def(&c.ExtractionFile, "extractions", "pipelinesConnections.json")
	def(&c.Database, "pipemap.db")
}

// SpecDir is the directory holding the substituted flowspecs of the
// selected environment.
func (c *Config) SpecDir() string {
	return filepath.Join(c.ReplacedDir, c.Environment)
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Environment) == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if c.MaxVisits < 1 {
		errs = append(errs, fmt.Errorf("max_visits must be positive, got %d", c.MaxVisits))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if c.Publish.Enabled {
		if c.Publish.Bucket == "" {
			errs = append(errs, errors.New("publish.bucket is required when publish is enabled"))
		}
		if c.Publish.Endpoint == "" {
			errs = append(errs, errors.New("publish.endpoint is required when publish is enabled"))
		}
	}
	return errors.Join(errs...)
}
